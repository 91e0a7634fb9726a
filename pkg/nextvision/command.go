// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package nextvision maps NextVision camera actions onto MAVLink
// COMMAND_LONG fields. Packing and transmitting the MAVLink message is left
// to the MAVLink stack; this package only builds the field tuple.
package nextvision

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// COMMAND_LONG constants used by NextVision payloads
const (
	TargetSystem      = 1
	TargetComponent   = 1
	CmdDigicamControl = 203 // MAV_CMD_DO_DIGICAM_CONTROL
	Confirmation      = 0

	// MaxArgs is the number of sub-command arguments (params 2-7)
	MaxArgs = 6
)

// SubCommand is the NextVision OS_Cmd carried in param1
type SubCommand int

// Sub-commands
const (
	SetMode      SubCommand = 0
	TakeSnapshot SubCommand = 1
	SetRecording SubCommand = 2
)

// Action names accepted by Build
const (
	ActionSetMode   = "set_mode"
	ActionSnapshot  = "snapshot"
	ActionRecording = "recording"
)

// Camera modes for SetMode
const (
	ModeStow        = 0
	ModePilot       = 1
	ModeHold        = 2
	ModeObservation = 3
)

var actions = map[string]SubCommand{
	ActionSetMode:   SetMode,
	ActionSnapshot:  TakeSnapshot,
	ActionRecording: SetRecording,
}

// ErrUnknownAction is returned for action names with no sub-command
var ErrUnknownAction = errors.New("unknown camera action")

// ErrTooManyArgs is returned when more than six arguments are given
var ErrTooManyArgs = errors.New("too many arguments")

// CommandLong holds the COMMAND_LONG fields for one camera request
type CommandLong struct {
	TargetSystem    uint8      `json:"target_system"`
	TargetComponent uint8      `json:"target_component"`
	Command         uint16     `json:"command"`
	Confirmation    uint8      `json:"confirmation"`
	Params          [7]float32 `json:"params"`
}

// Build returns the COMMAND_LONG tuple for a camera action. Missing
// arguments are zero filled.
func Build(action string, args ...float32) (CommandLong, error) {
	sub, ok := actions[strings.ToLower(action)]
	if !ok {
		return CommandLong{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownAction, action, strings.Join(Actions(), ", "))
	}
	return New(sub, args...)
}

// New returns the COMMAND_LONG tuple for a raw sub-command id
func New(sub SubCommand, args ...float32) (CommandLong, error) {
	if len(args) > MaxArgs {
		return CommandLong{}, fmt.Errorf("%w: %d (max %d)", ErrTooManyArgs, len(args), MaxArgs)
	}

	cmd := CommandLong{
		TargetSystem:    TargetSystem,
		TargetComponent: TargetComponent,
		Command:         CmdDigicamControl,
		Confirmation:    Confirmation,
	}
	cmd.Params[0] = float32(sub)
	copy(cmd.Params[1:], args)
	return cmd, nil
}

// Actions returns the accepted action names, sorted
func Actions() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders the tuple in MAVLink field order
func (c CommandLong) String() string {
	params := make([]string, len(c.Params))
	for i, p := range c.Params {
		params[i] = fmt.Sprintf("%g", p)
	}
	return fmt.Sprintf("COMMAND_LONG target=%d/%d command=%d confirmation=%d params=[%s]",
		c.TargetSystem, c.TargetComponent, c.Command, c.Confirmation, strings.Join(params, " "))
}
