// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Thermoquad/devmgr/internal/transport"
	"github.com/Thermoquad/devmgr/pkg/devcmd"
)

var systemMessages = map[devcmd.Code]string{
	devcmd.Status:  "System status: Operational.",
	devcmd.Start:   "System started successfully.",
	devcmd.Stop:    "System stopped successfully.",
	devcmd.Restart: "System restarted successfully.",
	devcmd.Set:     "System set: parameter set successfully.",
}

// SystemCommand is the datagram sent to UDP devices
type SystemCommand struct {
	Command devcmd.Code     `json:"command"`
	Name    string          `json:"name"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// System dispatches the STATUS/START/STOP/RESTART/SET command set shared by
// the radar, jammer and ADS-B receiver
type System struct {
	table  *devcmd.Table
	sender transport.Sender
}

// NewSystem creates a dispatcher for a system command table.
// sender may be nil, in which case commands are only acknowledged.
func NewSystem(table *devcmd.Table, sender transport.Sender) *System {
	return &System{table: table, sender: sender}
}

// Table returns the command table
func (s *System) Table() *devcmd.Table {
	return s.table
}

// Dispatch validates code and forwards it as a JSON datagram
func (s *System) Dispatch(ctx context.Context, code devcmd.Code, data json.RawMessage) (Result, error) {
	name, ok := s.table.Name(code)
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownCommand, code)
	}
	message, ok := systemMessages[code]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s has no handler", ErrUnknownCommand, name)
	}

	r := Result{
		Code:           code,
		Action:         name,
		Message:        message,
		AdditionalInfo: data,
	}

	if s.sender != nil {
		payload, err := json.Marshal(SystemCommand{Command: code, Name: name, Data: data})
		if err != nil {
			return Result{}, fmt.Errorf("%w: data: %v", ErrInvalidParameter, err)
		}
		deliver(ctx, s.sender, payload, &r)
	}
	return r, nil
}
