// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pelco

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrOperandRange is returned when an action operand does not fit its byte slots
var ErrOperandRange = errors.New("operand out of range")

// Operand describes which data bytes of an action carry a live parameter
type Operand int

// Operand kinds
const (
	OperandNone  Operand = iota // Fully fixed frame
	OperandData1                // One byte in data1 (pan speed and friends)
	OperandData2                // One byte in data2 (tilt speed, stay time, preset id)
	OperandBoth                 // 16-bit value: data1 = MSB, data2 = LSB
)

// Max returns the largest operand value accepted
func (o Operand) Max() int {
	switch o {
	case OperandData1, OperandData2:
		return 0xFF
	case OperandBoth:
		return 0xFFFF
	}
	return 0
}

// Parameter names used by the action tables
const (
	ParamSpeed    = "speed"
	ParamTime     = "time"
	ParamPosition = "position"
	ParamPreset   = "preset"
)

// Action names. Camera command names are shared with the camera command table.
const (
	ActionPanLeft          = "PAN_LEFT"
	ActionPanRight         = "PAN_RIGHT"
	ActionTiltUp           = "TILT_UP"
	ActionTiltDown         = "TILT_DOWN"
	ActionPanStop          = "PAN_STOP"
	ActionTiltStop         = "TILT_STOP"
	ActionZoomTele         = "ZOOM_TELE"
	ActionZoomWide         = "ZOOM_WIDE"
	ActionFocusNear        = "FOCUS_NEAR"
	ActionFocusFar         = "FOCUS_FAR"
	ActionZoomStop         = "ZOOM_STOP"
	ActionFocusStop        = "FOCUS_STOP"
	ActionSetPreset        = "SET_PRESET"
	ActionGoToPreset       = "GO_TO_PRESET"
	ActionClearPreset      = "CLEAR_PRESET"
	ActionSetPresetSpeed   = "SET_PRESET_SPEED"
	ActionSetPresetStay    = "SET_PRESET_STAY_TIME"
	ActionLoadPresetForLA  = "LOAD_PRESET_FOR_LA"
	ActionSavePresetForLA  = "SAVE_PRESET_FOR_LA"
	ActionSetPanSpeed      = "SET_PAN_SPEED"
	ActionSetTiltSpeed     = "SET_TILT_SPEED"
	ActionSetSyncSpeed     = "SET_SYNC_SPEED"
	ActionSetPanPosition   = "SET_PAN_POSITION"
	ActionSetTiltPosition  = "SET_TILT_POSITION"
	ActionSetZoomPosition  = "SET_ZOOM_POSITION"
	ActionSetFocusPosition = "SET_FOCUS_POSITION"
	ActionColorCamOn       = "COLOR_CAM_ON"
	ActionColorCamOff      = "COLOR_CAM_OFF"
	ActionPanMotorOn       = "PAN_MOTOR_ON"
	ActionPanMotorOff      = "PAN_MOTOR_OFF"
	ActionTiltMotorOn      = "TILT_MOTOR_ON"
	ActionTiltMotorOff     = "TILT_MOTOR_OFF"
	ActionHeaterOn         = "HEATER_ON"
	ActionHeaterOff        = "HEATER_OFF"
	ActionCoolerOn         = "COOLER_ON"
	ActionCoolerOff        = "COOLER_OFF"
)

// Action maps a named PTZ action onto frame body bytes.
// Data bytes named by Operand are replaced by the caller's value.
type Action struct {
	Name     string
	Command1 byte
	Command2 byte
	Data1    byte
	Data2    byte
	Operand  Operand
	Param    string // Parameter name carrying the operand, empty for OperandNone
}

// Apply returns the command and data bytes with the operand value filled in
func (a Action) Apply(value int) (command1, command2, data1, data2 byte, err error) {
	if value < 0 || value > a.Operand.Max() {
		return 0, 0, 0, 0, fmt.Errorf("%w: %s=%d (max %d)", ErrOperandRange, a.paramName(), value, a.Operand.Max())
	}

	data1, data2 = a.Data1, a.Data2
	switch a.Operand {
	case OperandData1:
		data1 = byte(value)
	case OperandData2:
		data2 = byte(value)
	case OperandBoth:
		data1 = byte(value >> 8)
		data2 = byte(value)
	}
	return a.Command1, a.Command2, data1, data2, nil
}

func (a Action) paramName() string {
	if a.Param == "" {
		return "value"
	}
	return a.Param
}

// signature identifies the bytes an action fixes; live operand slots are wildcards
func (a Action) signature() string {
	d1 := fmt.Sprintf("%02X", a.Data1)
	d2 := fmt.Sprintf("%02X", a.Data2)
	switch a.Operand {
	case OperandData1:
		d1 = "**"
	case OperandData2:
		d2 = "**"
	case OperandBoth:
		d1, d2 = "**", "**"
	}
	return fmt.Sprintf("%02X %02X %s %s", a.Command1, a.Command2, d1, d2)
}

// EncodeAction encodes a named action for the given unit address.
// value is ignored for actions without an operand.
func (c *Codec) EncodeAction(address byte, a Action, value int) (Frame, error) {
	if a.Operand == OperandNone {
		value = 0
	}
	c1, c2, d1, d2, err := a.Apply(value)
	if err != nil {
		return Frame{}, err
	}
	return c.Encode(address, c1, c2, d1, d2), nil
}

// Mapping is an immutable action table
type Mapping struct {
	name    string
	order   []string
	actions map[string]Action
}

func newMapping(name string, actions []Action) *Mapping {
	m := &Mapping{
		name:    name,
		order:   make([]string, 0, len(actions)),
		actions: make(map[string]Action, len(actions)),
	}
	for _, a := range actions {
		if _, dup := m.actions[a.Name]; dup {
			panic(fmt.Sprintf("pelco: duplicate action %q in %s mapping", a.Name, name))
		}
		m.order = append(m.order, a.Name)
		m.actions[a.Name] = a
	}
	return m
}

// Name returns the mapping's configuration name
func (m *Mapping) Name() string {
	return m.name
}

// Lookup returns the action registered under name
func (m *Mapping) Lookup(name string) (Action, bool) {
	a, ok := m.actions[name]
	return a, ok
}

// Actions returns all actions in table order
func (m *Mapping) Actions() []Action {
	out := make([]Action, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.actions[name])
	}
	return out
}

// Collisions returns groups of actions that fix identical bytes and
// therefore cannot be told apart on the wire. Groups are sorted by their
// first member; members keep table order.
func (m *Mapping) Collisions() [][]string {
	bySig := make(map[string][]string)
	var sigs []string
	for _, name := range m.order {
		sig := m.actions[name].signature()
		if _, seen := bySig[sig]; !seen {
			sigs = append(sigs, sig)
		}
		bySig[sig] = append(bySig[sig], name)
	}

	var groups [][]string
	for _, sig := range sigs {
		if len(bySig[sig]) > 1 {
			groups = append(groups, bySig[sig])
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

// Match returns the names of the actions that could have produced the
// frame's command and data bytes
func (m *Mapping) Match(f Frame) []string {
	var names []string
	for _, name := range m.order {
		a := m.actions[name]
		if a.Command1 != f.Command1 || a.Command2 != f.Command2 {
			continue
		}
		if a.Operand != OperandData1 && a.Operand != OperandBoth && a.Data1 != f.Data1 {
			continue
		}
		if a.Operand != OperandData2 && a.Operand != OperandBoth && a.Data2 != f.Data2 {
			continue
		}
		names = append(names, name)
	}
	return names
}

// Mapping names accepted by ParseMapping
const (
	MappingVendor   = "vendor"
	MappingStandard = "standard"
)

// ParseMapping returns the built-in mapping with the given name
func ParseMapping(name string) (*Mapping, error) {
	switch strings.ToLower(name) {
	case MappingVendor, "":
		return VendorMapping, nil
	case MappingStandard:
		return StandardMapping, nil
	}
	return nil, fmt.Errorf("unknown PELCO mapping %q (use %s or %s)", name, MappingVendor, MappingStandard)
}

func fixed(name string, c1, c2, d1, d2 byte) Action {
	return Action{Name: name, Command1: c1, Command2: c2, Data1: d1, Data2: d2}
}

func live(name string, c1, c2 byte, op Operand, param string) Action {
	return Action{Name: name, Command1: c1, Command2: c2, Operand: op, Param: param}
}

// vendorActions is the table deployed camera heads are wired against.
// It is kept byte-for-byte, including its collisions: the four stop
// actions share the PELCO "stop all" frame, SET_PRESET_SPEED encodes
// exactly like PAN_LEFT, and the heater/cooler on and off pairs are
// identical frames.
var vendorActions = []Action{
	live(ActionPanLeft, 0x00, Cmd2Left, OperandData1, ParamSpeed),
	live(ActionPanRight, 0x00, Cmd2Right, OperandData1, ParamSpeed),
	live(ActionTiltUp, 0x00, Cmd2Up, OperandData2, ParamSpeed),
	live(ActionTiltDown, 0x00, Cmd2Down, OperandData2, ParamSpeed),
	fixed(ActionPanStop, 0x00, 0x00, 0x00, 0x00),
	fixed(ActionTiltStop, 0x00, 0x00, 0x00, 0x00),
	fixed(ActionZoomTele, 0x00, Cmd2ZoomTele, 0x00, 0x00),
	fixed(ActionZoomWide, 0x00, Cmd2ZoomWide, 0x00, 0x00),
	fixed(ActionFocusNear, Cmd1FocusNear, 0x00, 0x00, 0x00),
	fixed(ActionFocusFar, 0x00, Cmd2FocusFar, 0x00, 0x00),
	fixed(ActionZoomStop, 0x00, 0x00, 0x00, 0x00),
	fixed(ActionFocusStop, 0x00, 0x00, 0x00, 0x00),
	fixed(ActionSetPreset, 0x00, ExtSetPreset, 0x00, 0x00),
	fixed(ActionGoToPreset, 0x00, ExtGotoPreset, 0x00, 0x00),
	fixed(ActionClearPreset, 0x00, ExtClearPreset, 0x00, 0x00),
	live(ActionSetPresetSpeed, 0x00, 0x04, OperandData1, ParamSpeed),
	live(ActionSetPresetStay, 0x00, 0x04, OperandData2, ParamTime),
	fixed(ActionLoadPresetForLA, 0x00, 0x14, 0x00, 0x00),
	fixed(ActionSavePresetForLA, 0x00, 0x09, 0x00, 0x00),
	live(ActionSetPanSpeed, 0x00, 0x49, OperandData1, ParamSpeed),
	live(ActionSetTiltSpeed, 0x00, 0x4B, OperandData1, ParamSpeed),
	live(ActionSetSyncSpeed, 0x00, 0x48, OperandData1, ParamSpeed),
	live(ActionSetPanPosition, 0x00, 0x45, OperandBoth, ParamPosition),
	live(ActionSetTiltPosition, 0x00, 0x47, OperandBoth, ParamPosition),
	live(ActionSetZoomPosition, 0x00, 0x37, OperandBoth, ParamPosition),
	live(ActionSetFocusPosition, 0x00, 0x39, OperandBoth, ParamPosition),
	fixed(ActionColorCamOn, 0x88, 0x00, 0x00, 0x00),
	fixed(ActionColorCamOff, 0x08, 0x00, 0x00, 0x00),
	fixed(ActionPanMotorOn, 0x88, 0x00, 0x03, 0x00),
	fixed(ActionPanMotorOff, 0x08, 0x00, 0x03, 0x00),
	fixed(ActionTiltMotorOn, 0x88, 0x00, 0x04, 0x00),
	fixed(ActionTiltMotorOff, 0x08, 0x00, 0x04, 0x00),
	fixed(ActionHeaterOn, 0x00, 0x00, 0x06, 0x00),
	fixed(ActionHeaterOff, 0x00, 0x00, 0x06, 0x00),
	fixed(ActionCoolerOn, 0x00, 0x00, 0x07, 0x00),
	fixed(ActionCoolerOff, 0x00, 0x00, 0x07, 0x00),
}

// Auxiliary ids used for the heater and cooler relays
const (
	AuxHeater = 0x06
	AuxCooler = 0x07
)

// standardOverrides replaces vendor entries with their PELCO-D command set
// equivalents. A nil entry removes the action.
var standardOverrides = map[string]*Action{
	ActionSetPreset:      ptr(live(ActionSetPreset, 0x00, ExtSetPreset, OperandData2, ParamPreset)),
	ActionGoToPreset:     ptr(live(ActionGoToPreset, 0x00, ExtGotoPreset, OperandData2, ParamPreset)),
	ActionClearPreset:    ptr(live(ActionClearPreset, 0x00, ExtClearPreset, OperandData2, ParamPreset)),
	ActionSetPresetSpeed: nil,
	ActionSetPresetStay:  nil,
	ActionHeaterOn:       ptr(fixed(ActionHeaterOn, 0x00, ExtSetAux, 0x00, AuxHeater)),
	ActionHeaterOff:      ptr(fixed(ActionHeaterOff, 0x00, ExtClearAux, 0x00, AuxHeater)),
	ActionCoolerOn:       ptr(fixed(ActionCoolerOn, 0x00, ExtSetAux, 0x00, AuxCooler)),
	ActionCoolerOff:      ptr(fixed(ActionCoolerOff, 0x00, ExtClearAux, 0x00, AuxCooler)),
}

func ptr(a Action) *Action { return &a }

func standardActions() []Action {
	out := make([]Action, 0, len(vendorActions))
	for _, a := range vendorActions {
		override, ok := standardOverrides[a.Name]
		if !ok {
			out = append(out, a)
			continue
		}
		if override != nil {
			out = append(out, *override)
		}
	}
	return out
}

// VendorMapping reproduces the deployed action table byte-for-byte
var VendorMapping = newMapping(MappingVendor, vendorActions)

// StandardMapping follows the published PELCO-D command set where the
// vendor table deviates from it
var StandardMapping = newMapping(MappingStandard, standardActions())
