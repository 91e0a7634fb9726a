// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Thermoquad/devmgr/internal/transport"
	"github.com/Thermoquad/devmgr/pkg/devcmd"
	"github.com/Thermoquad/devmgr/pkg/pelco"
)

// ParamAddress overrides the configured unit address for one command
const ParamAddress = "address"

// Camera dispatches PTZ commands as PELCO frames
type Camera struct {
	table   *devcmd.Table
	codec   *pelco.Codec
	mapping *pelco.Mapping
	address byte
	sender  transport.Sender
}

// NewCamera creates the PTZ dispatcher. sender may be nil when no serial
// port is configured; frames are then encoded and reported but not sent.
func NewCamera(codec *pelco.Codec, mapping *pelco.Mapping, address byte, sender transport.Sender) *Camera {
	return &Camera{
		table:   devcmd.Camera,
		codec:   codec,
		mapping: mapping,
		address: address,
		sender:  sender,
	}
}

// Table returns the camera command table
func (c *Camera) Table() *devcmd.Table {
	return c.table
}

// Mapping returns the PELCO action mapping in use
func (c *Camera) Mapping() *pelco.Mapping {
	return c.mapping
}

// Dispatch validates code, encodes the PTZ action and writes it to the
// serial port.
//
// data may carry the action operand under its parameter name ("speed",
// "time", "position" or "preset") and an "address" override, e.g.
// {"speed": 32} or {"position": 9000, "address": 2}.
func (c *Camera) Dispatch(ctx context.Context, code devcmd.Code, data json.RawMessage) (Result, error) {
	name, ok := c.table.Name(code)
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownCommand, code)
	}
	action, ok := c.mapping.Lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s in %s mapping", ErrUnsupported, name, c.mapping.Name())
	}

	p, err := parseParams(data)
	if err != nil {
		return Result{}, err
	}

	address := c.address
	if v, ok, err := p.intParam(ParamAddress, 0xFF); err != nil {
		return Result{}, err
	} else if ok {
		address = byte(v)
	}

	value := 0
	if action.Operand != pelco.OperandNone {
		v, ok, err := p.intParam(action.Param, action.Operand.Max())
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{}, fmt.Errorf("%w: %s requires %q", ErrInvalidParameter, name, action.Param)
		}
		value = v
	}

	frame, err := c.codec.EncodeAction(address, action, value)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	r := Result{
		Code:           code,
		Action:         name,
		Message:        name,
		AdditionalInfo: data,
		Frame:          frame.Bytes(),
	}
	deliver(ctx, c.sender, r.Frame, &r)
	return r, nil
}

// params holds the top-level members of a JSON object
type params map[string]json.RawMessage

func parseParams(data json.RawMessage) (params, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return params{}, nil
	}
	if trimmed[0] != '{' {
		// Non-object data carries no parameters
		return params{}, nil
	}
	var p params
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrInvalidParameter, err)
	}
	return p, nil
}

// intParam returns the named integer parameter, checking 0..limit
func (p params) intParam(name string, limit int) (int, bool, error) {
	raw, ok := p[name]
	if !ok {
		return 0, false, nil
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, fmt.Errorf("%w: %s must be an integer, got %s", ErrInvalidParameter, name, raw)
	}
	if v < 0 || v > limit {
		return 0, false, fmt.Errorf("%w: %s=%d outside 0-%d", ErrInvalidParameter, name, v, limit)
	}
	return v, true, nil
}
