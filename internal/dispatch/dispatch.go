// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dispatch validates client commands against a device class table
// and forwards them to the device.
//
// Validation and delivery are reported separately: a command that passes
// validation always yields a Result, and a failed device write is carried
// in Result.Delivery instead of the returned error.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Thermoquad/devmgr/internal/transport"
	"github.com/Thermoquad/devmgr/pkg/devcmd"
)

// Validation errors
var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrUnsupported      = errors.New("command not supported by device mapping")
)

// ErrTransportSend is matched by Result.Delivery when the device write failed
var ErrTransportSend = transport.ErrSendFailed

// Delivery states reported to clients
const (
	DeliveryNone   = "none"
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// Dispatcher handles the commands of one device class
type Dispatcher interface {
	Table() *devcmd.Table
	Dispatch(ctx context.Context, code devcmd.Code, data json.RawMessage) (Result, error)
}

// Result is the outcome of a validated command
type Result struct {
	Code           devcmd.Code
	Action         string          // symbolic command name
	Message        string          // human-readable confirmation
	AdditionalInfo json.RawMessage // client data echoed back
	Frame          []byte          // encoded device frame, if any
	Forwarded      bool            // a device write was attempted
	Delivery       error           // nil, or wraps ErrTransportSend
}

// DeliveryStatus returns "none", "sent" or "failed"
func (r Result) DeliveryStatus() string {
	switch {
	case !r.Forwarded:
		return DeliveryNone
	case r.Delivery != nil:
		return DeliveryFailed
	}
	return DeliverySent
}

// deliver sends payload when a sender is configured
func deliver(ctx context.Context, sender transport.Sender, payload []byte, r *Result) {
	if sender == nil {
		return
	}
	r.Forwarded = true
	r.Delivery = sender.Send(ctx, payload)
}
