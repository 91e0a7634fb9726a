// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport wraps the device side links of a relay: the PELCO
// serial port and the UDP telemetry/command socket.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrSendFailed is matched by every SendError
var ErrSendFailed = errors.New("transport send failed")

// ErrClosed is returned by Send after Close
var ErrClosed = errors.New("transport closed")

// Sender delivers one command payload to a device.
// Implementations serialise concurrent calls.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// SendError describes a failed device write
type SendError struct {
	Transport string // "serial" or "udp"
	Target    string // port name or remote address
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s send to %s failed: %v", e.Transport, e.Target, e.Err)
}

// Unwrap returns the underlying write error
func (e *SendError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSendFailed) hold for every SendError
func (e *SendError) Is(target error) bool {
	return target == ErrSendFailed
}
