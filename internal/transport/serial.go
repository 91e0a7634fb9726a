// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// SerialPort is a shared serial line. Writes are serialised; one reader
// may consume responses concurrently through Serve.
type SerialPort struct {
	name string

	mu     sync.Mutex
	rw     io.ReadWriteCloser
	closed bool
}

// OpenSerial opens a serial port at 8N1 with the given baud rate
func OpenSerial(name string, baudRate int) (*SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return NewSerialPort(name, port), nil
}

// NewSerialPort wraps an already open stream
func NewSerialPort(name string, rw io.ReadWriteCloser) *SerialPort {
	return &SerialPort{name: name, rw: rw}
}

// Name returns the port name
func (s *SerialPort) Name() string {
	return s.name
}

// Send writes one frame. A short write is reported as a failure.
func (s *SerialPort) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return &SendError{Transport: "serial", Target: s.name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &SendError{Transport: "serial", Target: s.name, Err: ErrClosed}
	}

	n, err := s.rw.Write(payload)
	if err == nil && n != len(payload) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &SendError{Transport: "serial", Target: s.name, Err: err}
	}
	return nil
}

// Serve reads from the port and hands every chunk to handle until ctx is
// cancelled or the port fails. Closing the port unblocks the read.
func (s *SerialPort) Serve(ctx context.Context, handle func([]byte)) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	buf := make([]byte, 128)
	for {
		n, err := s.rw.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			handle(chunk)
		}
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("serial port %s closed", s.name)
			}
			return fmt.Errorf("serial read on %s: %w", s.name, err)
		}
	}
}

func (s *SerialPort) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close closes the port. Safe to call more than once.
func (s *SerialPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rw.Close()
}
