// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// MaxDatagramSize bounds a single telemetry datagram
const MaxDatagramSize = 64 * 1024

// UDPSocket is a relay's UDP endpoint. It receives telemetry and, when a
// device address is set, sends command datagrams from the same socket.
type UDPSocket struct {
	conn net.PacketConn

	mu     sync.Mutex
	closed bool
}

// ListenUDP binds a UDP socket on addr
func ListenUDP(addr string) (*UDPSocket, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on udp %s: %w", addr, err)
	}
	return &UDPSocket{conn: conn}, nil
}

// LocalAddr returns the bound address
func (u *UDPSocket) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Serve delivers every datagram to handle until ctx is cancelled.
// The payload slice is owned by handle.
func (u *UDPSocket) Serve(ctx context.Context, handle func(payload []byte, from net.Addr)) error {
	stop := context.AfterFunc(ctx, func() { u.Close() })
	defer stop()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, from, err := u.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || u.isClosed() {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("udp read on %s: %w", u.conn.LocalAddr(), err)
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		handle(payload, from)
	}
}

// SenderTo returns a Sender that writes datagrams to addr from this socket
func (u *UDPSocket) SenderTo(addr string) (*UDPSender, error) {
	remote, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("invalid device address %s: %w", addr, err)
	}
	return &UDPSender{socket: u, remote: remote}, nil
}

func (u *UDPSocket) isClosed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.closed
}

// Close closes the socket. Safe to call more than once.
func (u *UDPSocket) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true
	return u.conn.Close()
}

// UDPSender sends command datagrams to one device
type UDPSender struct {
	socket *UDPSocket
	remote net.Addr
	owned  bool // socket was opened for this sender only

	mu sync.Mutex
}

// DialUDP returns a sender on its own ephemeral socket
func DialUDP(addr string) (*UDPSender, error) {
	socket, err := ListenUDP(":0")
	if err != nil {
		return nil, err
	}
	sender, err := socket.SenderTo(addr)
	if err != nil {
		socket.Close()
		return nil, err
	}
	sender.owned = true
	return sender, nil
}

// Remote returns the device address
func (s *UDPSender) Remote() net.Addr {
	return s.remote
}

// Send writes one datagram. The context deadline, if any, bounds the write.
func (s *UDPSender) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return &SendError{Transport: "udp", Target: s.remote.String(), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.socket.isClosed() {
		return &SendError{Transport: "udp", Target: s.remote.String(), Err: ErrClosed}
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	s.socket.conn.SetWriteDeadline(deadline)

	if _, err := s.socket.conn.WriteTo(payload, s.remote); err != nil {
		return &SendError{Transport: "udp", Target: s.remote.String(), Err: err}
	}
	return nil
}

// Close closes the socket when the sender owns it
func (s *UDPSender) Close() error {
	if s.owned {
		return s.socket.Close()
	}
	return nil
}
