// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/devmgr/internal/relay"
	"github.com/Thermoquad/devmgr/pkg/adsb"
	"github.com/Thermoquad/devmgr/pkg/devcmd"
)

// ErrConnectionClosed is returned when using a closed relay connection
var ErrConnectionClosed = fmt.Errorf("relay connection closed")

// RelayConnection is the client side of a relay WebSocket
type RelayConnection struct {
	conn *websocket.Conn

	mu     sync.Mutex // serializes writes
	closed bool
}

// Send writes one command request as a text message
func (r *RelayConnection) Send(code devcmd.Code, data json.RawMessage) error {
	msg, err := json.Marshal(relay.Request{Command: &code, Data: data})
	if err != nil {
		return err
	}
	return r.SendRaw(msg)
}

// SendRaw writes msg unchanged as a text message
func (r *RelayConnection) SendRaw(msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrConnectionClosed
	}
	return r.conn.WriteMessage(websocket.TextMessage, msg)
}

// Next blocks for the next message from the relay and renders it as text.
// Binary messages are ADS-B records in CBOR.
func (r *RelayConnection) Next() (string, error) {
	messageType, data, err := r.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	if messageType == websocket.BinaryMessage {
		return describeBinary(data), nil
	}
	return string(data), nil
}

// Close sends a close frame and closes the socket
func (r *RelayConnection) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	_ = r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return r.conn.Close()
}

func describeBinary(data []byte) string {
	rec, err := adsb.EncodingCBOR.Unmarshal(data)
	if err != nil {
		return fmt.Sprintf("binary (%d bytes)", len(data))
	}
	out, err := json.Marshal(rec)
	if err != nil {
		return rec.String()
	}
	return string(out)
}

// relayDialTimeout bounds the whole dial including the upgrade
const relayDialTimeout = 15 * time.Second

// DialRelay opens a client connection to a relay WebSocket URL.
// insecure skips certificate checks for wss:// URLs.
func DialRelay(ctx context.Context, rawURL string, insecure bool) (*RelayConnection, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL %q: %w", rawURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("relay URL %q: scheme must be ws or wss", rawURL)
	}

	dialer := *websocket.DefaultDialer
	if u.Scheme == "wss" && insecure {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	ctx, cancel := context.WithTimeout(ctx, relayDialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial relay %s: HTTP %d: %w", u.Host, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial relay %s: %w", u.Host, err)
	}
	return &RelayConnection{conn: conn}, nil
}
