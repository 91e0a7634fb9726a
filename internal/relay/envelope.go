// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/devmgr/pkg/adsb"
	"github.com/Thermoquad/devmgr/pkg/pelco"
)

// Message is one WebSocket message queued for clients
type Message struct {
	Type int // websocket.TextMessage or websocket.BinaryMessage
	Data []byte
}

// TextMessage wraps data as a text message
func TextMessage(data []byte) Message {
	return Message{Type: websocket.TextMessage, Data: data}
}

// Envelope turns a device payload into client messages
type Envelope interface {
	Transform(payload []byte) ([]Message, error)
}

// Raw broadcasts every payload unmodified as text
type Raw struct{}

// Transform returns the payload as one text message
func (Raw) Transform(payload []byte) ([]Message, error) {
	return []Message{TextMessage(payload)}, nil
}

// ADSB parses receiver records and re-encodes them for clients
type ADSB struct {
	Encoding adsb.Encoding
}

// Transform parses one record. Payloads without a record return an error
// wrapping adsb.ErrUnmatchedEnvelope.
func (e ADSB) Transform(payload []byte) ([]Message, error) {
	record, err := adsb.Parse(payload)
	if err != nil {
		return nil, err
	}
	data, err := e.Encoding.Marshal(record)
	if err != nil {
		return nil, err
	}
	msgType := websocket.TextMessage
	if e.Encoding.Binary() {
		msgType = websocket.BinaryMessage
	}
	return []Message{{Type: msgType, Data: data}}, nil
}

// PelcoResponses reassembles 7-byte PELCO frames from serial chunks.
// Frames failing the checksum are discarded and reported in the error.
type PelcoResponses struct {
	mu      sync.Mutex
	decoder *pelco.Decoder
}

// NewPelcoResponses creates the serial response envelope for a codec
func NewPelcoResponses(codec *pelco.Codec) *PelcoResponses {
	return &PelcoResponses{decoder: pelco.NewDecoder(codec)}
}

// Transform feeds a chunk and returns one message per complete frame
func (e *PelcoResponses) Transform(chunk []byte) ([]Message, error) {
	e.mu.Lock()
	frames, errs := e.decoder.Decode(chunk)
	e.mu.Unlock()

	msgs := make([]Message, 0, len(frames))
	for _, f := range frames {
		data, err := json.Marshal(PelcoResponse{Frame: pelco.FormatHex(f.Bytes())})
		if err != nil {
			errs = append(errs, fmt.Errorf("encode pelco response: %w", err))
			continue
		}
		msgs = append(msgs, TextMessage(data))
	}
	return msgs, errors.Join(errs...)
}
