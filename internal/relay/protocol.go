// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"encoding/json"
	"errors"

	"github.com/Thermoquad/devmgr/internal/dispatch"
	"github.com/Thermoquad/devmgr/pkg/devcmd"
	"github.com/Thermoquad/devmgr/pkg/pelco"
)

// Client-facing error texts
const (
	MessageInvalidCommand = "Invalid command."
	MessageInvalidFormat  = "Invalid message format."
)

// ErrMalformedMessage is returned for client text that is not a command object
var ErrMalformedMessage = errors.New("malformed client message")

// Request is a client command
type Request struct {
	Command *devcmd.Code    `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response is the body of a successful command reply
type Response struct {
	Message        string          `json:"message"`
	AdditionalInfo json.RawMessage `json:"additionalInfo"`
	Frame          string          `json:"frame,omitempty"`
	Delivery       string          `json:"delivery"`
	Error          string          `json:"error,omitempty"`
}

// Reply is sent to the client that issued a command
type Reply struct {
	Response *Response `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// PelcoResponse carries a frame read back from the camera serial line
type PelcoResponse struct {
	Frame string `json:"pelcoResponse"`
}

// ParseRequest decodes a client message. Text that is not a JSON object, or
// whose command is not an integer, wraps ErrMalformedMessage. A missing
// command wraps dispatch.ErrUnknownCommand.
func ParseRequest(msg []byte) (Request, error) {
	// null and non-object values decode without error into Request
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		return Request{}, errors.Join(ErrMalformedMessage, err)
	}
	if fields == nil {
		return Request{}, ErrMalformedMessage
	}

	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return Request{}, errors.Join(ErrMalformedMessage, err)
	}
	if req.Command == nil {
		return Request{}, dispatch.ErrUnknownCommand
	}
	return req, nil
}

// NewReply builds the reply for a dispatched command
func NewReply(r dispatch.Result) Reply {
	resp := &Response{
		Message:        r.Message,
		AdditionalInfo: r.AdditionalInfo,
		Delivery:       r.DeliveryStatus(),
	}
	if len(r.Frame) > 0 {
		resp.Frame = pelco.FormatHex(r.Frame)
	}
	if r.Delivery != nil {
		resp.Error = r.Delivery.Error()
	}
	return Reply{Response: resp}
}

// ErrorReply builds the reply for a request that was not dispatched
func ErrorReply(err error) Reply {
	switch {
	case errors.Is(err, ErrMalformedMessage):
		return Reply{Error: MessageInvalidFormat}
	case errors.Is(err, dispatch.ErrUnknownCommand):
		return Reply{Error: MessageInvalidCommand}
	}
	return Reply{Error: err.Error()}
}
