// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package adsb

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Encoding selects how records are serialised for clients
type Encoding string

// Supported encodings
const (
	EncodingJSON Encoding = "json"
	EncodingCBOR Encoding = "cbor"
)

// ParseEncoding validates a configuration value; empty selects JSON
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(s)) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingCBOR:
		return EncodingCBOR, nil
	}
	return "", fmt.Errorf("unknown telemetry encoding %q (use json or cbor)", s)
}

// Binary reports whether the encoding produces binary WebSocket messages
func (e Encoding) Binary() bool {
	return e == EncodingCBOR
}

// Marshal serialises a record. Both encodings key the map by field name.
func (e Encoding) Marshal(r Record) ([]byte, error) {
	if e == EncodingCBOR {
		data, err := cbor.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("cbor encode: %w", err)
		}
		return data, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a record produced by Marshal
func (e Encoding) Unmarshal(data []byte) (Record, error) {
	var r Record
	var err error
	if e == EncodingCBOR {
		err = cbor.Unmarshal(data, &r)
	} else {
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return Record{}, fmt.Errorf("%s decode: %w", e, err)
	}
	return r, nil
}
