// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pelco

import (
	"errors"
	"fmt"
)

// ErrChecksumMismatch is returned when a frame's checksum does not match its body
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ErrFrameLength is returned when decoding a buffer that is not exactly FrameSize bytes
var ErrFrameLength = errors.New("invalid frame length")

// ErrSyncByte is returned when a frame does not start with the codec's sync byte
var ErrSyncByte = errors.New("unexpected sync byte")

// ChecksumError carries the checksum values of a rejected frame
type ChecksumError struct {
	Expected byte
	Actual   byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%02X, got 0x%02X", e.Expected, e.Actual)
}

// Unwrap allows errors.Is(err, ErrChecksumMismatch)
func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// Codec encodes and decodes frames for one protocol variant.
// The zero value is not usable; use NewCodec.
type Codec struct {
	variant Variant
	sync    byte
}

// NewCodec creates a codec for the given variant
func NewCodec(v Variant) *Codec {
	return &Codec{variant: v, sync: v.Sync()}
}

// Variant returns the codec's protocol variant
func (c *Codec) Variant() Variant {
	return c.variant
}

// Encode builds a frame from the five body bytes. The result is deterministic
// and has no side effects.
func (c *Codec) Encode(address, command1, command2, data1, data2 byte) Frame {
	f := Frame{
		Sync:     c.sync,
		Address:  address,
		Command1: command1,
		Command2: command2,
		Data1:    data1,
		Data2:    data2,
	}
	body := f.Body()
	f.Checksum = Checksum(body[:])
	return f
}

// EncodeBytes is Encode followed by Frame.Bytes
func (c *Codec) EncodeBytes(address, command1, command2, data1, data2 byte) []byte {
	return c.Encode(address, command1, command2, data1, data2).Bytes()
}

// Decode parses a complete 7-byte frame and validates its checksum.
// Command bytes are not interpreted.
func (c *Codec) Decode(data []byte) (Frame, error) {
	if len(data) != FrameSize {
		return Frame{}, fmt.Errorf("%w: %d bytes (want %d)", ErrFrameLength, len(data), FrameSize)
	}
	if data[offsetSync] != c.sync {
		return Frame{}, fmt.Errorf("%w: 0x%02X (want 0x%02X)", ErrSyncByte, data[offsetSync], c.sync)
	}

	f := Frame{
		Sync:     data[offsetSync],
		Address:  data[offsetAddress],
		Command1: data[offsetCommand1],
		Command2: data[offsetCommand2],
		Data1:    data[offsetData1],
		Data2:    data[offsetData2],
		Checksum: data[offsetChecksum],
	}

	expected := Checksum(data[offsetAddress:offsetChecksum])
	if expected != f.Checksum {
		return Frame{}, &ChecksumError{Expected: expected, Actual: f.Checksum}
	}
	return f, nil
}
