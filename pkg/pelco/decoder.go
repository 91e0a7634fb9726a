// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pelco

import "time"

// Decoder splits a serial byte stream into 7-byte frames.
//
// The decoder waits for the codec's sync byte, collects the following six
// bytes and validates the checksum. A frame that fails the checksum is
// discarded and the decoder returns to waiting for sync; partial frames are
// never reassembled across a reset.
type Decoder struct {
	codec     *Codec
	state     int
	buffer    [FrameSize]byte
	index     int
	rawBuffer []byte // Bytes seen since the last frame boundary
}

// NewDecoder creates a stream decoder for the codec's variant
func NewDecoder(c *Codec) *Decoder {
	return &Decoder{
		codec:     c,
		state:     stateIdle,
		rawBuffer: make([]byte, 0, FrameSize*2),
	}
}

// Reset returns the decoder to the idle state
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.index = 0
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the raw bytes accumulated since the last frame boundary
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte feeds one byte to the decoder.
// Returns a frame once seven bytes have been collected and the checksum
// matches, or an error wrapping ErrChecksumMismatch when it does not.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case stateIdle:
		// Noise between frames is not kept
		if b != d.codec.sync {
			d.rawBuffer = d.rawBuffer[:0]
			return nil, nil
		}
		d.rawBuffer = append(d.rawBuffer[:0], b)
		d.buffer[0] = b
		d.index = 1
		d.state = stateBody
		return nil, nil

	case stateBody:
		d.rawBuffer = append(d.rawBuffer, b)
		d.buffer[d.index] = b
		d.index++
		if d.index < FrameSize {
			return nil, nil
		}

		frame, err := d.codec.Decode(d.buffer[:])
		d.Reset()
		if err != nil {
			return nil, err
		}
		frame.timestamp = time.Now()
		return &frame, nil

	default:
		d.Reset()
		return nil, nil
	}
}

// Decode feeds a block of bytes and returns every complete frame found,
// together with the decode errors encountered along the way
func (d *Decoder) Decode(data []byte) ([]Frame, []error) {
	var frames []Frame
	var errs []error
	for _, b := range data {
		frame, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if frame != nil {
			frames = append(frames, *frame)
		}
	}
	return frames, errs
}
