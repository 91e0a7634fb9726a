// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pelco

import "time"

// Frame represents one 7-byte PELCO command or response frame
type Frame struct {
	Sync     byte
	Address  byte
	Command1 byte
	Command2 byte
	Data1    byte
	Data2    byte
	Checksum byte

	timestamp time.Time
}

// Bytes returns the frame in wire order
func (f Frame) Bytes() []byte {
	return []byte{f.Sync, f.Address, f.Command1, f.Command2, f.Data1, f.Data2, f.Checksum}
}

// Body returns the five checksummed bytes
func (f Frame) Body() [BodySize]byte {
	return [BodySize]byte{f.Address, f.Command1, f.Command2, f.Data1, f.Data2}
}

// Valid reports whether the checksum matches the body
func (f Frame) Valid() bool {
	body := f.Body()
	return Checksum(body[:]) == f.Checksum
}

// Timestamp returns the decode time, zero for frames built locally
func (f Frame) Timestamp() time.Time {
	return f.timestamp
}

// IsExtended reports whether command2 carries an extended command (bit 0 set)
func (f Frame) IsExtended() bool {
	return f.Command2&0x01 != 0
}

// Position returns data1/data2 as a big-endian 16-bit value, as used by
// position setters and position query replies
func (f Frame) Position() uint16 {
	return uint16(f.Data1)<<8 | uint16(f.Data2)
}
