// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package pelco implements the PELCO-D / PELCO-P pan/tilt/zoom serial protocol.
//
// Every command is a fixed 7-byte frame:
//
//	sync, address, command1, command2, data1, data2, checksum
//
// The checksum is the sum of the five body bytes modulo 256; the sync byte
// is not part of the sum. This package provides frame encoding and decoding,
// a streaming decoder for serial links, and the action tables that map named
// PTZ actions onto command bytes.
package pelco

// Frame layout
const (
	FrameSize = 7
	BodySize  = 5
)

// Byte offsets within a frame
const (
	offsetSync     = 0
	offsetAddress  = 1
	offsetCommand1 = 2
	offsetCommand2 = 3
	offsetData1    = 4
	offsetData2    = 5
	offsetChecksum = 6
)

// Sync bytes per protocol variant
const (
	SyncD = 0xFF
	SyncP = 0xA0
)

// Special addresses
const (
	AddressDefault = 0x00 // Broadcast/default unit in this deployment
)

// Serial line defaults for PELCO equipment
const (
	DefaultBaudRate = 9600
	DefaultDataBits = 8
)

// Speed limits for pan/tilt operands
const (
	MaxPanSpeed  = 0x3F
	TurboSpeed   = 0xFF
	MaxTiltSpeed = 0x3F
)

// Command1 bits (standard command set)
const (
	Cmd1FocusNear   = 0x01
	Cmd1IrisOpen    = 0x02
	Cmd1IrisClose   = 0x04
	Cmd1CameraOnOff = 0x08
	Cmd1AutoScan    = 0x10
	Cmd1Sense       = 0x80

	cmd1Reserved = 0x60
)

// Command2 bits (standard command set)
const (
	Cmd2Right    = 0x02
	Cmd2Left     = 0x04
	Cmd2Up       = 0x08
	Cmd2Down     = 0x10
	Cmd2ZoomTele = 0x20
	Cmd2ZoomWide = 0x40
	Cmd2FocusFar = 0x80
)

// Extended commands (command2 values with bit 0 set)
const (
	ExtSetPreset    = 0x03
	ExtClearPreset  = 0x05
	ExtGotoPreset   = 0x07
	ExtSetAux       = 0x09
	ExtClearAux     = 0x0B
	ExtQueryPanPos  = 0x51
	ExtQueryTiltPos = 0x53
	ExtPanPosReply  = 0x59
	ExtTiltPosReply = 0x5B
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateBody
)

// Variant identifies the PELCO protocol flavour. The variant fixes the sync
// byte for every frame a codec produces or accepts.
type Variant byte

// Variant values
const (
	VariantD Variant = 'D'
	VariantP Variant = 'P'
)

// Sync returns the sync byte used by the variant.
func (v Variant) Sync() byte {
	if v == VariantP {
		return SyncP
	}
	return SyncD
}

// String returns the variant letter.
func (v Variant) String() string {
	return string(rune(v))
}

// ParseVariant converts a configuration value ("D", "P", "d", "p") to a Variant.
func ParseVariant(s string) (Variant, bool) {
	switch s {
	case "D", "d", "":
		return VariantD, true
	case "P", "p":
		return VariantP, true
	}
	return 0, false
}
