// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pelco

import (
	"fmt"
	"strings"
)

// FormatHex renders bytes as upper-case hex pairs separated by spaces
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// FormatFrame formats a frame into a human-readable line.
// When a mapping is given, the actions matching the frame are listed.
func FormatFrame(f Frame, m *Mapping) string {
	timestamp := "--:--:--.---"
	if !f.timestamp.IsZero() {
		timestamp = f.timestamp.Format("15:04:05.000")
	}

	result := fmt.Sprintf("[%s] %s addr=0x%02X", timestamp, FormatHex(f.Bytes()), f.Address)

	if m != nil {
		names := m.Match(f)
		switch len(names) {
		case 0:
			result += " UNKNOWN"
		case 1:
			result += " " + names[0]
		default:
			result += " AMBIGUOUS(" + strings.Join(names, "|") + ")"
		}
	}

	switch f.Command2 {
	case ExtPanPosReply:
		result += fmt.Sprintf(" pan=%.2f°", float64(f.Position())/100.0)
	case ExtTiltPosReply:
		result += fmt.Sprintf(" tilt=%.2f°", float64(f.Position())/100.0)
	}

	return result + "\n"
}

// FormatAction describes an action table entry, e.g. "PAN_LEFT  00 04 ** 00  speed"
func FormatAction(a Action) string {
	line := fmt.Sprintf("%-22s %s", a.Name, a.signature())
	if a.Param != "" {
		line += fmt.Sprintf("  %s (0-%d)", a.Param, a.Operand.Max())
	}
	return line
}
