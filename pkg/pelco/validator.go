// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pelco

import "fmt"

// AnomalyType represents different kinds of frame anomalies
type AnomalyType int

const (
	AnomalyReservedBits AnomalyType = iota
	AnomalyUnknownCommand
	AnomalySpeedRange
	AnomalyChecksum
)

// ValidationError represents a frame validation finding
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a decoded frame for protocol anomalies.
// Returns an empty slice for a well-formed frame.
func ValidateFrame(f Frame, m *Mapping) []ValidationError {
	errors := []ValidationError{}

	if !f.Valid() {
		body := f.Body()
		errors = append(errors, ValidationError{
			Type:    AnomalyChecksum,
			Message: fmt.Sprintf("Checksum 0x%02X does not match body (0x%02X)", f.Checksum, Checksum(body[:])),
			Details: map[string]interface{}{"checksum": f.Checksum},
		})
	}

	// Standard commands keep command1 bits 5 and 6 clear
	if !f.IsExtended() && f.Command1&cmd1Reserved != 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyReservedBits,
			Message: fmt.Sprintf("Reserved command1 bits set: 0x%02X", f.Command1),
			Details: map[string]interface{}{"command1": f.Command1},
		})
	}

	if !f.IsExtended() && f.Command2&(Cmd2Left|Cmd2Right) != 0 && f.Data1 > MaxPanSpeed && f.Data1 != TurboSpeed {
		errors = append(errors, ValidationError{
			Type:    AnomalySpeedRange,
			Message: fmt.Sprintf("Pan speed 0x%02X outside 0x00-0x%02X (turbo 0x%02X)", f.Data1, MaxPanSpeed, TurboSpeed),
			Details: map[string]interface{}{"speed": f.Data1},
		})
	}

	if !f.IsExtended() && f.Command2&(Cmd2Up|Cmd2Down) != 0 && f.Data2 > MaxTiltSpeed {
		errors = append(errors, ValidationError{
			Type:    AnomalySpeedRange,
			Message: fmt.Sprintf("Tilt speed 0x%02X outside 0x00-0x%02X", f.Data2, MaxTiltSpeed),
			Details: map[string]interface{}{"speed": f.Data2},
		})
	}

	if m != nil && f.IsExtended() && len(m.Match(f)) == 0 {
		switch f.Command2 {
		case ExtPanPosReply, ExtTiltPosReply, ExtQueryPanPos, ExtQueryTiltPos:
		default:
			errors = append(errors, ValidationError{
				Type:    AnomalyUnknownCommand,
				Message: fmt.Sprintf("Extended command 0x%02X not in %s mapping", f.Command2, m.Name()),
				Details: map[string]interface{}{"command2": f.Command2},
			})
		}
	}

	return errors
}
