// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package devcmd

// System commands shared by the radar, jammer and ADS-B receiver
const (
	Status  Code = 0
	Start   Code = 1
	Stop    Code = 2
	Restart Code = 3
	Set     Code = 4
)

// Camera PTZ commands. Names match the PTZ action names of pkg/pelco.
const (
	PanLeft Code = iota
	PanRight
	TiltUp
	TiltDown
	PanStop
	TiltStop
	ZoomTele
	ZoomWide
	FocusNear
	FocusFar
	ZoomStop
	FocusStop
	SetPreset
	GoToPreset
	ClearPreset
	SetPresetSpeed
	SetPresetStayTime
	LoadPresetForLA
	SavePresetForLA
	SetPanSpeed
	SetTiltSpeed
	SetSyncSpeed
	SetPanPosition
	SetTiltPosition
	SetZoomPosition
	SetFocusPosition
	ColorCamOn
	ColorCamOff
	PanMotorOn
	PanMotorOff
	TiltMotorOn
	TiltMotorOff
	HeaterOn
	HeaterOff
	CoolerOn
	CoolerOff
)

func systemEntries() []Entry {
	return []Entry{
		{"STATUS", Status},
		{"START", Start},
		{"STOP", Stop},
		{"RESTART", Restart},
		{"SET", Set},
	}
}

// Built-in tables
var (
	Radar  = MustTable(ClassRadar, systemEntries()...)
	Jammer = MustTable(ClassJammer, systemEntries()...)
	ADSB   = MustTable(ClassADSB, systemEntries()...)

	Camera = MustTable(ClassCamera,
		Entry{"PAN_LEFT", PanLeft},
		Entry{"PAN_RIGHT", PanRight},
		Entry{"TILT_UP", TiltUp},
		Entry{"TILT_DOWN", TiltDown},
		Entry{"PAN_STOP", PanStop},
		Entry{"TILT_STOP", TiltStop},
		Entry{"ZOOM_TELE", ZoomTele},
		Entry{"ZOOM_WIDE", ZoomWide},
		Entry{"FOCUS_NEAR", FocusNear},
		Entry{"FOCUS_FAR", FocusFar},
		Entry{"ZOOM_STOP", ZoomStop},
		Entry{"FOCUS_STOP", FocusStop},
		Entry{"SET_PRESET", SetPreset},
		Entry{"GO_TO_PRESET", GoToPreset},
		Entry{"CLEAR_PRESET", ClearPreset},
		Entry{"SET_PRESET_SPEED", SetPresetSpeed},
		Entry{"SET_PRESET_STAY_TIME", SetPresetStayTime},
		Entry{"LOAD_PRESET_FOR_LA", LoadPresetForLA},
		Entry{"SAVE_PRESET_FOR_LA", SavePresetForLA},
		Entry{"SET_PAN_SPEED", SetPanSpeed},
		Entry{"SET_TILT_SPEED", SetTiltSpeed},
		Entry{"SET_SYNC_SPEED", SetSyncSpeed},
		Entry{"SET_PAN_POSITION", SetPanPosition},
		Entry{"SET_TILT_POSITION", SetTiltPosition},
		Entry{"SET_ZOOM_POSITION", SetZoomPosition},
		Entry{"SET_FOCUS_POSITION", SetFocusPosition},
		Entry{"COLOR_CAM_ON", ColorCamOn},
		Entry{"COLOR_CAM_OFF", ColorCamOff},
		Entry{"PAN_MOTOR_ON", PanMotorOn},
		Entry{"PAN_MOTOR_OFF", PanMotorOff},
		Entry{"TILT_MOTOR_ON", TiltMotorOn},
		Entry{"TILT_MOTOR_OFF", TiltMotorOff},
		Entry{"HEATER_ON", HeaterOn},
		Entry{"HEATER_OFF", HeaterOff},
		Entry{"COOLER_ON", CoolerOn},
		Entry{"COOLER_OFF", CoolerOff},
	)
)
