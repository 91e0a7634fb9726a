// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package adsb parses the receiver's text telemetry envelope.
//
// A datagram carries one record as ASCII text:
//
//	#A:ICAO,FLAGS,CALL,SQ,LAT,LON,ALT_BARO,TRACK,VELH,VELV,SIGS,SIGQ,FPS,NIC_NAC,ALT_GEO,ECAT,CRC\r\n
//
// Values are kept as the raw strings the receiver sent; numeric
// interpretation is left to clients.
package adsb

import (
	"bytes"
	"errors"
	"fmt"
)

// Envelope markers
const (
	Marker     = "#A:"
	Terminator = "\r\n"

	// MinTerminatorOffset is the smallest offset past the start of the
	// datagram at which a terminator may end a valid record
	MinTerminatorOffset = 25

	// FieldCount is the number of comma separated fields of a record
	FieldCount = 17
)

// ErrUnmatchedEnvelope is returned for payloads that do not carry a record
var ErrUnmatchedEnvelope = errors.New("unmatched telemetry envelope")

// FieldNames lists the record fields in wire order
var FieldNames = [FieldCount]string{
	"ICAO", "FLAGS", "CALL", "SQ", "LAT", "LON", "ALT_BARO", "TRACK", "VELH",
	"VELV", "SIGS", "SIGQ", "FPS", "NIC_NAC", "ALT_GEO", "ECAT", "CRC",
}

// Record is one decoded ADS-B report
type Record struct {
	ICAO    string `json:"ICAO"`
	Flags   string `json:"FLAGS"`
	Call    string `json:"CALL"`
	Squawk  string `json:"SQ"`
	Lat     string `json:"LAT"`
	Lon     string `json:"LON"`
	AltBaro string `json:"ALT_BARO"`
	Track   string `json:"TRACK"`
	VelH    string `json:"VELH"`
	VelV    string `json:"VELV"`
	SigS    string `json:"SIGS"`
	SigQ    string `json:"SIGQ"`
	FPS     string `json:"FPS"`
	NICNAC  string `json:"NIC_NAC"`
	AltGeo  string `json:"ALT_GEO"`
	ECat    string `json:"ECAT"`
	CRC     string `json:"CRC"`
}

// Parse extracts the record between the "#A:" marker and the CRLF terminator.
// Returns an error wrapping ErrUnmatchedEnvelope when the marker or
// terminator is missing, the terminator sits too close to the start of the
// datagram, or the field count is not exactly 17.
func Parse(payload []byte) (Record, error) {
	start := bytes.Index(payload, []byte(Marker))
	if start < 0 {
		return Record{}, fmt.Errorf("%w: no %q marker", ErrUnmatchedEnvelope, Marker)
	}
	body := start + len(Marker)

	end := bytes.Index(payload[body:], []byte(Terminator))
	if end < 0 {
		return Record{}, fmt.Errorf("%w: no terminator", ErrUnmatchedEnvelope)
	}
	end += body
	if end < MinTerminatorOffset {
		return Record{}, fmt.Errorf("%w: terminator at offset %d", ErrUnmatchedEnvelope, end)
	}

	fields := bytes.Split(payload[body:end], []byte(","))
	if len(fields) != FieldCount {
		return Record{}, fmt.Errorf("%w: %d fields, want %d", ErrUnmatchedEnvelope, len(fields), FieldCount)
	}

	var values [FieldCount]string
	for i, f := range fields {
		values[i] = string(f)
	}
	return fromValues(values), nil
}

func fromValues(v [FieldCount]string) Record {
	return Record{
		ICAO: v[0], Flags: v[1], Call: v[2], Squawk: v[3],
		Lat: v[4], Lon: v[5], AltBaro: v[6], Track: v[7],
		VelH: v[8], VelV: v[9], SigS: v[10], SigQ: v[11],
		FPS: v[12], NICNAC: v[13], AltGeo: v[14], ECat: v[15],
		CRC: v[16],
	}
}

// Values returns the fields in wire order
func (r Record) Values() [FieldCount]string {
	return [FieldCount]string{
		r.ICAO, r.Flags, r.Call, r.Squawk, r.Lat, r.Lon, r.AltBaro, r.Track,
		r.VelH, r.VelV, r.SigS, r.SigQ, r.FPS, r.NICNAC, r.AltGeo, r.ECat, r.CRC,
	}
}

// String renders the record back into its envelope form
func (r Record) String() string {
	var buf bytes.Buffer
	buf.WriteString(Marker)
	for i, v := range r.Values() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(v)
	}
	buf.WriteString(Terminator)
	return buf.String()
}
