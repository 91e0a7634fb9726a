// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package adsb

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const sampleRecord = "ABC123,0,CALL1,7000,12.34,56.78,35000,90,250,0,-10,5,10,0,36000,A1,FF"

func TestParse_Sample(t *testing.T) {
	payload := []byte("...#A:" + sampleRecord + "\r\n...")

	r, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if r.ICAO != "ABC123" || r.AltBaro != "35000" || r.Call != "CALL1" || r.CRC != "FF" {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.SigS != "-10" {
		t.Errorf("SIGS = %q, want raw string -10", r.SigS)
	}
}

func TestParse_JSONKeys(t *testing.T) {
	r, err := Parse([]byte("#A:" + sampleRecord + "\r\n"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	data, err := EncodingJSON.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("broadcast is not a JSON object: %v", err)
	}
	if len(obj) != FieldCount {
		t.Errorf("object has %d keys, want %d", len(obj), FieldCount)
	}
	values := strings.Split(sampleRecord, ",")
	for i, name := range FieldNames {
		if obj[name] != values[i] {
			t.Errorf("%s = %q, want %q", name, obj[name], values[i])
		}
	}

	// Keys appear in wire order
	if !strings.HasPrefix(string(data), `{"ICAO":"ABC123","FLAGS":"0","CALL":"CALL1"`) {
		t.Errorf("unexpected key order: %s", data)
	}
}

func TestParse_Unmatched(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"no marker", sampleRecord + "\r\n"},
		{"no terminator", "#A:" + sampleRecord},
		{"terminator too early", "#A:1,2,3,4,5,6,7,8,9\r\n"},
		{"too few fields", "#A:ABC123,0,CALL1,7000,12.34,56.78,35000,90,250\r\n"},
		{"too many fields", "#A:" + sampleRecord + ",EXTRA\r\n"},
		{"bare LF", "#A:" + sampleRecord + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.payload))
			if !errors.Is(err, ErrUnmatchedEnvelope) {
				t.Errorf("error = %v, want ErrUnmatchedEnvelope", err)
			}
		})
	}
}

func TestParse_TerminatorOffsetBoundary(t *testing.T) {
	// 17 empty-ish fields: "#A:" + 16 commas + 17 single chars = 36 bytes before CRLF
	fields := make([]string, FieldCount)
	for i := range fields {
		fields[i] = "x"
	}
	payload := "#A:" + strings.Join(fields, ",") + "\r\n"
	if _, err := Parse([]byte(payload)); err != nil {
		t.Errorf("record ending at offset %d rejected: %v", strings.Index(payload, "\r\n"), err)
	}

	// Empty fields put the terminator at offset 19, inside the minimum
	payload = "#A:" + strings.Repeat(",", FieldCount-1) + "\r\n"
	if _, err := Parse([]byte(payload)); !errors.Is(err, ErrUnmatchedEnvelope) {
		t.Errorf("short record accepted, err = %v", err)
	}
}

func TestRecord_String(t *testing.T) {
	r, err := Parse([]byte("#A:" + sampleRecord + "\r\n"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got := r.String(); got != "#A:"+sampleRecord+"\r\n" {
		t.Errorf("String() = %q", got)
	}
}

func TestEncoding_CBOR(t *testing.T) {
	r, err := Parse([]byte("#A:" + sampleRecord + "\r\n"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	data, err := EncodingCBOR.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	// CBOR map header (major type 5, 17 entries) = 0xB1
	if data[0] != 0xB1 {
		t.Errorf("first byte 0x%02X, want CBOR map of 17", data[0])
	}

	back, err := EncodingCBOR.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if back != r {
		t.Errorf("CBOR round trip = %+v, want %+v", back, r)
	}
}

func TestParseEncoding(t *testing.T) {
	for in, want := range map[string]Encoding{"": EncodingJSON, "JSON": EncodingJSON, "cbor": EncodingCBOR} {
		got, err := ParseEncoding(in)
		if err != nil || got != want {
			t.Errorf("ParseEncoding(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseEncoding("xml"); err == nil {
		t.Error("ParseEncoding(xml) should fail")
	}
	if !EncodingCBOR.Binary() || EncodingJSON.Binary() {
		t.Error("Binary() mismatch")
	}
}
