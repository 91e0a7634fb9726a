// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pelco

import (
	"errors"
	"testing"
)

func TestDecoder_SingleFrame(t *testing.T) {
	c := NewCodec(VariantD)
	d := NewDecoder(c)
	wire := c.EncodeBytes(0x01, 0x00, Cmd2Right, 0x20, 0x00)

	var got *Frame
	for i, b := range wire {
		frame, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("byte %d: decode error: %v", i, err)
		}
		if frame != nil {
			if i != len(wire)-1 {
				t.Fatalf("frame completed early at byte %d", i)
			}
			got = frame
		}
	}
	if got == nil {
		t.Fatal("Expected frame, got nil")
	}
	if got.Address != 0x01 || got.Command2 != Cmd2Right || got.Data1 != 0x20 {
		t.Errorf("unexpected frame: %+v", got)
	}
	if got.Timestamp().IsZero() {
		t.Error("decoded frame should carry a timestamp")
	}
}

func TestDecoder_SkipsNoiseBeforeSync(t *testing.T) {
	c := NewCodec(VariantD)
	d := NewDecoder(c)
	stream := append([]byte{0x00, 0x12, 0x34}, c.EncodeBytes(0x02, 0x00, Cmd2ZoomWide, 0, 0)...)

	frames, errs := d.Decode(stream)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(frames) != 1 || frames[0].Command2 != Cmd2ZoomWide {
		t.Errorf("frames = %+v", frames)
	}
}

func TestDecoder_ChecksumErrorThenRecovers(t *testing.T) {
	c := NewCodec(VariantD)
	d := NewDecoder(c)

	bad := c.EncodeBytes(0x01, 0x00, Cmd2Left, 0x10, 0x00)
	bad[6] ^= 0x01
	good := c.EncodeBytes(0x01, 0x00, Cmd2Left, 0x10, 0x00)

	frames, errs := d.Decode(append(bad, good...))
	if len(errs) != 1 || !errors.Is(errs[0], ErrChecksumMismatch) {
		t.Fatalf("errs = %v, want one checksum mismatch", errs)
	}
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
}

func TestDecoder_MultipleFrames(t *testing.T) {
	c := NewCodec(VariantP)
	d := NewDecoder(c)

	var stream []byte
	for addr := byte(1); addr <= 5; addr++ {
		stream = append(stream, c.EncodeBytes(addr, 0x00, Cmd2Up, 0x00, addr)...)
	}

	frames, errs := d.Decode(stream)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(frames) != 5 {
		t.Fatalf("frames = %d, want 5", len(frames))
	}
	for i, f := range frames {
		if f.Address != byte(i+1) || f.Sync != SyncP {
			t.Errorf("frame %d = %+v", i, f)
		}
	}
}

func TestDecoder_Reset(t *testing.T) {
	c := NewCodec(VariantD)
	d := NewDecoder(c)

	d.DecodeByte(SyncD)
	d.DecodeByte(0x01)
	if len(d.GetRawBytes()) != 2 {
		t.Errorf("raw bytes = %d, want 2", len(d.GetRawBytes()))
	}

	d.Reset()
	frame, err := d.DecodeByte(0x00)
	if frame != nil || err != nil {
		t.Error("After reset, decoder should ignore non-sync bytes")
	}
}

func TestDecoder_NoiseDoesNotAccumulate(t *testing.T) {
	d := NewDecoder(NewCodec(VariantP))

	// Bytes below 0x9F never match the P sync byte
	for i := 0; i < 1<<20; i++ {
		frame, err := d.DecodeByte(byte(i % 0x9F))
		if frame != nil || err != nil {
			t.Fatalf("byte %d: unexpected frame=%v err=%v", i, frame, err)
		}
	}
	if n := len(d.GetRawBytes()); n > FrameSize {
		t.Errorf("raw bytes = %d after sync-free stream, want <= %d", n, FrameSize)
	}
}
