// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package motec

import (
	"bytes"
	"math"
	"testing"
)

// scenarioMessage returns a sealed message with:
//   - rpm=0x0abc (frame 0, bytes 4-5),
//   - gear_voltage=0x0064 (frame 3, bytes 6-7),
//   - low_battery and no_sync bits set (frame 16, byte 7).
func scenarioMessage() *Message {
	var msg Message
	copy(msg[:], signature[:])
	msg[0*FrameSize+4] = 0x0a
	msg[0*FrameSize+5] = 0xbc
	msg[3*FrameSize+6] = 0x00
	msg[3*FrameSize+7] = 0x64
	msg[16*FrameSize+7] = 0x05
	msg.seal()
	return &msg
}

// testRecord returns a record whose values are exactly representable
// by the encoding: each channel holds a distinct raw value.
func testRecord(seed int) Record {
	rec := NewRecord()
	for i, ch := range schema {
		switch ch.Kind {
		case U16:
			rec.Values[i] = float64(uint16(100*seed+i)) * ch.Scale
		case Flag:
			if (seed+i)%2 == 0 {
				rec.Values[i] = float64(ch.Mask)
			} else {
				rec.Values[i] = 0
			}
		}
	}
	return rec
}

func encodeRecords(t *testing.T, recs ...Record) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	enc := NewEncoder(buf)
	for i := range recs {
		err := enc.Encode(&recs[i])
		if err != nil {
			t.Fatalf("could not encode record %d: %+v", i, err)
		}
	}
	return buf.Bytes()
}

func sameValues(a, b [NumChannels]float64) bool {
	for i := range a {
		if math.IsNaN(a[i]) != math.IsNaN(b[i]) {
			return false
		}
		if math.IsNaN(a[i]) {
			continue
		}
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestFrameIsStart(t *testing.T) {
	for _, tc := range []struct {
		name  string
		frame Frame
		want  bool
	}{
		{"start", Frame{0x82, 0x81, 0x80, 0x54, 1, 2, 3, 4}, true},
		{"zeros", Frame{}, false},
		{"first-byte-only", Frame{0x82, 0, 0, 0}, false},
		{"shifted", Frame{0, 0x82, 0x81, 0x80, 0x54}, false},
		{"last-byte-differs", Frame{0x82, 0x81, 0x80, 0x55}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got, want := tc.frame.IsStart(), tc.want; got != want {
				t.Fatalf("invalid start detection: got=%v, want=%v", got, want)
			}
		})
	}
}

func TestMessageFrame(t *testing.T) {
	var msg Message
	for i := range msg {
		msg[i] = byte(i)
	}
	for i := 0; i < NumFrames; i++ {
		f := msg.Frame(i)
		if got, want := f[0], byte(i*FrameSize); got != want {
			t.Fatalf("invalid frame %d: got=0x%x, want=0x%x", i, got, want)
		}
	}

	var cpy Message
	for i := 0; i < NumFrames; i++ {
		cpy.setFrame(i, msg.Frame(i))
	}
	if cpy != msg {
		t.Fatalf("frame round-trip failed")
	}
}

func TestRecordAccessors(t *testing.T) {
	var rec Record
	err := DecodeRecord(&rec, scenarioMessage())
	if err != nil {
		t.Fatalf("could not decode record: %+v", err)
	}

	v, ok := rec.Get("rpm")
	if !ok || v != 2748 {
		t.Fatalf("invalid rpm: got=%v (ok=%v), want=2748", v, ok)
	}

	_, ok = rec.Get("boost")
	if ok {
		t.Fatalf("unknown channel should not be found")
	}

	for _, tc := range []struct {
		name string
		want bool
	}{
		{"low_battery", true},
		{"no_sync", true},
		{"sync", false},
		{"rpm_over", false},
		{"boost", false},
	} {
		if got, want := rec.Flag(tc.name), tc.want; got != want {
			t.Fatalf("invalid flag %q: got=%v, want=%v", tc.name, got, want)
		}
	}

	empty := NewRecord()
	if empty.Flag("low_battery") {
		t.Fatalf("absent flag should not be set")
	}
	if got, want := empty.Frame, int64(-1); got != want {
		t.Fatalf("invalid frame: got=%d, want=%d", got, want)
	}
}
