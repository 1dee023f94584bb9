// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package motec

import (
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestSchema(t *testing.T) {
	want := []string{
		"rpm", "tps", "manifold_pressure", "air_temp", "engine_temp",
		"lambda1", "lambda2", "exhaust_manifold_pressure", "mass_air_flow",
		"fuel_temp", "fuel_pressure", "oil_temp", "oil_pressure",
		"gear_voltage", "knock_voltage", "gear_shift_force",
		"exhaust_temp1", "exhaust_temp2",
		"user_channel1", "user_channel2", "user_channel3", "user_channel4",
		"battery_voltage", "ecu_temp",
		"digital_input1_speed", "digital_input2_speed",
		"digital_input3_speed", "digital_input4_speed",
		"drive_speed", "ground_speed", "slip", "aim_slip", "launch_rpm",
		"gear", "low_battery", "no_sync", "sync", "no_ref", "ref", "rpm_over",
	}

	if got, want := NumChannels, len(want); got != want {
		t.Fatalf("invalid number of channels: got=%d, want=%d", got, want)
	}

	if got := Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid channel names:\ngot= %q\nwant=%q", got, want)
	}

	for i, ch := range Schema() {
		if got, want := ChannelIndex(ch.Name), i; got != want {
			t.Fatalf("invalid index for %q: got=%d, want=%d", ch.Name, got, want)
		}
		if ch.Frame < 0 || ch.Frame >= NumFrames-1 {
			t.Fatalf("channel %q outside of the data frames: %d", ch.Name, ch.Frame)
		}
		if ch.Offset < 0 || ch.Offset+ch.Width() > FrameSize {
			t.Fatalf("channel %q outside of its frame: offset=%d", ch.Name, ch.Offset)
		}
		switch ch.Kind {
		case U16:
			switch ch.Scale {
			case 1, 0.1, 0.01, 0.001:
			default:
				t.Fatalf("channel %q has invalid scale %v", ch.Name, ch.Scale)
			}
		case Flag:
			if ch.Mask == 0 {
				t.Fatalf("flag channel %q has no mask", ch.Name)
			}
		default:
			t.Fatalf("channel %q has invalid kind %v", ch.Name, ch.Kind)
		}
	}

	if got, want := ChannelIndex("boost"), -1; got != want {
		t.Fatalf("invalid index for unknown channel: got=%d, want=%d", got, want)
	}
}

func TestSchemaIsACopy(t *testing.T) {
	s := Schema()
	s[0].Name = "boost"
	s[0].Scale = 42
	if got, want := Names()[0], "rpm"; got != want {
		t.Fatalf("schema modified through its copy: got=%q, want=%q", got, want)
	}
}

func TestChannelPrec(t *testing.T) {
	for _, tc := range []struct {
		name string
		want int
	}{
		{"rpm", 0},
		{"tps", 1},
		{"gear_voltage", 2},
		{"lambda1", 3},
		{"sync", 0},
	} {
		ch := schema[ChannelIndex(tc.name)]
		if got, want := ch.Prec(), tc.want; got != want {
			t.Fatalf("invalid precision for %q: got=%d, want=%d", tc.name, got, want)
		}
	}
}

func TestDecodeRecordScenario(t *testing.T) {
	var rec Record
	err := DecodeRecord(&rec, scenarioMessage())
	if err != nil {
		t.Fatalf("could not decode record: %+v", err)
	}

	for _, tc := range []struct {
		name string
		want float64
	}{
		{"rpm", 2748},
		{"gear_voltage", 1.00},
		{"low_battery", 1},
		{"no_sync", 4},
		{"sync", 0},
		{"no_ref", 0},
		{"ref", 0},
		{"rpm_over", 0},
		{"tps", 0},
		{"gear", 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := rec.Get(tc.name)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("invalid value: got=%v, want=%v", got, tc.want)
			}
		})
	}
}

func TestDecodeRecordChannels(t *testing.T) {
	for i, ch := range schema {
		t.Run(ch.Name, func(t *testing.T) {
			var (
				msg Message
				beg = ch.Frame*FrameSize + ch.Offset
				raw = uint16(0x0100 + 3*i)
			)
			switch ch.Kind {
			case U16:
				binary.BigEndian.PutUint16(msg[beg:], raw)
			case Flag:
				msg[beg] = 0xff
			}

			var rec Record
			err := DecodeRecord(&rec, &msg)
			if err != nil {
				t.Fatalf("could not decode record: %+v", err)
			}

			var want float64
			switch ch.Kind {
			case U16:
				want = float64(raw) * ch.Scale
			case Flag:
				want = float64(ch.Mask)
			}
			if got := rec.Values[i]; got != want {
				t.Fatalf("invalid value: got=%v, want=%v", got, want)
			}
		})
	}
}

func TestDecodeRecordFlags(t *testing.T) {
	for _, tc := range []struct {
		b6, b7 byte
		want   map[string]float64
	}{
		{
			b6:   0x00,
			b7:   0x00,
			want: map[string]float64{
				"low_battery": 0, "no_sync": 0, "sync": 0,
				"no_ref": 0, "ref": 0, "rpm_over": 0,
			},
		},
		{
			b6:   0xff,
			b7:   0xff,
			want: map[string]float64{
				"low_battery": 0x01, "no_sync": 0x04, "sync": 0x08,
				"no_ref": 0x10, "ref": 0x20, "rpm_over": 0x40,
			},
		},
		{
			b6:   0x28,
			b7:   0x04,
			want: map[string]float64{
				"low_battery": 0, "no_sync": 0x04, "sync": 0x08,
				"no_ref": 0, "ref": 0x20, "rpm_over": 0,
			},
		},
	} {
		var msg Message
		msg[16*FrameSize+6] = tc.b6
		msg[16*FrameSize+7] = tc.b7

		var rec Record
		err := DecodeRecord(&rec, &msg)
		if err != nil {
			t.Fatalf("could not decode record: %+v", err)
		}
		for name, want := range tc.want {
			got, _ := rec.Get(name)
			if got != want {
				t.Fatalf("b6=0x%02x b7=0x%02x: invalid %q: got=%v, want=%v",
					tc.b6, tc.b7, name, got, want,
				)
			}
		}
	}
}

func TestDecodeRecordMalformed(t *testing.T) {
	orig := schema[3]
	defer func() { schema[3] = orig }()

	schema[3].Frame = NumFrames
	rec := NewRecord()
	err := DecodeRecord(&rec, scenarioMessage())
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, ErrMalformed)
	}
	if !math.IsNaN(rec.Values[0]) {
		t.Fatalf("record modified by a failed decoding")
	}

	schema[3] = orig
	schema[3].Offset = 7
	err = DecodeRecord(&rec, scenarioMessage())
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, ErrMalformed)
	}
}
