// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package motec

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// Kind describes how a channel is extracted from a message.
type Kind uint8

const (
	U16  Kind = iota // unsigned 16-bit big-endian integer, scaled
	Flag             // bits of a single byte, masked
)

func (k Kind) String() string {
	switch k {
	case U16:
		return "u16"
	case Flag:
		return "flag"
	default:
		return "invalid"
	}
}

// Channel describes where a telemetry channel lives inside a message
// and how its raw value is converted.
type Channel struct {
	Name   string  // output name
	Frame  int     // frame index within the message
	Offset int     // byte offset within the frame
	Kind   Kind    // extraction kind
	Mask   uint8   // bit mask of a Flag channel
	Scale  float64 // scale factor of a U16 channel
}

// Width returns the number of bytes read for the channel.
func (ch Channel) Width() int {
	if ch.Kind == Flag {
		return 1
	}
	return 2
}

// Prec returns the number of decimals needed to print a value
// of the channel without loss.
func (ch Channel) Prec() int {
	if ch.Kind == Flag {
		return 0
	}
	switch ch.Scale {
	case 0.1:
		return 1
	case 0.01:
		return 2
	case 0.001:
		return 3
	}
	return 0
}

// schema is the record layout of the logger firmware.
// Its order is the output column order.
var schema = [...]Channel{
	{"rpm", 0, 4, U16, 0, 1},
	{"tps", 0, 6, U16, 0, 0.1},
	{"manifold_pressure", 1, 0, U16, 0, 0.1},
	{"air_temp", 1, 2, U16, 0, 0.1},
	{"engine_temp", 1, 4, U16, 0, 0.1},
	{"lambda1", 1, 6, U16, 0, 0.001},
	{"lambda2", 2, 0, U16, 0, 0.001},
	{"exhaust_manifold_pressure", 2, 2, U16, 0, 0.1},
	{"mass_air_flow", 2, 4, U16, 0, 0.1},
	{"fuel_temp", 2, 6, U16, 0, 0.1},
	{"fuel_pressure", 3, 0, U16, 0, 0.1},
	{"oil_temp", 3, 2, U16, 0, 0.1},
	{"oil_pressure", 3, 4, U16, 0, 0.1},
	{"gear_voltage", 3, 6, U16, 0, 0.01},
	{"knock_voltage", 4, 0, U16, 0, 0.1},
	{"gear_shift_force", 4, 2, U16, 0, 0.1},
	{"exhaust_temp1", 4, 4, U16, 0, 1},
	{"exhaust_temp2", 4, 6, U16, 0, 1},
	{"user_channel1", 5, 0, U16, 0, 0.1},
	{"user_channel2", 5, 2, U16, 0, 0.1},
	{"user_channel3", 5, 4, U16, 0, 0.1},
	{"user_channel4", 5, 6, U16, 0, 0.1},
	{"battery_voltage", 6, 0, U16, 0, 0.01},
	{"ecu_temp", 6, 2, U16, 0, 0.1},
	{"digital_input1_speed", 6, 4, U16, 0, 0.1},
	{"digital_input2_speed", 6, 6, U16, 0, 0.1},
	{"digital_input3_speed", 7, 0, U16, 0, 0.1},
	{"digital_input4_speed", 7, 2, U16, 0, 0.1},
	{"drive_speed", 7, 4, U16, 0, 0.1},
	{"ground_speed", 7, 6, U16, 0, 0.1},
	{"slip", 8, 0, U16, 0, 0.1},
	{"aim_slip", 8, 2, U16, 0, 0.1},
	{"launch_rpm", 8, 4, U16, 0, 0.1},
	{"gear", 14, 4, U16, 0, 1},
	{"low_battery", 16, 7, Flag, 0x01, 1},
	{"no_sync", 16, 7, Flag, 0x04, 1},
	{"sync", 16, 6, Flag, 0x08, 1},
	{"no_ref", 16, 6, Flag, 0x10, 1},
	{"ref", 16, 6, Flag, 0x20, 1},
	{"rpm_over", 16, 6, Flag, 0x40, 1},
}

// NumChannels is the number of channels of a record.
const NumChannels = len(schema)

// Schema returns a copy of the channel table, in output order.
func Schema() []Channel {
	out := make([]Channel, len(schema))
	copy(out, schema[:])
	return out
}

// Names returns the channel names, in output order.
func Names() []string {
	out := make([]string, len(schema))
	for i, ch := range schema {
		out[i] = ch.Name
	}
	return out
}

// ChannelIndex returns the position of the named channel in a record,
// or -1 if there is no such channel.
func ChannelIndex(name string) int {
	for i := range schema {
		if schema[i].Name == name {
			return i
		}
	}
	return -1
}

// DecodeRecord extracts all the channels of msg into rec.
// DecodeRecord does not verify the CRC-32 trailer of msg.
// rec is left untouched when an error is returned.
func DecodeRecord(rec *Record, msg *Message) error {
	var vs [NumChannels]float64
	for i := range schema {
		ch := &schema[i]
		beg := ch.Frame*FrameSize + ch.Offset
		end := beg + ch.Width()
		if ch.Offset < 0 || ch.Offset+ch.Width() > FrameSize || beg < 0 || end > MessageSize {
			return xerrors.Errorf(
				"motec: channel %q out of message bounds (frame=%d, offset=%d): %w",
				ch.Name, ch.Frame, ch.Offset, ErrMalformed,
			)
		}
		switch ch.Kind {
		case U16:
			vs[i] = float64(binary.BigEndian.Uint16(msg[beg:end])) * ch.Scale
		case Flag:
			vs[i] = float64(msg[beg] & ch.Mask)
		default:
			return xerrors.Errorf("motec: channel %q has invalid kind %d: %w", ch.Name, ch.Kind, ErrMalformed)
		}
	}
	rec.Values = vs
	return nil
}
