// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package motec holds functions to decode telemetry logs recorded by
// MoTeC data loggers.
//
// A log is a stream of 8-byte frames. 22 consecutive frames, the first of
// which starts with the signature 0x82 0x81 0x80 0x54, form a message.
// The last 4 bytes of a message hold the big-endian CRC-32 of the 172
// bytes before them.
package motec // import "github.com/kayamertak/OpenRacePlot/motec"

import (
	"math"
)

const (
	FrameSize   = 8                     // size of a frame in bytes
	NumFrames   = 22                    // number of frames in a message
	MessageSize = FrameSize * NumFrames // size of a message in bytes
	PayloadSize = MessageSize - crcSize // number of bytes covered by the CRC-32

	crcSize = 4
)

// signature marks the first frame of a message.
var signature = [4]byte{0x82, 0x81, 0x80, 0x54}

// Frame is a fixed-size block of the raw stream.
type Frame [FrameSize]byte

// IsStart returns whether f is the first frame of a message.
func (f Frame) IsStart() bool {
	return f[0] == signature[0] &&
		f[1] == signature[1] &&
		f[2] == signature[2] &&
		f[3] == signature[3]
}

// Message is a complete set of NumFrames frames.
type Message [MessageSize]byte

// Frame returns the i-th frame of the message.
func (msg *Message) Frame(i int) Frame {
	var f Frame
	copy(f[:], msg[i*FrameSize:(i+1)*FrameSize])
	return f
}

func (msg *Message) setFrame(i int, f Frame) {
	copy(msg[i*FrameSize:(i+1)*FrameSize], f[:])
}

// Record is one decoded telemetry sample.
// Values are stored in schema order.
type Record struct {
	Frame  int64 // position of the first frame of the message in the stream
	Values [NumChannels]float64
}

// NewRecord returns a record with all values marked absent.
func NewRecord() Record {
	rec := Record{Frame: -1}
	for i := range rec.Values {
		rec.Values[i] = math.NaN()
	}
	return rec
}

// Get returns the value of the named channel.
func (rec *Record) Get(name string) (float64, bool) {
	i := ChannelIndex(name)
	if i < 0 {
		return 0, false
	}
	return rec.Values[i], true
}

// Flag returns whether the named flag channel is set.
func (rec *Record) Flag(name string) bool {
	v, ok := rec.Get(name)
	return ok && v != 0 && !math.IsNaN(v)
}
