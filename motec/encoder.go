// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package motec

import (
	"encoding/binary"
	"io"
	"math"
)

// Encoder writes telemetry records to an output stream, one message
// per record.
// Encoder computes the CRC-32 trailer of each message and appends it.
type Encoder struct {
	w   io.Writer
	msg Message
	err error
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes rec as a complete message.
func (enc *Encoder) Encode(rec *Record) error {
	if enc.err != nil {
		return enc.err
	}
	if rec == nil {
		return nil
	}

	EncodeRecord(&enc.msg, rec)
	_, err := enc.w.Write(enc.msg[:])
	if err != nil {
		enc.err = &IOError{Op: "write message", Err: err}
		return enc.err
	}
	return nil
}

// EncodeRecord fills msg with the start signature, the channels of rec
// and the CRC-32 trailer.
//
// Numeric values are divided by the channel scale, rounded and clamped to
// the uint16 range. A non-zero flag value sets all the bits of the channel
// mask. Absent (NaN) values are encoded as zero.
// Bytes not covered by the schema are left as they were in msg.
func EncodeRecord(msg *Message, rec *Record) {
	copy(msg[:len(signature)], signature[:])
	for i := range schema {
		var (
			ch  = &schema[i]
			v   = rec.Values[i]
			beg = ch.Frame*FrameSize + ch.Offset
		)
		switch ch.Kind {
		case U16:
			binary.BigEndian.PutUint16(msg[beg:beg+2], rawU16(v, ch.Scale))
		case Flag:
			msg[beg] &^= ch.Mask
			if v != 0 && !math.IsNaN(v) {
				msg[beg] |= ch.Mask
			}
		}
	}
	msg.seal()
}

func rawU16(v, scale float64) uint16 {
	if math.IsNaN(v) {
		return 0
	}
	raw := math.Round(v / scale)
	switch {
	case raw < 0:
		return 0
	case raw > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(raw)
}
