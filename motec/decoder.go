// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package motec

import (
	"errors"
	"fmt"
	"io"
	"log"

	"golang.org/x/xerrors"
)

// Decoder reads (and validates) telemetry records from an underlying
// data source.
// Corrupted messages are skipped and counted: only a failure of the
// data source itself stops the decoding.
type Decoder struct {
	// Rescan makes the decoder look for a start frame inside a message
	// that failed its CRC-32 check, instead of discarding all of its
	// frames.
	Rescan bool

	fr   *FrameReader
	sync Synchronizer
	msg  *log.Logger

	stats Stats
	eof   bool
}

// NewDecoder creates a decoder that reads and validates data from r.
// Diagnostics are written to msg. A nil msg discards them.
func NewDecoder(r io.Reader, msg *log.Logger) *Decoder {
	if msg == nil {
		msg = log.New(io.Discard, "", 0)
	}
	return &Decoder{
		fr:  NewFrameReader(r),
		msg: msg,
	}
}

// Decode reads the next valid record into rec.
// Decode returns io.EOF when the stream is exhausted, or an *IOError
// when the stream could not be read.
func (dec *Decoder) Decode(rec *Record) error {
	if dec.eof {
		return io.EOF
	}

	var f Frame
	for {
		err := dec.fr.Next(&f)
		if err != nil {
			if errors.Is(err, io.EOF) {
				dec.finish()
				return io.EOF
			}
			return err
		}

		dec.stats.Frames++
		if !dec.sync.Push(dec.fr.Pos()-1, f) {
			continue
		}

		dec.stats.Messages++
		var (
			msg   = dec.sync.Message()
			start = dec.sync.Start()
		)

		recv, comp, ok := msg.Verify()
		if !ok {
			dec.stats.Checksum++
			err := &ChecksumError{Frame: start, Recv: recv, Comp: comp}
			dec.msg.Printf("skipping message: %v", err)
			if dec.Rescan {
				dec.rescan(start, *msg)
			}
			continue
		}

		err = DecodeRecord(rec, msg)
		if err != nil {
			dec.stats.Malformed++
			dec.msg.Printf("dropping record at frame %d: %+v", start, err)
			continue
		}
		rec.Frame = start
		dec.stats.Records++
		return nil
	}
}

// rescan replays the frames following the start frame of a rejected
// message, so that a start frame hidden in it can open a new message.
// A replay can not complete a message: at most NumFrames-1 frames are fed.
func (dec *Decoder) rescan(start int64, msg Message) {
	for i := 1; i < NumFrames; i++ {
		dec.sync.Push(start+int64(i), msg.Frame(i))
	}
}

func (dec *Decoder) finish() {
	dec.eof = true
	dec.stats.Tail = dec.fr.Tail()
	if n := dec.sync.Pending(); n > 0 {
		dec.stats.Truncated++
		dec.stats.Dropped += n
		dec.msg.Printf("dropping %d frames at frame %d: %v", n, dec.sync.Start(), ErrTruncated)
		dec.sync.Reset()
	}
}

// Stats returns the decoding counters accumulated so far.
func (dec *Decoder) Stats() Stats { return dec.stats }

// Stats holds the counters of a decoding pass.
type Stats struct {
	Frames    int64 // frames read
	Messages  int64 // complete messages assembled
	Records   int64 // records decoded
	Checksum  int64 // messages rejected by the CRC-32 check
	Malformed int64 // validated messages with no record
	Truncated int64 // messages cut short by the end of the stream
	Dropped   int   // frames of the truncated message
	Tail      int   // bytes of a trailing partial frame
}

func (st Stats) String() string {
	return fmt.Sprintf(
		"%d messages decoded, %d checksum failures (frames=%d, messages=%d, malformed=%d, truncated=%d)",
		st.Records, st.Checksum, st.Frames, st.Messages, st.Malformed, st.Truncated,
	)
}

// Add accumulates the counters of o into st.
func (st *Stats) Add(o Stats) {
	st.Frames += o.Frames
	st.Messages += o.Messages
	st.Records += o.Records
	st.Checksum += o.Checksum
	st.Malformed += o.Malformed
	st.Truncated += o.Truncated
	st.Dropped += o.Dropped
	st.Tail += o.Tail
}

// ReadAll decodes all the records of r.
func ReadAll(r io.Reader, msg *log.Logger) ([]Record, Stats, error) {
	var (
		dec  = NewDecoder(r, msg)
		recs []Record
	)
	for {
		var rec Record
		err := dec.Decode(&rec)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return recs, dec.Stats(), nil
			}
			return recs, dec.Stats(), xerrors.Errorf("motec: could not decode record %d: %w", len(recs), err)
		}
		recs = append(recs, rec)
	}
}
