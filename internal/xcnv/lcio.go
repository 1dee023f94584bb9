// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"fmt"
	"io"
	"log"

	"github.com/kayamertak/OpenRacePlot/motec"
	"go-hep.org/x/hep/lcio"
)

const (
	lcioDetector   = "MoTeC"
	lcioCollection = "MOTEC_RECORD"
	lcioChannels   = "channels"
)

// LCIOWriter writes records as LCIO events.
//
// The run header lists the written channels; each event holds one record
// as a generic object of float64 values, in channel order.
// The event time stamp is the position of the record in the log.
type LCIOWriter struct {
	w    *lcio.Writer
	run  int32
	cols []int
	hdr  bool // whether the run header was written
	n    int32
	raw  lcio.GenericObject
}

// NewLCIOWriter returns a writer of LCIO events for the given run.
// Only the channels selected by f are written.
func NewLCIOWriter(w *lcio.Writer, run int32, f motec.Format) (*LCIOWriter, error) {
	cols, err := f.Columns()
	if err != nil {
		return nil, err
	}
	return &LCIOWriter{
		w:    w,
		run:  run,
		cols: cols,
		raw: lcio.GenericObject{
			Data: []lcio.GenericObjectData{
				{F64s: make([]float64, len(cols))},
			},
		},
	}, nil
}

func (lw *LCIOWriter) header() error {
	if lw.hdr {
		return nil
	}
	lw.hdr = true

	var (
		all   = motec.Names()
		names = make([]string, len(lw.cols))
	)
	for j, i := range lw.cols {
		names[j] = all[i]
	}

	err := lw.w.WriteRunHeader(&lcio.RunHeader{
		RunNumber: lw.run,
		Detector:  lcioDetector,
		Descr:     "telemetry records",
		Params: lcio.Params{
			Ints: map[string][]int32{
				"frames": {motec.NumFrames},
			},
			Strings: map[string][]string{
				lcioChannels: names,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("could not write run header: %w", err)
	}
	return nil
}

// WriteRecord writes rec as one event.
func (lw *LCIOWriter) WriteRecord(rec *motec.Record) error {
	err := lw.header()
	if err != nil {
		return err
	}

	evt := lcio.Event{
		RunNumber:   lw.run,
		EventNumber: lw.n,
		TimeStamp:   rec.Frame,
		Detector:    lcioDetector,
	}
	vs := lw.raw.Data[0].F64s
	for j, i := range lw.cols {
		vs[j] = rec.Values[i]
	}
	evt.Add(lcioCollection, &lw.raw)

	err = lw.w.WriteEvent(&evt)
	if err != nil {
		return fmt.Errorf("could not write event %d: %w", lw.n, err)
	}
	lw.n++
	return nil
}

// Flush writes the run header if no record was written.
func (lw *LCIOWriter) Flush() error {
	return lw.header()
}

// LCIO2Records reads the events of r, as written by LCIOWriter,
// and writes them as records to w.
// Channels missing from the LCIO file are absent from the records.
func LCIO2Records(w motec.RecordWriter, r *lcio.Reader, freq int, msg *log.Logger) error {
	if freq <= 0 {
		freq = 1
	}
	if msg == nil {
		msg = log.New(io.Discard, "", 0)
	}

	var (
		cols []int
		i    = 0
	)
	for r.Next() {
		if i == 0 {
			var err error
			cols, err = lcioColumns(r.RunHeader())
			if err != nil {
				return err
			}
		}
		if i%freq == 0 {
			msg.Printf("processing evt %d...", i)
		}

		evt := r.Event()
		obj, ok := evt.Get(lcioCollection).(*lcio.GenericObject)
		if !ok || len(obj.Data) == 0 {
			return fmt.Errorf("event %d has no %s collection", evt.EventNumber, lcioCollection)
		}
		vs := obj.Data[0].F64s
		if len(vs) != len(cols) {
			return fmt.Errorf(
				"event %d has an invalid number of values (got=%d, want=%d)",
				evt.EventNumber, len(vs), len(cols),
			)
		}

		rec := motec.NewRecord()
		rec.Frame = evt.TimeStamp
		for j, v := range vs {
			rec.Values[cols[j]] = v
		}

		err := w.WriteRecord(&rec)
		if err != nil {
			return fmt.Errorf("could not write record %d: %w", i, err)
		}
		i++
	}

	err := r.Err()
	if err != nil && err != io.EOF {
		return fmt.Errorf("could not read LCIO file: %w", err)
	}

	err = w.Flush()
	if err != nil {
		return fmt.Errorf("could not flush records: %w", err)
	}

	return nil
}

func lcioColumns(rhdr lcio.RunHeader) ([]int, error) {
	names, ok := rhdr.Params.Strings[lcioChannels]
	if !ok {
		return nil, fmt.Errorf("run header has no %q parameter", lcioChannels)
	}
	cols := make([]int, len(names))
	for j, name := range names {
		i := motec.ChannelIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("run header has unknown channel %q", name)
		}
		cols[j] = i
	}
	return cols, nil
}

var (
	_ motec.RecordWriter = (*LCIOWriter)(nil)
)
