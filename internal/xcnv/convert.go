// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/kayamertak/OpenRacePlot/motec"
)

// Convert decodes all the records of dec and writes them to w.
// w is flushed once the input is exhausted.
func Convert(w motec.RecordWriter, dec *motec.Decoder, msg *log.Logger) (motec.Stats, error) {
	const freq = 10000
	if msg == nil {
		msg = log.New(io.Discard, "", 0)
	}

loop:
	for i := 0; ; i++ {
		if i%freq == 0 {
			msg.Printf("processing record %d...", i)
		}
		rec := motec.NewRecord()
		err := dec.Decode(&rec)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return dec.Stats(), fmt.Errorf("could not decode record %d: %w", i, err)
		}

		err = w.WriteRecord(&rec)
		if err != nil {
			return dec.Stats(), fmt.Errorf("could not write record %d: %w", i, err)
		}
	}

	err := w.Flush()
	if err != nil {
		return dec.Stats(), fmt.Errorf("could not flush records: %w", err)
	}

	return dec.Stats(), nil
}
