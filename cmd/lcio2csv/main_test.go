// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kayamertak/OpenRacePlot/internal/xcnv"
	"github.com/kayamertak/OpenRacePlot/motec"
	"go-hep.org/x/hep/lcio"
)

func TestLCIO2CSV(t *testing.T) {
	tmp, err := os.MkdirTemp("", "lcio2csv-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	const run = 63
	fname := filepath.Join(tmp, "run_063.lcio")
	{
		w, err := lcio.Create(fname)
		if err != nil {
			t.Fatalf("could not create LCIO file: %+v", err)
		}
		defer w.Close()

		lw, err := xcnv.NewLCIOWriter(w, run, motec.Format{
			Channels: []string{"rpm", "gear_voltage", "no_sync"},
		})
		if err != nil {
			t.Fatalf("could not create LCIO writer: %+v", err)
		}

		for i := 0; i < 2; i++ {
			rec := motec.NewRecord()
			rec.Frame = int64(i * motec.NumFrames)
			rec.Values[motec.ChannelIndex("rpm")] = float64(2748 + i)
			rec.Values[motec.ChannelIndex("gear_voltage")] = 1
			rec.Values[motec.ChannelIndex("no_sync")] = float64(4 * i)
			err = lw.WriteRecord(&rec)
			if err != nil {
				t.Fatalf("could not write record %d: %+v", i, err)
			}
		}

		err = lw.Flush()
		if err != nil {
			t.Fatalf("could not flush LCIO writer: %+v", err)
		}

		err = w.Close()
		if err != nil {
			t.Fatalf("could not close LCIO file: %+v", err)
		}
	}

	n, err := numEvents(fname)
	if err != nil {
		t.Fatalf("could not assess number of events: %+v", err)
	}
	if n != 2 {
		t.Fatalf("invalid number of events: got=%d, want=%d", n, 2)
	}

	for _, tc := range []struct {
		name string
		fmt  string
		f    motec.Format
		want string
	}{
		{
			name: "csv",
			fmt:  "csv",
			f:    motec.Format{Channels: []string{"rpm", "gear_voltage", "no_sync"}},
			want: "rpm,gear_voltage,no_sync\n2748,1.00,0\n2749,1.00,4\n",
		},
		{
			name: "csv-bool-missing",
			fmt:  "csv",
			f:    motec.Format{Channels: []string{"no_sync", "gear"}, Bool: true},
			want: "gear,no_sync\n,0\n,1\n",
		},
		{
			name: "jsonl",
			fmt:  "jsonl",
			f:    motec.Format{Channels: []string{"rpm"}},
			want: "{\"frame\":0,\"rpm\":2748}\n{\"frame\":22,\"rpm\":2749}\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			oname := filepath.Join(tmp, tc.name+".out")
			err := process(oname, fname, tc.fmt, tc.f, 1)
			if err != nil {
				t.Fatalf("could not convert LCIO file: %+v", err)
			}
			raw, err := os.ReadFile(oname)
			if err != nil {
				t.Fatalf("could not read output file: %+v", err)
			}
			if got, want := string(raw), tc.want; got != want {
				t.Fatalf("invalid output:\ngot:\n%s\nwant:\n%s", got, want)
			}
		})
	}

	t.Run("invalid-format", func(t *testing.T) {
		err := process(filepath.Join(tmp, "out.xml"), fname, "xml", motec.Format{}, 1)
		if err == nil {
			t.Fatalf("expected an error")
		}
	})
}
