// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command lcio2csv converts an LCIO file, as written by ld2lcio,
// back into a CSV (or JSON lines) file.
package main // import "github.com/kayamertak/OpenRacePlot/cmd/lcio2csv"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/kayamertak/OpenRacePlot/internal/xcnv"
	"github.com/kayamertak/OpenRacePlot/motec"
	"go-hep.org/x/hep/lcio"
)

func main() {
	log.SetPrefix("lcio2csv: ")
	log.SetFlags(0)

	var (
		oname = flag.String("o", "out.csv", "path to output file")
		ofmt  = flag.String("fmt", "csv", "output format (csv, jsonl)")
		chans = flag.String("channels", "", "comma-separated list of channels to convert (default: all)")
		bools = flag.Bool("bool", false, "write flag channels as 0/1")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: lcio2csv [OPTIONS] file.lcio

ex:
 $> lcio2csv -o out.csv ./input.lcio
 $> lcio2csv -fmt jsonl -o out.jsonl -channels rpm,gear ./input.lcio

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing input LCIO file")
	}

	if *oname == "" {
		flag.Usage()
		log.Fatalf("invalid output file name")
	}

	n, err := numEvents(flag.Arg(0))
	if err != nil {
		log.Fatalf("could not assess number of events: %+v", err)
	}
	log.Printf("input:  %s", flag.Arg(0))
	log.Printf("events: %d", n)

	f := motec.Format{
		Channels: splitList(*chans),
		Bool:     *bools,
	}
	err = process(*oname, flag.Arg(0), *ofmt, f, int(n/10))
	if err != nil {
		log.Fatalf("could not convert LCIO file: %+v", err)
	}
}

func numEvents(fname string) (int64, error) {
	r, err := lcio.Open(fname)
	if err != nil {
		return 0, fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer r.Close()

	var n int64
	for r.Next() {
		n++
	}

	err = r.Err()
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("could not assess number of events in %q: %w", fname, err)
	}

	return n, nil
}

func process(oname, fname, ofmt string, f motec.Format, freq int) error {
	r, err := lcio.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open LCIO file: %w", err)
	}
	defer r.Close()

	o, err := os.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	defer o.Close()

	var w motec.RecordWriter
	switch ofmt {
	case "csv":
		w, err = motec.NewCSVWriter(o, f)
	case "jsonl":
		w, err = motec.NewJSONLWriter(o, f)
	default:
		return fmt.Errorf("invalid output format %q", ofmt)
	}
	if err != nil {
		return fmt.Errorf("could not create record writer: %w", err)
	}

	err = xcnv.LCIO2Records(w, r, freq, log.Default())
	if err != nil {
		return fmt.Errorf("could not convert LCIO events: %w", err)
	}

	err = o.Close()
	if err != nil {
		return fmt.Errorf("could not close output file: %w", err)
	}
	return nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
