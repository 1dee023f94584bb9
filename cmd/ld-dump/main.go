// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ld-dump decodes and displays MoTeC telemetry logs.
//
// Usage: ld-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> ld-dump -channels rpm,gear_voltage,no_sync ./testdata/session.ld
//	=== record 0 (frame 0) ===
//	rpm:                   2748
//	gear_voltage:          1.00
//	no_sync:                  4
//	[...]
//	file "./testdata/session.ld": 1 messages decoded, 0 checksum failures (frames=22, messages=1, malformed=0, truncated=0)
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/kayamertak/OpenRacePlot/motec"
)

const usage = `ld-dump decodes and displays MoTeC telemetry logs.

Usage: ld-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> ld-dump -channels rpm,gear_voltage,no_sync ./testdata/session.ld
 === record 0 (frame 0) ===
 rpm:                   2748
 gear_voltage:          1.00
 no_sync:                  4
 [...]

Options:
`

func main() {
	xmain(os.Stdout, os.Args[1:])
}

func xmain(w io.Writer, args []string) {
	log.SetPrefix("ld-dump: ")
	log.SetFlags(0)

	var (
		fset = flag.NewFlagSet("ld-dump", flag.ExitOnError)

		chans  = fset.String("channels", "", "comma-separated list of channels to display (default: all)")
		bools  = fset.Bool("bool", false, "display flag channels as 0/1")
		rescan = fset.Bool("rescan", false, "look for a start frame inside corrupted messages")
		quiet  = fset.Bool("q", false, "only display the decoding summary")
	)

	fset.Usage = func() {
		fmt.Print(usage)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() == 0 {
		fset.Usage()
		log.Fatalf("missing path to input log file")
	}

	f := motec.Format{
		Channels: splitList(*chans),
		Bool:     *bools,
	}
	opts := options{rescan: *rescan, quiet: *quiet}

	for _, fname := range fset.Args() {
		err := process(w, fname, f, opts)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

type options struct {
	rescan bool
	quiet  bool
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

func process(w io.Writer, fname string, f motec.Format, opts options) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	cols, err := f.Columns()
	if err != nil {
		return err
	}

	r, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer r.Close()

	var (
		names = motec.Names()
		msg   = log.New(wbuf, "", 0)
		dec   = motec.NewDecoder(r, msg)
	)
	dec.Rescan = opts.rescan

loop:
	for i := 0; ; i++ {
		rec := motec.NewRecord()
		err := dec.Decode(&rec)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return fmt.Errorf("could not decode record %d: %w", i, err)
		}
		if opts.quiet {
			continue
		}

		fmt.Fprintf(wbuf, "=== record %d (frame %d) ===\n", i, rec.Frame)
		for _, j := range cols {
			v := f.FormatValue(j, rec.Values[j])
			if v == "" {
				v = "-"
			}
			fmt.Fprintf(wbuf, "%-16s %10s\n", names[j]+":", v)
		}
	}

	st := dec.Stats()
	fmt.Fprintf(wbuf, "file %q: %v\n", fname, st)
	if st.Tail > 0 {
		fmt.Fprintf(wbuf, "file %q: %d trailing bytes ignored\n", fname, st.Tail)
	}

	return nil
}
