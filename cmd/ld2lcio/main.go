// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ld2lcio converts a MoTeC telemetry log to an LCIO file.
//
// Each decoded record is stored as one LCIO event. The run number is
// taken from the trailing digits of the input file name, unless -run is given.
// The compression level, channel selection and rescan mode are read from
// the -cfg configuration file; explicit flags override it.
package main // import "github.com/kayamertak/OpenRacePlot/cmd/ld2lcio"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kayamertak/OpenRacePlot/internal/config"
	"github.com/kayamertak/OpenRacePlot/internal/xcnv"
	"github.com/kayamertak/OpenRacePlot/motec"
	"go-hep.org/x/hep/lcio"
)

var (
	msg = log.New(os.Stdout, "ld2lcio: ", 0)
)

func main() {
	cmd, err := parseArgs(os.Args[1:])
	if err != nil {
		msg.Fatalf("%+v", err)
	}

	err = process(cmd.oname, cmd.input, cmd.opts)
	if err != nil {
		msg.Fatalf("could not convert log file: %+v", err)
	}
}

type cli struct {
	oname string
	input string
	opts  options
}

// parseArgs builds the conversion options from the configuration file
// and the command line. Explicit flags override the configuration file.
func parseArgs(args []string) (cli, error) {
	var (
		fset = flag.NewFlagSet("ld2lcio", flag.ContinueOnError)

		oname  = fset.String("o", "out.lcio", "path to output LCIO file")
		cfname = fset.String("cfg", "", "path to TOML configuration file")
		compr  = fset.Int("lvl", config.Default().Output.Compression, "compression level for output LCIO file")
		run    = fset.Int("run", -1, "run number (default: inferred from input file name)")
		chans  = fset.String("channels", "", "comma-separated list of channels to convert (default: all)")
		rescan = fset.Bool("rescan", false, "look for a start frame inside corrupted messages")
	)

	fset.Usage = func() {
		fmt.Fprintf(fset.Output(), `Usage: ld2lcio [OPTIONS] file.ld

ex:
 $> ld2lcio -o out.lcio -lvl=9 ./session_042.ld
 $> ld2lcio -run 7 -channels rpm,gear ./session.ld
 $> ld2lcio -cfg ld2csv.toml ./session.ld

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		return cli{}, fmt.Errorf("could not parse input arguments: %w", err)
	}

	if fset.NArg() != 1 {
		fset.Usage()
		return cli{}, fmt.Errorf("missing input log file")
	}

	if *oname == "" {
		fset.Usage()
		return cli{}, fmt.Errorf("invalid output LCIO file name")
	}

	cfg, err := config.Load(*cfname)
	if err != nil {
		return cli{}, fmt.Errorf("could not load configuration: %w", err)
	}

	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lvl":
			cfg.Output.Compression = *compr
		case "channels":
			cfg.Output.Channels = splitList(*chans)
		case "rescan":
			cfg.Decoder.Rescan = *rescan
		}
	})

	err = cfg.Validate()
	if err != nil {
		return cli{}, fmt.Errorf("invalid configuration: %w", err)
	}

	f, err := cfg.Format()
	if err != nil {
		return cli{}, fmt.Errorf("invalid configuration: %w", err)
	}

	opts := options{
		lvl:    cfg.Output.Compression,
		run:    int32(*run),
		rescan: cfg.Decoder.Rescan,
		f:      f,
	}
	if *run < 0 {
		opts.run = runNbrFrom(fset.Arg(0))
	}

	return cli{oname: *oname, input: fset.Arg(0), opts: opts}, nil
}

type options struct {
	lvl    int
	run    int32
	rescan bool
	f      motec.Format
}

func process(oname, fname string, opts options) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open log file: %w", err)
	}
	defer f.Close()

	w, err := lcio.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output LCIO file: %w", err)
	}
	defer w.Close()

	w.SetCompressionLevel(opts.lvl)

	lw, err := xcnv.NewLCIOWriter(w, opts.run, opts.f)
	if err != nil {
		return fmt.Errorf("could not create LCIO writer: %w", err)
	}

	dec := motec.NewDecoder(f, msg)
	dec.Rescan = opts.rescan

	st, err := xcnv.Convert(lw, dec, msg)
	if err != nil {
		return fmt.Errorf("could not convert log to LCIO: %w", err)
	}

	err = w.Close()
	if err != nil {
		return fmt.Errorf("could not close output LCIO file: %w", err)
	}

	msg.Printf("run %d: %v", opts.run, st)
	return nil
}

// runNbrFrom returns the number made of the trailing digits of the
// file name, without its extension, or 0.
func runNbrFrom(fname string) int32 {
	name := filepath.Base(fname)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	i := len(name)
	for i > 0 && '0' <= name[i-1] && name[i-1] <= '9' {
		i--
	}
	v, err := strconv.ParseInt(name[i:], 10, 32)
	if err != nil {
		return 0
	}
	return int32(v)
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
