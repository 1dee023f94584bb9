// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ld2csv converts MoTeC telemetry logs to CSV (or JSON lines) files.
//
// Usage: ld2csv [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> ld2csv -o session.csv ./testdata/session.ld
//	$> ld2csv -dir ./out -j 4 -channels rpm,gear,no_sync ./logs/*.ld
//	$> ld2csv -cfg ld2csv.toml -fmt jsonl ./testdata/session.ld
//
// When neither -o nor -dir is given, each output file is created next to
// its input, with the extension of the output format.
//
// A summary of the decoding is mailed when -alert is set and some messages
// were corrupted. The mail server is configured in the [alert] section of
// the configuration file, or with the MAIL_USERNAME, MAIL_PASSWORD,
// MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment variables.
package main // import "github.com/kayamertak/OpenRacePlot/cmd/ld2csv"

import (
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	openraceplot "github.com/kayamertak/OpenRacePlot"
	"github.com/kayamertak/OpenRacePlot/internal/config"
	"github.com/kayamertak/OpenRacePlot/internal/mmap"
	"github.com/kayamertak/OpenRacePlot/internal/xcnv"
	"github.com/kayamertak/OpenRacePlot/motec"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
	mail "gopkg.in/gomail.v2"
)

const usage = `ld2csv converts MoTeC telemetry logs to CSV (or JSON lines) files.

Usage: ld2csv [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> ld2csv -o session.csv ./testdata/session.ld
 $> ld2csv -dir ./out -j 4 -channels rpm,gear,no_sync ./logs/*.ld
 $> ld2csv -cfg ld2csv.toml -fmt jsonl ./testdata/session.ld

Options:
`

func main() {
	msg := log.New(os.Stderr, "ld2csv: ", 0)
	err := xmain(msg, os.Args[1:])
	if err != nil {
		msg.Fatalf("%+v", err)
	}
}

func xmain(msg *log.Logger, args []string) error {
	var (
		fset = flag.NewFlagSet("ld2csv", flag.ContinueOnError)

		oname  = fset.String("o", "", "path to output file (- for stdout, single input only)")
		odir   = fset.String("dir", "", "path to output directory")
		cfname = fset.String("cfg", "", "path to TOML configuration file")
		format = fset.String("fmt", "csv", "output format (csv, jsonl)")
		chans  = fset.String("channels", "", "comma-separated list of channels to convert (default: all)")
		delim  = fset.String("delim", ",", "CSV field delimiter")
		bools  = fset.Bool("bool", false, "write flag channels as 0/1")
		rescan = fset.Bool("rescan", false, "look for a start frame inside corrupted messages")
		doMMap = fset.Bool("mmap", false, "memory-map input files")
		njobs  = fset.Int("j", 1, "number of files converted concurrently")
		doMon  = fset.String("pmon", "", "path to pmon output file (enables process monitoring)")
		freq   = fset.Duration("freq", 1*time.Second, "pmon frequency")
		alert  = fset.Bool("alert", false, "mail a summary when corrupted messages are found")
		vers   = fset.Bool("version", false, "print version and exit")
	)

	fset.Usage = func() {
		fmt.Fprint(fset.Output(), usage)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		return fmt.Errorf("could not parse input arguments: %w", err)
	}

	if *vers {
		v, sum := openraceplot.Version()
		msg.Printf("version: %s %s", v, sum)
		return nil
	}

	if fset.NArg() == 0 {
		fset.Usage()
		return fmt.Errorf("missing path to input log file")
	}

	cfg, err := config.Load(*cfname)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	// explicit flags override the configuration file.
	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fmt":
			cfg.Output.Format = *format
		case "channels":
			cfg.Output.Channels = splitList(*chans)
		case "delim":
			cfg.Output.Delimiter = *delim
		case "bool":
			cfg.Output.BoolFlags = *bools
		case "rescan":
			cfg.Decoder.Rescan = *rescan
		case "mmap":
			cfg.Decoder.MMap = *doMMap
		case "j":
			cfg.Decoder.Jobs = *njobs
		}
	})

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	jobs, err := plan(fset.Args(), *oname, *odir, cfg.Output.Format)
	if err != nil {
		return err
	}

	if *doMon != "" {
		stop, err := monitor(msg, *doMon, *freq)
		if err != nil {
			return fmt.Errorf("could not start process monitoring: %w", err)
		}
		defer stop()
	}

	sums, err := process(msg, cfg, jobs)
	if err != nil {
		return err
	}

	var tot motec.Stats
	for _, sum := range sums {
		tot.Add(sum.stats)
	}
	if len(sums) > 1 {
		msg.Printf("total: %v", tot)
	}

	if *alert && (tot.Checksum > 0 || tot.Malformed > 0) {
		err = sendAlert(cfg.Alert, sums)
		if err != nil {
			msg.Printf("could not send mail alert: %+v", err)
		}
	}

	return nil
}

type job struct {
	input  string
	output string // "-" for stdout
}

type summary struct {
	job
	stats motec.Stats
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

// plan associates an output file to each input file.
func plan(inputs []string, oname, odir, format string) ([]job, error) {
	if oname != "" && odir != "" {
		return nil, fmt.Errorf("-o and -dir are mutually exclusive")
	}
	if oname != "" && len(inputs) != 1 {
		return nil, fmt.Errorf("-o requires exactly one input file (got=%d)", len(inputs))
	}

	var (
		jobs = make([]job, len(inputs))
		seen = make(map[string]string, len(inputs))
	)
	for i, input := range inputs {
		output := oname
		if output == "" {
			base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + "." + format
			dir := odir
			if dir == "" {
				dir = filepath.Dir(input)
			}
			output = filepath.Join(dir, base)
		}
		if output != "-" {
			if prev, dup := seen[output]; dup {
				return nil, fmt.Errorf("inputs %q and %q would both be written to %q", prev, input, output)
			}
			seen[output] = input
		}
		if output == input {
			return nil, fmt.Errorf("output file %q would overwrite its input", output)
		}
		jobs[i] = job{input: input, output: output}
	}
	return jobs, nil
}

// process converts all the inputs, at most cfg.Decoder.Jobs at a time.
// Summaries are returned in input order.
func process(msg *log.Logger, cfg config.Config, jobs []job) ([]summary, error) {
	if cfg.Decoder.MMap {
		msg.Printf("memory-mapping input files")
	}

	var (
		grp  errgroup.Group
		sums = make([]summary, len(jobs))
	)
	grp.SetLimit(cfg.Decoder.Jobs)

	for i := range jobs {
		i := i
		grp.Go(func() error {
			st, err := convert(msg, cfg, jobs[i])
			if err != nil {
				return fmt.Errorf("could not convert %q: %w", jobs[i].input, err)
			}
			sums[i] = summary{job: jobs[i], stats: st}
			return nil
		})
	}

	err := grp.Wait()
	if err != nil {
		return nil, err
	}
	return sums, nil
}

// stdout receives the records of jobs whose output is "-".
var stdout io.Writer = os.Stdout

func convert(msg *log.Logger, cfg config.Config, j job) (st motec.Stats, err error) {
	f, err := cfg.Format()
	if err != nil {
		return st, err
	}

	r, err := openInput(j.input, cfg.Decoder.MMap)
	if err != nil {
		return st, err
	}
	defer r.Close()

	var o io.WriteCloser = nopCloser{stdout}
	if j.output != "-" {
		o, err = os.Create(j.output)
		if err != nil {
			return st, fmt.Errorf("could not create output file: %w", err)
		}
		defer func() {
			if err != nil {
				_ = o.Close()
				_ = os.Remove(j.output)
			}
		}()
	}
	defer o.Close()

	var w motec.RecordWriter
	switch cfg.Output.Format {
	case "jsonl":
		w, err = motec.NewJSONLWriter(o, f)
	default:
		w, err = motec.NewCSVWriter(o, f)
	}
	if err != nil {
		return st, fmt.Errorf("could not create record writer: %w", err)
	}

	dec := motec.NewDecoder(r, log.New(msg.Writer(), msg.Prefix()+j.input+": ", 0))
	dec.Rescan = cfg.Decoder.Rescan

	st, err = xcnv.Convert(w, dec, discard)
	if err != nil {
		return st, err
	}

	err = o.Close()
	if err != nil {
		return st, fmt.Errorf("could not close output file: %w", err)
	}

	msg.Printf("%s: %v", j.input, st)
	if j.output != "-" {
		msg.Printf("%s: records saved to %q", j.input, j.output)
	}
	return st, nil
}

var discard = log.New(io.Discard, "", 0)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

type input struct {
	io.Reader
	io.Closer
}

func openInput(fname string, doMMap bool) (*input, error) {
	if doMMap {
		h, err := mmap.Open(fname)
		if err != nil {
			return nil, fmt.Errorf("could not open input file: %w", err)
		}
		return &input{
			Reader: io.NewSectionReader(h, 0, int64(h.Len())),
			Closer: h,
		}, nil
	}

	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("could not open input file: %w", err)
	}
	return &input{Reader: f, Closer: f}, nil
}

func monitor(msg *log.Logger, fname string, freq time.Duration) (func(), error) {
	f, err := os.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("could not create pmon log file: %w", err)
	}

	p, err := pmon.Monitor(os.Getpid())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not monitor process (pid=%d): %w", os.Getpid(), err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		msg.Printf("run pmon (pid=%d)...", os.Getpid())
		err := p.Run()
		if err != nil {
			msg.Printf("could not run pmon: %+v", err)
		}
	}()

	return func() {
		err := f.Sync()
		if err != nil {
			msg.Printf("could not sync pmon log file: %+v", err)
		}
	}, nil
}

// dialAndSend sends m through the mail server described by cfg.
var dialAndSend = func(cfg config.Alert, m *mail.Message) error {
	dial := mail.NewDialer(cfg.Server, cfg.Port, cfg.User, cfg.Password)
	dial.TLSConfig = &tls.Config{
		ServerName: cfg.Server,
	}
	return dial.DialAndSend(m)
}

func sendAlert(cfg config.Alert, sums []summary) error {
	if !cfg.Enabled() {
		return fmt.Errorf("missing mail server configuration")
	}
	return dialAndSend(cfg, alertMessage(cfg, sums))
}

func alertMessage(cfg config.Alert, sums []summary) *mail.Message {
	var (
		body = new(strings.Builder)
		bad  = 0
	)
	for _, sum := range sums {
		if sum.stats.Checksum == 0 && sum.stats.Malformed == 0 {
			continue
		}
		bad++
		fmt.Fprintf(body, "file: %q\n%v\n\n", sum.input, sum.stats)
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", cfg.User)
	msg.SetHeader("Bcc", cfg.To...)
	msg.SetHeader("Subject", fmt.Sprintf("[ld2csv] corrupted telemetry logs: %d/%d", bad, len(sums)))
	msg.SetBody("text/plain", body.String())
	return msg
}
