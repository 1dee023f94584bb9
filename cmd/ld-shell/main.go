// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ld-shell is an interactive browser of MoTeC telemetry logs.
//
// Example:
//
//	$> ld-shell ./testdata/session.ld
//	ld> next
//	=== record 0 (frame 0) ===
//	ld> get rpm gear_voltage
//	rpm:                   2748
//	gear_voltage:          1.00
//	ld> quit
package main // import "github.com/kayamertak/OpenRacePlot/cmd/ld-shell"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kayamertak/OpenRacePlot/motec"
	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("ld-shell: ")
	log.SetFlags(0)

	var (
		bools  = flag.Bool("bool", false, "display flag channels as 0/1")
		rescan = flag.Bool("rescan", false, "look for a start frame inside corrupted messages")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: ld-shell [OPTIONS] file.ld

ex:
 $> ld-shell -bool ./testdata/session.ld

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing input log file")
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("could not open log file: %+v", err)
	}
	defer f.Close()

	sh := newShell(os.Stdout, f, motec.Format{Bool: *bools})
	sh.dec.Rescan = *rescan

	err = run(sh)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(sh *shell) error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(sh.complete)

	for !sh.done {
		line, err := term.Prompt("ld> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		err = sh.exec(line)
		if err != nil {
			fmt.Fprintf(sh.w, "error: %v\n", err)
		}
	}
	return nil
}

var cmds = []string{"channels", "get", "help", "next", "quit", "show", "stats"}

type shell struct {
	w     io.Writer
	dec   *motec.Decoder
	f     motec.Format
	names []string

	rec  motec.Record
	n    int // number of decoded records
	eof  bool
	done bool
}

func newShell(w io.Writer, r io.Reader, f motec.Format) *shell {
	return &shell{
		w:     w,
		dec:   motec.NewDecoder(r, log.New(w, "", 0)),
		f:     f,
		names: motec.Names(),
		rec:   motec.NewRecord(),
	}
}

func (sh *shell) exec(line string) error {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return nil
	}
	cmd, args := toks[0], toks[1:]
	switch cmd {
	case "next", "n":
		n := 1
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 1 {
				return fmt.Errorf("invalid number of records %q", args[0])
			}
			n = v
		}
		return sh.next(n)
	case "show":
		return sh.show(nil)
	case "get":
		if len(args) == 0 {
			return fmt.Errorf("missing channel name")
		}
		return sh.show(args)
	case "channels":
		for _, ch := range motec.Schema() {
			fmt.Fprintf(sh.w, "%-26s %-4s frame=%02d offset=%d\n", ch.Name, ch.Kind, ch.Frame, ch.Offset)
		}
		return nil
	case "stats":
		fmt.Fprintf(sh.w, "%v\n", sh.dec.Stats())
		return nil
	case "help", "?":
		fmt.Fprint(sh.w, help)
		return nil
	case "quit", "exit", "q":
		sh.done = true
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

const help = `commands:
 next [N]          decode the next N records (default: 1)
 show              display all channels of the current record
 get CH1 [CH2...]  display the given channels of the current record
 channels          list the channels of a record
 stats             display decoding statistics
 help              display this help message
 quit              exit the shell
`

func (sh *shell) next(n int) error {
	if sh.eof {
		return fmt.Errorf("no more records")
	}
	for i := 0; i < n; i++ {
		rec := motec.NewRecord()
		err := sh.dec.Decode(&rec)
		if err != nil {
			if errors.Is(err, io.EOF) {
				sh.eof = true
				fmt.Fprintf(sh.w, "end of log (%d records)\n", sh.n)
				return nil
			}
			return fmt.Errorf("could not decode record %d: %w", sh.n, err)
		}
		sh.rec = rec
		sh.n++
	}
	fmt.Fprintf(sh.w, "=== record %d (frame %d) ===\n", sh.n-1, sh.rec.Frame)
	return nil
}

func (sh *shell) show(chans []string) error {
	if sh.n == 0 {
		return fmt.Errorf("no current record")
	}
	var cols []int
	switch len(chans) {
	case 0:
		cols = make([]int, len(sh.names))
		for i := range cols {
			cols[i] = i
		}
	default:
		for _, name := range chans {
			i := motec.ChannelIndex(name)
			if i < 0 {
				return fmt.Errorf("unknown channel %q", name)
			}
			cols = append(cols, i)
		}
	}
	for _, i := range cols {
		v := sh.f.FormatValue(i, sh.rec.Values[i])
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(sh.w, "%-16s %10s\n", sh.names[i]+":", v)
	}
	return nil
}

// complete returns the commands, or the channel names for the get
// command, matching the line.
func (sh *shell) complete(line string) []string {
	var (
		out  []string
		cmd  = strings.Fields(line)
		last = strings.HasSuffix(line, " ")
	)
	if len(cmd) == 0 || (len(cmd) == 1 && !last) {
		prefix := strings.TrimSpace(line)
		for _, c := range cmds {
			if strings.HasPrefix(c, prefix) {
				out = append(out, c)
			}
		}
		return out
	}

	if cmd[0] != "get" {
		return nil
	}

	var (
		head   = line
		prefix = ""
	)
	if !last {
		prefix = cmd[len(cmd)-1]
		head = strings.TrimSuffix(line, prefix)
	}
	for _, name := range sh.names {
		if strings.HasPrefix(name, prefix) {
			out = append(out, head+name)
		}
	}
	sort.Strings(out)
	return out
}
