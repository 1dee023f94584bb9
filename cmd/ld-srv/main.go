// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ld-srv starts a TDAQ server replaying a MoTeC telemetry log.
//
// Decoded records are published on the /telemetry output, one JSON
// object per frame body.
//
// Example:
//
//	$> ld-srv -id logger -rc-addr :44000 ./testdata/session.ld
package main // import "github.com/kayamertak/OpenRacePlot/cmd/ld-srv"

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/kayamertak/OpenRacePlot/motec"
)

func main() {
	cmd := flags.New()
	if len(cmd.Args) == 0 {
		log.Fatalf("missing path to input log file")
	}

	dev := newLogger(cmd.Args[0], 100*time.Millisecond)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/telemetry", dev.telemetry)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type logger struct {
	fname  string
	period time.Duration // delay between two published records

	raw  []byte
	dec  *motec.Decoder
	msg  *bytes.Buffer // decoder diagnostics
	buf  *bytes.Buffer
	w    *motec.JSONLWriter
	n    int
	data chan []byte
}

func newLogger(fname string, period time.Duration) *logger {
	return &logger{
		fname:  fname,
		period: period,
		msg:    new(bytes.Buffer),
		buf:    new(bytes.Buffer),
	}
}

// load reads the whole log file in memory.
func (dev *logger) load() error {
	raw, err := os.ReadFile(dev.fname)
	if err != nil {
		return fmt.Errorf("could not read log file %q: %w", dev.fname, err)
	}
	dev.raw = raw
	return nil
}

// reset rewinds the replay to the start of the log.
func (dev *logger) reset() error {
	w, err := motec.NewJSONLWriter(dev.buf, motec.Format{})
	if err != nil {
		return fmt.Errorf("could not create record writer: %w", err)
	}
	dev.msg.Reset()
	dev.dec = motec.NewDecoder(bytes.NewReader(dev.raw), log.New(dev.msg, "", 0))
	dev.w = w
	dev.n = 0
	dev.data = make(chan []byte, 1024)
	return nil
}

// next returns the next decoded record, as a JSON object.
func (dev *logger) next() ([]byte, error) {
	rec := motec.NewRecord()
	err := dev.dec.Decode(&rec)
	if err != nil {
		return nil, err
	}

	dev.buf.Reset()
	err = dev.w.WriteRecord(&rec)
	if err != nil {
		return nil, fmt.Errorf("could not encode record %d: %w", dev.n, err)
	}
	err = dev.w.Flush()
	if err != nil {
		return nil, fmt.Errorf("could not encode record %d: %w", dev.n, err)
	}
	dev.n++

	return bytes.TrimSuffix(append([]byte(nil), dev.buf.Bytes()...), []byte("\n")), nil
}

func (dev *logger) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	err := dev.load()
	if err != nil {
		ctx.Msg.Errorf("could not load log file: %+v", err)
		return fmt.Errorf("could not load log file: %w", err)
	}
	ctx.Msg.Infof("loaded %d bytes from %q", len(dev.raw), dev.fname)
	return nil
}

func (dev *logger) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	return dev.reset()
}

func (dev *logger) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return dev.reset()
}

func (dev *logger) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return nil
}

func (dev *logger) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	n := dev.n
	ctx.Msg.Debugf("received /stop command... -> n=%d", n)
	if dev.dec != nil {
		ctx.Msg.Infof("%v", dev.dec.Stats())
	}
	return nil
}

func (dev *logger) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return nil
}

func (dev *logger) telemetry(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.data:
		dst.Body = data
	}
	return nil
}

func (dev *logger) run(ctx tdaq.Context) error {
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
			raw, err := dev.next()
			if dev.msg.Len() > 0 {
				ctx.Msg.Infof("%s", strings.TrimSpace(dev.msg.String()))
				dev.msg.Reset()
			}
			switch {
			case errors.Is(err, io.EOF):
				ctx.Msg.Infof("end of log: %v", dev.dec.Stats())
				<-ctx.Ctx.Done()
				return nil
			case err != nil:
				return fmt.Errorf("could not decode telemetry log: %w", err)
			}
			select {
			case dev.data <- raw:
			case <-ctx.Ctx.Done():
				return nil
			}
		}
		time.Sleep(dev.period)
	}
}
