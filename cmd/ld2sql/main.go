// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ld2sql imports MoTeC telemetry logs into a MySQL database.
//
// Each log is stored under a session name, the base name of the log file
// without its extension unless -session is given.
//
// Example:
//
//	$> ld2sql -dsn 'user:pass@tcp(localhost:3306)/telemetry' ./monza-fp1.ld
//	$> ld2sql -cfg ld2csv.toml -session monza-q1 ./logs/q1.ld
//	$> ld2sql -cfg ld2csv.toml -list
package main // import "github.com/kayamertak/OpenRacePlot/cmd/ld2sql"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/kayamertak/OpenRacePlot/internal/config"
	"github.com/kayamertak/OpenRacePlot/internal/xcnv"
	"github.com/kayamertak/OpenRacePlot/motec"
	"github.com/kayamertak/OpenRacePlot/telemdb"
)

func main() {
	log.SetPrefix("ld2sql: ")
	log.SetFlags(0)

	err := xmain(log.Default(), os.Stdout, os.Args[1:])
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

var openDB = telemdb.Open

func xmain(msg *log.Logger, stdout io.Writer, args []string) error {
	var (
		fset = flag.NewFlagSet("ld2sql", flag.ContinueOnError)

		cfname  = fset.String("cfg", "", "path to TOML configuration file")
		dsn     = fset.String("dsn", "", "data source name of the MySQL database")
		table   = fset.String("table", "", "name of the records table")
		batch   = fset.Int("batch", 0, "number of records inserted per transaction")
		session = fset.String("session", "", "session name (default: input file name)")
		rescan  = fset.Bool("rescan", false, "look for a start frame inside corrupted messages")
		doList  = fset.Bool("list", false, "list stored sessions and exit")
	)

	err := fset.Parse(args)
	if err != nil {
		return fmt.Errorf("could not parse input arguments: %w", err)
	}

	cfg, err := config.Load(*cfname)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dsn":
			cfg.DB.DSN = *dsn
		case "table":
			cfg.DB.Table = *table
		case "batch":
			cfg.DB.Batch = *batch
		case "rescan":
			cfg.Decoder.Rescan = *rescan
		}
	})

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.DB.DSN == "" {
		return fmt.Errorf("missing database DSN")
	}

	if !*doList && fset.NArg() == 0 {
		return fmt.Errorf("missing path to input log file")
	}

	if *session != "" && fset.NArg() > 1 {
		return fmt.Errorf("-session requires exactly one input file (got=%d)", fset.NArg())
	}

	db, err := openDB(cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("could not open telemetry db: %w", err)
	}
	defer db.Close()

	err = db.SetTable(cfg.DB.Table)
	if err != nil {
		return err
	}

	ctx := context.Background()

	if *doList {
		return list(ctx, stdout, db)
	}

	err = db.CreateTable(ctx)
	if err != nil {
		return err
	}

	for _, fname := range fset.Args() {
		name := *session
		if name == "" {
			name = sessionFrom(fname)
		}
		st, n, err := upload(ctx, msg, db, fname, name, cfg)
		if err != nil {
			return fmt.Errorf("could not import %q: %w", fname, err)
		}
		msg.Printf("%s: %v", fname, st)
		msg.Printf("%s: %d records stored in session %q", fname, n, name)
	}

	return nil
}

func sessionFrom(fname string) string {
	name := filepath.Base(fname)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func upload(ctx context.Context, msg *log.Logger, db *telemdb.DB, fname, session string, cfg config.Config) (motec.Stats, int64, error) {
	var st motec.Stats

	f, err := os.Open(fname)
	if err != nil {
		return st, 0, fmt.Errorf("could not open log file: %w", err)
	}
	defer f.Close()

	dec := motec.NewDecoder(f, log.New(msg.Writer(), msg.Prefix()+fname+": ", 0))
	dec.Rescan = cfg.Decoder.Rescan

	w := db.NewWriter(ctx, session, cfg.DB.Batch)
	st, err = xcnv.Convert(w, dec, msg)
	if err != nil {
		return st, w.N(), err
	}
	return st, w.N(), nil
}

func list(ctx context.Context, w io.Writer, db *telemdb.DB) error {
	sessions, err := db.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("could not list sessions: %w", err)
	}

	fmt.Fprintf(w, "%-32s %10s\n", "SESSION", "RECORDS")
	for _, s := range sessions {
		fmt.Fprintf(w, "%-32s %10d\n", s.Name, s.Records)
	}
	return nil
}
