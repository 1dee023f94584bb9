// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the configuration of the log conversion commands.
package config // import "github.com/kayamertak/OpenRacePlot/internal/config"

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kayamertak/OpenRacePlot/motec"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Output  Output  `toml:"output"`
	Decoder Decoder `toml:"decoder"`
	DB      DB      `toml:"db"`
	Alert   Alert   `toml:"alert"`
}

type Output struct {
	Format      string   `toml:"format"` // csv or jsonl
	Channels    []string `toml:"channels,omitempty"`
	Delimiter   string   `toml:"delimiter"`
	BoolFlags   bool     `toml:"bool_flags"`
	Compression int      `toml:"compression"` // LCIO compression level
}

type Decoder struct {
	Rescan bool `toml:"rescan"`
	MMap   bool `toml:"mmap"`
	Jobs   int  `toml:"jobs"` // number of files decoded concurrently
}

type DB struct {
	DSN   string `toml:"dsn"`
	Table string `toml:"table"`
	Batch int    `toml:"batch"`
}

// Alert describes the mail server used to report corrupted logs.
type Alert struct {
	Server   string   `toml:"server"`
	Port     int      `toml:"port"`
	User     string   `toml:"user"`
	Password string   `toml:"password"`
	To       []string `toml:"to,omitempty"`
}

// Enabled returns whether mail alerts can be sent.
func (a Alert) Enabled() bool {
	return a.Server != "" && a.Port != 0 && a.User != "" && a.Password != "" && len(a.To) != 0
}

func Default() Config {
	return Config{
		Output: Output{
			Format:      "csv",
			Delimiter:   ",",
			Compression: 1,
		},
		Decoder: Decoder{
			Jobs: 1,
		},
		DB: DB{
			Table: "records",
			Batch: 1000,
		},
		Alert: Alert{
			Port: 587,
		},
	}
}

// Load reads the named TOML file on top of the default configuration.
// Mail alert settings are then overridden by the MAIL_USERNAME,
// MAIL_PASSWORD, MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment
// variables, when set.
// An empty name loads the default configuration.
func Load(fname string) (Config, error) {
	cfg := Default()
	if fname != "" {
		data, err := os.ReadFile(fname)
		if err != nil {
			return cfg, fmt.Errorf("config: could not read %q: %w", fname, err)
		}

		err = toml.Unmarshal(data, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("config: could not parse %q: %w", fname, err)
		}
	}

	err := cfg.overrideFromEnv(os.Getenv)
	if err != nil {
		return cfg, err
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg *Config) overrideFromEnv(getenv func(string) string) error {
	if v := getenv("MAIL_USERNAME"); v != "" {
		cfg.Alert.User = v
	}
	if v := getenv("MAIL_PASSWORD"); v != "" {
		cfg.Alert.Password = v
	}
	if v := getenv("MAIL_SERVER"); v != "" {
		cfg.Alert.Server = v
	}
	if v := getenv("MAIL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid MAIL_PORT %q: %w", v, err)
		}
		cfg.Alert.Port = port
	}
	if v := getenv("MAIL_TGTS"); v != "" {
		cfg.Alert.To = strings.Split(v, ",")
	}
	return nil
}

// Save writes the configuration to the named TOML file.
func (cfg Config) Save(fname string) error {
	err := cfg.Validate()
	if err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: could not marshal configuration: %w", err)
	}

	if dir := filepath.Dir(fname); dir != "" && dir != "." {
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return fmt.Errorf("config: could not create directory %q: %w", dir, err)
		}
	}

	err = os.WriteFile(fname, data, 0644)
	if err != nil {
		return fmt.Errorf("config: could not write %q: %w", fname, err)
	}
	return nil
}

func (cfg Config) Validate() error {
	switch cfg.Output.Format {
	case "csv", "jsonl":
	default:
		return fmt.Errorf("config: invalid output format %q", cfg.Output.Format)
	}

	if _, err := cfg.Format(); err != nil {
		return err
	}

	if v := cfg.Output.Compression; v < -1 || v > 9 {
		return fmt.Errorf("config: invalid compression level %d", v)
	}

	if cfg.Decoder.Jobs < 1 {
		return fmt.Errorf("config: invalid number of jobs %d", cfg.Decoder.Jobs)
	}

	if cfg.DB.Batch < 1 {
		return fmt.Errorf("config: invalid db batch size %d", cfg.DB.Batch)
	}

	if p := cfg.Alert.Port; p < 0 || p > 65535 {
		return fmt.Errorf("config: invalid mail port %d", p)
	}

	return nil
}

// Format returns the layout of records described by the output section.
func (cfg Config) Format() (motec.Format, error) {
	f := motec.Format{
		Channels: cfg.Output.Channels,
		Bool:     cfg.Output.BoolFlags,
	}

	switch d := cfg.Output.Delimiter; {
	case d == "":
	case d == `\t`:
		f.Comma = '\t'
	case utf8.RuneCountInString(d) == 1:
		f.Comma, _ = utf8.DecodeRuneInString(d)
	default:
		return f, fmt.Errorf("config: invalid delimiter %q", d)
	}

	switch f.Comma {
	case '"', '\r', '\n', utf8.RuneError:
		return f, fmt.Errorf("config: invalid delimiter %q", cfg.Output.Delimiter)
	}

	_, err := f.Columns()
	if err != nil {
		return f, fmt.Errorf("config: invalid channel selection: %w", err)
	}

	return f, nil
}
