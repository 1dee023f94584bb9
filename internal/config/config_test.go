// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/kayamertak/OpenRacePlot/motec"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	if err != nil {
		t.Fatalf("default configuration should be valid: %+v", err)
	}

	f, err := cfg.Format()
	if err != nil {
		t.Fatalf("could not build format: %+v", err)
	}
	if !reflect.DeepEqual(f, motec.Format{Comma: ','}) {
		t.Fatalf("invalid default format: %+v", f)
	}

	if cfg.Alert.Enabled() {
		t.Fatalf("default configuration should not send alerts")
	}
}

func TestLoad(t *testing.T) {
	tmp, err := os.MkdirTemp("", "openraceplot-config-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	fname := filepath.Join(tmp, "ld2csv.toml")
	err = os.WriteFile(fname, []byte(`
[output]
format = "jsonl"
channels = ["rpm", "no_sync"]
delimiter = ";"
bool_flags = true

[decoder]
rescan = true
jobs = 4

[alert]
server = "smtp.example.com"
user = "logger"
password = "s3cr3t"
to = ["crew@example.com"]
`), 0644)
	if err != nil {
		t.Fatalf("could not write config file: %+v", err)
	}

	cfg, err := Load(fname)
	if err != nil {
		t.Fatalf("could not load config: %+v", err)
	}

	want := Default()
	want.Output.Format = "jsonl"
	want.Output.Channels = []string{"rpm", "no_sync"}
	want.Output.Delimiter = ";"
	want.Output.BoolFlags = true
	want.Decoder.Rescan = true
	want.Decoder.Jobs = 4
	want.Alert.Server = "smtp.example.com"
	want.Alert.User = "logger"
	want.Alert.Password = "s3cr3t"
	want.Alert.To = []string{"crew@example.com"}

	// the environment may override the alert section.
	if err := want.overrideFromEnv(os.Getenv); err != nil {
		t.Fatalf("could not apply environment: %+v", err)
	}

	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("invalid config:\ngot= %+v\nwant=%+v", cfg, want)
	}

	f, err := cfg.Format()
	if err != nil {
		t.Fatalf("could not build format: %+v", err)
	}
	if got, want := f, (motec.Format{Channels: []string{"rpm", "no_sync"}, Comma: ';', Bool: true}); !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid format:\ngot= %+v\nwant=%+v", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	tmp, err := os.MkdirTemp("", "openraceplot-config-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	_, err = Load(filepath.Join(tmp, "not-there.toml"))
	if err == nil {
		t.Fatalf("expected an error loading a missing file")
	}

	for _, tc := range []struct {
		name string
		data string
	}{
		{"syntax", "[output\n"},
		{"format", "[output]\nformat = \"xml\"\n"},
		{"channel", "[output]\nchannels = [\"boost\"]\n"},
		{"delimiter", "[output]\ndelimiter = \"::\"\n"},
		{"quote-delimiter", "[output]\ndelimiter = '\"'\n"},
		{"compression", "[output]\ncompression = 12\n"},
		{"jobs", "[decoder]\njobs = 0\n"},
		{"batch", "[db]\nbatch = -1\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := filepath.Join(tmp, tc.name+".toml")
			err := os.WriteFile(fname, []byte(tc.data), 0644)
			if err != nil {
				t.Fatalf("could not write config file: %+v", err)
			}
			_, err = Load(fname)
			if err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestSave(t *testing.T) {
	tmp, err := os.MkdirTemp("", "openraceplot-config-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	want := Default()
	want.Output.Channels = []string{"gear_voltage", "rpm"}
	want.Output.Delimiter = `\t`
	want.DB.DSN = "driver:s3cr3t@tcp(localhost:3306)/telemetry"

	fname := filepath.Join(tmp, "sub", "cfg.toml")
	err = want.Save(fname)
	if err != nil {
		t.Fatalf("could not save config: %+v", err)
	}

	got, err := Load(fname)
	if err != nil {
		t.Fatalf("could not load config: %+v", err)
	}
	if err := want.overrideFromEnv(os.Getenv); err != nil {
		t.Fatalf("could not apply environment: %+v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid config:\ngot= %+v\nwant=%+v", got, want)
	}

	f, err := got.Format()
	if err != nil {
		t.Fatalf("could not build format: %+v", err)
	}
	if got, want := f.Comma, '\t'; got != want {
		t.Fatalf("invalid delimiter: got=%q, want=%q", got, want)
	}
}

func TestOverrideFromEnv(t *testing.T) {
	env := map[string]string{
		"MAIL_USERNAME": "logger",
		"MAIL_PASSWORD": "s3cr3t",
		"MAIL_SERVER":   "smtp.example.com",
		"MAIL_PORT":     "465",
		"MAIL_TGTS":     "crew@example.com,chief@example.com",
	}
	getenv := func(k string) string { return env[k] }

	cfg := Default()
	err := cfg.overrideFromEnv(getenv)
	if err != nil {
		t.Fatalf("could not apply environment: %+v", err)
	}

	want := Alert{
		Server:   "smtp.example.com",
		Port:     465,
		User:     "logger",
		Password: "s3cr3t",
		To:       []string{"crew@example.com", "chief@example.com"},
	}
	if !reflect.DeepEqual(cfg.Alert, want) {
		t.Fatalf("invalid alert section:\ngot= %+v\nwant=%+v", cfg.Alert, want)
	}
	if !cfg.Alert.Enabled() {
		t.Fatalf("alerts should be enabled")
	}

	env["MAIL_PORT"] = "smtp"
	err = cfg.overrideFromEnv(getenv)
	if err == nil {
		t.Fatalf("expected an error with an invalid port")
	}
}
