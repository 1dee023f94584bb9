// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package openraceplot decodes and converts MoTeC telemetry logs.
//
// The motec package holds the log decoder and the record writers.
// The telemdb package stores decoded records in a SQL database.
// Commands under cmd/ convert logs to CSV, JSON lines, LCIO and SQL.
package openraceplot // import "github.com/kayamertak/OpenRacePlot"

import (
	"fmt"
	"runtime/debug"
)

const modulePath = "github.com/kayamertak/OpenRacePlot"

// Version returns the version of the module and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	if b.Main.Path == modulePath {
		return moduleVersion(&b.Main)
	}

	for _, m := range b.Deps {
		if m.Path != modulePath {
			continue
		}
		return moduleVersion(m)
	}
	return "", ""
}

func moduleVersion(m *debug.Module) (version, sum string) {
	if r := m.Replace; r != nil {
		switch {
		case r.Version != "" && r.Path != "":
			return fmt.Sprintf("%s %s", r.Path, r.Version), r.Sum
		case r.Version != "":
			return r.Version, r.Sum
		case r.Path != "":
			return r.Path, r.Sum
		default:
			return m.Version + "*", ""
		}
	}
	return m.Version, m.Sum
}
