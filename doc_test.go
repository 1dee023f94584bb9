// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package openraceplot

import (
	"runtime/debug"
	"testing"
)

func TestVersion(t *testing.T) {
	for _, tc := range []struct {
		name    string
		b       *debug.BuildInfo
		version string
		sum     string
	}{
		{
			name: "nil",
		},
		{
			name: "main",
			b: &debug.BuildInfo{
				Main: debug.Module{Path: modulePath, Version: "(devel)"},
			},
			version: "(devel)",
		},
		{
			name: "dep",
			b: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/pits"},
				Deps: []*debug.Module{
					{Path: "golang.org/x/sync", Version: "v0.1.0", Sum: "h1:sync"},
					{Path: modulePath, Version: "v0.3.0", Sum: "h1:orp"},
				},
			},
			version: "v0.3.0",
			sum:     "h1:orp",
		},
		{
			name: "replace-path-version",
			b: &debug.BuildInfo{
				Deps: []*debug.Module{{
					Path:    modulePath,
					Version: "v0.3.0",
					Replace: &debug.Module{Path: "example.com/fork", Version: "v0.3.1", Sum: "h1:fork"},
				}},
			},
			version: "example.com/fork v0.3.1",
			sum:     "h1:fork",
		},
		{
			name: "replace-version",
			b: &debug.BuildInfo{
				Deps: []*debug.Module{{
					Path:    modulePath,
					Replace: &debug.Module{Version: "v0.3.1", Sum: "h1:fork"},
				}},
			},
			version: "v0.3.1",
			sum:     "h1:fork",
		},
		{
			name: "replace-path",
			b: &debug.BuildInfo{
				Deps: []*debug.Module{{
					Path:    modulePath,
					Replace: &debug.Module{Path: "../OpenRacePlot"},
				}},
			},
			version: "../OpenRacePlot",
		},
		{
			name: "replace-empty",
			b: &debug.BuildInfo{
				Deps: []*debug.Module{{
					Path:    modulePath,
					Version: "v0.3.0",
					Replace: &debug.Module{},
				}},
			},
			version: "v0.3.0*",
		},
		{
			name: "missing",
			b: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/pits"},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			version, sum := versionOf(tc.b)
			if version != tc.version {
				t.Fatalf("invalid version: got=%q, want=%q", version, tc.version)
			}
			if sum != tc.sum {
				t.Fatalf("invalid sum: got=%q, want=%q", sum, tc.sum)
			}
		})
	}
}
