// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xcnv provides tools to convert telemetry logs to record sinks,
// and records to/from LCIO.
package xcnv // import "github.com/kayamertak/OpenRacePlot/internal/xcnv"
