// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package motec

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksum is matched by all *ChecksumError values.
	ErrChecksum = errors.New("motec: inconsistent CRC-32")

	// ErrTruncated reports a message cut short by the end of the stream.
	ErrTruncated = errors.New("motec: truncated message")

	// ErrMalformed reports a record that could not be extracted from
	// a validated message.
	ErrMalformed = errors.New("motec: malformed record")
)

// IOError reports a failure of the underlying input or output stream.
// IOErrors are fatal: decoding can not proceed past them.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("motec: could not %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ChecksumError describes a message whose CRC-32 trailer does not match
// its content.
type ChecksumError struct {
	Frame int64   // position of the first frame of the message
	Recv  [4]byte // trailer found in the message
	Comp  [4]byte // CRC-32 computed over the message payload
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf(
		"motec: message at frame %d: inconsistent CRC-32: recv=0x%x comp=0x%x",
		e.Frame, e.Recv, e.Comp,
	)
}

func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}
