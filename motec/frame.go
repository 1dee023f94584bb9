// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package motec

import (
	"bufio"
	"errors"
	"io"
)

// FrameReader slices a byte stream into frames.
type FrameReader struct {
	r    *bufio.Reader
	pos  int64 // number of frames delivered
	tail int   // size of the dropped trailing partial frame
	err  error
}

// NewFrameReader returns a FrameReader reading from r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		r: bufio.NewReaderSize(r, 64*MessageSize),
	}
}

// Next reads the next frame into f.
// Next returns io.EOF once the stream is exhausted. A trailing partial
// frame is not an error: it is dropped and its size reported by Tail.
func (fr *FrameReader) Next(f *Frame) error {
	if fr.err != nil {
		return fr.err
	}

	n, err := io.ReadFull(fr.r, f[:])
	switch {
	case err == nil:
		fr.pos++
		return nil
	case errors.Is(err, io.EOF):
		fr.err = io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		fr.tail = n
		fr.err = io.EOF
	default:
		fr.err = &IOError{Op: "read frame", Err: err}
	}
	return fr.err
}

// Pos returns the number of frames read so far.
func (fr *FrameReader) Pos() int64 { return fr.pos }

// Tail returns the number of bytes dropped at the end of the stream.
func (fr *FrameReader) Tail() int { return fr.tail }
