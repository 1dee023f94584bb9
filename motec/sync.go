// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package motec

type syncState uint8

const (
	seeking      syncState = iota // waiting for a start frame
	accumulating                  // filling an open message
)

// Synchronizer finds message boundaries in a stream of frames and
// assembles complete messages.
//
// Only a frame carrying the start signature opens a message: all other
// frames seen while seeking are skipped, which is how the stream is
// re-synchronized after corrupted data.
type Synchronizer struct {
	state syncState
	msg   Message
	n     int   // number of frames in msg
	start int64 // position of the first frame of msg
}

// Push feeds the frame f, found at position pos in the stream, to the
// synchronizer. Push returns true when f completes a message; the message
// is then available from Message until the next call to Push, and the
// synchronizer is seeking again.
func (s *Synchronizer) Push(pos int64, f Frame) bool {
	switch s.state {
	case seeking:
		if !f.IsStart() {
			return false
		}
		s.state = accumulating
		s.start = pos
		s.n = 0
	}

	s.msg.setFrame(s.n, f)
	s.n++
	if s.n < NumFrames {
		return false
	}

	s.state = seeking
	s.n = 0
	return true
}

// Message returns the last complete message.
func (s *Synchronizer) Message() *Message { return &s.msg }

// Start returns the position of the first frame of the last opened message.
func (s *Synchronizer) Start() int64 { return s.start }

// Pending returns the number of frames held in an open message.
func (s *Synchronizer) Pending() int {
	if s.state != accumulating {
		return 0
	}
	return s.n
}

// Reset drops any open message.
func (s *Synchronizer) Reset() {
	s.state = seeking
	s.n = 0
}
