// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package motec

import (
	"encoding/binary"
	"hash/crc32"
)

// Checksum returns the CRC-32 (IEEE) of p, as 4 big-endian bytes.
func Checksum(p []byte) [4]byte {
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc32.ChecksumIEEE(p))
	return sum
}

// Verify compares the CRC-32 trailer of the message with the checksum
// of its payload.
func (msg *Message) Verify() (recv, comp [4]byte, ok bool) {
	copy(recv[:], msg[PayloadSize:])
	comp = Checksum(msg[:PayloadSize])
	return recv, comp, recv == comp
}

// seal writes the CRC-32 trailer of the message.
func (msg *Message) seal() {
	sum := Checksum(msg[:PayloadSize])
	copy(msg[PayloadSize:], sum[:])
}
