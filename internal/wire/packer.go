// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"fmt"

	"github.com/luxfi/speculative-mesh/utils/formatting"
)

// packer is a thin specialisation of the teacher's utils/wrappers.Packer
// for this package's own byte/uint32/bytes fields; unpacker is its
// mirror image, which the teacher's Packer does not provide.
type packer struct {
	bytes []byte
}

func newPacker() *packer {
	return &packer{bytes: make([]byte, 0, 256)}
}

func (p *packer) packByte(b byte) {
	p.bytes = append(p.bytes, b)
}

func (p *packer) packUint32(v uint32) {
	p.bytes = append(p.bytes, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (p *packer) packBytes(b []byte) {
	p.bytes = append(p.bytes, b...)
}

type unpacker struct {
	data   []byte
	offset int
	err    error
}

func newUnpacker(data []byte) *unpacker {
	return &unpacker{data: data}
}

func (u *unpacker) unpackByte() byte {
	if u.err != nil {
		return 0
	}
	if u.offset+1 > len(u.data) {
		u.err = fmt.Errorf("unpacker: out of bytes reading byte")
		return 0
	}
	b := u.data[u.offset]
	u.offset++
	return b
}

func (u *unpacker) unpackUint32() uint32 {
	if u.err != nil {
		return 0
	}
	if u.offset+4 > len(u.data) {
		u.err = fmt.Errorf("unpacker: out of bytes reading uint32")
		return 0
	}
	v := uint32(u.data[u.offset])<<24 | uint32(u.data[u.offset+1])<<16 |
		uint32(u.data[u.offset+2])<<8 | uint32(u.data[u.offset+3])
	u.offset += 4
	return v
}

func (u *unpacker) unpackBytes(n int) []byte {
	if u.err != nil {
		return nil
	}
	if n < 0 || u.offset+n > len(u.data) {
		u.err = fmt.Errorf("unpacker: out of bytes reading %d bytes", n)
		return nil
	}
	b := u.data[u.offset : u.offset+n]
	u.offset += n
	return b
}

// encodeID / decodeID give peer and publisher ids a stable textual form
// for JSON embedding, reusing the teacher's hex encoding helpers.
func encodeID(b []byte) string {
	s, _ := formatting.Encode(formatting.HexNC, b)
	return s
}

func decodeID(s string) ([]byte, error) {
	return formatting.Decode(formatting.HexNC, s)
}
