package dotlite

import (
	"bytes"
	"io"
)

// DecodeVarint reads a big-endian base-128 varint from b starting at offset
// and returns its value along with the offset of the first byte following
// it. Varints are 1 to 9 bytes: the continuation bit (0x80) is set on every
// byte except the last, and a 9-byte varint uses all 8 bits of its final
// byte regardless of that bit. It fails with ErrMalformedRecord if the
// input is exhausted before a varint terminates.
func DecodeVarint(b []byte, offset int) (value int64, next int, err error) {
	if value, err = Varint(bytes.NewReader(b[offset:])); err != nil {
		return 0, offset, err
	}
	return value, offset + varintLen(b[offset:]), nil
}

// varintLen returns the number of bytes the varint encoded at the start of
// b occupies (1..9), assuming b is long enough to contain it.
func varintLen(b []byte) int {
	for i := 0; i < 8 && i < len(b); i++ {
		if b[i] < 0x80 {
			return i + 1
		}
	}
	return 9
}

// Varint decodes a single big-endian base-128 varint from r, following
// SQLite's exact encoding: the first 8 bytes each contribute 7 bits (high
// bit is the continuation flag), and if all 8 carry the continuation flag a
// 9th byte contributes its full 8 bits with no continuation semantics.
func Varint(r io.ByteReader) (_ int64, err error) {
	var b byte
	var val uint64
	for i := 0; i < 8; i++ {
		if b, err = r.ReadByte(); err != nil {
			return 0, wrapf(ErrMalformedRecord, "truncated varint: %v", err)
		}

		val = (val << 7) | uint64(b&0x7f)
		if b < 0x80 {
			return int64(val), nil
		}
	}

	if b, err = r.ReadByte(); err != nil {
		return 0, wrapf(ErrMalformedRecord, "truncated varint: %v", err)
	}

	return int64((val << 8) | uint64(b)), nil
}

// EncodeVarint encodes v as a big-endian base-128 varint, mirroring
// SQLite's putVarint64: values whose top byte (bits 56-63) is non-zero
// always take the full 9 bytes, with the last byte holding 8 raw bits;
// everything else takes the minimum number of 7-bit groups.
func EncodeVarint(v int64) []byte {
	var u = uint64(v)

	if u>>56 != 0 {
		var p [9]byte
		p[8] = byte(u)
		u >>= 8
		for i := 7; i >= 0; i-- {
			p[i] = byte(u&0x7f) | 0x80
			u >>= 7
		}
		return p[:]
	}

	var buf [9]byte
	var n int
	for {
		buf[n] = byte(u&0x7f) | 0x80
		n++
		u >>= 7
		if u == 0 {
			break
		}
	}
	buf[0] &^= 0x80

	var out = make([]byte, n)
	for i, j := 0, n-1; j >= 0; j, i = j-1, i+1 {
		out[i] = buf[j]
	}
	return out
}
