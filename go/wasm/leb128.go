// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package wasm

import "fmt"

// ReadUint32 decodes an unsigned LEB128 encoded 32-bit integer. It returns
// the value and the number of consumed bytes.
func ReadUint32(data []byte) (uint32, int, error) {
	v, n, err := readUnsigned(data, 32)
	return uint32(v), n, err
}

// ReadUint64 decodes an unsigned LEB128 encoded 64-bit integer.
func ReadUint64(data []byte) (uint64, int, error) {
	return readUnsigned(data, 64)
}

// ReadInt32 decodes a signed LEB128 encoded 32-bit integer.
func ReadInt32(data []byte) (int32, int, error) {
	v, n, err := readSigned(data, 32)
	return int32(v), n, err
}

// ReadInt64 decodes a signed LEB128 encoded 64-bit integer.
func ReadInt64(data []byte) (int64, int, error) {
	return readSigned(data, 64)
}

func readUnsigned(data []byte, bits uint) (uint64, int, error) {
	maxBytes := int((bits + 6) / 7)
	var res uint64
	var shift uint
	for i := 0; ; i++ {
		if i >= maxBytes {
			return 0, 0, fmt.Errorf("%w: integer representation too long", ErrInvalidModule)
		}
		if i >= len(data) {
			return 0, 0, fmt.Errorf("%w: unexpected end of integer", ErrInvalidModule)
		}
		b := data[i]
		res |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			if i == maxBytes-1 && uint64(b&0x7f)>>(bits-shift) != 0 {
				return 0, 0, fmt.Errorf("%w: integer too large", ErrInvalidModule)
			}
			return res, i + 1, nil
		}
		shift += 7
	}
}

func readSigned(data []byte, bits uint) (int64, int, error) {
	maxBytes := int((bits + 6) / 7)
	var res int64
	var shift uint
	for i := 0; ; i++ {
		if i >= maxBytes {
			return 0, 0, fmt.Errorf("%w: integer representation too long", ErrInvalidModule)
		}
		if i >= len(data) {
			return 0, 0, fmt.Errorf("%w: unexpected end of integer", ErrInvalidModule)
		}
		b := data[i]
		res |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				res |= -1 << shift
			}
			if bits < 64 {
				lo, hi := -(int64(1) << (bits - 1)), int64(1)<<(bits-1)-1
				if res < lo || res > hi {
					return 0, 0, fmt.Errorf("%w: integer too large", ErrInvalidModule)
				}
			}
			return res, i + 1, nil
		}
	}
}

// AppendUnsigned appends the unsigned LEB128 encoding of v to buf.
func AppendUnsigned(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

// AppendSigned appends the signed LEB128 encoding of v to buf.
func AppendSigned(buf []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		buf = append(buf, b)
		if done {
			return buf
		}
	}
}
