package protocol

import "encoding/binary"

// Little-endian field encoders used to build request payloads.

// Uint8 encodes v as a single byte
func Uint8(v uint8) []byte {
	return []byte{v}
}

// Uint16 encodes v as two little-endian bytes
func Uint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// Uint32 encodes v as four little-endian bytes
func Uint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// Concat joins byte fields into one payload
func Concat(fields ...[]byte) []byte {
	size := 0
	for _, f := range fields {
		size += len(f)
	}
	out := make([]byte, 0, size)
	for _, f := range fields {
		out = append(out, f...)
	}
	return out
}
