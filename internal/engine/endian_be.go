//go:build !amd64 && !386 && !arm64 && !arm && !riscv64 && !mips64le && !mipsle && !ppc64le && !wasm

package engine

import "encoding/binary"

// Big-endian hosts go through encoding/binary to keep the little-endian
// key layout portable.

func putRecno32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

func putRecno64(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b, v)
}

func loadUint16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

func loadUint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func loadUint64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}
