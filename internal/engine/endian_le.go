//go:build amd64 || 386 || arm64 || arm || riscv64 || mips64le || mipsle || ppc64le || wasm

package engine

import "unsafe"

// Record numbers and numeric key types are stored little-endian. On
// little-endian hosts the conversions are plain loads and stores; callers
// guarantee len(b) is large enough.

//go:nosplit
func putRecno32(b []byte, v uint32) {
	*(*uint32)(unsafe.Pointer(&b[0])) = v
}

//go:nosplit
func putRecno64(b []byte, v uint64) {
	*(*uint64)(unsafe.Pointer(&b[0])) = v
}

//go:nosplit
func loadUint16(b []byte) uint16 {
	return *(*uint16)(unsafe.Pointer(&b[0]))
}

//go:nosplit
func loadUint32(b []byte) uint32 {
	return *(*uint32)(unsafe.Pointer(&b[0]))
}

//go:nosplit
func loadUint64(b []byte) uint64 {
	return *(*uint64)(unsafe.Pointer(&b[0]))
}
