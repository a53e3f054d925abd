// Package abi contains small host-ABI helpers shared by every other
// package: native byte order and pointer-sized address decoding.
package abi

import (
	"encoding/binary"
	"unsafe"
)

// SizeofPtr is the size of a pointer on the current architecture.
const SizeofPtr = unsafe.Sizeof(0)

// ByteOrder is the byte order of the current architecture.
var ByteOrder binary.ByteOrder

func init() {
	ByteOrder = nativeByteOrder()
}

func nativeByteOrder() binary.ByteOrder {
	buf := [2]byte{}
	*(*uint16)(unsafe.Pointer(&buf[0])) = uint16(0xABCD)

	switch buf {
	case [2]byte{0xCD, 0xAB}:
		return binary.LittleEndian
	case [2]byte{0xAB, 0xCD}:
		return binary.BigEndian
	default:
		panic("could not determine native endianness")
	}
}
