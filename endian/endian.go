// Package endian converts integers between host, network (big-endian) and little-endian order.
package endian

import (
	"encoding/binary"
	"math/bits"
	"unsafe"
)

var little bool

func init() {
	x := uint16(1)
	little = *(*byte)(unsafe.Pointer(&x)) == 1
}

func IsLittle() bool { return little }
func IsBig() bool    { return !little }

func HostToNetwork16(v uint16) uint16 {
	if little {
		return bits.ReverseBytes16(v)
	}
	return v
}

func HostToNetwork32(v uint32) uint32 {
	if little {
		return bits.ReverseBytes32(v)
	}
	return v
}

func HostToNetwork64(v uint64) uint64 {
	if little {
		return bits.ReverseBytes64(v)
	}
	return v
}

// Byte swapping is an involution so the reverse direction is the same transform.
func NetworkToHost16(v uint16) uint16 { return HostToNetwork16(v) }
func NetworkToHost32(v uint32) uint32 { return HostToNetwork32(v) }
func NetworkToHost64(v uint64) uint64 { return HostToNetwork64(v) }

func HostToLittle16(v uint16) uint16 {
	if little {
		return v
	}
	return bits.ReverseBytes16(v)
}

func HostToLittle32(v uint32) uint32 {
	if little {
		return v
	}
	return bits.ReverseBytes32(v)
}

func HostToLittle64(v uint64) uint64 {
	if little {
		return v
	}
	return bits.ReverseBytes64(v)
}

func LittleToHost16(v uint16) uint16 { return HostToLittle16(v) }
func LittleToHost32(v uint32) uint32 { return HostToLittle32(v) }
func LittleToHost64(v uint64) uint64 { return HostToLittle64(v) }

// PutNetwork16 writes v into b in network order. b must hold at least 2 bytes.
func PutNetwork16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }

// PutNetwork64 writes v into b in network order. b must hold at least 8 bytes.
func PutNetwork64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

func Network16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func Network64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
