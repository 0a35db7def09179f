package endian

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostOrder(t *testing.T) {
	assert.NotEqual(t, IsLittle(), IsBig())

	word := make([]byte, 2)
	binary.NativeEndian.PutUint16(word, 1)
	assert.Equal(t, word[0] == 1, IsLittle())
}

func TestNetworkRoundTrip(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(uint16(0xBEEF), NetworkToHost16(HostToNetwork16(0xBEEF)))
	assert.Equal(uint32(0xDEADBEEF), NetworkToHost32(HostToNetwork32(0xDEADBEEF)))
	assert.Equal(uint64(0x0102030405060708), NetworkToHost64(HostToNetwork64(0x0102030405060708)))

	assert.Equal(uint16(0xBEEF), LittleToHost16(HostToLittle16(0xBEEF)))
	assert.Equal(uint32(0xDEADBEEF), LittleToHost32(HostToLittle32(0xDEADBEEF)))
	assert.Equal(uint64(0x0102030405060708), LittleToHost64(HostToLittle64(0x0102030405060708)))
}

func TestNetworkLayout(t *testing.T) {
	assert := assert.New(t)

	// The in-memory layout of a network-order value is big-endian regardless of host.
	v := HostToNetwork32(0x01020304)
	mem := make([]byte, 4)
	binary.NativeEndian.PutUint32(mem, v)
	assert.Equal([]byte{1, 2, 3, 4}, mem)

	b := make([]byte, 8)
	PutNetwork16(b, 0x1234)
	assert.Equal([]byte{0x12, 0x34}, b[:2])
	assert.Equal(uint16(0x1234), Network16(b))

	PutNetwork64(b, 65536)
	assert.Equal([]byte{0, 0, 0, 0, 0, 1, 0, 0}, b)
	assert.Equal(uint64(65536), Network64(b))
}
