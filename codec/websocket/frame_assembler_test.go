package websocket

import (
	"testing"

	"github.com/Mylifeismyhome/wsio/bytestream"
	"github.com/stretchr/testify/assert"
)

func TestFrameAssembler(t *testing.T) {
	assert := assert.New(t)

	fa := NewFrameAssembler(0)
	assert.False(fa.Active())

	assert.NoError(fa.Start(OpcodeText, true, []byte("hello ")))
	assert.NoError(fa.Append([]byte("world")))
	assert.True(fa.Active())
	assert.True(fa.Compressed())
	assert.Equal(OpcodeText, fa.Opcode())
	assert.Equal(2, fa.Parts())
	assert.Equal(11, fa.Length())
	assert.Equal("hello world", string(fa.Reassemble()))

	dst := bytestream.New()
	assert.True(fa.ReassembleInto(dst))
	assert.Equal("hello world", string(dst.Bytes()))
	assert.False(fa.Active())
	assert.Equal(0, fa.Length())
}

func TestFrameAssemblerLimit(t *testing.T) {
	assert := assert.New(t)

	fa := NewFrameAssembler(4)
	assert.NoError(fa.Start(OpcodeBinary, false, []byte("ab")))
	assert.ErrorIs(fa.Append([]byte("cde")), ErrMessageTooBig)
	assert.Equal(2, fa.Length())

	small := bytestream.New()
	small.SetLimit(1)
	assert.False(fa.ReassembleInto(small))
	assert.Equal(2, fa.Length())
	assert.Equal(0, small.Size())
}
