package websocket

import (
	"bytes"
	"testing"

	"github.com/Mylifeismyhome/wsio/bytestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, c *FrameCodec, op Opcode, fin bool, payload []byte, wire *bytestream.Buffer) {
	t.Helper()
	f := NewFrame(op)
	f.SetFinal(fin)
	require.NoError(t, f.Push(payload))
	require.NoError(t, c.Encode(f, wire))
}

func TestFrameCodecClientToServer(t *testing.T) {
	client := NewFrameCodec(RoleClient, MaxMessageSize)
	server := NewFrameCodec(RoleServer, MaxMessageSize)

	wire := bytestream.New()
	encode(t, client, OpcodeText, true, []byte("hello"), wire)
	assert.NotZero(t, wire.Bytes()[1]&bitIsMasked)

	f, status, err := server.Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, "hello", string(f.Payload()))
}

func TestFrameCodecMaskingRules(t *testing.T) {
	server := NewFrameCodec(RoleServer, MaxMessageSize)
	client := NewFrameCodec(RoleClient, MaxMessageSize)

	unmasked := bytestream.New()
	encode(t, server, OpcodeText, true, []byte("hi"), unmasked)
	assert.Zero(t, unmasked.Bytes()[1]&bitIsMasked)

	_, status, err := server.Decode(bytestream.NewFrom(unmasked.Bytes()))
	assert.Equal(t, StatusInvalidData, status)
	assert.ErrorIs(t, err, ErrUnmaskedFramesFromClient)

	masked := bytestream.New()
	encode(t, client, OpcodeText, true, []byte("hi"), masked)
	_, status, err = client.Decode(masked)
	assert.Equal(t, StatusInvalidData, status)
	assert.ErrorIs(t, err, ErrMaskedFramesFromServer)
}

func TestFrameCodecReassembly(t *testing.T) {
	assert := assert.New(t)

	for _, compressed := range []bool{false, true} {
		client := NewFrameCodec(RoleClient, MaxMessageSize)
		server := NewFrameCodec(RoleServer, MaxMessageSize)
		if compressed {
			client.SetDeflate(15)
			server.SetDeflate(15)
		}

		payload := bytes.Repeat([]byte("fragmented "), 50)
		wire := bytestream.New()
		encode(t, client, OpcodeBinary, false, payload[:100], wire)
		encode(t, client, OpcodePing, true, []byte("in between"), wire)
		encode(t, client, OpcodeContinuation, true, payload[100:], wire)

		f, status, err := server.Decode(wire)
		assert.NoError(err)
		assert.Equal(StatusFragment, status)
		assert.Nil(f)

		f, status, err = server.Decode(wire)
		assert.NoError(err)
		assert.Equal(StatusOK, status)
		assert.Equal(OpcodePing, f.Opcode())
		assert.Equal("in between", string(f.Payload()))

		f, status, err = server.Decode(wire)
		assert.NoError(err)
		assert.Equal(StatusFinal, status)
		assert.Equal(OpcodeBinary, f.Opcode())
		assert.Equal(payload, f.Payload())
		assert.Equal(0, wire.Size())
	}
}

func TestFrameCodecCompressedFragments(t *testing.T) {
	// The first fragment carries RSV1; the message is inflated only once complete.
	payload := bytes.Repeat([]byte("deflate me "), 100)
	compressed := bytestream.New()
	f := NewFrame(OpcodeText)
	require.NoError(t, f.Push(payload))
	f.Deflate(12)
	require.NoError(t, f.Write(compressed))
	body := compressed.Bytes()[2:]
	if compressed.Bytes()[1]&bitmaskPayloadLength == payloadLength16 {
		body = compressed.Bytes()[4:]
	}

	wire := bytestream.New()
	half := len(body) / 2
	first := NewFrame(OpcodeText)
	first.SetFinal(false)
	require.NoError(t, first.Push(body[:half]))
	require.NoError(t, first.Write(wire))
	wire.Bytes()[0] |= bitRSV1

	last := NewFrame(OpcodeContinuation)
	require.NoError(t, last.Push(body[half:]))
	require.NoError(t, last.Write(wire))

	client := NewFrameCodec(RoleClient, MaxMessageSize)
	client.SetDeflate(12)

	_, status, err := client.Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, StatusFragment, status)

	out, status, err := client.Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, StatusFinal, status)
	assert.Equal(t, payload, out.Payload())
}

func TestFrameCodecSequenceErrors(t *testing.T) {
	client := NewFrameCodec(RoleClient, MaxMessageSize)

	wire := bytestream.NewFrom([]byte{0x80, 0x01, 'x'})
	_, status, err := client.Decode(wire)
	assert.Equal(t, StatusInvalidData, status)
	assert.ErrorIs(t, err, ErrUnexpectedContinuation)

	client = NewFrameCodec(RoleClient, MaxMessageSize)
	wire = bytestream.NewFrom([]byte{0x01, 0x01, 'a', 0x81, 0x01, 'b'})
	_, status, err = client.Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, StatusFragment, status)
	_, status, err = client.Decode(wire)
	assert.Equal(t, StatusInvalidData, status)
	assert.ErrorIs(t, err, ErrExpectedContinuation)
	assert.Equal(t, CloseProtocolError, CloseCodeOf(err))
}

func TestFrameCodecInvalidUTF8(t *testing.T) {
	client := NewFrameCodec(RoleClient, MaxMessageSize)
	wire := bytestream.NewFrom([]byte{0x81, 0x04, 0xF0, 0x28, 0x8C, 0x28})

	_, status, err := client.Decode(wire)
	assert.Equal(t, StatusInvalidData, status)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
	assert.Equal(t, CloseBadPayload, CloseCodeOf(err))
}

func TestFrameCodecMessageLimit(t *testing.T) {
	client := NewFrameCodec(RoleClient, 8)
	wire := bytestream.NewFrom([]byte{0x02, 0x05, 1, 2, 3, 4, 5, 0x80, 0x05, 6, 7, 8, 9, 10})

	_, status, err := client.Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, StatusFragment, status)

	_, status, err = client.Decode(wire)
	assert.Equal(t, StatusError, status)
	assert.ErrorIs(t, err, ErrMessageTooBig)
	assert.Equal(t, CloseTooBig, CloseCodeOf(err))

	big := NewFrame(OpcodeBinary)
	require.NoError(t, big.Push(make([]byte, 9)))
	assert.ErrorIs(t, client.Encode(big, bytestream.New()), ErrMessageTooBig)
}

func TestFrameCodecDeflateNotNegotiated(t *testing.T) {
	server := NewFrameCodec(RoleServer, MaxMessageSize)

	f := NewFrame(OpcodeText)
	require.NoError(t, f.Push([]byte("plain")))
	f.Deflate(15)

	wire := bytestream.New()
	require.NoError(t, server.Encode(f, wire))
	assert.Zero(t, wire.Bytes()[0]&bitRSV1)
}
