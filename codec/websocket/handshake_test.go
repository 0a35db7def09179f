package websocket

import (
	"strings"
	"testing"

	"github.com/Mylifeismyhome/wsio/bytestream"
	"github.com/Mylifeismyhome/wsio/codec/http"
	"github.com/Mylifeismyhome/wsio/wserrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecret(t *testing.T) {
	// RFC 6455 section 1.3.
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", Secret("dGhlIHNhbXBsZSBub25jZQ=="))
	assert.Equal(t, Secret("abc"), Secret("abc"))
	assert.NotEqual(t, Secret("abc"), Secret("abd"))
}

func TestRandom(t *testing.T) {
	a, err := Random(16)
	require.NoError(t, err)
	b, err := Random(16)
	require.NoError(t, err)

	assert.Len(t, a, 24)
	assert.NotEqual(t, a, b)
}

func TestHandshakeClientServer(t *testing.T) {
	assert := assert.New(t)

	request := bytestream.New()
	acceptKey, err := Create("localhost", "http://localhost", "/chat", request, DefaultExtensions())
	require.NoError(t, err)
	assert.Contains(string(request.Bytes()), "GET /chat HTTP/1.1\r\n")
	assert.Contains(string(request.Bytes()), "Sec-Websocket-Version: 13\r\n")
	assert.NotContains(string(request.Bytes()), "Sec-Websocket-Extensions")

	response := bytestream.New()
	var granted Extensions
	n, err := Server("localhost", "http://localhost", request, response, DefaultExtensions(), &granted)
	require.NoError(t, err)
	assert.Equal(request.Size(), n)
	assert.False(granted.PerMessageDeflate.Enabled)
	assert.Contains(string(response.Bytes()), "HTTP/1.1 101 Switching Protocols\r\n")

	ext := DefaultExtensions()
	n, err = Client(acceptKey, response, &ext)
	require.NoError(t, err)
	assert.Equal(response.Size(), n)
	assert.False(ext.PerMessageDeflate.Enabled)
}

func TestHandshakeClientAcceptMismatch(t *testing.T) {
	request := bytestream.New()
	_, err := Create("localhost", "", "/", request, DefaultExtensions())
	require.NoError(t, err)

	response := bytestream.New()
	_, err = Server("", "", request, response, DefaultExtensions(), nil)
	require.NoError(t, err)

	_, err = Client(Secret("some other key"), response, nil)
	assert.ErrorIs(t, err, ErrCannotUpgrade)
}

func TestHandshakeClientRejectsNon101(t *testing.T) {
	response := bytestream.New()
	require.NoError(t, http.Respond(http.StatusBadRequest, response))

	_, err := Client("irrelevant", response, nil)
	assert.ErrorIs(t, err, ErrCannotUpgrade)
}

func upgradeRequest(drop string) *bytestream.Buffer {
	lines := []string{
		"GET /chat HTTP/1.1",
		"Host: server.example.com",
		"Upgrade: websocket",
		"Connection: keep-alive, Upgrade",
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==",
		"Origin: http://example.com",
		"Sec-WebSocket-Version: 13",
	}
	var b strings.Builder
	for _, l := range lines {
		if drop != "" && strings.HasPrefix(l, drop) {
			continue
		}
		b.WriteString(l + "\r\n")
	}
	b.WriteString("\r\n")
	return bytestream.NewFrom([]byte(b.String()))
}

func TestHandshakeServerRejects(t *testing.T) {
	cases := []struct {
		name   string
		drop   string
		host   string
		origin string
	}{
		{name: "missing upgrade", drop: "Upgrade:"},
		{name: "missing connection", drop: "Connection:"},
		{name: "missing key", drop: "Sec-WebSocket-Key:"},
		{name: "missing version", drop: "Sec-WebSocket-Version:"},
		{name: "host mismatch", host: "other.example.com"},
		{name: "origin mismatch", origin: "http://evil.example.com"},
	}

	for _, c := range cases {
		output := bytestream.New()
		_, err := Server(c.host, c.origin, upgradeRequest(c.drop), output, DefaultExtensions(), nil)
		assert.ErrorIs(t, err, ErrCannotUpgrade, c.name)
		assert.True(t, strings.HasPrefix(string(output.Bytes()), "HTTP/1.1 400 Bad Request\r\n"), c.name)
	}
}

func TestHandshakeServerAccepts(t *testing.T) {
	output := bytestream.New()
	_, err := Server("server.example.com", "http://example.com", upgradeRequest(""), output, DefaultExtensions(), nil)
	require.NoError(t, err)
	assert.Contains(t, string(output.Bytes()), "Sec-Websocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n")
}

func TestHandshakeServerRejectsPost(t *testing.T) {
	input := bytestream.NewFrom([]byte("POST / HTTP/1.1\r\nUpgrade: websocket\r\n\r\n"))
	output := bytestream.New()
	_, err := Server("", "", input, output, DefaultExtensions(), nil)
	assert.ErrorIs(t, err, ErrCannotUpgrade)
	assert.Contains(t, string(output.Bytes()), "400 Bad Request")
}

func TestHandshakeIncomplete(t *testing.T) {
	input := bytestream.NewFrom([]byte("GET / HTTP/1.1\r\nHost: x\r\n"))
	output := bytestream.New()

	_, err := Server("", "", input, output, DefaultExtensions(), nil)
	assert.ErrorIs(t, err, wserrors.ErrNeedMore)
	assert.Equal(t, 0, output.Size())

	_, err = Client("key", input, nil)
	assert.ErrorIs(t, err, wserrors.ErrNeedMore)
}

func TestHandshakeDeflateNegotiation(t *testing.T) {
	assert := assert.New(t)

	clientExt := Extensions{PerMessageDeflate: PerMessageDeflate{Enabled: true, WindowBits: 15}}
	serverExt := Extensions{PerMessageDeflate: PerMessageDeflate{Enabled: true, WindowBits: 10}}

	request := bytestream.New()
	acceptKey, err := Create("localhost", "", "/", request, clientExt)
	require.NoError(t, err)
	assert.Contains(string(request.Bytes()), "permessage-deflate; client_max_window_bits=15")

	response := bytestream.New()
	var granted Extensions
	_, err = Server("", "", request, response, serverExt, &granted)
	require.NoError(t, err)
	assert.True(granted.PerMessageDeflate.Enabled)
	assert.Equal(uint8(10), granted.PerMessageDeflate.WindowBits)
	assert.Contains(string(response.Bytes()),
		"permessage-deflate; server_max_window_bits=10; client_max_window_bits=10; "+
			"server_no_context_takeover; client_no_context_takeover")

	ext := clientExt
	_, err = Client(acceptKey, response, &ext)
	require.NoError(t, err)
	assert.True(ext.PerMessageDeflate.Enabled)
	assert.Equal(uint8(10), ext.PerMessageDeflate.WindowBits)
	assert.Equal(10, ext.DeflateBits())
}

func TestHandshakeStateMachine(t *testing.T) {
	assert := assert.New(t)

	ext := Extensions{PerMessageDeflate: PerMessageDeflate{Enabled: true, WindowBits: 12}}
	client := NewHandshake(RoleClient, ext)
	server := NewHandshake(RoleServer, ext)
	assert.Equal(HandshakeIdle, client.State())

	toServer := bytestream.New()
	require.NoError(t, client.Start("localhost", "", "/", toServer))
	assert.Equal(HandshakeRequestSent, client.State())
	assert.ErrorIs(client.Start("localhost", "", "/", toServer), ErrWrongHandshakeState)

	// Bytes sent right after the request are left for the frame codec.
	require.NoError(t, toServer.Push([]byte{0x81, 0x80}))

	toClient := bytestream.New()
	require.NoError(t, server.Advance("", "", toServer, toClient))
	assert.True(server.Done())
	assert.Equal([]byte{0x81, 0x80}, toServer.Bytes())
	assert.Equal(12, server.Negotiated().DeflateBits())

	require.NoError(t, client.Advance("", "", toClient, nil))
	assert.Equal(HandshakeComplete, client.State())
	assert.Equal(0, toClient.Size())
	assert.Equal(12, client.Negotiated().DeflateBits())
}

func TestHandshakeStateMachineRejected(t *testing.T) {
	server := NewHandshake(RoleServer, DefaultExtensions())

	input := upgradeRequest("Upgrade:")
	output := bytestream.New()
	assert.ErrorIs(t, server.Advance("", "", input, output), ErrCannotUpgrade)
	assert.True(t, server.Rejected())
	assert.Equal(t, 0, input.Size())
	assert.Contains(t, string(output.Bytes()), "400 Bad Request")

	partial := NewHandshake(RoleServer, DefaultExtensions())
	assert.ErrorIs(t, partial.Advance("", "", bytestream.NewFrom([]byte("GET")), output), wserrors.ErrNeedMore)
	assert.Equal(t, HandshakeIdle, partial.State())
}
