//go:build darwin || netbsd || freebsd || openbsd || dragonfly || linux

package internal

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/Mylifeismyhome/wsio/wserrors"
	"github.com/Mylifeismyhome/wsio/wsopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopback(t *testing.T) (Transport, Transport) {
	t.Helper()

	lfd, laddr, err := Listen("tcp", "127.0.0.1:0", wsopts.ListenDefaults()...)
	require.NoError(t, err)
	defer CloseFd(lfd)

	_, _, err = Accept(lfd, wsopts.ConnDefaults()...)
	assert.ErrorIs(t, err, wserrors.ErrWouldBlock)

	cfd, raddr, inProgress, err := Connect("tcp", laddr.String(), wsopts.ConnDefaults()...)
	require.NoError(t, err)
	assert.Equal(t, laddr.String(), raddr.String())

	if inProgress {
		ok, err := WaitFd(cfd, true, 5*time.Second)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, ConnectResult(cfd))

	p := NewPoller()
	slot := p.Add(lfd, false)
	n, err := p.Wait(5 * time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, p.Readable(slot))

	sfd, addr, err := Accept(lfd, wsopts.ConnDefaults()...)
	require.NoError(t, err)
	local, err := SocketAddress(cfd)
	require.NoError(t, err)
	assert.Equal(t, local.String(), addr.String())

	return NewSocketTransport(cfd), NewSocketTransport(sfd)
}

func TestTransportReadWrite(t *testing.T) {
	client, server := loopback(t)
	defer client.Close()
	defer server.Close()

	b := make([]byte, 16)
	_, err := server.Read(b)
	assert.ErrorIs(t, err, wserrors.ErrWouldBlock)
	assert.False(t, server.Pending())

	n, err := client.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	ok, err := WaitFd(server.Fd(), false, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	n, err = server.Read(b)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b[:n]))
}

func TestTransportEOF(t *testing.T) {
	client, server := loopback(t)
	defer server.Close()

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Close(), io.EOF)

	ok, err := WaitFd(server.Fd(), false, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = server.Read(make([]byte, 16))
	assert.ErrorIs(t, err, io.EOF)
}

func TestPollerWritable(t *testing.T) {
	client, server := loopback(t)
	defer client.Close()
	defer server.Close()

	p := NewPoller()
	r := p.Add(server.Fd(), false)
	w := p.Add(client.Fd(), true)
	assert.Equal(t, 2, p.Len())

	n, err := p.Wait(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, p.Readable(r))
	assert.True(t, p.Writable(w))

	p.Reset()
	assert.Equal(t, 0, p.Len())
	n, err = p.Wait(0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConnectRefused(t *testing.T) {
	lfd, laddr, err := Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, CloseFd(lfd))

	fd, _, inProgress, err := Connect("tcp", laddr.String(), wsopts.ConnDefaults()...)
	if err != nil {
		assert.ErrorIs(t, err, wserrors.ErrConnRefused)
		return
	}
	defer CloseFd(fd)
	require.True(t, inProgress)

	_, err = WaitFd(fd, true, 5*time.Second)
	require.NoError(t, err)
	assert.ErrorIs(t, ConnectResult(fd), wserrors.ErrConnRefused)
}

func TestSockaddrRoundTrip(t *testing.T) {
	for _, addr := range []*net.TCPAddr{
		{IP: net.IPv4(10, 1, 2, 3), Port: 80},
		{IP: net.ParseIP("::1"), Port: 443},
	} {
		back := FromSockaddr(ToSockaddr(addr)).(*net.TCPAddr)
		assert.True(t, addr.IP.Equal(back.IP))
		assert.Equal(t, addr.Port, back.Port)
	}
}

func TestResolveRejectsUDP(t *testing.T) {
	_, _, err := Listen("udp", "127.0.0.1:0")
	assert.ErrorIs(t, err, errUnknownNetwork)
}
