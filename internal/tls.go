//go:build darwin || netbsd || freebsd || openbsd || dragonfly || linux

package internal

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/Mylifeismyhome/wsio/wserrors"
	"golang.org/x/sys/unix"
)

// fdConn presents a non-blocking descriptor as a net.Conn to crypto/tls.
//
// While blocking is set, reads and writes poll the descriptor for at most timeout per step. Otherwise reads report
// would-block as a temporary net.Error, which crypto/tls does not latch, and writes never fail on a full socket: the
// bytes the descriptor refused are kept in out until flush.
type fdConn struct {
	fd       int
	blocking bool
	timeout  time.Duration
	out      []byte

	local, remote net.Addr
}

var _ net.Conn = &fdConn{}

type wouldBlockError struct{}

func (wouldBlockError) Error() string   { return wserrors.ErrWouldBlock.Error() }
func (wouldBlockError) Timeout() bool   { return true }
func (wouldBlockError) Temporary() bool { return true }
func (wouldBlockError) Unwrap() error   { return wserrors.ErrWouldBlock }

type timeoutError struct{}

func (timeoutError) Error() string   { return wserrors.ErrTimeout.Error() }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return false }
func (timeoutError) Unwrap() error   { return wserrors.ErrTimeout }

func (c *fdConn) Read(b []byte) (int, error) {
	for {
		n, err := read(c.fd, b)
		if !errors.Is(err, wserrors.ErrWouldBlock) {
			return n, err
		}
		if !c.blocking {
			return 0, wouldBlockError{}
		}
		if ok, err := WaitFd(c.fd, false, c.timeout); err != nil {
			return 0, err
		} else if !ok {
			return 0, timeoutError{}
		}
	}
}

func (c *fdConn) Write(b []byte) (int, error) {
	if !c.blocking {
		total := len(b)
		if len(c.out) == 0 {
			n, err := write(c.fd, b)
			if err != nil && !errors.Is(err, wserrors.ErrWouldBlock) {
				return n, err
			}
			b = b[n:]
		}
		c.out = append(c.out, b...)
		return total, nil
	}

	written := 0
	for written < len(b) {
		n, err := write(c.fd, b[written:])
		written += n
		if err == nil {
			continue
		}
		if !errors.Is(err, wserrors.ErrWouldBlock) {
			return written, err
		}
		if ok, err := WaitFd(c.fd, true, c.timeout); err != nil {
			return written, err
		} else if !ok {
			return written, timeoutError{}
		}
	}
	return written, nil
}

// flush writes the bytes kept in out. It returns wserrors.ErrWouldBlock if some remain.
func (c *fdConn) flush() error {
	for len(c.out) > 0 {
		n, err := write(c.fd, c.out)
		c.out = c.out[:copy(c.out, c.out[n:])]
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *fdConn) Close() error                       { return nil }
func (c *fdConn) LocalAddr() net.Addr                { return c.local }
func (c *fdConn) RemoteAddr() net.Addr               { return c.remote }
func (c *fdConn) SetDeadline(t time.Time) error      { return nil }
func (c *fdConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fdConn) SetWriteDeadline(t time.Time) error { return nil }

// TLSHandshake runs a TLS handshake on its own goroutine. crypto/tls cannot resume a handshake interrupted by
// would-block, so the goroutine owns the descriptor and polls it until the handshake ends.
//
// The caller must not touch the descriptor until Done reports true, and then either takes the Transport or calls
// Abort.
type TLSHandshake struct {
	raw  *fdConn
	conn *tls.Conn
	err  error
	done chan struct{}
}

// StartTLS starts the handshake on fd. Each network step waits at most timeout. notify is called from the
// handshake goroutine once it finished.
func StartTLS(fd int, config *tls.Config, server bool, timeout time.Duration, notify func()) *TLSHandshake {
	raw := &fdConn{fd: fd, blocking: true, timeout: timeout}
	raw.local, _ = SocketAddress(fd)
	raw.remote, _ = PeerAddress(fd)

	h := &TLSHandshake{raw: raw, done: make(chan struct{})}
	if server {
		h.conn = tls.Server(raw, config)
	} else {
		h.conn = tls.Client(raw, config)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		h.err = h.conn.HandshakeContext(ctx)
		h.raw.blocking = false
		close(h.done)
		if notify != nil {
			notify()
		}
	}()
	return h
}

func (h *TLSHandshake) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Transport returns the secured transport once Done reports true.
func (h *TLSHandshake) Transport() (Transport, error) {
	<-h.done
	if h.err != nil {
		return nil, h.err
	}
	// Application data may have arrived with the last handshake flight.
	return &tlsTransport{raw: h.raw, conn: h.conn, pending: true}, nil
}

// Abort stops the handshake, waits for its goroutine and closes the descriptor.
func (h *TLSHandshake) Abort() error {
	_ = unix.Shutdown(h.raw.fd, unix.SHUT_RDWR)
	<-h.done
	return CloseFd(h.raw.fd)
}

type tlsTransport struct {
	raw     *fdConn
	conn    *tls.Conn
	pending bool
}

var _ Transport = &tlsTransport{}

func (t *tlsTransport) Fd() int {
	return t.raw.fd
}

func (t *tlsTransport) Read(b []byte) (int, error) {
	n, err := t.conn.Read(b)
	t.pending = err == nil && n == len(b)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Temporary() { //nolint:staticcheck
			return n, wserrors.ErrWouldBlock
		}
	}
	return n, err
}

// Write seals b into records. It returns would-block without sealing anything while earlier records are still
// waiting for the descriptor.
func (t *tlsTransport) Write(b []byte) (int, error) {
	if err := t.raw.flush(); err != nil {
		return 0, err
	}
	return t.conn.Write(b)
}

func (t *tlsTransport) Flush() error {
	return t.raw.flush()
}

func (t *tlsTransport) Buffered() int {
	return len(t.raw.out)
}

func (t *tlsTransport) Close() error {
	if t.raw.fd < 0 {
		return nil
	}
	_ = t.conn.CloseWrite()
	_ = t.raw.flush()
	sock := socketTransport{fd: t.raw.fd}
	t.raw.fd = -1
	return sock.Close()
}

func (t *tlsTransport) Pending() bool {
	return t.pending
}
