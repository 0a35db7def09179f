//go:build darwin || netbsd || freebsd || openbsd || dragonfly || linux

package internal

import (
	"errors"
	"io"
	"os"

	"github.com/Mylifeismyhome/wsio/wserrors"
	"golang.org/x/sys/unix"
)

// Transport moves bytes over one non-blocking file descriptor.
//
// Read and Write return wserrors.ErrWouldBlock instead of blocking. Read returns io.EOF once the peer closed its
// side.
type Transport interface {
	Fd() int
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error

	// Pending reports whether decoded bytes may be buffered inside the transport, so a Read can succeed even
	// when the descriptor is not readable.
	Pending() bool

	// Flush writes bytes an earlier Write accepted but the descriptor did not. Buffered is their count.
	Flush() error
	Buffered() int
}

type socketTransport struct {
	fd int
}

var _ Transport = &socketTransport{}

func NewSocketTransport(fd int) Transport {
	return &socketTransport{fd: fd}
}

func (t *socketTransport) Fd() int {
	return t.fd
}

func (t *socketTransport) Read(b []byte) (int, error) {
	return read(t.fd, b)
}

func (t *socketTransport) Write(b []byte) (int, error) {
	return write(t.fd, b)
}

func (t *socketTransport) Close() error {
	if t.fd < 0 {
		return io.EOF
	}
	err := unix.Close(t.fd)
	t.fd = -1
	return err
}

func (t *socketTransport) Pending() bool {
	return false
}

func (t *socketTransport) Flush() error {
	return nil
}

func (t *socketTransport) Buffered() int {
	return 0
}

func read(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Read(fd, b)
		switch {
		case err == nil && n == 0 && len(b) > 0:
			return 0, io.EOF
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, wserrors.ErrWouldBlock
		default:
			return 0, os.NewSyscallError("read", err)
		}
	}
}

func write(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Write(fd, b)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, wserrors.ErrWouldBlock
		case errors.Is(err, unix.EPIPE), errors.Is(err, unix.ECONNRESET):
			return 0, io.EOF
		default:
			return 0, os.NewSyscallError("write", err)
		}
	}
}
