//go:build darwin || netbsd || freebsd || openbsd || dragonfly || linux

package internal

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// Pipe wakes a poll from another goroutine. Both ends are non-blocking.
type Pipe struct {
	pipe [2]int
}

func NewPipe() (*Pipe, error) {
	p := &Pipe{}
	if err := unix.Pipe(p.pipe[:]); err != nil {
		return nil, os.NewSyscallError("pipe", err)
	}
	for _, fd := range p.pipe {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = p.Close()
			return nil, os.NewSyscallError("pipe set_nonblock", err)
		}
	}
	return p, nil
}

// Notify makes ReadFd readable. A full pipe is already readable, so would-block is ignored.
func (p *Pipe) Notify() {
	for {
		_, err := unix.Write(p.pipe[1], []byte{1})
		if !errors.Is(err, unix.EINTR) {
			return
		}
	}
}

// Drain consumes every pending notification.
func (p *Pipe) Drain() {
	var b [64]byte
	for {
		n, err := unix.Read(p.pipe[0], b[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil || n < len(b) {
			return
		}
	}
}

func (p *Pipe) ReadFd() int {
	return p.pipe[0]
}

func (p *Pipe) Close() error {
	if err := unix.Close(p.pipe[0]); err != nil {
		return err
	}
	return unix.Close(p.pipe[1])
}
