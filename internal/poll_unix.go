//go:build darwin || netbsd || freebsd || openbsd || dragonfly || linux

package internal

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const (
	pollReadable = unix.POLLIN | unix.POLLHUP | unix.POLLERR
	pollWritable = unix.POLLOUT | unix.POLLHUP | unix.POLLERR
)

// Poller waits for readiness on a set of file descriptors that is rebuilt before every wait.
type Poller struct {
	fds []unix.PollFd
}

func NewPoller() *Poller {
	return &Poller{fds: make([]unix.PollFd, 0, 64)}
}

func (p *Poller) Reset() {
	p.fds = p.fds[:0]
}

// Add registers fd for read readiness, and for write readiness if write is set. It returns the slot index.
func (p *Poller) Add(fd int, write bool) int {
	events := int16(unix.POLLIN)
	if write {
		events |= unix.POLLOUT
	}
	p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: events})
	return len(p.fds) - 1
}

func (p *Poller) Len() int {
	return len(p.fds)
}

// Wait blocks for at most timeout. A zero timeout only checks readiness. It returns the number of ready slots.
func (p *Poller) Wait(timeout time.Duration) (int, error) {
	if len(p.fds) == 0 {
		return 0, nil
	}
	n, err := unix.Poll(p.fds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, os.NewSyscallError("poll", err)
	}
	return n, nil
}

func (p *Poller) Readable(i int) bool {
	return p.fds[i].Revents&pollReadable != 0
}

func (p *Poller) Writable(i int) bool {
	return p.fds[i].Revents&pollWritable != 0
}

// WaitFd blocks until fd is ready for reading, or writing if write is set, or the timeout expires.
func WaitFd(fd int, write bool, timeout time.Duration) (bool, error) {
	events := int16(unix.POLLIN)
	if write {
		events = unix.POLLOUT
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining < 0 {
			return false, nil
		}
		n, err := unix.Poll(fds, int(remaining.Milliseconds())+1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return false, os.NewSyscallError("poll", err)
		}
		return n > 0, nil
	}
}
