//go:build darwin || netbsd || freebsd || openbsd || dragonfly || linux

package internal

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/Mylifeismyhome/wsio/wserrors"
	"github.com/Mylifeismyhome/wsio/wsopts"
	"golang.org/x/sys/unix"
)

var (
	ListenBacklog int = 2048

	errUnknownNetwork = errors.New("unknown network argument")
)

func CreateSocket(addr *net.TCPAddr) (int, error) {
	domain := unix.AF_INET
	if addr.IP != nil && addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)
	return fd, nil
}

func resolve(network, addr string) (*net.TCPAddr, error) {
	if len(network) < 3 || network[:3] != "tcp" {
		return nil, fmt.Errorf("%w: %s", errUnknownNetwork, network)
	}
	return net.ResolveTCPAddr(network, addr)
}

// Connect starts a non-blocking connect to addr. When inProgress is true the caller has to wait for the socket to
// become writable and then check ConnectResult.
func Connect(network, addr string, opts ...wsopts.Option) (fd int, remoteAddr net.Addr, inProgress bool, err error) {
	tcpAddr, err := resolve(network, addr)
	if err != nil {
		return -1, nil, false, err
	}

	fd, err = CreateSocket(tcpAddr)
	if err != nil {
		return -1, nil, false, err
	}

	if err = ApplyOpts(fd, opts...); err != nil {
		_ = unix.Close(fd)
		return -1, nil, false, err
	}

	err = unix.Connect(fd, ToSockaddr(tcpAddr))
	switch {
	case err == nil:
		return fd, tcpAddr, false, nil
	case errors.Is(err, unix.EINPROGRESS), errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		// https://man7.org/linux/man-pages/man2/connect.2.html#EINPROGRESS
		return fd, tcpAddr, true, nil
	default:
		_ = unix.Close(fd)
		if errors.Is(err, unix.ECONNREFUSED) {
			return -1, nil, false, wserrors.ErrConnRefused
		}
		return -1, nil, false, os.NewSyscallError("connect", err)
	}
}

// ConnectResult reports the outcome of a non-blocking connect once the socket is writable.
func ConnectResult(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return os.NewSyscallError("getsockopt", err)
	}
	switch unix.Errno(errno) {
	case 0:
		return nil
	case unix.ECONNREFUSED:
		return wserrors.ErrConnRefused
	default:
		return os.NewSyscallError("connect", unix.Errno(errno))
	}
}

func Listen(network, addr string, opts ...wsopts.Option) (fd int, localAddr net.Addr, err error) {
	tcpAddr, err := resolve(network, addr)
	if err != nil {
		return -1, nil, err
	}

	fd, err = CreateSocket(tcpAddr)
	if err != nil {
		return -1, nil, err
	}

	if err := ApplyOpts(fd, opts...); err != nil {
		_ = unix.Close(fd)
		return -1, nil, err
	}

	if err := unix.Bind(fd, ToSockaddr(tcpAddr)); err != nil {
		_ = unix.Close(fd)
		return -1, nil, os.NewSyscallError("bind", err)
	}

	if err := unix.Listen(fd, ListenBacklog); err != nil {
		_ = unix.Close(fd)
		return -1, nil, os.NewSyscallError("listen", err)
	}

	localAddr, err = SocketAddress(fd)
	if err != nil {
		_ = unix.Close(fd)
		return -1, nil, err
	}
	return fd, localAddr, nil
}

// Accept returns wserrors.ErrWouldBlock when no connection is pending.
func Accept(fd int, opts ...wsopts.Option) (int, net.Addr, error) {
	nfd, sa, err := unix.Accept(fd)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) || errors.Is(err, unix.ECONNABORTED) {
			return -1, nil, wserrors.ErrWouldBlock
		}
		return -1, nil, os.NewSyscallError("accept", err)
	}
	unix.CloseOnExec(nfd)

	if err := ApplyOpts(nfd, opts...); err != nil {
		_ = unix.Close(nfd)
		return -1, nil, err
	}
	return nfd, FromSockaddr(sa), nil
}

func ApplyOpts(fd int, opts ...wsopts.Option) error {
	for _, opt := range opts {
		v := opt.Value().(bool)

		iv := 0
		if v {
			iv = 1
		}

		switch t := opt.Type(); t {
		case wsopts.TypeNonblocking:
			if err := unix.SetNonblock(fd, v); err != nil {
				return os.NewSyscallError(fmt.Sprintf("set_nonblock(%v)", v), err)
			}
		case wsopts.TypeReusePort:
			if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, iv); err != nil {
				return os.NewSyscallError(fmt.Sprintf("reuse_port(%v)", v), err)
			}
		case wsopts.TypeReuseAddr:
			if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, iv); err != nil {
				return os.NewSyscallError(fmt.Sprintf("reuse_address(%v)", v), err)
			}
		case wsopts.TypeNoDelay:
			if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, iv); err != nil {
				return os.NewSyscallError(fmt.Sprintf("tcp_no_delay(%v)", v), err)
			}
		default:
			return fmt.Errorf("unsupported socket option %s", t)
		}
	}

	return nil
}

func SocketAddress(fd int) (net.Addr, error) {
	addr, err := unix.Getsockname(fd)
	if err != nil {
		return nil, os.NewSyscallError("getsockname", err)
	}
	return FromSockaddr(addr), nil
}

func PeerAddress(fd int) (net.Addr, error) {
	addr, err := unix.Getpeername(fd)
	if err != nil {
		return nil, os.NewSyscallError("getpeername", err)
	}
	return FromSockaddr(addr), nil
}

func CloseFd(fd int) error {
	return unix.Close(fd)
}
