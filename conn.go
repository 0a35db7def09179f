package wsio

import (
	"errors"
	"net"
	"time"

	"github.com/Mylifeismyhome/wsio/bytestream"
	"github.com/Mylifeismyhome/wsio/codec/websocket"
	"github.com/Mylifeismyhome/wsio/internal"
	"github.com/Mylifeismyhome/wsio/wserrors"
	"github.com/eapache/queue"
)

// conn is one descriptor managed by the engine.
type conn struct {
	fd    int
	state ConnState
	role  websocket.Role
	addr  net.Addr

	// Client only: the Host header and the TLS server name.
	host       string
	serverName string

	transport internal.Transport
	securing  *internal.TLSHandshake // set while StateSecuring
	handshake *websocket.Handshake
	codec     *websocket.FrameCodec

	in *bytestream.Buffer

	// Serialised frames waiting for the transport. A unit is dequeued only once fully written; offset is the
	// number of bytes of the head unit already written.
	out    *queue.Queue
	offset int

	openDeadline time.Time
	lastRead     time.Time
	lastPing     time.Time
	pingDeadline time.Time // zero while no ping is outstanding

	closeSent     bool
	closeReceived bool
	closeCode     websocket.CloseCode
	closeDeadline time.Time

	// drain tears the connection down once out is empty.
	drain bool
}

// beginClosing moves c to StateClosing. The connection is torn down with code once the peer answers, or once out
// is written if drain is set, but no later than deadline.
func (c *conn) beginClosing(code websocket.CloseCode, drain bool, deadline time.Time) {
	c.state = StateClosing
	c.closeCode = code
	c.drain = drain
	c.closeDeadline = deadline
}

func newListener(fd int, addr net.Addr) *conn {
	return &conn{fd: fd, state: StateListening, role: websocket.RoleServer, addr: addr}
}

func newPeer(fd int, role websocket.Role, addr net.Addr, s *Settings) *conn {
	now := time.Now()
	c := &conn{
		fd:           fd,
		state:        StateHandshaking,
		role:         role,
		addr:         addr,
		handshake:    websocket.NewHandshake(role, s.Extensions),
		codec:        websocket.NewFrameCodec(role, s.MessageLimit),
		in:           bytestream.New(),
		out:          queue.New(),
		openDeadline: now.Add(s.HandshakeTimeout),
		lastRead:     now,
	}
	c.codec.SetAutoMask(role == websocket.RoleClient && s.AutoMask)

	// The upgrade request must fit in a message as well.
	c.in.SetLimit(s.MessageLimit + 64*1024)
	return c
}

func (c *conn) isPeer() bool {
	return c.codec != nil
}

// pending reports whether queued frames or sealed TLS records wait for the transport.
func (c *conn) pending() bool {
	if c.transport != nil && c.transport.Buffered() > 0 {
		return true
	}
	return c.out != nil && c.out.Length() > 0
}

func (c *conn) enqueue(b []byte) {
	c.out.Add(b)
}

// fill reads from the transport until it would block. It returns io.EOF once the peer went away.
func (c *conn) fill(scratch []byte) (n int, err error) {
	for {
		var nn int
		nn, err = c.transport.Read(scratch)
		if nn > 0 {
			if perr := c.in.Push(scratch[:nn]); perr != nil {
				return n, perr
			}
			n += nn
		}
		if err != nil {
			if errors.Is(err, wserrors.ErrWouldBlock) {
				err = nil
			}
			return n, err
		}
		if nn < len(scratch) && !c.transport.Pending() {
			return n, nil
		}
	}
}

// flush writes queued units until the transport would block.
func (c *conn) flush() error {
	if err := c.transport.Flush(); err != nil {
		if errors.Is(err, wserrors.ErrWouldBlock) {
			return nil
		}
		return err
	}
	for c.out.Length() > 0 {
		head := c.out.Peek().([]byte)
		n, err := c.transport.Write(head[c.offset:])
		c.offset += n
		if c.offset == len(head) {
			c.out.Remove()
			c.offset = 0
		}
		if err != nil {
			if errors.Is(err, wserrors.ErrWouldBlock) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (c *conn) discard() {
	switch {
	case c.transport != nil:
		_ = c.transport.Close()
	case c.securing != nil:
		_ = c.securing.Abort()
		c.securing = nil
	default:
		_ = internal.CloseFd(c.fd)
	}
	c.state = StateClosed
	if c.in != nil {
		c.in.Close()
	}
	if c.codec != nil {
		c.codec.Reset()
	}
}
