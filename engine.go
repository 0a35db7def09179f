package wsio

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"slices"
	"time"

	"github.com/Mylifeismyhome/wsio/bytestream"
	"github.com/Mylifeismyhome/wsio/codec/websocket"
	"github.com/Mylifeismyhome/wsio/internal"
	"github.com/Mylifeismyhome/wsio/util"
	"github.com/Mylifeismyhome/wsio/wserrors"
	"github.com/Mylifeismyhome/wsio/wsopts"
	"github.com/rs/zerolog"
)

const (
	readBufferSize = 64 * 1024

	// closeWait bounds the closing state when PingTimeout is 0.
	closeWait = 5 * time.Second
)

type polledConn struct {
	c    *conn
	slot int
}

// Engine manages listening and peer connections. It is not safe for concurrent use.
type Engine struct {
	settings Settings
	ready    bool
	log      zerolog.Logger
	tls      *tls.Config

	handler Handler
	funcs   HandlerFuncs

	conns  map[int]*conn
	peers  int
	poller *internal.Poller
	polled []polledConn

	// wake is readable once a background TLS handshake finished.
	wake     *internal.Pipe
	wakeSlot int

	scratch []byte
	wbuf    *bytestream.Buffer

	stats *util.TtyHist
}

func New() *Engine {
	e := &Engine{
		settings: DefaultSettings(),
		conns:    make(map[int]*conn),
		poller:   internal.NewPoller(),
		scratch:  make([]byte, readBufferSize),
		wbuf:     bytestream.New(),
		stats: util.NewTtyHist(util.TtyHistOpts{
			Name:      "operate",
			Scale:     "us",
			Min:       1,
			Max:       10 * 1000 * 1000,
			Precision: 3,
		}),
	}
	e.log = e.settings.Logger
	return e
}

// Setup validates and takes over s. It fails once the engine manages descriptors.
func (e *Engine) Setup(s Settings) error {
	if len(e.conns) > 0 {
		return ErrAlreadySetup
	}
	if err := s.Validate(); err != nil {
		return err
	}
	cfg, err := s.tlsConfig()
	if err != nil {
		return err
	}

	e.settings = s
	e.tls = cfg
	e.log = s.Logger.With().Str("role", s.Role.String()).Logger()
	e.ready = true
	return nil
}

// SetHandler installs h. It takes precedence over the functions registered with On; nil restores them.
func (e *Engine) SetHandler(h Handler) {
	e.handler = h
}

// On registers cb for one of the EventOpen, EventFrame, EventClose or EventError events. cb must have the type of
// the matching HandlerFuncs field.
func (e *Engine) On(event string, cb any) error {
	var ok bool
	switch event {
	case EventOpen:
		e.funcs.Open, ok = cb.(func(int, net.Addr))
	case EventFrame:
		e.funcs.Frame, ok = cb.(func(int, websocket.Opcode, []byte))
	case EventClose:
		e.funcs.Close, ok = cb.(func(int, websocket.CloseCode))
	case EventError:
		e.funcs.Error, ok = cb.(func(int, error))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if !ok {
		return fmt.Errorf("%w: %s got %T", ErrInvalidCallback, event, cb)
	}
	return nil
}

func (e *Engine) dispatch() Handler {
	if e.handler != nil {
		return e.handler
	}
	return &e.funcs
}

// Bind creates a listening descriptor. An empty ip listens on all interfaces.
func (e *Engine) Bind(ip, port string) (int, error) {
	if !e.ready {
		return -1, ErrNotSetup
	}
	if e.settings.Role != websocket.RoleServer {
		return -1, fmt.Errorf("%w: bind needs a server", ErrInvalidSettings)
	}

	fd, addr, err := internal.Listen("tcp", net.JoinHostPort(ip, port), wsopts.ListenDefaults()...)
	if err != nil {
		return -1, err
	}
	e.register(newListener(fd, addr))
	e.log.Debug().Int("fd", fd).Stringer("addr", addr).Msg("listening")
	return fd, nil
}

// Open starts connecting to host:port. The TLS and upgrade handshakes run in the following Operate passes.
func (e *Engine) Open(host, port string) (int, error) {
	if !e.ready {
		return -1, ErrNotSetup
	}
	if e.settings.Role != websocket.RoleClient {
		return -1, fmt.Errorf("%w: open needs a client", ErrInvalidSettings)
	}
	if e.settings.FdLimit > 0 && e.peers >= e.settings.FdLimit {
		return -1, ErrFdLimit
	}

	fd, addr, _, err := internal.Connect("tcp", net.JoinHostPort(host, port), wsopts.ConnDefaults()...)
	if err != nil {
		return -1, err
	}

	c := newPeer(fd, websocket.RoleClient, addr, &e.settings)
	c.state = StateConnecting
	c.host = e.settings.Host
	if c.host == "" {
		c.host = net.JoinHostPort(host, port)
	}
	c.serverName = host
	e.register(c)

	e.log.Debug().Int("fd", fd).Stringer("addr", addr).Msg("connecting")
	return fd, nil
}

// Close tears down fd, or every descriptor when fd is -1. Peer connections report a close event with
// CloseAbnormal unless close frames were exchanged.
func (e *Engine) Close(fd int) {
	if fd == -1 {
		for _, fd := range slices.Sorted(maps.Keys(e.conns)) {
			e.Close(fd)
		}
		return
	}

	c, ok := e.conns[fd]
	if !ok {
		return
	}

	code := websocket.CloseAbnormal
	if c.closeSent && c.closeReceived {
		code = c.closeCode
	}
	if c.state == StateOpen {
		payload := websocket.EncodeCloseFramePayload(websocket.CloseGoingAway, "")
		if e.send(c, websocket.OpcodeClose, payload) == nil {
			_ = c.flush()
		}
	}
	e.teardown(c, code)
}

// Destroy closes every descriptor and wipes the settings.
func (e *Engine) Destroy() {
	e.Close(-1)
	if e.wake != nil {
		_ = e.wake.Close()
		e.wake = nil
	}
	e.settings.Destroy()
	e.ready = false
}

// Emit serialises f and queues it on fd. Either the whole frame is queued or nothing is, and it is written by the
// following Operate passes. Emitting a close frame starts the closing handshake.
func (e *Engine) Emit(fd int, f *websocket.Frame) error {
	c, ok := e.conns[fd]
	if !ok || !c.isPeer() {
		return fmt.Errorf("%w: %d", ErrUnknownFd, fd)
	}
	if c.state != StateOpen {
		return fmt.Errorf("%w: %d is %s", ErrNotOpen, fd, c.state)
	}

	code := websocket.CloseNone
	if f.Opcode().IsClose() {
		var err error
		if code, _, err = websocket.DecodeCloseFramePayload(f.Payload()); err != nil {
			return err
		}
	}

	if err := e.enqueue(c, f); err != nil {
		return err
	}

	if f.Opcode().IsClose() {
		c.closeSent = true
		c.beginClosing(code, false, time.Now().Add(e.closeWait()))
	}
	return nil
}

// State reports the state of fd, StateClosed if the engine does not know it.
func (e *Engine) State(fd int) ConnState {
	if c, ok := e.conns[fd]; ok {
		return c.state
	}
	return StateClosed
}

// Addr returns the local address of a listening descriptor or the peer address of a connection.
func (e *Engine) Addr(fd int) net.Addr {
	if c, ok := e.conns[fd]; ok {
		return c.addr
	}
	return nil
}

// Stats holds the durations of Operate passes in microseconds.
func (e *Engine) Stats() *util.TtyHist {
	return e.stats
}

// Operate performs one pass over all descriptors and reports whether any remain.
func (e *Engine) Operate() bool {
	if len(e.conns) == 0 {
		return false
	}
	start := time.Now()

	timeout := e.settings.PollTimeout
	e.poller.Reset()
	e.polled = e.polled[:0]
	e.wakeSlot = -1
	if e.wake != nil {
		e.wakeSlot = e.poller.Add(e.wake.ReadFd(), false)
	}
	for _, fd := range slices.Sorted(maps.Keys(e.conns)) {
		c := e.conns[fd]
		if c.state == StateSecuring {
			// The handshake goroutine owns the descriptor.
			e.polled = append(e.polled, polledConn{c: c, slot: -1})
			continue
		}
		write := c.state == StateConnecting || c.pending()
		e.polled = append(e.polled, polledConn{c: c, slot: e.poller.Add(fd, write)})
		if c.transport != nil && c.transport.Pending() {
			timeout = 0
		}
	}

	if _, err := e.poller.Wait(timeout); err != nil {
		e.log.Error().Err(err).Msg("poll failed")
		e.dispatch().OnError(-1, err)
	}
	if e.wakeSlot >= 0 && e.poller.Readable(e.wakeSlot) {
		e.wake.Drain()
	}

	for _, p := range e.polled {
		c := p.c
		if !e.owns(c) {
			continue
		}

		switch c.state {
		case StateListening:
			if e.poller.Readable(p.slot) {
				e.accept(c)
			}
		case StateConnecting:
			if e.poller.Writable(p.slot) {
				e.connected(c)
			}
		case StateSecuring:
			if c.securing.Done() {
				e.secured(c)
			}
		default:
			if e.poller.Readable(p.slot) || c.transport.Pending() {
				e.read(c)
			}
			if e.owns(c) && (c.pending() || c.drain) {
				e.write(c)
			}
		}
	}

	e.expire(time.Now())

	e.stats.AddDuration(time.Since(start))
	return len(e.conns) > 0
}

// owns reports whether c is still managed. Callbacks may close connections in the middle of a pass.
func (e *Engine) owns(c *conn) bool {
	return e.conns[c.fd] == c
}

func (e *Engine) register(c *conn) {
	e.conns[c.fd] = c
	if c.isPeer() {
		e.peers++
		connectionsOpen.Inc()
	}
}

func (e *Engine) teardown(c *conn, code websocket.CloseCode) {
	if !e.owns(c) {
		return
	}
	delete(e.conns, c.fd)

	peer := c.isPeer()
	c.discard()
	if !peer {
		e.log.Debug().Int("fd", c.fd).Msg("listener closed")
		return
	}

	e.peers--
	connectionsOpen.Dec()
	recordClosure(code)

	e.log.Debug().Int("fd", c.fd).Int("code", int(code)).Msg("connection closed")
	e.dispatch().OnClose(c.fd, code)
}

// fail reports err and tears c down without a closing handshake.
func (e *Engine) fail(c *conn, err error, code websocket.CloseCode) {
	e.log.Error().Int("fd", c.fd).Str("state", c.state.String()).Err(err).Msg("connection failed")
	e.dispatch().OnError(c.fd, err)
	e.teardown(c, code)
}

// protocolError reports err and closes c with the matching close code, sending a close frame if c is open.
func (e *Engine) protocolError(c *conn, err error) {
	code := websocket.CloseCodeOf(err)
	e.log.Warn().Int("fd", c.fd).Str("state", c.state.String()).Int("code", int(code)).Err(err).Msg("protocol error")
	e.dispatch().OnError(c.fd, err)
	if !e.owns(c) {
		return
	}

	if c.handshake.Done() && !c.closeSent {
		if e.send(c, websocket.OpcodeClose, websocket.EncodeCloseFramePayload(code, "")) == nil {
			c.closeSent = true
			c.beginClosing(code, true, time.Now().Add(e.closeWait()))
			return
		}
	}
	e.teardown(c, code)
}

func (e *Engine) closeWait() time.Duration {
	if e.settings.PingTimeout > 0 {
		return e.settings.PingTimeout
	}
	return closeWait
}

func (e *Engine) accept(l *conn) {
	for {
		fd, addr, err := internal.Accept(l.fd, wsopts.ConnDefaults()...)
		if err != nil {
			if !errors.Is(err, wserrors.ErrWouldBlock) {
				e.log.Error().Int("fd", l.fd).Err(err).Msg("accept failed")
				e.dispatch().OnError(l.fd, err)
			}
			return
		}

		if e.settings.FdLimit > 0 && e.peers >= e.settings.FdLimit {
			e.log.Warn().Int("fd", fd).Int("limit", e.settings.FdLimit).Msg("descriptor limit reached, rejecting")
			_ = internal.CloseFd(fd)
			continue
		}

		c := newPeer(fd, websocket.RoleServer, addr, &e.settings)
		e.register(c)
		e.log.Debug().Int("fd", fd).Stringer("addr", addr).Msg("accepted")

		e.secure(c)
	}
}

// secure moves a connected peer on to the upgrade handshake, in secured mode after a TLS handshake that runs in
// the background.
func (e *Engine) secure(c *conn) {
	if e.tls == nil {
		c.transport = internal.NewSocketTransport(c.fd)
		e.upgrade(c)
		return
	}

	if e.wake == nil {
		wake, err := internal.NewPipe()
		if err != nil {
			e.fail(c, err, websocket.CloseInternalError)
			return
		}
		e.wake = wake
	}

	cfg := e.tls
	server := c.role == websocket.RoleServer
	if !server && cfg.ServerName == "" {
		cfg = cfg.Clone()
		cfg.ServerName = c.serverName
	}

	c.state = StateSecuring
	c.securing = internal.StartTLS(c.fd, cfg, server, e.settings.HandshakeTimeout, e.wake.Notify)
}

// secured takes over the descriptor of a finished TLS handshake.
func (e *Engine) secured(c *conn) {
	transport, err := c.securing.Transport()
	if err != nil {
		handshakeFailures.Inc()
		e.fail(c, fmt.Errorf("tls handshake: %w", err), websocket.CloseTLSHandshake)
		return
	}
	c.securing = nil
	c.transport = transport
	e.log.Debug().Int("fd", c.fd).Msg("tls established")
	e.upgrade(c)
}

// connected finishes an outbound connect.
func (e *Engine) connected(c *conn) {
	if err := internal.ConnectResult(c.fd); err != nil {
		e.fail(c, err, websocket.CloseAbnormal)
		return
	}
	e.secure(c)
}

// upgrade starts the upgrade handshake. A client sends its request, a server waits for one.
func (e *Engine) upgrade(c *conn) {
	c.state = StateHandshaking
	c.lastRead = time.Now()
	if c.role == websocket.RoleServer {
		return
	}

	e.wbuf.Flush()
	if err := c.handshake.Start(c.host, e.settings.AllowedOrigin, e.settings.Resource, e.wbuf); err != nil {
		e.fail(c, err, websocket.CloseInternalError)
		return
	}
	c.enqueue(bytes.Clone(e.wbuf.Bytes()))
	e.write(c)
}

func (e *Engine) read(c *conn) {
	n, err := c.fill(e.scratch)
	if n > 0 {
		c.lastRead = time.Now()
	}

	// Bytes that arrived before EOF are processed first so a trailing close frame is honoured.
	if c.state == StateHandshaking {
		e.advance(c)
	}
	if e.owns(c) && c.handshake.Done() && !c.drain {
		e.decode(c)
	}
	if !e.owns(c) || err == nil {
		return
	}

	switch {
	case errors.Is(err, io.EOF):
		code := websocket.CloseAbnormal
		if c.closeSent && c.closeReceived {
			code = c.closeCode
		}
		e.teardown(c, code)
	case errors.Is(err, bytestream.ErrOutOfMemory):
		e.protocolError(c, fmt.Errorf("%w: %w", websocket.ErrMessageTooBig, err))
	default:
		e.fail(c, err, websocket.CloseAbnormal)
	}
}

// advance feeds buffered bytes to the upgrade handshake.
func (e *Engine) advance(c *conn) {
	e.wbuf.Flush()
	err := c.handshake.Advance(e.settings.Host, e.settings.AllowedOrigin, c.in, e.wbuf)
	if e.wbuf.Size() > 0 {
		c.enqueue(bytes.Clone(e.wbuf.Bytes()))
		e.wbuf.Flush()
	}

	switch {
	case errors.Is(err, wserrors.ErrNeedMore):
		return
	case err != nil:
		handshakeFailures.Inc()
		e.log.Warn().Int("fd", c.fd).Err(err).Msg("handshake failed")
		e.dispatch().OnError(c.fd, err)
		if !e.owns(c) {
			return
		}
		if c.pending() {
			c.beginClosing(websocket.CloseProtocolError, true, time.Now().Add(e.closeWait()))
			return
		}
		e.teardown(c, websocket.CloseProtocolError)
		return
	}

	c.codec.SetDeflate(c.handshake.Negotiated().DeflateBits())
	c.state = StateOpen
	c.lastPing = time.Now()

	e.log.Debug().
		Int("fd", c.fd).
		Int("deflate", c.handshake.Negotiated().DeflateBits()).
		Msg("connection open")
	e.dispatch().OnOpen(c.fd, c.addr)
}

// decode delivers every complete frame buffered on c.
func (e *Engine) decode(c *conn) {
	for e.owns(c) && !c.drain && c.in.Size() > 0 {
		f, status, err := c.codec.Decode(c.in)
		if status == websocket.StatusIncomplete {
			return
		}
		if err != nil {
			e.protocolError(c, err)
			return
		}
		if status == websocket.StatusFragment {
			continue
		}

		framesReceived.WithLabelValues(f.Opcode().String()).Inc()
		e.onFrame(c, f)
	}
}

func (e *Engine) onFrame(c *conn, f *websocket.Frame) {
	switch op := f.Opcode(); {
	case op.IsPing():
		if c.state == StateOpen {
			if err := e.send(c, websocket.OpcodePong, f.Payload()); err != nil {
				e.protocolError(c, err)
			}
		}
	case op.IsPong():
		c.pingDeadline = time.Time{}
	case op.IsClose():
		e.onClose(c, f)
	default:
		if c.state == StateOpen {
			e.dispatch().OnFrame(c.fd, op, f.Payload())
		}
	}
}

func (e *Engine) onClose(c *conn, f *websocket.Frame) {
	code, reason, err := websocket.DecodeCloseFramePayload(f.Payload())
	if err != nil {
		e.protocolError(c, err)
		return
	}
	c.closeReceived = true

	e.log.Debug().Int("fd", c.fd).Int("code", int(code)).Str("reason", reason).Msg("close received")

	if c.closeSent {
		e.teardown(c, code)
		return
	}

	echo := code
	if echo == websocket.CloseNoStatus {
		echo = websocket.CloseNone
	}
	if err := e.send(c, websocket.OpcodeClose, websocket.EncodeCloseFramePayload(echo, "")); err != nil {
		e.teardown(c, code)
		return
	}
	c.closeSent = true
	c.beginClosing(code, true, time.Now().Add(e.closeWait()))
}

func (e *Engine) send(c *conn, opcode websocket.Opcode, payload []byte) error {
	f := websocket.AcquireFrame()
	defer websocket.ReleaseFrame(f)

	f.SetOpcode(opcode)
	if err := f.Push(payload); err != nil {
		return err
	}
	return e.enqueue(c, f)
}

// enqueue serialises f into one unit of c's outbound queue.
func (e *Engine) enqueue(c *conn, f *websocket.Frame) error {
	e.wbuf.Flush()
	if err := c.codec.Encode(f, e.wbuf); err != nil {
		return err
	}
	c.enqueue(bytes.Clone(e.wbuf.Bytes()))
	e.wbuf.Flush()

	framesSent.WithLabelValues(f.Opcode().String()).Inc()
	return nil
}

func (e *Engine) write(c *conn) {
	if err := c.flush(); err != nil {
		e.fail(c, err, websocket.CloseAbnormal)
		return
	}
	if c.drain && !c.pending() {
		e.teardown(c, c.closeCode)
	}
}

// expire applies the read, ping and closing timeouts.
func (e *Engine) expire(now time.Time) {
	s := &e.settings
	for _, p := range e.polled {
		c := p.c
		if !e.owns(c) || !c.isPeer() {
			continue
		}

		switch {
		case c.state == StateClosing && now.After(c.closeDeadline):
			e.fail(c, ErrCloseTimeout, websocket.CloseAbnormal)

		case c.state == StateSecuring && now.After(c.openDeadline):
			handshakeFailures.Inc()
			e.fail(c, ErrHandshakeTimeout, websocket.CloseTLSHandshake)

		case (c.state == StateConnecting || c.state == StateHandshaking) && now.After(c.openDeadline):
			handshakeFailures.Inc()
			e.fail(c, ErrHandshakeTimeout, websocket.CloseAbnormal)

		case s.ReadTimeout > 0 && c.state != StateClosing && now.Sub(c.lastRead) > s.ReadTimeout:
			e.fail(c, ErrReadTimeout, websocket.CloseAbnormal)

		case c.state == StateOpen && !c.pingDeadline.IsZero() && now.After(c.pingDeadline):
			e.fail(c, ErrPingTimeout, websocket.CloseAbnormal)

		case c.state == StateOpen && s.PingInterval > 0 && c.pingDeadline.IsZero() &&
			now.Sub(c.lastPing) >= s.PingInterval:
			if err := e.send(c, websocket.OpcodePing, nil); err != nil {
				e.protocolError(c, err)
				continue
			}
			c.lastPing = now
			if s.PingTimeout > 0 {
				c.pingDeadline = now.Add(s.PingTimeout)
			}
			e.write(c)
		}
	}
}
