// Package wsio is a single-threaded WebSocket engine driven by the caller's own loop.
//
// An Engine owns listening and connection descriptors. Every call to Operate performs one non-blocking pass over
// them: it accepts, reads, runs the upgrade handshake or the frame codec, writes what is queued and applies the
// timeout policy. Events are delivered synchronously from within Operate.
package wsio

import (
	"net"

	"github.com/Mylifeismyhome/wsio/codec/websocket"
)

// Event names accepted by Engine.On.
const (
	EventOpen  = "open"
	EventClose = "close"
	EventFrame = "frame"
	EventError = "error"
)

// Mode selects whether connections run over TLS.
type Mode uint8

const (
	ModeUnsecured Mode = iota
	ModeSecured
)

func (m Mode) String() string {
	switch m {
	case ModeUnsecured:
		return "mode_unsecured"
	case ModeSecured:
		return "mode_secured"
	default:
		return "mode_unknown"
	}
}

// ConnState is the lifecycle state of one descriptor.
type ConnState uint8

const (
	// StateClosed is also reported for descriptors the engine does not know.
	StateClosed ConnState = iota

	// StateListening is a descriptor created by Bind.
	StateListening

	// StateConnecting is an outbound connect that has not completed yet.
	StateConnecting

	// StateSecuring is a peer connection running its TLS handshake in the background.
	StateSecuring

	// StateHandshaking is a peer connection exchanging the upgrade request and response.
	StateHandshaking

	StateOpen

	// StateClosing means a close frame is queued or expected. Data frames are no longer delivered.
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateClosed:
		return "state_closed"
	case StateListening:
		return "state_listening"
	case StateConnecting:
		return "state_connecting"
	case StateSecuring:
		return "state_securing"
	case StateHandshaking:
		return "state_handshaking"
	case StateOpen:
		return "state_open"
	case StateClosing:
		return "state_closing"
	default:
		return "state_unknown"
	}
}

// Handler receives the events of an Engine. All methods are called from within Operate, or from Close when it is
// called outside of Operate.
type Handler interface {
	// OnOpen is called once the upgrade handshake of fd completed.
	OnOpen(fd int, addr net.Addr)

	// OnFrame is called for every complete text or binary message. payload is only valid until OnFrame returns.
	// Control frames are handled by the engine and never reach OnFrame.
	OnFrame(fd int, opcode websocket.Opcode, payload []byte)

	// OnClose is called once for every peer connection that goes away, opened or not.
	OnClose(fd int, code websocket.CloseCode)

	// OnError reports a failure that is about to close fd, or -1 when it concerns no single connection.
	OnError(fd int, err error)
}

// HandlerFuncs is a Handler made of optional functions. Nil functions ignore their event.
type HandlerFuncs struct {
	Open  func(fd int, addr net.Addr)
	Frame func(fd int, opcode websocket.Opcode, payload []byte)
	Close func(fd int, code websocket.CloseCode)
	Error func(fd int, err error)
}

var _ Handler = &HandlerFuncs{}

func (h *HandlerFuncs) OnOpen(fd int, addr net.Addr) {
	if h.Open != nil {
		h.Open(fd, addr)
	}
}

func (h *HandlerFuncs) OnFrame(fd int, opcode websocket.Opcode, payload []byte) {
	if h.Frame != nil {
		h.Frame(fd, opcode, payload)
	}
}

func (h *HandlerFuncs) OnClose(fd int, code websocket.CloseCode) {
	if h.Close != nil {
		h.Close(fd, code)
	}
}

func (h *HandlerFuncs) OnError(fd int, err error) {
	if h.Error != nil {
		h.Error(fd, err)
	}
}
