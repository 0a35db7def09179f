package websocket

// MaxMessageSize is the default cap on a reassembled message.
const MaxMessageSize = 4 * 1024 * 1024

type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "role_client"
	case RoleServer:
		return "role_server"
	default:
		return "role_unknown"
	}
}

// FrameStatus is the outcome of decoding one frame.
type FrameStatus uint8

const (
	// StatusOK means a self-contained frame was decoded.
	StatusOK FrameStatus = iota

	// StatusError means the frame could not be processed, e.g. it exceeds the message limit.
	StatusError

	// StatusInvalidData means the frame violates the protocol.
	StatusInvalidData

	// StatusIncomplete means more bytes are needed. Nothing was consumed.
	StatusIncomplete

	// StatusFragment means a non-final fragment of a data message was decoded.
	StatusFragment

	// StatusFinal means the last fragment arrived and the message is reassembled.
	StatusFinal
)

func (s FrameStatus) String() string {
	switch s {
	case StatusOK:
		return "status_ok"
	case StatusError:
		return "status_error"
	case StatusInvalidData:
		return "status_invalid_data"
	case StatusIncomplete:
		return "status_incomplete"
	case StatusFragment:
		return "status_fragment"
	case StatusFinal:
		return "status_final"
	default:
		return "status_unknown"
	}
}

// HandshakeState tracks the upgrade exchange of one connection.
type HandshakeState uint8

const (
	HandshakeIdle HandshakeState = iota

	// client only: the upgrade request is written.
	HandshakeRequestSent

	// server only: a complete upgrade request is buffered.
	HandshakeRequestReceived

	HandshakeValidated
	HandshakeNegotiated

	// terminal: frames may flow.
	HandshakeComplete

	// terminal: the peer failed validation.
	HandshakeRejected
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeIdle:
		return "idle"
	case HandshakeRequestSent:
		return "request_sent"
	case HandshakeRequestReceived:
		return "request_received"
	case HandshakeValidated:
		return "validated"
	case HandshakeNegotiated:
		return "negotiated"
	case HandshakeComplete:
		return "complete"
	case HandshakeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
