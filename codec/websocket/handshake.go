package websocket

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/Mylifeismyhome/wsio/bytestream"
	"github.com/Mylifeismyhome/wsio/codec/http"
	"github.com/Mylifeismyhome/wsio/wserrors"
)

const keyLength = 16

// Create writes a client upgrade request for resource into output and returns the Sec-WebSocket-Accept value the
// server has to answer with.
func Create(host, origin, resource string, output *bytestream.Buffer, ext Extensions) (acceptKey string, err error) {
	key, err := Random(keyLength)
	if err != nil {
		return "", err
	}

	if resource == "" {
		resource = "/"
	}

	req := http.NewMessage()
	req.Method = http.Get
	req.Resource = resource
	req.Version = http.Version11
	req.Header.Add("Host", host)
	req.Header.Add("Upgrade", "websocket")
	req.Header.Add("Connection", "Upgrade")
	req.Header.Add("Sec-WebSocket-Key", key)
	req.Header.Add("Sec-WebSocket-Version", Version)
	if origin != "" {
		req.Header.Add("Origin", origin)
	}
	if offer := ext.offer(); offer != "" {
		req.Header.Add("Sec-WebSocket-Extensions", offer)
	}

	if err := http.EncodeRequest(req, output); err != nil {
		return "", err
	}
	return Secret(key), nil
}

// Client validates the server's upgrade response at the front of input. ext holds what the client offered on
// entry and what the server granted on return.
//
// It returns the number of bytes the response occupies. wserrors.ErrNeedMore means the response is incomplete.
func Client(acceptKey string, input *bytestream.Buffer, ext *Extensions) (n int, err error) {
	res := http.NewMessage()
	if n, err = readMessage(input, res); err != nil {
		return n, err
	}
	if err = validateResponse(acceptKey, res); err != nil {
		return n, err
	}
	if ext != nil {
		*ext = accept(*ext, res.Header.Get("Sec-WebSocket-Extensions"))
	}
	return n, nil
}

// Server validates a client upgrade request at the front of input and writes the response into output.
//
// host and origin are checked against the request when non-empty. server lists what this endpoint supports,
// client receives what was granted. On rejection a 400 Bad Request is written and the returned error wraps
// ErrCannotUpgrade. wserrors.ErrNeedMore means the request is incomplete and nothing was written.
func Server(host, origin string, input, output *bytestream.Buffer, server Extensions, client *Extensions) (n int, err error) {
	req := http.NewMessage()
	if n, err = readMessage(input, req); err != nil {
		if errors.Is(err, wserrors.ErrNeedMore) {
			return n, err
		}
		return n, reject(output, err)
	}
	if err = validateRequest(host, origin, req); err != nil {
		return n, reject(output, err)
	}

	granted, response := negotiate(server, req.Header.Get("Sec-WebSocket-Extensions"))
	if err = writeAccept(req, response, output); err != nil {
		return n, err
	}
	if client != nil {
		*client = granted
	}
	return n, nil
}

func readMessage(input *bytestream.Buffer, msg *http.Message) (int, error) {
	n, err := http.Parse(input, msg)
	if err != nil {
		if errors.Is(err, wserrors.ErrNeedMore) {
			return 0, err
		}
		return n, fmt.Errorf("%w: %w", ErrCannotUpgrade, err)
	}
	return n, nil
}

func validateResponse(acceptKey string, res *http.Message) error {
	switch {
	case res.IsRequest():
		return fmt.Errorf("%w: expected a response", ErrCannotUpgrade)
	case res.StatusCode != http.StatusSwitchingProtocols:
		return fmt.Errorf("%w: status %d %s", ErrCannotUpgrade, res.StatusCode, res.Reason)
	case !strings.EqualFold(res.Header.Get("Upgrade"), "websocket"):
		return fmt.Errorf("%w: missing Upgrade: websocket", ErrCannotUpgrade)
	case !http.HeaderContainsToken(res.Header.Get("Connection"), "Upgrade"):
		return fmt.Errorf("%w: missing Connection: Upgrade", ErrCannotUpgrade)
	case !res.Header.Has("Sec-WebSocket-Accept"):
		return fmt.Errorf("%w: missing Sec-WebSocket-Accept", ErrCannotUpgrade)
	case res.Header.Get("Sec-WebSocket-Accept") != acceptKey:
		return fmt.Errorf("%w: Sec-WebSocket-Accept mismatch", ErrCannotUpgrade)
	}
	return nil
}

func validateRequest(host, origin string, req *http.Message) error {
	switch {
	case !req.IsRequest():
		return errors.New("expected a request")
	case req.Method != http.Get:
		return fmt.Errorf("method %s", req.Method)
	case !strings.EqualFold(req.Header.Get("Upgrade"), "websocket"):
		return errors.New("missing Upgrade: websocket")
	case !http.HeaderContainsToken(req.Header.Get("Connection"), "Upgrade"):
		return errors.New("missing Connection: Upgrade")
	case req.Header.Get("Sec-WebSocket-Key") == "":
		return errors.New("missing Sec-WebSocket-Key")
	case req.Header.Get("Sec-WebSocket-Version") != Version:
		return fmt.Errorf("unsupported version %q", req.Header.Get("Sec-WebSocket-Version"))
	case host != "" && !hostMatches(req.Header.Get("Host"), host):
		return fmt.Errorf("host %q not served", req.Header.Get("Host"))
	case origin != "" && req.Header.Get("Origin") != origin:
		return fmt.Errorf("origin %q not allowed", req.Header.Get("Origin"))
	}
	return nil
}

func writeAccept(req *http.Message, extensions string, output *bytestream.Buffer) error {
	res := http.NewMessage()
	res.StatusCode = http.StatusSwitchingProtocols
	res.Header.Add("Upgrade", "websocket")
	res.Header.Add("Connection", "Upgrade")
	res.Header.Add("Sec-WebSocket-Accept", Secret(req.Header.Get("Sec-WebSocket-Key")))
	if extensions != "" {
		res.Header.Add("Sec-WebSocket-Extensions", extensions)
	}
	return http.EncodeResponse(res, output)
}

// reject writes a 400 Bad Request; an error that is not already an upgrade failure is wrapped in one.
func reject(output *bytestream.Buffer, cause error) error {
	_ = http.Respond(http.StatusBadRequest, output)
	if errors.Is(cause, ErrCannotUpgrade) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrCannotUpgrade, cause)
}

func hostMatches(header, host string) bool {
	if strings.EqualFold(header, host) {
		return true
	}
	if h, _, err := net.SplitHostPort(header); err == nil {
		return strings.EqualFold(h, host)
	}
	return false
}

// Handshake drives the upgrade exchange of one connection through its states.
type Handshake struct {
	role  Role
	state HandshakeState

	msg       *http.Message
	acceptKey string

	own     Extensions
	granted Extensions
}

func NewHandshake(role Role, own Extensions) *Handshake {
	return &Handshake{
		role: role,
		msg:  http.NewMessage(),
		own:  own,
	}
}

func (h *Handshake) Role() Role             { return h.role }
func (h *Handshake) State() HandshakeState  { return h.state }
func (h *Handshake) Done() bool             { return h.state == HandshakeComplete }
func (h *Handshake) Rejected() bool         { return h.state == HandshakeRejected }
func (h *Handshake) Own() Extensions        { return h.own }
func (h *Handshake) Negotiated() Extensions { return h.granted }

// Start writes the client's upgrade request.
func (h *Handshake) Start(host, origin, resource string, output *bytestream.Buffer) (err error) {
	if h.role != RoleClient || h.state != HandshakeIdle {
		return ErrWrongHandshakeState
	}
	if h.acceptKey, err = Create(host, origin, resource, output, h.own); err != nil {
		h.state = HandshakeRejected
		return err
	}
	h.state = HandshakeRequestSent
	return nil
}

// Advance consumes the peer's half of the exchange from input. A server writes its response, or its rejection,
// into output.
//
// It returns wserrors.ErrNeedMore until the peer's message is complete. Bytes following the peer's message stay
// in input.
func (h *Handshake) Advance(host, origin string, input, output *bytestream.Buffer) error {
	switch {
	case h.role == RoleClient && h.state == HandshakeRequestSent:
		return h.advanceClient(input)
	case h.role == RoleServer && h.state == HandshakeIdle:
		return h.advanceServer(host, origin, input, output)
	default:
		return ErrWrongHandshakeState
	}
}

func (h *Handshake) advanceClient(input *bytestream.Buffer) error {
	n, err := readMessage(input, h.msg)
	if errors.Is(err, wserrors.ErrNeedMore) {
		return err
	}
	_ = input.Pop(n)
	if err == nil {
		err = validateResponse(h.acceptKey, h.msg)
	}
	if err != nil {
		h.state = HandshakeRejected
		return err
	}
	h.state = HandshakeValidated

	h.granted = accept(h.own, h.msg.Header.Get("Sec-WebSocket-Extensions"))
	h.state = HandshakeNegotiated

	h.msg.Reset()
	h.state = HandshakeComplete
	return nil
}

func (h *Handshake) advanceServer(host, origin string, input, output *bytestream.Buffer) error {
	n, err := readMessage(input, h.msg)
	if errors.Is(err, wserrors.ErrNeedMore) {
		return err
	}
	_ = input.Pop(n)
	h.state = HandshakeRequestReceived

	if err == nil {
		err = validateRequest(host, origin, h.msg)
	}
	if err != nil {
		h.state = HandshakeRejected
		return reject(output, err)
	}
	h.state = HandshakeValidated

	granted, response := negotiate(h.own, h.msg.Header.Get("Sec-WebSocket-Extensions"))
	h.state = HandshakeNegotiated

	if err := writeAccept(h.msg, response, output); err != nil {
		h.state = HandshakeRejected
		return err
	}
	h.granted = granted
	h.msg.Reset()
	h.state = HandshakeComplete
	return nil
}
