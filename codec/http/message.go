package http

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/Mylifeismyhome/wsio/bytestream"
	"github.com/valyala/bytebufferpool"
)

type decodeState uint8

const (
	stateFirstLine decodeState = iota
	stateHeader
	stateBody
	stateDone
)

// Message is either a request (Method set) or a response (StatusCode set).
type Message struct {
	Method   Method
	Resource string
	Version  Version

	StatusCode Status
	Reason     string

	Header Header
	Body   []byte
}

func NewMessage() *Message {
	return &Message{Header: NewHeader()}
}

func (m *Message) IsRequest() bool {
	return m.Method != ""
}

func (m *Message) Reset() {
	m.Method = ""
	m.Resource = ""
	m.Version = VersionUnknown
	m.StatusCode = 0
	m.Reason = ""
	m.Header.Reset()
	m.Body = m.Body[:0]
}

// Parse decodes one request or response from the front of input into msg without consuming input.
//
// It returns the number of bytes the message occupies, header block and body included. ErrNoHTTPHeader
// and ErrIncompleteBody mean the message is not complete yet; retry once more bytes are buffered.
func Parse(input *bytestream.Buffer, msg *Message) (n int, err error) {
	if msg.Header == nil {
		msg.Header = NewHeader()
	}
	msg.Reset()

	end := input.IndexOfPattern(headerEnd, 0, bytestream.NPos)
	if end == bytestream.NPos {
		return 0, ErrNoHTTPHeader
	}

	var (
		state = stateFirstLine
		head  = input.Bytes()[:end]
		line  []byte

		key, value []byte
		length     int
	)
	n = end + len(headerEnd)

prepareDecode:
	if err != nil {
		goto done
	}

	switch state {
	case stateFirstLine:
		goto decodeFirstLine
	case stateHeader:
		goto decodeHeader
	case stateBody:
		goto decodeBody
	default:
		goto done
	}

decodeFirstLine:
	line, head = nextLine(head)
	if bytes.HasPrefix(line, []byte("HTTP/")) {
		err = decodeStatusLine(line, msg)
	} else {
		err = decodeRequestLine(line, msg)
	}
	state = stateHeader
	goto prepareDecode

decodeHeader:
	if len(head) == 0 {
		if ExpectBody(msg.Header) {
			state = stateBody
		} else {
			state = stateDone
		}
		goto prepareDecode
	}
	line, head = nextLine(head)
	key, value, err = DecodeHeaderLine(line)
	if err == nil {
		msg.Header.Add(string(key), string(value))
	}
	goto prepareDecode

decodeBody:
	length, err = strconv.Atoi(msg.Header.Get("Content-Length"))
	if err != nil || length < 0 {
		err = fmt.Errorf("%w: %q", ErrInvalidLength, msg.Header.Get("Content-Length"))
	} else if input.Size()-n < length {
		err = ErrIncompleteBody
	} else {
		msg.Body = append(msg.Body, input.Bytes()[n:n+length]...)
		n += length
		state = stateDone
	}
	goto prepareDecode

done:
	if err != nil {
		return 0, err
	}
	return n, nil
}

func nextLine(b []byte) (line, rest []byte) {
	if i := bytes.Index(b, []byte(CLRF)); i >= 0 {
		return b[:i], b[i+len(CLRF):]
	}
	return b, nil
}

func decodeRequestLine(line []byte, msg *Message) (err error) {
	tokens := bytes.Fields(line)
	if len(tokens) != 3 {
		return fmt.Errorf("%w: %q", ErrNoHTTPFormat, line)
	}
	if msg.Method, err = ParseMethodFromBytes(tokens[0]); err != nil {
		return fmt.Errorf("%w: method %q", err, tokens[0])
	}
	msg.Resource = string(tokens[1])
	if msg.Version, err = ParseVersionFromBytes(tokens[2]); err != nil {
		return fmt.Errorf("%w: %q", err, tokens[2])
	}
	return nil
}

func decodeStatusLine(line []byte, msg *Message) (err error) {
	tokens := bytes.SplitN(line, []byte(" "), 3)
	if len(tokens) < 2 {
		return fmt.Errorf("%w: %q", ErrNoHTTPFormat, line)
	}
	if msg.Version, err = ParseVersionFromBytes(tokens[0]); err != nil {
		return fmt.Errorf("%w: %q", err, tokens[0])
	}
	code, err := strconv.Atoi(string(tokens[1]))
	if err != nil || !Status(code).Valid() {
		return fmt.Errorf("%w: %q", ErrNoValidStatusCode, tokens[1])
	}
	msg.StatusCode = Status(code)
	if len(tokens) == 3 {
		msg.Reason = string(tokens[2])
	}
	return nil
}

// EncodeRequest appends the request to dst. Nothing is written if dst cannot take the whole message.
func EncodeRequest(msg *Message, dst *bytestream.Buffer) error {
	if msg.Method == "" || msg.Resource == "" {
		return fmt.Errorf("%w: missing method or resource", ErrNoHTTPFormat)
	}

	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	version := msg.Version
	if version == VersionUnknown {
		version = Version11
	}
	_, _ = fmt.Fprintf(b, "%s %s %s%s", msg.Method, msg.Resource, version, CLRF)
	return encodeTail(msg, b, dst)
}

// EncodeResponse appends the response to dst. Nothing is written if dst cannot take the whole message.
func EncodeResponse(msg *Message, dst *bytestream.Buffer) error {
	if !msg.StatusCode.Valid() {
		return fmt.Errorf("%w: %d", ErrNoValidStatusCode, msg.StatusCode)
	}

	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	version := msg.Version
	if version == VersionUnknown {
		version = Version11
	}
	reason := msg.Reason
	if reason == "" {
		reason = msg.StatusCode.String()
	}
	_, _ = fmt.Fprintf(b, "%s %d %s%s", version, msg.StatusCode, reason, CLRF)
	return encodeTail(msg, b, dst)
}

func encodeTail(msg *Message, b *bytebufferpool.ByteBuffer, dst *bytestream.Buffer) error {
	if len(msg.Body) > 0 && !msg.Header.Has("Content-Length") {
		msg.Header.Add("Content-Length", strconv.Itoa(len(msg.Body)))
	}
	if _, err := msg.Header.WriteTo(b); err != nil {
		return err
	}
	_, _ = b.Write(msg.Body)
	return dst.Push(b.B)
}

// Respond writes a minimal response carrying status into output. Used for handshake rejections.
func Respond(status Status, output *bytestream.Buffer) error {
	msg := NewMessage()
	msg.StatusCode = status
	msg.Header.Add("Connection", "close")
	msg.Header.Add("Content-Length", "0")
	return EncodeResponse(msg, output)
}
