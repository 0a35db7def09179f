package http

import (
	"errors"
	"fmt"

	"github.com/Mylifeismyhome/wsio/wserrors"
)

var (
	ErrNoHTTPFormat      = errors.New("unrecognized http start line")
	ErrNoHTTPHeader      = fmt.Errorf("http header block not terminated: %w", wserrors.ErrNeedMore)
	ErrNoHTTPVersion     = errors.New("malformed http version")
	ErrNoValidStatusCode = errors.New("http status is not an integer")
	ErrIncompleteBody    = fmt.Errorf("http body shorter than Content-Length: %w", wserrors.ErrNeedMore)
	ErrInvalidHeader     = errors.New("invalid header")
	ErrInvalidLength     = errors.New("invalid Content-Length")
)

// ParseResult is the status vocabulary of Parse.
type ParseResult uint8

const (
	ParseOK ParseResult = iota
	ParseNoHTTPFormat
	ParseNoHTTPHeader
	ParseNoHTTPVersion
	ParseNoValidStatusCode
	ParseError
)

func (r ParseResult) String() string {
	switch r {
	case ParseOK:
		return "ok"
	case ParseNoHTTPFormat:
		return "no_http_format"
	case ParseNoHTTPHeader:
		return "no_http_header"
	case ParseNoHTTPVersion:
		return "no_http_version"
	case ParseNoValidStatusCode:
		return "no_valid_http_status_code"
	default:
		return "error"
	}
}

func ParseStatus(err error) ParseResult {
	switch {
	case err == nil:
		return ParseOK
	case errors.Is(err, wserrors.ErrNeedMore):
		return ParseNoHTTPHeader
	case errors.Is(err, ErrNoHTTPFormat), errors.Is(err, ErrInvalidHeader):
		return ParseNoHTTPFormat
	case errors.Is(err, ErrNoHTTPVersion):
		return ParseNoHTTPVersion
	case errors.Is(err, ErrNoValidStatusCode):
		return ParseNoValidStatusCode
	default:
		return ParseError
	}
}
