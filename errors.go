package wsio

import "errors"

var (
	ErrNotSetup         = errors.New("engine is not set up")
	ErrAlreadySetup     = errors.New("engine already manages descriptors")
	ErrInvalidSettings  = errors.New("invalid settings")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrInvalidCallback  = errors.New("callback does not match event")
	ErrUnknownFd        = errors.New("unknown descriptor")
	ErrNotOpen          = errors.New("connection is not open")
	ErrFdLimit          = errors.New("descriptor limit reached")
	ErrReadTimeout      = errors.New("no data received within read timeout")
	ErrPingTimeout      = errors.New("no pong received within ping timeout")
	ErrCloseTimeout     = errors.New("peer did not answer close frame")
	ErrHandshakeTimeout = errors.New("connection not open within handshake timeout")
)
