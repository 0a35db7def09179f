package websocket

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Mylifeismyhome/wsio/codec/deflate"
)

// Based on https://datatracker.ietf.org/doc/html/rfc7692

const (
	extPerMessageDeflate     = "permessage-deflate"
	paramServerMaxWindowBits = "server_max_window_bits"
	paramClientMaxWindowBits = "client_max_window_bits"
	paramServerNoTakeover    = "server_no_context_takeover"
	paramClientNoTakeover    = "client_no_context_takeover"
)

type PerMessageDeflate struct {
	Enabled bool

	// WindowBits is the LZ77 window size as a power of two, 8 through 15.
	WindowBits uint8
}

// Extensions is what an endpoint supports before the handshake and what was granted after it.
type Extensions struct {
	PerMessageDeflate PerMessageDeflate
}

func DefaultExtensions() Extensions {
	return Extensions{
		PerMessageDeflate: PerMessageDeflate{WindowBits: deflate.MaxWindowBits},
	}
}

// DeflateBits returns the negotiated window, or 0 when permessage-deflate is off.
func (e Extensions) DeflateBits() int {
	if !e.PerMessageDeflate.Enabled {
		return 0
	}
	return clampWindowBits(int(e.PerMessageDeflate.WindowBits))
}

func clampWindowBits(bits int) int {
	if bits < deflate.MinWindowBits {
		return deflate.MinWindowBits
	}
	if bits > deflate.MaxWindowBits {
		return deflate.MaxWindowBits
	}
	return bits
}

type deflateParams struct {
	serverMaxWindowBits int // 0 if absent
	clientMaxWindowBits int // 0 if absent, MaxWindowBits if present without a value

	serverNoContextTakeover bool
	clientNoContextTakeover bool
}

// window is the smallest window either side asked for.
func (p deflateParams) window() int {
	w := deflate.MaxWindowBits
	if p.clientMaxWindowBits > 0 && p.clientMaxWindowBits < w {
		w = p.clientMaxWindowBits
	}
	if p.serverMaxWindowBits > 0 && p.serverMaxWindowBits < w {
		w = p.serverMaxWindowBits
	}
	return w
}

// parseDeflateOffers returns the well-formed permessage-deflate elements of a Sec-WebSocket-Extensions value, in
// order. Malformed elements are skipped.
func parseDeflateOffers(value string) (offers []deflateParams) {
	for _, element := range strings.Split(value, ",") {
		tokens := strings.Split(element, ";")
		if !strings.EqualFold(strings.TrimSpace(tokens[0]), extPerMessageDeflate) {
			continue
		}
		if p, err := parseDeflateParams(tokens[1:]); err == nil {
			offers = append(offers, p)
		}
	}
	return
}

func parseDeflateParams(params []string) (p deflateParams, err error) {
	seen := make(map[string]bool, len(params))
	for _, param := range params {
		key, value, hasValue := strings.Cut(strings.TrimSpace(param), "=")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.Trim(strings.TrimSpace(value), `"`)

		if seen[key] {
			return p, fmt.Errorf("duplicate parameter %s", key)
		}
		seen[key] = true

		switch key {
		case paramServerMaxWindowBits:
			if !hasValue {
				return p, fmt.Errorf("%s without value", key)
			}
			if p.serverMaxWindowBits, err = parseWindowBits(value); err != nil {
				return p, err
			}
		case paramClientMaxWindowBits:
			if !hasValue {
				p.clientMaxWindowBits = deflate.MaxWindowBits
				continue
			}
			if p.clientMaxWindowBits, err = parseWindowBits(value); err != nil {
				return p, err
			}
		case paramServerNoTakeover:
			if hasValue {
				return p, fmt.Errorf("%s with value", key)
			}
			p.serverNoContextTakeover = true
		case paramClientNoTakeover:
			if hasValue {
				return p, fmt.Errorf("%s with value", key)
			}
			p.clientNoContextTakeover = true
		default:
			return p, fmt.Errorf("unknown parameter %q", key)
		}
	}
	return p, nil
}

func parseWindowBits(value string) (int, error) {
	bits, err := strconv.Atoi(value)
	if err != nil || bits < deflate.MinWindowBits || bits > deflate.MaxWindowBits {
		return 0, fmt.Errorf("window bits %q out of range", value)
	}
	return bits, nil
}

// offer is the Sec-WebSocket-Extensions value a client sends.
func (e Extensions) offer() string {
	if !e.PerMessageDeflate.Enabled {
		return ""
	}
	return fmt.Sprintf("%s; %s=%d", extPerMessageDeflate, paramClientMaxWindowBits, e.DeflateBits())
}

// negotiate intersects what the server supports with the client's offer.
func negotiate(server Extensions, offer string) (granted Extensions, response string) {
	if !server.PerMessageDeflate.Enabled {
		return
	}
	offers := parseDeflateOffers(offer)
	if len(offers) == 0 {
		return
	}

	w := offers[0].window()
	if own := server.DeflateBits(); own < w {
		w = own
	}
	granted.PerMessageDeflate = PerMessageDeflate{Enabled: true, WindowBits: uint8(w)}

	// client_max_window_bits may only be answered when the client offered it.
	params := []string{extPerMessageDeflate, fmt.Sprintf("%s=%d", paramServerMaxWindowBits, w)}
	if offers[0].clientMaxWindowBits > 0 {
		params = append(params, fmt.Sprintf("%s=%d", paramClientMaxWindowBits, w))
	}
	params = append(params, paramServerNoTakeover, paramClientNoTakeover)
	response = strings.Join(params, "; ")
	return
}

// accept records what a server granted in response to the client's own offer.
func accept(own Extensions, response string) (granted Extensions) {
	if !own.PerMessageDeflate.Enabled || response == "" {
		return
	}
	offers := parseDeflateOffers(response)
	if len(offers) != 1 {
		return
	}

	w := offers[0].window()
	if bits := own.DeflateBits(); bits < w {
		w = bits
	}
	granted.PerMessageDeflate = PerMessageDeflate{Enabled: true, WindowBits: uint8(w)}
	return
}
