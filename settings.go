package wsio

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/Mylifeismyhome/wsio/codec/deflate"
	"github.com/Mylifeismyhome/wsio/codec/websocket"
	"github.com/rs/zerolog"
)

// Settings configures an Engine. It is copied by Setup and must not be changed afterwards.
type Settings struct {
	// Role is the endpoint type: RoleServer accepts upgrades on bound descriptors, RoleClient opens connections.
	Role websocket.Role

	Mode Mode

	// ReadTimeout closes a connection that received nothing for this long. 0 disables it.
	ReadTimeout time.Duration

	// PollTimeout is the longest a single Operate pass waits for readiness. 0 only checks readiness.
	PollTimeout time.Duration

	// PingInterval is the period at which an open connection is pinged, counted from the previous ping whatever the
	// traffic. 0 disables pings.
	PingInterval time.Duration

	// PingTimeout closes a connection that does not answer a ping in time. It also bounds the wait for the peer's
	// close frame after an Emit of a close frame.
	PingTimeout time.Duration

	// HandshakeTimeout bounds the time from accept or Open until the connection is open, TLS and upgrade included.
	HandshakeTimeout time.Duration

	// PEM encoded TLS material, used in ModeSecured. Setup takes ownership and Destroy wipes it.
	SSLSeed       []byte // accepted for compatibility, crypto/rand is always used
	SSLCACert     []byte
	SSLOwnCert    []byte
	SSLPrivateKey []byte

	// FdLimit caps the number of peer connections. 0 means unlimited.
	FdLimit int

	// Host is the expected Host header on a server, and the Host sent by a client when set.
	Host string

	// AllowedOrigin rejects upgrade requests carrying another Origin when set. Clients send it as their Origin.
	AllowedOrigin string

	// Resource is the request target of client upgrades.
	Resource string

	// MessageLimit caps the size of one reassembled message.
	MessageLimit int

	// AutoMask masks client frames with a random key.
	AutoMask bool

	Extensions websocket.Extensions

	Logger zerolog.Logger
}

func DefaultSettings() Settings {
	return Settings{
		Role:             websocket.RoleServer,
		Mode:             ModeUnsecured,
		PingInterval:     60 * time.Second,
		PingTimeout:      30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		Resource:         "/",
		MessageLimit:     websocket.MaxMessageSize,
		AutoMask:         true,
		Extensions:       websocket.DefaultExtensions(),
		Logger:           zerolog.Nop(),
	}
}

// Validate checks s and fills unset values with their defaults.
func (s *Settings) Validate() error {
	if s.Role != websocket.RoleServer && s.Role != websocket.RoleClient {
		return fmt.Errorf("%w: role %d", ErrInvalidSettings, s.Role)
	}
	if s.Mode != ModeUnsecured && s.Mode != ModeSecured {
		return fmt.Errorf("%w: mode %d", ErrInvalidSettings, s.Mode)
	}
	if s.ReadTimeout < 0 || s.PollTimeout < 0 || s.PingInterval < 0 || s.PingTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidSettings)
	}
	if s.FdLimit < 0 {
		return fmt.Errorf("%w: fd limit %d", ErrInvalidSettings, s.FdLimit)
	}

	pmd := s.Extensions.PerMessageDeflate
	if pmd.Enabled && (pmd.WindowBits < deflate.MinWindowBits || pmd.WindowBits > deflate.MaxWindowBits) {
		return fmt.Errorf("%w: window bits %d not in [%d, %d]",
			ErrInvalidSettings, pmd.WindowBits, deflate.MinWindowBits, deflate.MaxWindowBits)
	}

	if s.HandshakeTimeout <= 0 {
		s.HandshakeTimeout = 10 * time.Second
	}
	if s.MessageLimit <= 0 {
		s.MessageLimit = websocket.MaxMessageSize
	}
	if s.Resource == "" {
		s.Resource = "/"
	}

	if s.Mode == ModeSecured && s.Role == websocket.RoleServer &&
		(len(s.SSLOwnCert) == 0 || len(s.SSLPrivateKey) == 0) {
		return fmt.Errorf("%w: a secured server needs a certificate and a private key", ErrInvalidSettings)
	}
	return nil
}

// Destroy wipes the TLS material.
func (s *Settings) Destroy() {
	for _, b := range [][]byte{s.SSLSeed, s.SSLCACert, s.SSLOwnCert, s.SSLPrivateKey} {
		clear(b)
	}
	s.SSLSeed, s.SSLCACert, s.SSLOwnCert, s.SSLPrivateKey = nil, nil, nil, nil
}

func (s *Settings) tlsConfig() (*tls.Config, error) {
	if s.Mode != ModeSecured {
		return nil, nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if len(s.SSLOwnCert) > 0 || len(s.SSLPrivateKey) > 0 {
		cert, err := tls.X509KeyPair(s.SSLOwnCert, s.SSLPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if len(s.SSLCACert) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(s.SSLCACert) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, errors.New("no certificate in CA bundle"))
		}
		if s.Role == websocket.RoleServer {
			cfg.ClientCAs = pool
			cfg.ClientAuth = tls.VerifyClientCertIfGiven
		} else {
			cfg.RootCAs = pool
		}
	}
	return cfg, nil
}
