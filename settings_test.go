package wsio

import (
	"testing"
	"time"

	"github.com/Mylifeismyhome/wsio/codec/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, websocket.RoleServer, s.Role)
	assert.Equal(t, ModeUnsecured, s.Mode)
	assert.Equal(t, 60*time.Second, s.PingInterval)
	assert.Equal(t, 30*time.Second, s.PingTimeout)
	assert.Equal(t, 4*1024*1024, s.MessageLimit)
	assert.True(t, s.AutoMask)
	assert.False(t, s.Extensions.PerMessageDeflate.Enabled)
	assert.EqualValues(t, 15, s.Extensions.PerMessageDeflate.WindowBits)
	require.NoError(t, s.Validate())
}

func TestSettingsValidateFillsDefaults(t *testing.T) {
	s := Settings{Role: websocket.RoleClient}
	require.NoError(t, s.Validate())

	assert.Equal(t, websocket.MaxMessageSize, s.MessageLimit)
	assert.Equal(t, "/", s.Resource)
	assert.Equal(t, 10*time.Second, s.HandshakeTimeout)
}

func TestSettingsValidateRejects(t *testing.T) {
	for name, mutate := range map[string]func(*Settings){
		"role":        func(s *Settings) { s.Role = 7 },
		"mode":        func(s *Settings) { s.Mode = 9 },
		"timeout":     func(s *Settings) { s.ReadTimeout = -time.Second },
		"fd limit":    func(s *Settings) { s.FdLimit = -1 },
		"window low":  func(s *Settings) { s.Extensions.PerMessageDeflate = websocket.PerMessageDeflate{Enabled: true, WindowBits: 7} },
		"window high": func(s *Settings) { s.Extensions.PerMessageDeflate = websocket.PerMessageDeflate{Enabled: true, WindowBits: 16} },
		"no cert":     func(s *Settings) { s.Mode = ModeSecured },
	} {
		s := DefaultSettings()
		mutate(&s)
		assert.ErrorIs(t, s.Validate(), ErrInvalidSettings, name)
	}
}

func TestSettingsTLS(t *testing.T) {
	certPEM, keyPEM := selfSigned(t)

	s := DefaultSettings()
	cfg, err := s.tlsConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)

	s.Mode = ModeSecured
	s.SSLOwnCert = certPEM
	s.SSLPrivateKey = keyPEM
	s.SSLCACert = certPEM
	cfg, err = s.tlsConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.NotNil(t, cfg.ClientCAs)

	s.SSLPrivateKey = []byte("garbage")
	_, err = s.tlsConfig()
	assert.ErrorIs(t, err, ErrInvalidSettings)

	e := New()
	assert.ErrorIs(t, e.Setup(s), ErrInvalidSettings)
}

func TestSettingsDestroy(t *testing.T) {
	cert := []byte("cert")
	s := DefaultSettings()
	s.SSLOwnCert = cert
	s.SSLSeed = []byte("seed")

	s.Destroy()
	assert.Nil(t, s.SSLOwnCert)
	assert.Nil(t, s.SSLSeed)
	assert.Equal(t, []byte{0, 0, 0, 0}, cert)
}

func TestSetupWithDescriptors(t *testing.T) {
	server, _ := newServer(t, testSettings(websocket.RoleServer))
	defer server.Destroy()

	assert.ErrorIs(t, server.Setup(testSettings(websocket.RoleServer)), ErrAlreadySetup)
}
