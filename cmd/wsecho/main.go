// Command wsecho runs a WebSocket echo server, or a client measuring echo round trips against one.
package main

import (
	"bytes"
	"flag"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/Mylifeismyhome/wsio"
	"github.com/Mylifeismyhome/wsio/codec/websocket"
	"github.com/Mylifeismyhome/wsio/util"
	"github.com/felixge/fgprof"
	"github.com/rs/zerolog"
)

var (
	mode    = flag.String("mode", "server", "server or client")
	addr    = flag.String("addr", "127.0.0.1:8080", "address to listen on or connect to")
	n       = flag.Int("n", 1000, "client: number of messages to echo")
	size    = flag.Int("size", 128, "client: message size in bytes")
	window  = flag.Int("deflate", 0, "permessage-deflate window bits, 0 disables it")
	cert    = flag.String("cert", "", "PEM certificate, enables TLS")
	key     = flag.String("key", "", "PEM private key")
	ca      = flag.String("ca", "", "PEM CA bundle, enables TLS for clients")
	origin  = flag.String("origin", "", "allowed or sent Origin")
	ping    = flag.Duration("ping", time.Minute, "ping interval, 0 disables pings")
	poll    = flag.Duration("poll", 10*time.Millisecond, "longest wait of one pass")
	profile = flag.String("profile", "", "serve fgprof on this address")
	cpu     = flag.Int("cpu", -1, "pin the event loop to this CPU")
	debug   = flag.Bool("debug", false, "log at debug level")
)

func main() {
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()

	if *profile != "" {
		http.DefaultServeMux.Handle("/debug/fgprof", fgprof.Handler())
		go func() {
			log.Info().Str("addr", *profile).Msg("serving fgprof on /debug/fgprof")
			if err := http.ListenAndServe(*profile, nil); err != nil {
				log.Error().Err(err).Msg("profiler stopped")
			}
		}()
	}

	if *cpu >= 0 {
		unlock, err := util.PinThread(*cpu)
		if err != nil {
			log.Fatal().Err(err).Int("cpu", *cpu).Msg("could not pin")
		}
		defer unlock()
		log.Info().Int("cpu", *cpu).Msg("pinned")
	}

	s, err := settings(log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid settings")
	}

	host, port, err := net.SplitHostPort(*addr)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid address")
	}

	e := wsio.New()
	defer e.Destroy()
	if err := e.Setup(s); err != nil {
		log.Fatal().Err(err).Msg("setup failed")
	}

	switch *mode {
	case "server":
		err = serve(e, host, port, log)
	case "client":
		err = measure(e, host, port, log)
	default:
		log.Fatal().Str("mode", *mode).Msg("unknown mode")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed")
	}

	stats := e.Stats().Summary()
	log.Info().
		Int64("passes", stats.Count).
		Int64("p50_us", stats.P50).
		Int64("p99_us", stats.P99).
		Int64("max_us", stats.Max).
		Msg("operate")
}

func settings(log zerolog.Logger) (wsio.Settings, error) {
	s := wsio.DefaultSettings()
	s.Logger = log
	s.PollTimeout = *poll
	s.PingInterval = *ping
	s.AllowedOrigin = *origin
	if *window > 0 {
		s.Extensions.PerMessageDeflate = websocket.PerMessageDeflate{Enabled: true, WindowBits: uint8(*window)}
	}
	if *mode == "client" {
		s.Role = websocket.RoleClient
	}

	var err error
	for _, f := range []struct {
		path string
		dst  *[]byte
	}{
		{*cert, &s.SSLOwnCert},
		{*key, &s.SSLPrivateKey},
		{*ca, &s.SSLCACert},
	} {
		if f.path == "" {
			continue
		}
		if *f.dst, err = os.ReadFile(f.path); err != nil {
			return s, err
		}
		s.Mode = wsio.ModeSecured
	}
	return s, s.Validate()
}

func serve(e *wsio.Engine, host, port string, log zerolog.Logger) error {
	fd, err := e.Bind(host, port)
	if err != nil {
		return err
	}
	log.Info().Int("fd", fd).Stringer("addr", e.Addr(fd)).Msg("echo server listening")

	e.SetHandler(&wsio.HandlerFuncs{
		Open: func(fd int, addr net.Addr) {
			log.Info().Int("fd", fd).Stringer("peer", addr).Msg("open")
		},
		Frame: func(fd int, opcode websocket.Opcode, payload []byte) {
			f := websocket.AcquireFrame()
			defer websocket.ReleaseFrame(f)
			f.SetOpcode(opcode)
			if err := f.Push(payload); err == nil {
				err = e.Emit(fd, f)
			}
			if err != nil {
				log.Warn().Int("fd", fd).Err(err).Msg("echo failed")
			}
		},
		Close: func(fd int, code websocket.CloseCode) {
			log.Info().Int("fd", fd).Stringer("code", code).Msg("close")
		},
		Error: func(fd int, err error) {
			log.Warn().Int("fd", fd).Err(err).Msg("error")
		},
	})

	for e.Operate() {
	}
	return nil
}

func measure(e *wsio.Engine, host, port string, log zerolog.Logger) error {
	rtt := util.NewTtyHist(util.TtyHistOpts{
		Name:      "rtt",
		Scale:     "us",
		MinPct:    1,
		Min:       1,
		Max:       10 * 1000 * 1000,
		Precision: 3,
		Writer:    os.Stdout,
	})

	payload := bytes.Repeat([]byte{'x'}, *size)
	f := websocket.NewFrame(websocket.OpcodeBinary)
	if err := f.Push(payload); err != nil {
		return err
	}

	var (
		sent     time.Time
		received int
		failure  error
	)
	send := func(fd int) {
		sent = time.Now()
		if err := e.Emit(fd, f); err != nil {
			failure = err
			e.Close(fd)
		}
	}

	e.SetHandler(&wsio.HandlerFuncs{
		Open: func(fd int, addr net.Addr) {
			log.Info().Int("fd", fd).Stringer("peer", addr).Int("messages", *n).Msg("open")
			send(fd)
		},
		Frame: func(fd int, _ websocket.Opcode, echo []byte) {
			rtt.AddDuration(time.Since(sent))
			if !bytes.Equal(echo, payload) {
				log.Warn().Int("fd", fd).Int("size", len(echo)).Msg("echo mismatch")
			}

			if received++; received < *n {
				send(fd)
				return
			}
			closing := websocket.NewFrame(websocket.OpcodeClose)
			_ = closing.Push(websocket.EncodeCloseFramePayload(websocket.CloseNormal, "done"))
			if err := e.Emit(fd, closing); err != nil {
				e.Close(fd)
			}
		},
		Close: func(fd int, code websocket.CloseCode) {
			log.Info().Int("fd", fd).Stringer("code", code).Int("received", received).Msg("close")
		},
		Error: func(fd int, err error) {
			failure = err
		},
	})

	if _, err := e.Open(host, port); err != nil {
		return err
	}
	for e.Operate() {
	}

	rtt.Report()
	return failure
}
