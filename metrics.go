package wsio

import (
	"strconv"

	"github.com/Mylifeismyhome/wsio/codec/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wsio_connections_open",
			Help: "Current number of peer connections managed by all engines",
		},
	)

	framesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsio_frames_received_total",
			Help: "Total number of decoded frames and reassembled messages",
		},
		[]string{"opcode"},
	)

	framesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsio_frames_sent_total",
			Help: "Total number of frames queued for sending",
		},
		[]string{"opcode"},
	)

	closures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsio_closures_total",
			Help: "Total number of closed peer connections by close code",
		},
		[]string{"code"},
	)

	handshakeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wsio_handshake_failures_total",
			Help: "Total number of failed upgrade and TLS handshakes",
		},
	)
)

func recordClosure(code websocket.CloseCode) {
	closures.WithLabelValues(strconv.Itoa(int(code))).Inc()
}
