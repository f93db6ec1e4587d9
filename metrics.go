package rediwire

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "rediwire"

var (
	framesDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_decoded_total",
			Help:      "RESP frames successfully decoded off the wire, by outcome",
		},
		[]string{"outcome"}, // "ok" or "redis_error"
	)

	commandsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_sent_total",
			Help:      "Commands written to a Connection",
		},
	)

	connectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connection_errors_total",
			Help:      "Non-transient errors observed on a Connection, by kind",
		},
		[]string{"kind"},
	)

	deadConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "dead_connections",
			Help:      "Connections currently marked dead and unusable",
		},
	)
)

func observeDecode(res DecodeResult) {
	if res.Err != nil {
		framesDecoded.WithLabelValues("redis_error").Inc()
		return
	}
	framesDecoded.WithLabelValues("ok").Inc()
}

func observeFatal(kind ErrorKind) {
	connectionErrors.WithLabelValues(kind.String()).Inc()
	deadConnections.Inc()
}
