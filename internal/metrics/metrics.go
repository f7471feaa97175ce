package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pairchat_connections_live",
			Help: "Live websocket sessions (pending-disconnect included)",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pairchat_messages_sent_total",
			Help: "Messages persisted and fanned out",
		},
	)

	BroadcastFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pairchat_broadcast_failures_total",
			Help: "Socket writes that failed during fan-out",
		},
	)

	OTPIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pairchat_otp_issued_total",
			Help: "OTP codes generated and mailed",
		},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairchat_blob_uploads_total",
			Help: "Blob uploads by outcome",
		},
		[]string{"outcome"}, // "ok" or "error"
	)
)
