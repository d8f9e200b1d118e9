// Package metrics exposes Prometheus counters for the streaming session.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coachcam"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultBusy    = "busy"
)

// Frame drop reasons.
const (
	DropNoFrame    = "no_frame"
	DropNotOpen    = "channel_not_open"
	DropSendBusy   = "send_busy"
	DropEncodeFail = "encode_failed"
)

var (
	framesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of frames written to the streaming channel",
		},
	)

	framesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of sampled frames that were not sent",
		},
		[]string{"reason"},
	)

	frameBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_payload_bytes",
			Help:      "Size of encoded frame payloads in bytes",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 2, 8), // 16KiB .. 2MiB
		},
	)

	tipsReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tips_received_total",
			Help:      "Total number of coaching tips received",
		},
	)

	negotiationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiations_total",
			Help:      "Total number of session negotiations",
		},
		[]string{"result"}, // success, error, busy
	)

	cameraAcquisitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "camera_acquisitions_total",
			Help:      "Total number of camera acquisition attempts",
		},
		[]string{"facing", "result"},
	)

	speechTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_total",
			Help:      "Total number of speech attempts",
		},
		[]string{"strategy", "result"}, // strategy: local, remote
	)
)

var allMetrics = []prometheus.Collector{
	framesSentTotal,
	framesDroppedTotal,
	frameBytes,
	tipsReceivedTotal,
	negotiationsTotal,
	cameraAcquisitionsTotal,
	speechTotal,
}

func RecordFrameSent(payloadBytes int) {
	framesSentTotal.Inc()
	frameBytes.Observe(float64(payloadBytes))
}

func RecordFrameDropped(reason string) {
	framesDroppedTotal.WithLabelValues(reason).Inc()
}

func RecordTip() {
	tipsReceivedTotal.Inc()
}

func RecordNegotiation(result string) {
	negotiationsTotal.WithLabelValues(result).Inc()
}

func RecordCameraAcquisition(facing string, result string) {
	cameraAcquisitionsTotal.WithLabelValues(facing, result).Inc()
}

func RecordSpeech(strategy string, result string) {
	speechTotal.WithLabelValues(strategy, result).Inc()
}
