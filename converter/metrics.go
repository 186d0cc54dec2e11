package converter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utm_frames_decoded_total",
			Help: "MAVLink frames decoded from telemetry logs",
		},
		[]string{"msg"},
	)
	framesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "utm_frames_rejected_total",
		Help: "Candidate frames dropped for a bad header or checksum",
	})
	samplesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "utm_samples_total",
		Help: "Track samples written to flight logs",
	})
	conversions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utm_conversions_total",
			Help: "Telemetry log conversions by result",
		},
		[]string{"result"},
	)
	channelsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "utm_decoder_channels_in_use",
		Help: "Decoder channels currently held by conversions",
	})
)
