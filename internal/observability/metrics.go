package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "personacall_generations_total",
		Help: "Completion calls by provider and outcome",
	}, []string{"provider", "outcome"})

	GenerationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "personacall_generation_latency_seconds",
		Help:    "Latency of single completion calls",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16},
	}, []string{"provider"})

	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "personacall_turns_total",
		Help: "Utterances handled by mode and outcome",
	}, []string{"mode", "outcome"})

	RespondersPerTurn = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "personacall_responders_per_turn",
		Help:    "Responses returned per utterance",
		Buckets: []float64{0, 1, 2, 3},
	})

	SynthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "personacall_synthesis_total",
		Help: "TTS synthesis calls by provider and outcome",
	}, []string{"provider", "outcome"})
)
