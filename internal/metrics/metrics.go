// Package metrics provides Prometheus instrumentation for the chat
// coordination framework: connection lifecycle, message/command traffic,
// turn-taking selections, and the agent LLM retry policy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transport metrics.
var (
	WSConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parley_ws_connections_active",
		Help: "Number of currently connected member sessions.",
	})

	WSCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_ws_calls_total",
		Help: "Total number of request/response calls made over the transport.",
	}, []string{"event", "outcome"})

	WSCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parley_ws_call_duration_seconds",
		Help:    "Round-trip duration of request/response calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event"})
)

// Chat traffic metrics.
var (
	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_messages_sent_total",
		Help: "Total number of messages sent by this member.",
	})

	MessagesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_messages_received_total",
		Help: "Total number of messages received by this member.",
	})

	CommandsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_commands_sent_total",
		Help: "Total number of commands issued, by command name.",
	}, []string{"command"})

	CommandsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_commands_received_total",
		Help: "Total number of commands handled, by command name and outcome.",
	}, []string{"command", "outcome"})
)

// Turn-taking and agent metrics.
var (
	NextSpeakerSelectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_next_speaker_selections_total",
		Help: "Total number of next-speaker selections, by strategy.",
	}, []string{"strategy"})

	LLMRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_llm_retries_total",
		Help: "Total number of retried LLM calls.",
	})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parley_llm_request_duration_seconds",
		Help:    "Duration of LLM completion calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})
)
