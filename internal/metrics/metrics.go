// Package metrics registers the Prometheus collectors the server exports on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nextmessage"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Messages accepted, by kind (direct or group).",
	}, []string{"kind"})

	GroupMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "group_mutations_total",
		Help:      "Group membership and metadata mutations by operation and outcome.",
	}, []string{"op", "outcome"})

	ConversationEntriesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversation_entries_skipped_total",
		Help:      "Conversation list entries omitted because a lookup failed.",
	}, []string{"kind"})
)
