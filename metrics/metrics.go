package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesPersisted counts stored conversation turns by role.
	MessagesPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentchat_messages_persisted_total",
		Help: "Number of messages written to the store, by role.",
	}, []string{"role"})

	// ProviderRequests counts LLM invocations by provider kind.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentchat_provider_requests_total",
		Help: "Number of LLM completion requests, by provider.",
	}, []string{"provider"})

	// ProviderFailures counts failed LLM invocations by provider kind.
	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentchat_provider_failures_total",
		Help: "Number of failed LLM completion requests, by provider.",
	}, []string{"provider"})
)
