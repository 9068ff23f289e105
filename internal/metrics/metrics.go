// Package metrics exposes Prometheus counters for the auth service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK          = "ok"
	ResultRejected    = "rejected"
	ResultBreach      = "breach"
	ResultInvalidated = "invalidated"
	ResultError       = "error"
)

// Metrics holds the counters registered for this service instance.
type Metrics struct {
	Logins    *prometheus.CounterVec
	Refreshes *prometheus.CounterVec
	Breaches  prometheus.Counter
	Lockouts  prometheus.Counter
	Coalesced prometheus.Counter
}

// New registers the service counters on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "token_refreshes_total",
			Help:      "Refresh attempts by result.",
		}, []string{"result"}),
		Breaches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "token_family_breaches_total",
			Help:      "Refresh token reuse detections that revoked a family.",
		}),
		Lockouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "account_lockouts_total",
			Help:      "Logins rejected because the account was locked out.",
		}),
		Coalesced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "refreshes_coalesced_total",
			Help:      "Refresh calls that shared an in-flight rotation instead of running their own.",
		}),
	}
}
