// Package metrics holds the service's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vanguard"

var (
	AuditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audits_total",
		Help:      "Completed audits by target kind and severity.",
	}, []string{"kind", "severity"})

	FixesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fixes_total",
		Help:      "Completed remediation runs.",
	})

	PersistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_failures_total",
		Help:      "Job store writes that failed and were skipped.",
	})

	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Broadcasts that failed or were dropped.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
