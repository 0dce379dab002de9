// Package metrics exposes Prometheus counters for identity lookups and
// lifecycle dispatches.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IdentityLookups counts identity and group queries by kind and result.
	IdentityLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "formgate",
		Name:      "identity_lookups_total",
		Help:      "Identity service lookups by kind (user, groups) and result (ok, error).",
	}, []string{"kind", "result"})

	// LifecycleDispatches counts lifecycle actions by action and result.
	LifecycleDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "formgate",
		Name:      "lifecycle_dispatch_total",
		Help:      "Lifecycle actions by action (save, submit, delete, cancel, print, remove_attachment) and result (ok, denied, invalid, busy, error).",
	}, []string{"action", "result"})
)
