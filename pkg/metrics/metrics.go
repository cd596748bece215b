package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	StoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "uodm", Name: "store_ops_total", Help: "Store operations by type."},
		[]string{"op"},
	)
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "uodm", Name: "store_errors_total", Help: "Failed store operations by type."},
		[]string{"op"},
	)
	RegistryHits = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "uodm", Name: "registry_hits_total", Help: "Lookups served from the live-object registry."},
	)
	RegistryMisses = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "uodm", Name: "registry_misses_total", Help: "Lookups that had to go to the store."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(StoreOps, StoreErrors, RegistryHits, RegistryMisses)
}
