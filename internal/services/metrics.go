// Package services – metrics
//
// Service outcomes are exported as a Prometheus counter alongside the HTTP
// collectors served on /metrics.
package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// storeOps counts service operations by name and outcome. Outcome is "ok" or
// the Kind label of the returned error.
var storeOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_store_operations_total",
		Help: "Chat store operations by outcome.",
	},
	[]string{"op", "outcome"},
)

func init() {
	prometheus.MustRegister(storeOps)
}

// observe records the outcome of op and returns err unchanged.
func observe(op string, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	storeOps.WithLabelValues(op, outcome).Inc()
	return err
}
