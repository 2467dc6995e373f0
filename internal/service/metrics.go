package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	flagsCleared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "address_flags_cleared_total",
			Help: "Total number of address flags cleared to keep a single holder per owner",
		},
		[]string{"flag"},
	)

	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "address_operations_total",
			Help: "Total number of address operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
)

func observe(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	operations.WithLabelValues(operation, outcome).Inc()
}
