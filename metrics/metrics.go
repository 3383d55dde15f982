// Package metrics holds the prometheus collectors of the riool server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riool_uploads_total",
			Help: "Total number of survey files processed by outcome",
		},
		[]string{"kind", "outcome"},
	)

	ParseErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riool_parse_errors_total",
			Help: "Total number of line errors found in survey files",
		},
	)

	CapacityComputationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riool_capacity_computations_total",
			Help: "Total number of lost capacity computations by outcome",
		},
		[]string{"outcome"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riool_task_duration_seconds",
			Help:    "Duration of background tasks in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"topic"},
	)

	SideProfilesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riool_side_profiles_total",
			Help: "Total number of rendered side profiles",
		},
	)
)

func Outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
