package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// MarkOutcomes counts attendance mark attempts by protocol outcome.
	MarkOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classattend_mark_attempts_total",
		Help: "Attendance mark attempts by outcome.",
	}, []string{"outcome"})

	// WindowsOpened counts attendance windows opened by instructors.
	WindowsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classattend_windows_opened_total",
		Help: "Attendance windows opened.",
	})

	// GeofenceSamples counts evaluated position samples by resulting state.
	GeofenceSamples = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classattend_geofence_samples_total",
		Help: "Geofence position samples by resulting state.",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(MarkOutcomes, WindowsOpened, GeofenceSamples)
}
