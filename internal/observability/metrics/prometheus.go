// Package metrics provides Prometheus metrics for the intake engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	ScreeningsRun         prometheus.Counter
	DuplicateWarnings     *prometheus.CounterVec
	SubmissionsBlocked    prometheus.Counter
	SubmissionsForced     prometheus.Counter
	PatientsRegistered    prometheus.Counter
	OrdersPlaced          prometheus.Counter
	ScreeningDuration     prometheus.Histogram
	CarePlansGenerated    prometheus.Counter
	CarePlanFailures      prometheus.Counter
	KafkaMessagesProduced prometheus.Counter
	KafkaMessagesConsumed prometheus.Counter
	OutboxPending         prometheus.Gauge
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		ScreeningsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_screenings_total",
			Help: "Total duplicate screenings run",
		}),
		DuplicateWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_warnings_total",
			Help: "Warnings emitted by duplicate screening",
		}, []string{"type"}),
		SubmissionsBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_submissions_blocked_total",
			Help: "Submissions rejected due to duplicate warnings",
		}),
		SubmissionsForced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_submissions_forced_total",
			Help: "Submissions accepted despite warnings via force",
		}),
		PatientsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_patients_registered_total",
			Help: "Total patients registered",
		}),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_orders_placed_total",
			Help: "Total medication orders placed",
		}),
		ScreeningDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_screening_duration_seconds",
			Help:    "Duplicate screening duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		CarePlansGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careplan_generated_total",
			Help: "Care plans generated by the worker",
		}),
		CarePlanFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "careplan_failures_total",
			Help: "Care plan generation failures",
		}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
	}

	prometheus.MustRegister(
		m.ScreeningsRun,
		m.DuplicateWarnings,
		m.SubmissionsBlocked,
		m.SubmissionsForced,
		m.PatientsRegistered,
		m.OrdersPlaced,
		m.ScreeningDuration,
		m.CarePlansGenerated,
		m.CarePlanFailures,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.OutboxPending,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
