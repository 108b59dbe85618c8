package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type ScheduleMetrics struct {
	OperationsTotal       *prometheus.CounterVec
	RecalculationDuration *prometheus.HistogramVec
}

type MessagingMetrics struct {
	ConsumedTotal  *prometheus.CounterVec
	PublishedTotal *prometheus.CounterVec
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_schedule_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Schedule = ScheduleMetrics{
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_schedule_engine_operations_total",
				Help: "Total number of schedule operations applied, by transaction type.",
			},
			[]string{"operation", "status"},
		),
		RecalculationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_schedule_recalculation_duration_seconds",
				Help:    "Histogram of full schedule recalculation latencies.",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"status"},
		),
	}

	Messaging = MessagingMetrics{
		ConsumedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_schedule_messages_consumed_total",
				Help: "Total number of messages consumed from RabbitMQ.",
			},
			[]string{"routing_key", "status"},
		),
		PublishedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_schedule_events_published_total",
				Help: "Total number of events published to RabbitMQ.",
			},
			[]string{"routing_key", "status"},
		),
	}
)

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

func RecordDBQuery(queryName string, err error, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status(err)).Observe(duration.Seconds())
}

func RecordEngineOperation(operation string, err error) {
	Schedule.OperationsTotal.WithLabelValues(operation, status(err)).Inc()
}

func RecordRecalculation(err error, duration time.Duration) {
	Schedule.RecalculationDuration.WithLabelValues(status(err)).Observe(duration.Seconds())
}

func RecordMessageConsumed(routingKey string, err error) {
	Messaging.ConsumedTotal.WithLabelValues(routingKey, status(err)).Inc()
}

func RecordEventPublished(routingKey string, err error) {
	Messaging.PublishedTotal.WithLabelValues(routingKey, status(err)).Inc()
}
