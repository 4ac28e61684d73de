package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	AppointmentOperations *prometheus.CounterVec
	SMSMessages           *prometheus.CounterVec
	ReminderRuns          *prometheus.CounterVec
	RemindersDispatched   prometheus.Counter
	HTTPRequestDuration   *prometheus.HistogramVec
}

// New creates and registers all application metrics on reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AppointmentOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_operations_total",
			Help:      "Total number of appointment lifecycle operations by outcome",
		}, []string{"operation", "outcome"}),
		SMSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sms_messages_total",
			Help:      "Total number of text messages by template and result",
		}, []string{"template", "result"}),
		ReminderRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_runs_total",
			Help:      "Total number of reminder job runs by result",
		}, []string{"result"}),
		RemindersDispatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_dispatched_total",
			Help:      "Total number of appointments selected for a reminder",
		}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"route", "method", "status"}),
	}
}

func (m *Metrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.AppointmentOperations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveSMS(template, result string) {
	if m == nil {
		return
	}
	m.SMSMessages.WithLabelValues(template, result).Inc()
}

func (m *Metrics) ObserveReminderRun(result string, dispatched int) {
	if m == nil {
		return
	}
	m.ReminderRuns.WithLabelValues(result).Inc()
	m.RemindersDispatched.Add(float64(dispatched))
}

func (m *Metrics) ObserveHTTP(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(route, method, status).Observe(seconds)
}
