package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/metrics"
)

type RouterConfig struct {
	Service      AppointmentService
	Dependencies []Dependency
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer // serves /metrics when set
	Logger       zerolog.Logger
	Clock        func() time.Time
	SuggestDays  int
	CalendarDays int
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.SuggestDays <= 0 {
		cfg.SuggestDays = 7
	}
	if cfg.CalendarDays <= 0 {
		cfg.CalendarDays = 7
	}

	h := &handlers{
		svc:          cfg.Service,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		log:          cfg.Logger,
		now:          cfg.Clock,
		suggestDays:  cfg.SuggestDays,
		calendarDays: cfg.CalendarDays,
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))
	r.Use(ActorMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Public views
	r.Get("/slots", h.listSlots)
	r.Get("/doctors", h.listDoctors)
	r.Get("/doctors/{doctorID}/appointments", h.listDoctorOccupancy)
	r.Get("/doctors/{doctorID}/suggestion", h.suggest)

	// Appointment endpoints
	r.Group(func(r chi.Router) {
		r.Use(RequireActor)

		r.Post("/appointments", h.createAppointment)
		r.Get("/appointments/mine", h.listMine)
		r.Get("/appointments/doctor", h.listDoctorOwn)
		r.Get("/appointments/{id}", h.getAppointment)
		r.Delete("/appointments/{id}", h.transition(cfg.Service.Cancel))
		r.Patch("/appointments/{id}/status", h.updateStatus)
		r.Put("/appointments/{id}/approve", h.transition(cfg.Service.Approve))
		r.Put("/appointments/{id}/reject", h.transition(cfg.Service.Reject))
		r.Post("/appointments/{id}/cancel", h.transition(cfg.Service.Cancel))
		r.Post("/appointments/{id}/reschedule", h.reschedule)

		r.Get("/doctors/{doctorID}/calendar", h.calendar)

		r.Get("/admin/appointments", h.listAll)
		r.Get("/admin/users", h.listUsers)
	})

	return r
}
