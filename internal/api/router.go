package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Slot calendar
	r.Get("/slots", slotsHandler(cfg.Service))

	// Appointments
	r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Patch("/appointments/{id}", rescheduleHandler(cfg.Service))
	r.Post("/appointments/{id}/confirm", confirmHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelHandler(cfg.Service))
	r.Post("/appointments/{id}/complete", completeHandler(cfg.Service))
	r.Post("/appointments/{id}/no-show", noShowHandler(cfg.Service))

	// Patient queue
	r.Get("/queue", queueHandler(cfg.Service))
	r.Post("/queue/call-next", callNextHandler(cfg.Service))

	// Exam record edit window
	r.Get("/records/edit-window", editWindowHandler(cfg.Service))

	return r
}
