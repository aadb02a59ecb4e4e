package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vivaagenda/practice-scheduling/internal/schedule"
)

type RouterConfig struct {
	Service *schedule.Service
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
	r.Use(MetricsMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/slots", func(r chi.Router) {
		r.Get("/", listSlotsHandler(cfg.Service))
		r.Post("/", createSlotHandler(cfg.Service))
		r.Post("/double", createDoubleHandler(cfg.Service))
		r.Get("/{id}", getSlotHandler(cfg.Service))
		r.Patch("/{id}", updateSlotHandler(cfg.Service))
		r.Delete("/{id}", deleteSlotHandler(cfg.Service))
		r.Post("/{id}/reserve", reserveSlotHandler(cfg.Service))
		r.Post("/{id}/confirm", confirmSlotHandler(cfg.Service))
		r.Post("/{id}/change-time", changeTimeHandler(cfg.Service))
		r.Post("/{id}/recurring/preview", previewRecurringHandler(cfg.Service))
		r.Post("/{id}/recurring", createRecurringHandler(cfg.Service))
	})

	r.Route("/blocked-days", func(r chi.Router) {
		r.Get("/", listBlockedDaysHandler(cfg.Service))
		r.Post("/", blockDayHandler(cfg.Service))
		r.Delete("/{date}", unblockDayHandler(cfg.Service))
	})

	r.Post("/renewals/run", runRenewalHandler(cfg.Service))

	return r
}
