package controller

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/taskgoapp/taskgo-sync/internal/infrastructure/config"
	"github.com/taskgoapp/taskgo-sync/internal/infrastructure/observability"
	customMW "github.com/taskgoapp/taskgo-sync/internal/middleware"
	"github.com/taskgoapp/taskgo-sync/internal/repository/local"
	"github.com/taskgoapp/taskgo-sync/internal/sync"
)

type RouterDeps struct {
	Pool            *pgxpool.Pool
	RedisClient     *redis.Client
	Scheduler       *sync.Scheduler
	Loop            *sync.Loop
	LocalRepo       *local.Repository
	Metrics         *observability.Metrics
	CORSConfig      config.CORSConfig
	RateLimitPerMin int
}

// NewRouter wires the ops API. The sync routes are only mounted when a
// scheduler and loop are supplied; the replicator daemon runs with just
// health and metrics.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	if deps.RateLimitPerMin > 0 {
		r.Use(customMW.RateLimit(deps.RateLimitPerMin))
	}
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	if deps.Scheduler != nil && deps.Loop != nil {
		syncH := NewSyncController(deps.Scheduler, deps.Loop)
		r.Route("/sync", func(r chi.Router) {
			r.Post("/schedule", syncH.Schedule)
			r.Post("/cycle", syncH.RunCycle)
			r.Post("/force", syncH.ForceSync)
			r.Get("/pending", syncH.Pending)
		})
	}

	if deps.LocalRepo != nil {
		entityH := NewEntityController(deps.LocalRepo)
		r.Route("/entities/{entityType}", func(r chi.Router) {
			r.Get("/", entityH.List)
			r.Put("/", entityH.Save)
			r.Get("/{id}", entityH.Get)
			r.Delete("/{id}", entityH.Delete)
		})
	}

	return r
}
