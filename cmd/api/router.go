package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/ligue-crm/internal/infra/http/handlers"
	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
)

type routerDeps struct {
	CORSOrigins []string
	JWTSecret   []byte
	Profiles    middleware.ProfileFinder
	Limiter     *middleware.RateLimiter

	Health      *handlers.HealthHandler
	Pipeline    *handlers.PipelineHandler
	Calendar    *handlers.CalendarSyncHandler
	Enrollments *handlers.EnrollmentHandler
	Documents   *handlers.DocumentHandler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", d.Health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(d.JWTSecret, d.Profiles))
		if d.Limiter != nil {
			r.Use(d.Limiter.Limit)
		}

		r.Post("/records/{id}/stage", d.Pipeline.HandleTransition)
		r.Get("/pipelines/{recordType}/stages", d.Pipeline.HandleListStages)
		r.Put("/pipelines/{recordType}/stages/{stageKey}/gate", d.Pipeline.HandleConfigureGate)

		r.Post("/calendar/sync", d.Calendar.HandleSync)
		r.Get("/calendar/sync", d.Calendar.HandleGetState)

		r.Get("/sequences/{id}/enrollments", d.Enrollments.HandleList)
		r.Post("/sequences/{id}/enrollments", d.Enrollments.HandleEnroll)
		r.Patch("/sequences/{id}/enrollments", d.Enrollments.HandleBulkAction)

		r.Post("/records/{id}/documents", d.Documents.HandleUpload)
		r.Get("/records/{id}/documents", d.Documents.HandleList)
	})

	return r
}
