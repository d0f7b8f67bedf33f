package server

import (
	"context"
	"net/http"

	"github.com/abduss/uploads/internal/auth"
	"github.com/abduss/uploads/internal/config"
	"github.com/abduss/uploads/internal/logger"
	"github.com/abduss/uploads/internal/metrics"
	"github.com/abduss/uploads/internal/presigned"
	"github.com/abduss/uploads/internal/upload"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// Pinger is satisfied by *pgxpool.Pool and by the object store adapters.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config         config.Config
	DB             Pinger
	ObjectStore    Pinger
	Verifier       *auth.Verifier
	UploadService  *upload.Service
	PresignService *presigned.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if deps.Config.Sentry.Enabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	if deps.Verifier != nil {
		protected := router.Group("/")
		protected.Use(auth.AuthMiddleware(deps.Verifier))

		if deps.UploadService != nil {
			upload.RegisterRoutes(protected, deps.UploadService)
		}
		if deps.PresignService != nil {
			presigned.RegisterRoutes(protected, deps.PresignService)
		}
	}

	return router
}

// WithCORS wraps handler with CORS handling for the given origins. No origins disables it.
func WithCORS(handler http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return handler
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", logger.CorrelationIDHeader},
		ExposedHeaders: []string{logger.CorrelationIDHeader},
	}).Handler(handler)
}
