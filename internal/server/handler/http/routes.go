package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atinyakov/sms-drafts/internal/middleware"
)

// RouterConfig carries the handlers and settings for NewRouter.
type RouterConfig struct {
	Drafts *DraftHandler
	Sync   *SyncHandler
	Status *StatusHandler
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	Logger         *zap.Logger
	AllowedOrigins []string
	// APIToken, when set, is required as a bearer token on /api.
	APIToken string
}

// NewRouter constructs the local draft API.
//
// Routes:
//
//	GET    /api/drafts                     → Drafts.List (?type= filter)
//	GET    /api/drafts/unsynced            → Drafts.Unsynced
//	POST   /api/drafts/{type}              → Drafts.Create
//	DELETE /api/drafts/{type}              → Drafts.Clear
//	GET    /api/drafts/{type}/{id}         → Drafts.Get
//	PUT    /api/drafts/{type}/{id}         → Drafts.Put
//	DELETE /api/drafts/{type}/{id}         → Drafts.Delete
//	POST   /api/drafts/{type}/{id}/synced  → Drafts.MarkSynced
//	POST   /api/sync                       → Sync.Sync
//	GET    /api/status                     → Status.Status
//	GET    /metrics                        → Metrics
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.WithRequestLogging(cfg.Logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.TokenAuth(cfg.APIToken))

		r.Get("/status", cfg.Status.Status)
		r.Post("/sync", cfg.Sync.Sync)

		r.Route("/drafts", func(r chi.Router) {
			// Only allow bodies with Content-Type: application/json
			r.Use(chiMiddleware.AllowContentType("application/json"))

			r.Get("/", cfg.Drafts.List)
			r.Get("/unsynced", cfg.Drafts.Unsynced)
			r.Post("/{type}", cfg.Drafts.Create)
			r.Delete("/{type}", cfg.Drafts.Clear)
			r.Get("/{type}/{id}", cfg.Drafts.Get)
			r.Put("/{type}/{id}", cfg.Drafts.Put)
			r.Delete("/{type}/{id}", cfg.Drafts.Delete)
			r.Post("/{type}/{id}/synced", cfg.Drafts.MarkSynced)
		})
	})

	return r
}
