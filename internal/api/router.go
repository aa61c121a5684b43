package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/nbpress/internal/pageservice"
)

// Config collects the optional parts of the router.
type Config struct {
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// Notebooks, if non-nil, serves GET /notebooks/{filename}.
	Notebooks *NotebookHandler
	// Sync, if non-nil, is run by POST /sync.
	Sync SyncFunc
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *pageservice.Service, cfg Config) chi.Router {
	h := NewHandler(svc, cfg.Sync)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	r.Get("/pages", h.ListPages)
	r.Get("/pages/{id}", h.GetPage)
	r.Get("/search", h.Search)
	r.Get("/tags", h.Tags)

	if cfg.Sync != nil {
		r.Post("/sync", h.Sync)
	}
	if cfg.Notebooks != nil {
		r.Get("/notebooks/{filename}", cfg.Notebooks.ServeFile)
	}
	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}
	return r
}
