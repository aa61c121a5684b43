package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/nbpress/internal/apperr"
	"github.com/starford/nbpress/internal/pageservice"
	"github.com/starford/nbpress/internal/publish"
)

// SyncFunc runs one synchronization pass.
type SyncFunc func() (*publish.Report, error)

// Handler holds API route handlers.
type Handler struct {
	svc  *pageservice.Service
	sync SyncFunc
}

// NewHandler creates a new Handler. sync may be nil.
func NewHandler(svc *pageservice.Service, sync SyncFunc) *Handler {
	return &Handler{svc: svc, sync: sync}
}

// ListPages handles GET /api/pages?limit=&offset=&tag=.
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListPages(r.Context(), limit, offset, q.Get("tag"))
	if err != nil {
		slog.Error("list pages failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if items == nil {
		items = []PageListItem{}
	}
	writeJSON(w, http.StatusOK, PageListResponse{Pages: items, Total: total})
}

// GetPage handles GET /api/pages/{id}.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page, err := h.svc.GetPage(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get page failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Search handles GET /api/search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Tags handles GET /api/tags.
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Tags(r.Context())
	if err != nil {
		slog.Error("tags failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	out := make([]TagCount, 0, len(counts))
	for _, t := range pageservice.SortedTags(counts) {
		out = append(out, TagCount{Tag: t, Pages: counts[t]})
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: out})
}

// Sync handles POST /api/sync.
func (h *Handler) Sync(w http.ResponseWriter, _ *http.Request) {
	report, err := h.sync()
	if err != nil {
		slog.Error("sync failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("sync failed"))
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{
		PassID:    report.PassID,
		New:       report.Count(publish.StatusNew),
		Updated:   report.Count(publish.StatusUpdated),
		Unchanged: report.Count(publish.StatusUnchanged),
		Pages:     report.Pages,
	})
}
