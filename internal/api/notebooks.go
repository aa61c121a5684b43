package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/nbpress/internal/storage"
)

// NotebookHandler serves the notebook copies held in the content store.
type NotebookHandler struct {
	content storage.Provider
	suffix  string
}

// NewNotebookHandler creates a handler for files named *.suffix in content.
func NewNotebookHandler(content storage.Provider, suffix string) *NotebookHandler {
	return &NotebookHandler{content: content, suffix: "." + strings.TrimPrefix(suffix, ".")}
}

// safeName accepts only a plain file name with the notebook suffix.
func (h *NotebookHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsAny(cleaned, `/\`) {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if !strings.HasSuffix(cleaned, h.suffix) {
		return "", fmt.Errorf("not a notebook: %s", name)
	}
	return cleaned, nil
}

// ServeFile handles GET /notebooks/{filename}.
func (h *NotebookHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name, err := h.safeName(chi.URLParam(r, "filename"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if !h.content.Exists(name) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	data, err := h.content.Read(name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "application/x-ipynb+json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
