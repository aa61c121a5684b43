// Package index maintains the consolidated JSON search index consumed by the
// site's client-side search.
package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/nbpress/internal/apperr"
	"github.com/starford/nbpress/internal/metadata"
	"github.com/starford/nbpress/internal/storage"
)

// Page is the flattened search entry of one document.
type Page struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Tags  string `json:"tags"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// FromRecord projects a metadata record onto its index page.
func FromRecord(r *metadata.Record) Page {
	return Page{
		ID:    r.ID,
		Title: r.Title,
		Tags:  strings.Join(r.Tags, ", "),
		URL:   r.URL(),
		Text:  r.CleanedText,
	}
}

// Build projects every record. Records are keyed by id.
func Build(records map[string]*metadata.Record) map[string]Page {
	out := make(map[string]Page, len(records))
	for id, r := range records {
		out[id] = FromRecord(r)
	}
	return out
}

// Sorted returns the pages ordered by id.
func Sorted(pages map[string]Page) []Page {
	out := make([]Page, 0, len(pages))
	for _, p := range pages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type file struct {
	Pages []Page `json:"pages"`
}

// Store reads and writes the index file.
type Store struct {
	path string
}

// NewStore returns a store for the index file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the index file location.
func (s *Store) Path() string { return s.path }

// Load returns the pages keyed by id. A missing file yields an empty map.
// Pages without an id are skipped.
func (s *Store) Load() (map[string]Page, error) {
	pages := make(map[string]Page)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return pages, nil
		}
		return nil, fmt.Errorf("index: read %s: %w", s.path, err)
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("index: decode %s: %w", s.path, err)
	}
	for _, p := range f.Pages {
		if p.ID == "" {
			continue
		}
		pages[p.ID] = p
	}
	return pages, nil
}

// Save rewrites the whole index file atomically, pages sorted by id.
func (s *Store) Save(pages map[string]Page) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(file{Pages: Sorted(pages)}); err != nil {
		return fmt.Errorf("index: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("index: mkdir: %w: %w", apperr.ErrWriteFailed, err)
	}
	fsys, err := storage.NewFS(dir)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := fsys.Write(filepath.Base(s.path), buf.Bytes()); err != nil {
		return fmt.Errorf("index: save: %w", err)
	}
	return nil
}
