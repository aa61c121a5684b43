// Package testutil provides shared test helpers for notebook directories,
// content stores and the search mirror.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/nbpress/internal/searchdb"
	"github.com/starford/nbpress/internal/storage"
)

// TestDB creates a temporary SQLite search mirror that is automatically cleaned up.
func TestDB(t *testing.T) *searchdb.DB {
	t.Helper()
	db, err := searchdb.Open(filepath.Join(t.TempDir(), "search.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Stores holds a notebook directory, a content store and an index path under one temp dir.
type Stores struct {
	Notebooks *storage.FS
	Content   *storage.FS
	IndexPath string
}

// TestStores creates empty notebook and content directories.
func TestStores(t *testing.T) Stores {
	t.Helper()
	root := t.TempDir()
	nbDir := filepath.Join(root, "notebooks")
	contentDir := filepath.Join(root, "content")
	for _, d := range []string{nbDir, contentDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	nb, err := storage.NewFS(nbDir)
	if err != nil {
		t.Fatal(err)
	}
	content, err := storage.NewFS(contentDir)
	if err != nil {
		t.Fatal(err)
	}
	return Stores{
		Notebooks: nb,
		Content:   content,
		IndexPath: filepath.Join(root, "search", "index.json"),
	}
}

// Cell is a notebook cell for Notebook.
type Cell struct {
	Type   string // "markdown", "code" or "raw"
	Source string
}

// Markdown returns a markdown cell.
func Markdown(src string) Cell { return Cell{Type: "markdown", Source: src} }

// Code returns a code cell.
func Code(src string) Cell { return Cell{Type: "code", Source: src} }

// Notebook encodes an nbformat 4 notebook whose kernel language is lang.
func Notebook(lang string, cells ...Cell) []byte {
	type rawCell struct {
		CellType       string         `json:"cell_type"`
		Metadata       map[string]any `json:"metadata"`
		Source         string         `json:"source"`
		Outputs        []any          `json:"outputs,omitempty"`
		ExecutionCount *int           `json:"execution_count,omitempty"`
	}
	one := 1
	raw := make([]rawCell, 0, len(cells))
	for _, c := range cells {
		rc := rawCell{CellType: c.Type, Metadata: map[string]any{}, Source: c.Source}
		if c.Type == "code" {
			rc.Outputs = []any{map[string]any{"output_type": "stream", "name": "stdout", "text": "out\n"}}
			rc.ExecutionCount = &one
		}
		raw = append(raw, rc)
	}
	doc := map[string]any{
		"cells": raw,
		"metadata": map[string]any{
			"language_info": map[string]any{"name": lang, "version": "3.11.0"},
		},
		"nbformat":       4,
		"nbformat_minor": 5,
	}
	data, _ := json.Marshal(doc)
	return data
}

// WriteFile writes data to dir/name and sets its modification time.
func WriteFile(t *testing.T, dir, name string, data []byte, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	Touch(t, path, mtime)
	return path
}

// Touch sets the modification time of path.
func Touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}
