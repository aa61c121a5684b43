// Package storage defines the file-system abstraction for the notebook
// directory and the content store.
package storage

import (
	"time"

	"github.com/starford/nbpress/internal/models"
)

// Provider is the interface for flat store directories.
type Provider interface {
	// List returns every file directly under the root whose name ends in suffix, sorted by name.
	List(suffix string) ([]models.Entry, error)
	// Read returns the raw bytes of the file at name (relative to root).
	Read(name string) ([]byte, error)
	// Write atomically writes content to name (relative to root).
	Write(name string, content []byte) error
	// Exists reports whether name is a regular file under root.
	Exists(name string) bool
	// ModTime returns the modification time of name.
	ModTime(name string) (time.Time, error)
	// Root returns the absolute root directory.
	Root() string
}
