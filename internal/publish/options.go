package publish

import (
	"time"

	"github.com/starford/nbpress/internal/normalize"
)

// Default file suffixes, without the leading dot.
const (
	DefaultNotebookSuffix = "ipynb"
	DefaultMetadataSuffix = "ipynb-meta"
)

// Option is a functional option for configuring a Publisher.
type Option func(*Publisher)

// WithNotebookSuffix sets the suffix of source notebooks and their copies.
func WithNotebookSuffix(suffix string) Option {
	return func(p *Publisher) {
		if suffix != "" {
			p.notebookSuffix = suffix
		}
	}
}

// WithMetadataSuffix sets the suffix of metadata files in the content store.
func WithMetadataSuffix(suffix string) Option {
	return func(p *Publisher) {
		if suffix != "" {
			p.metadataSuffix = suffix
		}
	}
}

// WithDefaultAuthor sets the author given to newly published documents.
// Authors are written as a comma-separated list, so a name containing a
// comma reads back as several authors.
func WithDefaultAuthor(name string) Option {
	return func(p *Publisher) {
		p.defaultAuthor = name
	}
}

// WithStripOutputs clears code-cell outputs in the content store copies.
func WithStripOutputs(strip bool) Option {
	return func(p *Publisher) {
		p.stripOutputs = strip
	}
}

// WithClock overrides the clock used for the Date of new documents.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// WithNormalizer replaces the Markdown cleaning pipeline.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(p *Publisher) {
		if n != nil {
			p.norm = n
		}
	}
}
