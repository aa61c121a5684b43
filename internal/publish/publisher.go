// Package publish synchronizes a notebook directory with the content store
// and rebuilds the search index.
//
// A pass is single-threaded and runs in four phases: LoadPublished,
// LoadIndex, Discover and Persist. State flows between phases as explicit
// maps; nothing survives a pass except what Persist writes. Callers must not
// run two passes over the same stores concurrently.
package publish

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/nbpress/internal/apperr"
	"github.com/starford/nbpress/internal/index"
	"github.com/starford/nbpress/internal/metadata"
	"github.com/starford/nbpress/internal/normalize"
	"github.com/starford/nbpress/internal/notebook"
	"github.com/starford/nbpress/internal/storage"
)

// Status is the classification of a document in a pass.
type Status string

const (
	StatusNew       Status = "new"
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
)

// Outcome is the result of discovering one notebook.
type Outcome struct {
	ID     string
	Status Status
	Record *metadata.Record

	source []byte // notebook bytes to copy; set for new and updated documents
}

// Report summarises a finished pass.
type Report struct {
	PassID   string
	Outcomes []Outcome
	Pages    int // entries written to the index
}

// Count returns how many documents ended with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Publisher runs synchronization passes.
type Publisher struct {
	notebooks storage.Provider
	content   storage.Provider
	index     *index.Store
	logger    *slog.Logger

	notebookSuffix string
	metadataSuffix string
	defaultAuthor  string
	stripOutputs   bool
	norm           *normalize.Normalizer
	now            func() time.Time
}

// New creates a Publisher reading notebooks from notebooks and publishing
// into content and idx.
func New(notebooks, content storage.Provider, idx *index.Store, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		notebooks:      notebooks,
		content:        content,
		index:          idx,
		logger:         logger,
		notebookSuffix: DefaultNotebookSuffix,
		metadataSuffix: DefaultMetadataSuffix,
		norm:           normalize.New(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

func (p *Publisher) notebookName(id string) string { return id + "." + p.notebookSuffix }
func (p *Publisher) metadataName(id string) string { return id + "." + p.metadataSuffix }

// Sync runs one full pass. Any I/O failure aborts it; files written before
// the failure stay written and the index is left untouched.
func (p *Publisher) Sync() (*Report, error) {
	run := *p
	passID := uuid.NewString()
	run.logger = p.logger.With(slog.String("pass_id", passID))

	records, err := run.LoadPublished()
	if err != nil {
		return nil, err
	}
	cached, err := run.LoadIndex(records)
	if err != nil {
		return nil, err
	}
	outcomes, err := run.Discover(records, cached)
	if err != nil {
		return nil, err
	}
	pages, err := run.Persist(outcomes)
	if err != nil {
		return nil, err
	}

	report := &Report{PassID: passID, Outcomes: outcomes, Pages: len(pages)}
	run.logger.Info("sync: done",
		slog.Int("new", report.Count(StatusNew)),
		slog.Int("updated", report.Count(StatusUpdated)),
		slog.Int("unchanged", report.Count(StatusUnchanged)),
		slog.Int("pages", report.Pages))
	return report, nil
}

// LoadPublished reads every metadata file in the content store whose
// notebook copy is also present. Metadata without a copy is orphaned: it is
// skipped and left on disk. Malformed lines are logged, not fatal.
func (p *Publisher) LoadPublished() (map[string]*metadata.Record, error) {
	entries, err := p.content.List(p.metadataSuffix)
	if err != nil {
		return nil, fmt.Errorf("publish: list metadata: %w", err)
	}

	records := make(map[string]*metadata.Record, len(entries))
	for _, e := range entries {
		if !p.content.Exists(p.notebookName(e.ID)) {
			p.logger.Debug("sync: orphaned metadata skipped", slog.String("file", e.Name))
			continue
		}
		data, err := p.content.Read(e.Name)
		if err != nil {
			if errors.Is(err, apperr.ErrMissingFile) {
				continue
			}
			return nil, fmt.Errorf("publish: %w", err)
		}
		rec, problems := metadata.Parse(string(data))
		for _, prob := range problems {
			p.logger.Warn("sync: unrecognised metadata line",
				slog.String("file", e.Name),
				slog.String("error", prob.Error()))
		}
		rec.ID = e.ID
		records[e.ID] = rec
	}
	return records, nil
}

// LoadIndex reads the existing index and copies cached text into the
// matching records. It returns the cached pages.
func (p *Publisher) LoadIndex(records map[string]*metadata.Record) (map[string]index.Page, error) {
	pages, err := p.index.Load()
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	for id, page := range pages {
		if rec, ok := records[id]; ok && rec.CleanedText == "" {
			rec.CleanedText = page.Text
		}
	}
	return pages, nil
}

// Discover classifies every notebook against the published records.
//
// The comparison is on Modified strings in metadata.TimeLayout, so changes
// within the same minute as the last publish are seen as unchanged.
func (p *Publisher) Discover(records map[string]*metadata.Record, cached map[string]index.Page) ([]Outcome, error) {
	entries, err := p.notebooks.List(p.notebookSuffix)
	if err != nil {
		return nil, fmt.Errorf("publish: list notebooks: %w", err)
	}

	outcomes := make([]Outcome, 0, len(entries))
	for _, e := range entries {
		modified := metadata.FormatTime(e.ModTime)
		prev, known := records[e.ID]

		switch {
		case known && prev.Modified == modified:
			if _, ok := cached[e.ID]; !ok {
				// No cached text to reuse: re-derive it without touching the metadata.
				_, doc, err := p.readNotebook(e.Name)
				if err != nil {
					return nil, err
				}
				prev.CleanedText = p.build(e.ID, doc).CleanedText
			}
			outcomes = append(outcomes, Outcome{ID: e.ID, Status: StatusUnchanged, Record: prev})

		case known:
			data, doc, err := p.readNotebook(e.Name)
			if err != nil {
				return nil, err
			}
			rec := p.build(e.ID, doc)
			rec.Date = prev.Date
			if rec.Date == "" {
				rec.Date = metadata.FormatTime(p.now())
			}
			if len(prev.Authors) > 0 {
				rec.Authors = append([]string{}, prev.Authors...)
			}
			rec.Modified = modified
			outcomes = append(outcomes, Outcome{ID: e.ID, Status: StatusUpdated, Record: rec, source: data})

		default:
			data, doc, err := p.readNotebook(e.Name)
			if err != nil {
				return nil, err
			}
			rec := p.build(e.ID, doc)
			rec.Date = metadata.FormatTime(p.now())
			rec.Modified = modified
			outcomes = append(outcomes, Outcome{ID: e.ID, Status: StatusNew, Record: rec, source: data})
		}

		p.logger.Info("sync: document",
			slog.String("id", e.ID),
			slog.String("status", string(outcomes[len(outcomes)-1].Status)))
	}
	return outcomes, nil
}

func (p *Publisher) readNotebook(name string) ([]byte, *notebook.Document, error) {
	data, err := p.notebooks.Read(name)
	if err != nil {
		return nil, nil, fmt.Errorf("publish: %w", err)
	}
	doc, err := notebook.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("publish: %s: %w", name, err)
	}
	return data, doc, nil
}

// Persist writes the notebook copy and metadata of every new or updated
// document, in discovery order, then rebuilds and saves the whole index from
// the discovered records. Index entries for notebooks that were not
// discovered are dropped.
func (p *Publisher) Persist(outcomes []Outcome) (map[string]index.Page, error) {
	records := make(map[string]*metadata.Record, len(outcomes))
	for _, o := range outcomes {
		records[o.ID] = o.Record
		if o.Status == StatusUnchanged {
			continue
		}
		copyData, err := notebook.Export(o.source, p.stripOutputs)
		if err != nil {
			return nil, fmt.Errorf("publish: %s: %w", o.ID, err)
		}
		if err := p.content.Write(p.notebookName(o.ID), copyData); err != nil {
			return nil, fmt.Errorf("publish: copy %s: %w", o.ID, err)
		}
		if err := p.content.Write(p.metadataName(o.ID), []byte(o.Record.Format())); err != nil {
			return nil, fmt.Errorf("publish: metadata %s: %w", o.ID, err)
		}
		p.logger.Info("sync: published", slog.String("id", o.ID), slog.String("status", string(o.Status)))
	}

	pages := index.Build(records)
	if err := p.index.Save(pages); err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	return pages, nil
}
