package internal

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/nbpress/internal/index"
	"github.com/starford/nbpress/internal/publish"
	"github.com/starford/nbpress/internal/searchdb"
)

// pipeline serializes synchronization passes and mirrors each finished pass
// into SQLite. The watcher, POST /api/sync and the MCP sync tool share one.
type pipeline struct {
	mu     sync.Mutex
	pub    *publish.Publisher
	idx    *index.Store
	db     searchdb.PageIndex // nil without a mirror
	logger *slog.Logger
}

// Run executes one pass. A mirror failure is logged; the pass still counts.
func (p *pipeline) Run() (*publish.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	report, err := p.pub.Sync()
	if err != nil {
		return nil, err
	}
	if p.db == nil {
		return report, nil
	}
	if err := p.mirror(); err != nil {
		p.logger.Warn("mirror: sync failed",
			slog.String("pass_id", report.PassID),
			slog.String("error", err.Error()))
	}
	return report, nil
}

// mirror copies the saved index into the SQLite mirror.
func (p *pipeline) mirror() error {
	pages, err := p.idx.Load()
	if err != nil {
		return err
	}
	stats, err := searchdb.Sync(p.db, pages, p.logger)
	if err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	p.logger.Debug("mirror: done", slog.Int("upserted", stats.Upserted), slog.Int("deleted", stats.Deleted))
	return nil
}
