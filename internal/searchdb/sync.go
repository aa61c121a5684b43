package searchdb

import (
	"log/slog"

	"github.com/starford/nbpress/internal/checksum"
	"github.com/starford/nbpress/internal/index"
)

// SyncStats counts what a mirror sync changed.
type SyncStats struct {
	Upserted int
	Deleted  int
}

// Sync brings the mirror up to date with pages:
//   - pages whose content checksum changed are upserted
//   - rows whose id is no longer in pages are deleted
//
// Row failures are logged and skipped; only failing to read the current
// checksums aborts.
func Sync(db PageIndex, pages map[string]index.Page, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats
	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	for _, p := range index.Sorted(pages) {
		cs := PageChecksum(p)
		if checksums[p.ID] == cs {
			continue
		}
		row := PageRow{ID: p.ID, Title: p.Title, Tags: p.Tags, URL: p.URL, Text: p.Text, Checksum: cs}
		if err := db.UpsertPage(row); err != nil {
			logger.Warn("mirror: upsert failed", slog.String("id", p.ID), slog.String("error", err.Error()))
			continue
		}
		stats.Upserted++
		logger.Debug("mirror: upserted", slog.String("id", p.ID))
	}

	for id := range checksums {
		if _, ok := pages[id]; ok {
			continue
		}
		if err := db.DeletePage(id); err != nil {
			logger.Warn("mirror: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		stats.Deleted++
		logger.Debug("mirror: removed stale", slog.String("id", id))
	}
	return stats, nil
}

// PageChecksum fingerprints every field of p.
func PageChecksum(p index.Page) string {
	return checksum.Strings(p.ID, p.Title, p.Tags, p.URL, p.Text)
}
