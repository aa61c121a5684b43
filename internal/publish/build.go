package publish

import (
	"log/slog"
	"strings"

	"github.com/starford/nbpress/internal/metadata"
	"github.com/starford/nbpress/internal/notebook"
	"github.com/starford/nbpress/internal/symbols"
)

// build derives a fresh record from doc. Date and Modified are left for the
// caller to fill. The record is returned in canonical form so the index built
// from it matches the one rebuilt later from the metadata file.
//
// Markdown cells feed the cleaned text; the first non-empty one becomes the
// summary. The first heading cell or leading "# " heading becomes the title.
// Code cells in a language with a registered extractor set the category and
// add one "<language>_package: <name>" tag per dependency.
func (p *Publisher) build(id string, doc *notebook.Document) *metadata.Record {
	rec := metadata.New(id, p.defaultAuthor)
	titled := false
	var texts []string

	for _, cell := range doc.Cells {
		switch c := cell.(type) {
		case notebook.HeadingCell:
			_, cleaned := p.norm.Normalize(c.Source)
			if cleaned == "" {
				continue
			}
			if !titled {
				rec.Title, titled = cleaned, true
			}
			texts = append(texts, cleaned)

		case notebook.MarkdownCell:
			title, cleaned := p.norm.Normalize(c.Source)
			if !titled && title != "" {
				rec.Title, titled = title, true
			}
			if cleaned == "" {
				continue
			}
			if rec.Summary == "" {
				rec.Summary = cleaned
			}
			texts = append(texts, cleaned)

		case notebook.CodeCell:
			ex, ok := symbols.ForLanguage(c.Language)
			if !ok {
				continue
			}
			lang := strings.ToLower(c.Language)
			rec.Category = lang
			res := ex.Extract(c.Source)
			for _, dep := range res.Dependencies {
				rec.AddTag(lang + "_package: " + dep)
			}
			if len(res.Types) > 0 || len(res.Callables) > 0 {
				p.logger.Debug("sync: declarations",
					slog.String("id", id),
					slog.Any("types", res.Types),
					slog.Any("callables", res.Callables))
			}
		}
	}

	rec.CleanedText = strings.Join(texts, "\n")
	return rec.Canonical()
}
