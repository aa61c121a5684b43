// Package pageservice answers read queries about published pages for the
// HTTP API and the MCP server.
package pageservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/nbpress/internal/apperr"
	"github.com/starford/nbpress/internal/index"
	"github.com/starford/nbpress/internal/metadata"
	"github.com/starford/nbpress/internal/searchdb"
	"github.com/starford/nbpress/internal/storage"
)

// PageDetail is the full representation of a published page.
type PageDetail struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Date     string   `json:"date,omitempty"`
	Modified string   `json:"modified,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags"`
	Authors  []string `json:"authors"`
	Summary  string   `json:"summary,omitempty"`
	Text     string   `json:"text"`
}

// PageListItem is a lightweight item in a list response.
type PageListItem struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	URL   string   `json:"url"`
	Tags  []string `json:"tags"`
}

// Service reads the content store, the JSON index and, when present, the
// SQLite mirror.
type Service struct {
	content        storage.Provider
	idx            *index.Store
	db             searchdb.PageIndex // nil without a mirror
	metadataSuffix string
}

// NewService creates a page service. db may be nil, in which case listing
// and search scan the JSON index.
func NewService(content storage.Provider, idx *index.Store, db searchdb.PageIndex, metadataSuffix string) *Service {
	return &Service{content: content, idx: idx, db: db, metadataSuffix: metadataSuffix}
}

// GetPage combines the metadata file of id with its index text.
func (s *Service) GetPage(_ context.Context, id string) (*PageDetail, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, apperr.ErrNotFound
	}
	data, err := s.content.Read(id + "." + s.metadataSuffix)
	if err != nil {
		if errors.Is(err, apperr.ErrMissingFile) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	rec, _ := metadata.Parse(string(data))
	rec.ID = id

	text, err := s.pageText(id)
	if err != nil {
		return nil, err
	}
	return &PageDetail{
		ID:       id,
		Title:    rec.Title,
		URL:      rec.URL(),
		Date:     rec.Date,
		Modified: rec.Modified,
		Category: rec.Category,
		Tags:     nonNilSlice(rec.Tags),
		Authors:  nonNilSlice(rec.Authors),
		Summary:  rec.Summary,
		Text:     text,
	}, nil
}

func (s *Service) pageText(id string) (string, error) {
	if s.db != nil {
		row, err := s.db.GetPage(id)
		if err == nil {
			return row.Text, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return "", err
		}
	}
	pages, err := s.idx.Load()
	if err != nil {
		return "", err
	}
	return pages[id].Text, nil
}

// ListPages returns indexed pages ordered by id, optionally only those
// carrying tag, with the total matching count.
func (s *Service) ListPages(_ context.Context, limit, offset int, tag string) ([]PageListItem, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if s.db != nil {
		rows, total, err := s.db.ListPages(limit, offset, tag)
		if err != nil {
			return nil, 0, err
		}
		items := make([]PageListItem, len(rows))
		for i, r := range rows {
			items[i] = PageListItem{ID: r.ID, Title: r.Title, URL: r.URL, Tags: SplitTags(r.Tags)}
		}
		return items, total, nil
	}

	pages, err := s.idx.Load()
	if err != nil {
		return nil, 0, err
	}
	var matched []PageListItem
	for _, p := range index.Sorted(pages) {
		tags := SplitTags(p.Tags)
		if tag != "" && !contains(tags, tag) {
			continue
		}
		matched = append(matched, PageListItem{ID: p.ID, Title: p.Title, URL: p.URL, Tags: tags})
	}
	total := len(matched)
	if offset >= total {
		return []PageListItem{}, total, nil
	}
	end := min(offset+limit, total)
	return matched[offset:end], total, nil
}

// Search queries the mirror, or does a case-insensitive substring scan of
// the JSON index when there is none.
func (s *Service) Search(_ context.Context, query string, limit int) ([]searchdb.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.db != nil {
		res, err := s.db.Search(query, limit)
		if err != nil {
			return nil, fmt.Errorf("pageservice: %w", err)
		}
		return nonNilSlice(res), nil
	}

	pages, err := s.idx.Load()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	out := []searchdb.SearchResult{}
	for _, p := range index.Sorted(pages) {
		if len(out) >= limit {
			break
		}
		haystack := strings.ToLower(p.Title + "\n" + p.Tags + "\n" + p.Text)
		if !strings.Contains(haystack, q) {
			continue
		}
		out = append(out, searchdb.SearchResult{ID: p.ID, Title: p.Title, URL: p.URL, Snippet: snippet(p.Text, 200)})
	}
	return out, nil
}

// Tags returns every distinct tag in the index with its page count.
func (s *Service) Tags(_ context.Context) (map[string]int, error) {
	pages, err := s.idx.Load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int)
	for _, p := range pages {
		for _, t := range SplitTags(p.Tags) {
			out[t]++
		}
	}
	return out, nil
}

// SortedTags returns the keys of counts in order.
func SortedTags(counts map[string]int) []string {
	out := make([]string, 0, len(counts))
	for t := range counts {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SplitTags reverses the ", " join used by the index.
func SplitTags(joined string) []string {
	out := []string{}
	for _, t := range strings.Split(joined, ", ") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func snippet(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
