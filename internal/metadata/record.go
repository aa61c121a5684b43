// Package metadata defines the per-document metadata record and its
// "Key: value" file format.
package metadata

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/starford/nbpress/internal/apperr"
)

// TimeLayout is the timestamp format of Date and Modified. It has minute
// granularity, so two edits within the same minute compare equal.
const TimeLayout = "2006-01-02 15:04"

// FormatTime renders t with TimeLayout in local time.
func FormatTime(t time.Time) string {
	return t.Local().Format(TimeLayout)
}

// Record is the publishable metadata of one document.
type Record struct {
	ID          string
	Title       string
	Date        string
	Modified    string
	Category    string
	Tags        []string
	Authors     []string
	Summary     string
	CleanedText string // not part of the file format; cached in the index
}

// New returns a record for id with a title derived from the id and author
// as the only author. Every call gets its own slices.
func New(id, author string) *Record {
	r := &Record{
		ID:      id,
		Title:   DefaultTitle(id),
		Tags:    []string{},
		Authors: []string{},
	}
	if author != "" {
		r.Authors = append(r.Authors, author)
	}
	return r
}

// DefaultTitle turns an id such as "intro_to-numpy" into "intro to numpy".
func DefaultTitle(id string) string {
	return strings.NewReplacer("_", " ", "-", " ").Replace(id)
}

// URL is the page address the site generator produces for the record.
func (r *Record) URL() string {
	return r.ID + ".html"
}

// AddTag appends tag unless it is already present.
func (r *Record) AddTag(tag string) {
	for _, t := range r.Tags {
		if t == tag {
			return
		}
	}
	r.Tags = append(r.Tags, tag)
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.Tags = append([]string{}, r.Tags...)
	c.Authors = append([]string{}, r.Authors...)
	return &c
}

// Canonical rewrites r's metadata fields into the form Parse returns for
// Format's output, so a record built in memory and the same record read back
// from disk compare equal. CleanedText is not stored and is left alone.
func (r *Record) Canonical() *Record {
	r.Title = singleLine(r.Title)
	r.Date = singleLine(r.Date)
	r.Modified = singleLine(r.Modified)
	r.Category = singleLine(r.Category)
	r.Summary = singleLine(r.Summary)
	r.Tags = splitList(singleLine(joinList(r.Tags)))
	r.Authors = splitList(singleLine(joinList(r.Authors)))
	return r
}

// Format renders the present fields, one "Key: value" line each, in the
// order Title, Date, Modified, Category, Tags, Authors, Slug, Summary.
func (r *Record) Format() string {
	var b strings.Builder
	line := func(key, value string) {
		value = singleLine(value)
		if value == "" {
			return
		}
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteByte('\n')
	}
	line("Title", r.Title)
	line("Date", r.Date)
	line("Modified", r.Modified)
	line("Category", r.Category)
	line("Tags", joinList(r.Tags))
	line("Authors", joinList(r.Authors))
	line("Slug", r.ID)
	line("Summary", r.Summary)
	return b.String()
}

// LineError reports a line that is not in "Key: value" form.
type LineError struct {
	Line int
	Text string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("metadata: line %d: %q: %s", e.Line, e.Text, apperr.ErrMalformedLine)
}

// Unwrap lets errors.Is match apperr.ErrMalformedLine.
func (e *LineError) Unwrap() error { return apperr.ErrMalformedLine }

// Parse reads a metadata file. Blank lines are skipped and unknown keys are
// ignored. Lines without a ":" are returned as *LineError values and parsing
// continues. Absent fields keep their zero value.
func Parse(text string) (*Record, []error) {
	r := &Record{Tags: []string{}, Authors: []string{}}
	var problems []error

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		key, value, ok := strings.Cut(raw, ":")
		if !ok {
			problems = append(problems, &LineError{Line: n, Text: raw})
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Title":
			r.Title = value
		case "Date":
			r.Date = value
		case "Modified":
			r.Modified = value
		case "Category":
			r.Category = value
		case "Tags":
			r.Tags = splitList(value)
		case "Authors":
			r.Authors = splitList(value)
		case "Slug":
			r.ID = value
		case "Summary":
			r.Summary = value
		}
	}
	if err := sc.Err(); err != nil {
		problems = append(problems, fmt.Errorf("metadata: scan: %w", err))
	}
	return r, problems
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}

func splitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// singleLine collapses runs of whitespace so a value fits on one line.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
