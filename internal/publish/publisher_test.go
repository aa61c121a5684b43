package publish

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/starford/nbpress/internal/apperr"
	"github.com/starford/nbpress/internal/index"
	"github.com/starford/nbpress/internal/metadata"
	"github.com/starford/nbpress/internal/storage"
	"github.com/starford/nbpress/internal/testutil"
)

var (
	sourceTime  = time.Date(2024, 3, 10, 9, 30, 0, 0, time.Local)
	publishTime = time.Date(2024, 3, 11, 18, 0, 0, 0, time.Local)
)

type env struct {
	stores testutil.Stores
	logs   *bytes.Buffer
	clock  time.Time
	opts   []Option
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return &env{stores: testutil.TestStores(t), logs: &bytes.Buffer{}, clock: publishTime}
}

func (e *env) publisher(content storage.Provider) *Publisher {
	if content == nil {
		content = e.stores.Content
	}
	logger := slog.New(slog.NewTextHandler(e.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts := append([]Option{
		WithDefaultAuthor("Ramtin"),
		WithClock(func() time.Time { return e.clock }),
	}, e.opts...)
	return New(e.stores.Notebooks, content, index.NewStore(e.stores.IndexPath), logger, opts...)
}

func (e *env) sync(t *testing.T) *Report {
	t.Helper()
	rep, err := e.publisher(nil).Sync()
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	return rep
}

func (e *env) writeNotebook(t *testing.T, id string, data []byte, mtime time.Time) string {
	t.Helper()
	return testutil.WriteFile(t, e.stores.Notebooks.Root(), id+".ipynb", data, mtime)
}

func (e *env) readContent(t *testing.T, name string) string {
	t.Helper()
	data, err := e.stores.Content.Read(name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func (e *env) readIndex(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(e.stores.IndexPath)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	return data
}

func (e *env) loadIndex(t *testing.T) map[string]index.Page {
	t.Helper()
	pages, err := index.NewStore(e.stores.IndexPath).Load()
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	return pages
}

func (e *env) parseMetadata(t *testing.T, name string) *metadata.Record {
	t.Helper()
	rec, problems := metadata.Parse(e.readContent(t, name))
	if len(problems) != 0 {
		t.Fatalf("parse %s: %v", name, problems)
	}
	return rec
}

func assertStatuses(t *testing.T, r *Report, want map[string]Status) {
	t.Helper()
	if got := statuses(r); !maps.Equal(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}
}

func assertNoIndex(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("index must not be written (stat err = %v)", err)
	}
}

func statuses(r *Report) map[string]Status {
	out := make(map[string]Status, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out[o.ID] = o.Status
	}
	return out
}

func helloNotebook() []byte {
	return testutil.Notebook("python",
		testutil.Markdown("# Hello\nWorld"),
		testutil.Code("import os"),
	)
}

func TestSync_NewDocumentEndToEnd(t *testing.T) {
	e := newEnv(t)
	e.writeNotebook(t, "hello", helloNotebook(), sourceTime)

	rep := e.sync(t)
	if len(rep.Outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(rep.Outcomes))
	}
	if rep.Outcomes[0].Status != StatusNew {
		t.Errorf("status = %q, want new", rep.Outcomes[0].Status)
	}
	if rep.PassID == "" {
		t.Error("PassID is empty")
	}
	if rep.Pages != 1 {
		t.Errorf("Pages = %d, want 1", rep.Pages)
	}

	rec := rep.Outcomes[0].Record
	if rec.Title != "Hello" {
		t.Errorf("Title = %q, want Hello", rec.Title)
	}
	if !slices.Contains(rec.Tags, "python_package: os") {
		t.Errorf("Tags = %q, want python_package: os", rec.Tags)
	}
	if rec.Category != "python" {
		t.Errorf("Category = %q, want python", rec.Category)
	}
	if !slices.Equal(rec.Authors, []string{"Ramtin"}) {
		t.Errorf("Authors = %q, want [Ramtin]", rec.Authors)
	}
	if rec.Summary != "Hello World" {
		t.Errorf("Summary = %q, want %q", rec.Summary, "Hello World")
	}
	if rec.Date != metadata.FormatTime(publishTime) {
		t.Errorf("Date = %q, want publish time", rec.Date)
	}
	if rec.Modified != metadata.FormatTime(sourceTime) {
		t.Errorf("Modified = %q, want source mtime", rec.Modified)
	}

	want := "Title: Hello\n" +
		"Date: 2024-03-11 18:00\n" +
		"Modified: 2024-03-10 09:30\n" +
		"Category: python\n" +
		"Tags: python_package: os\n" +
		"Authors: Ramtin\n" +
		"Slug: hello\n" +
		"Summary: Hello World\n"
	if meta := e.readContent(t, "hello.ipynb-meta"); meta != want {
		t.Errorf("metadata =\n%s\nwant\n%s", meta, want)
	}
	if !e.stores.Content.Exists("hello.ipynb") {
		t.Error("notebook copy not published")
	}

	page, ok := e.loadIndex(t)["hello"]
	if !ok {
		t.Fatal("hello missing from index")
	}
	if !strings.Contains(page.Text, "World") {
		t.Errorf("Text = %q, want it to contain World", page.Text)
	}
	if page.URL != "hello.html" || page.Title != "Hello" || page.Tags != "python_package: os" {
		t.Errorf("page = %+v", page)
	}

	if !strings.Contains(e.logs.String(), "status=new") {
		t.Error("new status not logged")
	}
}

func TestSync_Idempotent(t *testing.T) {
	e := newEnv(t)
	e.writeNotebook(t, "hello", helloNotebook(), sourceTime)
	e.writeNotebook(t, "second_note", testutil.Notebook("python", testutil.Markdown("Plain *text*.")), sourceTime)

	e.sync(t)
	metaBefore := e.readContent(t, "hello.ipynb-meta")
	indexBefore := e.readIndex(t)

	e.logs.Reset()
	e.clock = publishTime.Add(48 * time.Hour)
	rep := e.sync(t)

	assertStatuses(t, rep, map[string]Status{"hello": StatusUnchanged, "second_note": StatusUnchanged})
	if got := e.readContent(t, "hello.ipynb-meta"); got != metaBefore {
		t.Errorf("metadata rewritten:\n%s\nwas\n%s", got, metaBefore)
	}
	if got := e.readIndex(t); !bytes.Equal(got, indexBefore) {
		t.Errorf("index changed:\n%s\nwas\n%s", got, indexBefore)
	}
	if n := strings.Count(e.logs.String(), "status=unchanged"); n != 2 {
		t.Errorf("unchanged log lines = %d, want 2", n)
	}
	if strings.Contains(e.logs.String(), "sync: published") {
		t.Error("unchanged documents were republished")
	}
}

func TestSync_IdempotentWithIrregularWhitespace(t *testing.T) {
	e := newEnv(t)
	e.writeNotebook(t, "spaced", testutil.Notebook("python",
		testutil.Markdown("# Hello  World\nbody  with\tgaps"),
		testutil.Code("import os")), sourceTime)

	rep := e.sync(t)
	if got := rep.Outcomes[0].Record.Title; got != "Hello World" {
		t.Errorf("Title = %q, want %q", got, "Hello World")
	}
	indexBefore := e.readIndex(t)

	rep = e.sync(t)
	assertStatuses(t, rep, map[string]Status{"spaced": StatusUnchanged})
	if got := e.readIndex(t); !bytes.Equal(got, indexBefore) {
		t.Errorf("index changed on second pass:\n%s\nwas\n%s", got, indexBefore)
	}
}

func TestSync_TouchTriggersRebuild(t *testing.T) {
	e := newEnv(t)
	path := e.writeNotebook(t, "hello", helloNotebook(), sourceTime)
	e.sync(t)

	touched := sourceTime.Add(2 * time.Hour)
	testutil.Touch(t, path, touched)
	e.clock = publishTime.Add(24 * time.Hour)

	rep := e.sync(t)
	assertStatuses(t, rep, map[string]Status{"hello": StatusUpdated})

	rec := e.parseMetadata(t, "hello.ipynb-meta")
	if rec.Date != metadata.FormatTime(publishTime) {
		t.Errorf("Date = %q, want it to survive the rebuild", rec.Date)
	}
	if rec.Modified != metadata.FormatTime(touched) {
		t.Errorf("Modified = %q, want %q", rec.Modified, metadata.FormatTime(touched))
	}
	if rec.Title != "Hello" {
		t.Errorf("Title = %q, want Hello", rec.Title)
	}
}

// Modified has minute granularity: an edit inside the same minute as the
// last publish is not detected. This pins the current behaviour.
func TestSync_SameMinuteEditIsUnchanged(t *testing.T) {
	e := newEnv(t)
	path := e.writeNotebook(t, "hello", helloNotebook(), sourceTime)
	e.sync(t)

	if err := os.WriteFile(path, testutil.Notebook("python", testutil.Markdown("# Rewritten")), 0o644); err != nil {
		t.Fatal(err)
	}
	testutil.Touch(t, path, sourceTime.Add(40*time.Second))

	rep := e.sync(t)
	assertStatuses(t, rep, map[string]Status{"hello": StatusUnchanged})
	if got := rep.Outcomes[0].Record.Title; got != "Hello" {
		t.Errorf("Title = %q, want Hello", got)
	}
}

func TestSync_ChangedKeepsEditedAuthors(t *testing.T) {
	e := newEnv(t)
	path := e.writeNotebook(t, "hello", helloNotebook(), sourceTime)
	e.sync(t)

	meta := strings.Replace(e.readContent(t, "hello.ipynb-meta"), "Authors: Ramtin", "Authors: Ada, Grace", 1)
	if err := e.stores.Content.Write("hello.ipynb-meta", []byte(meta)); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, testutil.Notebook("python",
		testutil.Markdown("# New Title\nbody"),
		testutil.Code("from datetime import datetime\nimport sys, os")), 0o644); err != nil {
		t.Fatal(err)
	}
	testutil.Touch(t, path, sourceTime.Add(time.Hour))

	rep := e.sync(t)
	assertStatuses(t, rep, map[string]Status{"hello": StatusUpdated})
	rec := rep.Outcomes[0].Record
	if !slices.Equal(rec.Authors, []string{"Ada", "Grace"}) {
		t.Errorf("Authors = %q, want [Ada Grace]", rec.Authors)
	}
	if rec.Title != "New Title" {
		t.Errorf("Title = %q, want New Title", rec.Title)
	}
	wantTags := []string{
		"python_package: datetime.datetime",
		"python_package: sys",
		"python_package: os",
	}
	if !slices.Equal(rec.Tags, wantTags) {
		t.Errorf("Tags = %q, want %q", rec.Tags, wantTags)
	}
}

func TestSync_OrphanedMetadataSkipped(t *testing.T) {
	e := newEnv(t)
	orphan := "Title: Ghost\nModified: 2020-01-01 00:00\nSlug: ghost\n"
	if err := e.stores.Content.Write("ghost.ipynb-meta", []byte(orphan)); err != nil {
		t.Fatal(err)
	}

	records, err := e.publisher(nil).LoadPublished()
	if err != nil {
		t.Fatalf("LoadPublished: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}

	e.sync(t)
	if got := e.readContent(t, "ghost.ipynb-meta"); got != orphan {
		t.Errorf("orphan must be left on disk, got %q", got)
	}
}

func TestSync_DeletedSourceDroppedFromIndex(t *testing.T) {
	e := newEnv(t)
	e.writeNotebook(t, "keep", helloNotebook(), sourceTime)
	gone := e.writeNotebook(t, "gone", helloNotebook(), sourceTime)
	e.sync(t)

	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}
	rep := e.sync(t)
	assertStatuses(t, rep, map[string]Status{"keep": StatusUnchanged})

	pages := e.loadIndex(t)
	if _, ok := pages["keep"]; !ok {
		t.Error("keep missing from index")
	}
	if _, ok := pages["gone"]; ok {
		t.Error("gone still in index")
	}
	if !e.stores.Content.Exists("gone.ipynb-meta") || !e.stores.Content.Exists("gone.ipynb") {
		t.Error("published files of a deleted source must stay")
	}
}

func TestSync_MalformedMetadataLineIsNotFatal(t *testing.T) {
	e := newEnv(t)
	e.writeNotebook(t, "doc", helloNotebook(), sourceTime)
	testutil.WriteFile(t, e.stores.Content.Root(), "doc.ipynb", helloNotebook(), sourceTime)
	meta := "Title: Custom\nthis line is junk\nModified: " + metadata.FormatTime(sourceTime) + "\nSlug: doc\n"
	if err := e.stores.Content.Write("doc.ipynb-meta", []byte(meta)); err != nil {
		t.Fatal(err)
	}

	rep := e.sync(t)
	assertStatuses(t, rep, map[string]Status{"doc": StatusUnchanged})
	if got := rep.Outcomes[0].Record.Title; got != "Custom" {
		t.Errorf("Title = %q, want Custom", got)
	}
	if !strings.Contains(e.logs.String(), "unrecognised metadata line") {
		t.Error("malformed line not logged")
	}
}

func TestSync_UnchangedWithoutIndexEntryIsReindexed(t *testing.T) {
	e := newEnv(t)
	e.writeNotebook(t, "hello", helloNotebook(), sourceTime)
	e.sync(t)
	metaBefore := e.readContent(t, "hello.ipynb-meta")
	if err := os.Remove(e.stores.IndexPath); err != nil {
		t.Fatal(err)
	}

	rep := e.sync(t)
	assertStatuses(t, rep, map[string]Status{"hello": StatusUnchanged})
	if got := e.readContent(t, "hello.ipynb-meta"); got != metaBefore {
		t.Errorf("metadata rewritten: %q", got)
	}
	if got := e.loadIndex(t)["hello"].Text; got != "Hello\nWorld" {
		t.Errorf("Text = %q, want %q", got, "Hello\nWorld")
	}
}

func TestSync_DefaultTitleFromID(t *testing.T) {
	e := newEnv(t)
	e.writeNotebook(t, "my_first-note", testutil.Notebook("julia",
		testutil.Markdown("No heading here."),
		testutil.Code("using Plots")), sourceTime)

	rec := e.sync(t).Outcomes[0].Record
	if rec.Title != "my first note" {
		t.Errorf("Title = %q, want %q", rec.Title, "my first note")
	}
	if rec.Category != "" || len(rec.Tags) != 0 {
		t.Errorf("Category, Tags = %q, %q, want empty (no extractor for julia)", rec.Category, rec.Tags)
	}
}

func TestSync_StripOutputs(t *testing.T) {
	e := newEnv(t)
	e.opts = []Option{WithStripOutputs(true)}
	e.writeNotebook(t, "hello", helloNotebook(), sourceTime)
	e.sync(t)

	copied := e.readContent(t, "hello.ipynb")
	if strings.Contains(copied, "output_type") {
		t.Error("outputs kept in copy")
	}
	if !strings.Contains(copied, `"outputs": []`) {
		t.Errorf("copy has no empty outputs list:\n%s", copied)
	}
}

func TestSync_UnsupportedVersionIsFatal(t *testing.T) {
	e := newEnv(t)
	e.writeNotebook(t, "ancient", []byte(`{"nbformat": 2, "cells": []}`), sourceTime)

	_, err := e.publisher(nil).Sync()
	if !errors.Is(err, apperr.ErrUnsupportedVersion) {
		t.Fatalf("err = %v, want ErrUnsupportedVersion", err)
	}
	assertNoIndex(t, e.stores.IndexPath)
}

type failingWrites struct {
	storage.Provider
}

func (failingWrites) Write(name string, _ []byte) error {
	return fmt.Errorf("storage: write %s: %w", name, apperr.ErrWriteFailed)
}

func TestSync_WriteFailureAbortsPass(t *testing.T) {
	e := newEnv(t)
	e.writeNotebook(t, "hello", helloNotebook(), sourceTime)

	_, err := e.publisher(failingWrites{e.stores.Content}).Sync()
	if !errors.Is(err, apperr.ErrWriteFailed) {
		t.Fatalf("err = %v, want ErrWriteFailed", err)
	}
	assertNoIndex(t, e.stores.IndexPath)
}

func TestSync_CustomSuffixes(t *testing.T) {
	e := newEnv(t)
	e.opts = []Option{WithNotebookSuffix("nb"), WithMetadataSuffix("meta")}
	testutil.WriteFile(t, e.stores.Notebooks.Root(), "x.nb", helloNotebook(), sourceTime)
	e.writeNotebook(t, "ignored", helloNotebook(), sourceTime)

	rep := e.sync(t)
	assertStatuses(t, rep, map[string]Status{"x": StatusNew})
	for _, name := range []string{"x.meta", "x.nb"} {
		if _, err := os.Stat(filepath.Join(e.stores.Content.Root(), name)); err != nil {
			t.Errorf("%s not published: %v", name, err)
		}
	}
}
