package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/nbpress/internal/index"
	"github.com/starford/nbpress/internal/pageservice"
	"github.com/starford/nbpress/internal/publish"
	"github.com/starford/nbpress/internal/testutil"
)

func testServer(t *testing.T) (*Server, testutil.Stores) {
	t.Helper()
	stores := testutil.TestStores(t)
	mtime := time.Date(2024, 2, 2, 10, 0, 0, 0, time.Local)
	testutil.WriteFile(t, stores.Notebooks.Root(), "arrays.ipynb", testutil.Notebook("python",
		testutil.Markdown("# Arrays\nVectorised maths."),
		testutil.Code("import numpy")), mtime)
	testutil.WriteFile(t, stores.Notebooks.Root(), "files.ipynb", testutil.Notebook("python",
		testutil.Markdown("# Files\nReading paths."),
		testutil.Code("import os")), mtime)

	idx := index.NewStore(stores.IndexPath)
	pub := publish.New(stores.Notebooks, stores.Content, idx, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := pub.Sync(); err != nil {
		t.Fatal(err)
	}
	svc := pageservice.NewService(stores.Content, idx, nil, publish.DefaultMetadataSuffix)
	return New(svc, pub.Sync, "test"), stores
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error
	switch name {
	case "search_pages":
		result, err = srv.searchPages(ctx, req)
	case "read_page":
		result, err = srv.readPage(ctx, req)
	case "list_pages":
		result, err = srv.listPages(ctx, req)
	case "get_metadata_format":
		result, err = srv.getMetadataFormat(ctx, req)
	case "sync_notebooks":
		result, err = srv.syncNotebooks(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestReadPage(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "read_page", map[string]any{"id": "arrays"})
	if r.IsError {
		t.Fatalf("read_page error: %s", resultText(r))
	}
	var page pageservice.PageDetail
	if err := json.Unmarshal([]byte(resultText(r)), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Title != "Arrays" || page.Category != "python" {
		t.Errorf("page = %+v", page)
	}
}

func TestReadPageMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_page", map[string]any{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing page")
	}
	r = callTool(t, srv, "read_page", map[string]any{})
	if !r.IsError {
		t.Error("expected error without id")
	}
}

func TestSearchPages(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "search_pages", map[string]any{"query": "vectorised"})
	if r.IsError {
		t.Fatalf("search error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"id": "arrays"`) {
		t.Errorf("search result = %s", resultText(r))
	}
}

func TestListPages(t *testing.T) {
	srv, _ := testServer(t)

	text := resultText(callTool(t, srv, "list_pages", map[string]any{}))
	if text != "arrays\tArrays\nfiles\tFiles" {
		t.Errorf("list = %q", text)
	}

	text = resultText(callTool(t, srv, "list_pages", map[string]any{"tag": "python_package: os"}))
	if text != "files\tFiles" {
		t.Errorf("filtered list = %q", text)
	}

	text = resultText(callTool(t, srv, "list_pages", map[string]any{"tag": "none"}))
	if text != "no pages found" {
		t.Errorf("empty list = %q", text)
	}
}

func TestSyncNotebooks(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "sync_notebooks", nil))
	if !strings.Contains(text, "0 new, 0 updated, 2 unchanged, 2 pages indexed") {
		t.Errorf("sync = %q", text)
	}
}

func TestMetadataFormatResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readMetadataFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != MetadataFormatURI || !strings.Contains(tc.Text, "Modified:") {
		t.Errorf("resource = %+v", contents)
	}
	if got := resultText(callTool(t, srv, "get_metadata_format", nil)); got != MetadataFormatContract {
		t.Error("tool and resource disagree")
	}
}
