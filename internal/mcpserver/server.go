// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes published pages to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/nbpress/internal/apperr"
	"github.com/starford/nbpress/internal/pageservice"
	"github.com/starford/nbpress/internal/publish"
)

// MetadataFormatURI is the resource holding MetadataFormatContract.
const MetadataFormatURI = "nbpress://metadata-format"

// SyncFunc runs one synchronization pass.
type SyncFunc func() (*publish.Report, error)

// Server wraps the MCP server with nbpress tools.
type Server struct {
	mcp  *server.MCPServer
	svc  *pageservice.Service
	sync SyncFunc
}

// New creates an MCP server with all tools registered. The sync_notebooks
// tool is only registered when sync is non-nil.
func New(svc *pageservice.Service, sync SyncFunc, version string) *Server {
	s := &Server{svc: svc, sync: sync}

	s.mcp = server.NewMCPServer(
		"nbpress",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_pages",
		mcp.WithDescription("Full-text search through published notebook pages."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchPages)

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read the metadata and cleaned text of one published page."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Page id: the notebook file name without suffix")),
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List published pages, optionally only those carrying a tag."),
		mcp.WithString("tag", mcp.Description("Exact tag, e.g. 'python_package: numpy'")),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("get_metadata_format",
		mcp.WithDescription("Returns the description of the per-page metadata file format."),
	), s.getMetadataFormat)

	if sync != nil {
		s.mcp.AddTool(mcp.NewTool("sync_notebooks",
			mcp.WithDescription("Publish new and changed notebooks and rebuild the search index."),
		), s.syncNotebooks)
	}

	s.mcp.AddResource(
		mcp.NewResource(MetadataFormatURI, "Metadata Format",
			mcp.WithResourceDescription("Layout and meaning of the .ipynb-meta files."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMetadataFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := int(req.GetFloat("limit", 20))
	results, err := s.svc.Search(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := s.svc.GetPage(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(page), nil
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := req.GetString("tag", "")
	items, _, err := s.svc.ListPages(ctx, 1000, 0, tag)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no pages found"), nil
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = it.ID + "\t" + it.Title
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getMetadataFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MetadataFormatContract), nil
}

func (s *Server) syncNotebooks(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.sync()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("pass %s: %d new, %d updated, %d unchanged, %d pages indexed",
		report.PassID,
		report.Count(publish.StatusNew),
		report.Count(publish.StatusUpdated),
		report.Count(publish.StatusUnchanged),
		report.Pages)), nil
}

func (s *Server) readMetadataFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      MetadataFormatURI,
			MIMEType: "text/markdown",
			Text:     MetadataFormatContract,
		},
	}, nil
}
