// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the zettelkasten read surface for LLM integration via
// stdio transport. All tools are read-only; mutations stay with the
// CLI so the autocommit policy is never bypassed.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/okvist/zet/internal/index"
	"github.com/okvist/zet/internal/storage"
)

// Server wraps the MCP server with the zettelkasten tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	db    *index.Store
}

// New creates a new MCP server with all tools registered.
func New(store storage.Provider, db *index.Store) *Server {
	s := &Server{store: store, db: db}

	s.mcp = server.NewMCPServer(
		"Zet",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List every note in the zettelkasten as (id, title) pairs."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full Markdown content of a note by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id (e.g. 20250301100000123456)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("get_links",
		mcp.WithDescription("List the outgoing links of a note. Targets may be dangling."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.getLinks)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find the ids of all notes linking to the given note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id to find backlinks for")),
	), s.getBacklinks)

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

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.db.List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, err := s.db.GetNote(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	data, err := s.store.Read(row.Path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("note file missing: %s", row.Path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.db.GetNote(id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	links, err := s.db.GetLinks(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no links"), nil
	}
	return mcp.NewToolResultText(strings.Join(links, "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.db.Backlinks(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}
