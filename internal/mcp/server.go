// Package mcp exposes the caption library to MCP clients over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/clapety/clapety/internal/db"
	"github.com/clapety/clapety/internal/embeddings"
	"github.com/clapety/clapety/internal/search"
	"github.com/clapety/clapety/internal/types"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Server struct {
	db       *db.DB
	provider embeddings.Provider
	vectors  embeddings.VectorStorage
	logger   *log.Logger
}

func New(db *db.DB, provider embeddings.Provider, vectors embeddings.VectorStorage, logger *log.Logger) *Server {
	return &Server{
		db:       db,
		provider: provider,
		vectors:  vectors,
		logger:   logger,
	}
}

func (s *Server) Run() error {
	// Create MCP server
	mcpServer := server.NewMCPServer(
		"Clapety Audio Captions",
		"1.0.0",
	)

	mcpServer.AddTool(mcp.NewTool("search_captions",
		mcp.WithDescription("Search captioned audio clips by description"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query - what the audio should sound like"),
		),
		mcp.WithString("mode",
			mcp.Description("Search mode: text, vector, or hybrid (default: hybrid)"),
		),
		mcp.WithString("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	), s.searchCaptionsHandler)

	mcpServer.AddTool(mcp.NewTool("list_captions",
		mcp.WithDescription("List captioned audio clips, newest first"),
		mcp.WithString("limit",
			mcp.Description("Maximum number of results to return (default: 50)"),
		),
	), s.listCaptionsHandler)

	// Start the stdio server
	if err := server.ServeStdio(mcpServer); err != nil {
		return err
	}

	return nil
}

func (s *Server) searchCaptionsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, ok := request.Params.Arguments["query"].(string)
	if !ok {
		return nil, errors.New("query must be a string")
	}

	mode := "hybrid"
	if modeVal, ok := request.Params.Arguments["mode"].(string); ok && modeVal != "" {
		mode = modeVal
	}

	limit, err := intArgument(request.Params.Arguments, "limit", 10)
	if err != nil {
		return nil, err
	}

	var results []types.CaptionSearchResult
	switch mode {
	case "text":
		results, _, err = search.TextSearch(ctx, s.db, query, search.WithLimit(limit))
	case "vector":
		var page types.SearchResults
		page, err = search.VectorSearch(ctx, s.logger, s.db, s.provider, s.vectors, query, search.WithLimit(limit))
		results = page.Results
	case "hybrid":
		var page types.SearchResults
		page, err = search.HybridSearch(ctx, s.logger, s.db, s.provider, s.vectors, query, search.WithLimit(limit))
		results = page.Results
	default:
		return nil, fmt.Errorf("unknown search mode: %s", mode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search captions: %w", err)
	}

	return mcp.NewToolResultText(formatResults(results)), nil
}

func (s *Server) listCaptionsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit, err := intArgument(request.Params.Arguments, "limit", 50)
	if err != nil {
		return nil, err
	}

	captions, err := s.db.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list captions: %w", err)
	}

	var b strings.Builder
	for _, c := range captions {
		writeCaption(&b, c)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func intArgument(args map[string]interface{}, key string, fallback int) (int, error) {
	val, ok := args[key]
	if !ok {
		return fallback, nil
	}
	switch v := val.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%s must be a number or string", key)
	}
}

func formatResults(results []types.CaptionSearchResult) string {
	var b strings.Builder
	for _, r := range results {
		writeCaption(&b, r.StoredCaption)
		if r.Scores.TextScore != 0 {
			fmt.Fprintf(&b, "  Text Score: %.3f\n", r.Scores.TextScore)
		}
		if r.Scores.VectorScore != 0 {
			fmt.Fprintf(&b, "  Similarity: %.3f\n", r.Scores.VectorScore)
		}
		if r.Scores.RRFScore != 0 {
			fmt.Fprintf(&b, "  RRF Score: %.4f\n", r.Scores.RRFScore)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeCaption(b *strings.Builder, c types.StoredCaption) {
	fmt.Fprintf(b, "%s: %s\n", c.File, c.Caption)
	fmt.Fprintf(b, "  Model: %s\n", c.Model)
	fmt.Fprintf(b, "  Captioned: %s\n", c.CreatedAt.Format("2006-01-02 15:04"))
}
