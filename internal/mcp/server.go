// Package mcp provides a Model Context Protocol server for fingraph.
//
// It exposes the extraction pipeline (file and raw text) and the commit
// journal (recent runs, pending graph commits) as MCP tools over stdio,
// so agent frontends can drive extraction without shelling out to the CLI.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fingraph/fingraph/internal/extract"
	"github.com/fingraph/fingraph/internal/journal"
)

// Extractor is the slice of the pipeline the MCP tools need.
type Extractor interface {
	ExtractFile(ctx context.Context, path, docType string) (*extract.ExtractionResult, error)
	ExtractText(ctx context.Context, text, docType, docID, sourceURL string) (*extract.ExtractionResult, error)
}

// ServerConfig holds the wired dependencies for the MCP server.
type ServerConfig struct {
	Pipeline    Extractor // commits to the graph
	DryPipeline Extractor // parses and gates only, used when dry_run is set
	Journal     *journal.Journal
	Version     string
}

// journalMu serializes tool calls that touch the journal. The mcp-go
// library dispatches handlers concurrently via goroutines, and the
// journal is a single-writer SQLite database.
var journalMu sync.Mutex

// NewServer creates a configured MCP server with all fingraph tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"fingraph",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerExtractFileTool(s, cfg)
	registerExtractTextTool(s, cfg)
	registerPendingTool(s, cfg.Journal)
	registerRunsTool(s, cfg.Journal)

	registerRunsResource(s, cfg.Journal)

	return s
}

// --- Tools ---

func registerExtractFileTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("fingraph_extract_file",
		mcp.WithDescription("Extract financial entities and relations from a YAML document on disk and commit them to the knowledge graph. Returns the full extraction result including gated and flagged items."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the YAML document to extract"),
		),
		mcp.WithString("doc_type",
			mcp.Description("Document type tag (e.g. 'analysis', 'news', 'note'). Defaults to 'analysis'."),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Run extraction, normalization, and gating without committing to the graph (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil || strings.TrimSpace(path) == "" {
			return mcp.NewToolResultError("path is required"), nil
		}

		docType := ""
		if dt, err := req.RequireString("doc_type"); err == nil {
			docType = dt
		}

		pipe := pickPipeline(cfg, req)
		result, err := pipe.ExtractFile(ctx, path, docType)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extract error: %v", err)), nil
		}

		recordRun(ctx, cfg.Journal, result)
		return resultPayload(result), nil
	})
}

func registerExtractTextTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("fingraph_extract_text",
		mcp.WithDescription("Extract financial entities and relations from raw text (e.g. a news article or a note) and commit them to the knowledge graph."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The text to extract from"),
		),
		mcp.WithString("doc_type",
			mcp.Description("Document type tag (default: 'note')"),
		),
		mcp.WithString("doc_id",
			mcp.Description("Stable document identifier. A UUID is generated when empty."),
		),
		mcp.WithString("source_url",
			mcp.Description("Origin URL of the text, stored as provenance"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Run extraction, normalization, and gating without committing to the graph (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil || strings.TrimSpace(text) == "" {
			return mcp.NewToolResultError("text is required"), nil
		}

		docType := ""
		if dt, err := req.RequireString("doc_type"); err == nil {
			docType = dt
		}
		docID := ""
		if id, err := req.RequireString("doc_id"); err == nil {
			docID = id
		}
		sourceURL := ""
		if u, err := req.RequireString("source_url"); err == nil {
			sourceURL = u
		}

		pipe := pickPipeline(cfg, req)
		result, err := pipe.ExtractText(ctx, text, docType, docID, sourceURL)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extract error: %v", err)), nil
		}

		recordRun(ctx, cfg.Journal, result)
		return resultPayload(result), nil
	})
}

func registerPendingTool(s *server.MCPServer, j *journal.Journal) {
	tool := mcp.NewTool("fingraph_pending",
		mcp.WithDescription("List extraction results whose graph commit failed and is queued for replay."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if j == nil {
			return mcp.NewToolResultError("journal is not configured"), nil
		}
		journalMu.Lock()
		defer journalMu.Unlock()

		pending, err := j.ListPending(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing pending commits: %v", err)), nil
		}

		payload := map[string]any{"pending": pending, "count": len(pending)}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRunsTool(s *server.MCPServer, j *journal.Journal) {
	tool := mcp.NewTool("fingraph_runs",
		mcp.WithDescription("List recent extraction runs with commit status and entity/relation counts."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs to return (default: 20, max: 200)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if j == nil {
			return mcp.NewToolResultError("journal is not configured"), nil
		}
		journalMu.Lock()
		defer journalMu.Unlock()

		limit := 20
		if v, err := req.RequireFloat("limit"); err == nil && int(v) > 0 {
			limit = int(v)
			if limit > 200 {
				limit = 200
			}
		}

		runs, err := j.ListRuns(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing runs: %v", err)), nil
		}

		payload := map[string]any{"runs": runs, "count": len(runs)}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerRunsResource(s *server.MCPServer, j *journal.Journal) {
	resource := mcp.NewResource(
		"fingraph://runs/recent",
		"Recent Extraction Runs",
		mcp.WithResourceDescription("The 20 most recent extraction runs with commit status."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if j == nil {
			return nil, fmt.Errorf("journal is not configured")
		}
		journalMu.Lock()
		defer journalMu.Unlock()

		runs, err := j.ListRuns(ctx, 20)
		if err != nil {
			return nil, fmt.Errorf("querying runs resource: %w", err)
		}

		payload := map[string]any{"runs": runs, "count": len(runs)}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

// --- Helpers ---

func pickPipeline(cfg ServerConfig, req mcp.CallToolRequest) Extractor {
	if req.GetBool("dry_run", false) && cfg.DryPipeline != nil {
		return cfg.DryPipeline
	}
	return cfg.Pipeline
}

func recordRun(ctx context.Context, j *journal.Journal, result *extract.ExtractionResult) {
	if j == nil || result == nil {
		return
	}
	journalMu.Lock()
	defer journalMu.Unlock()
	// Journal failures must not mask a successful extraction.
	_, _ = j.RecordRun(ctx, result)
}

func resultPayload(result *extract.ExtractionResult) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(data))
}
