package main

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/fingraph/fingraph/internal/extract"
	"github.com/fingraph/fingraph/internal/llm"
	"github.com/fingraph/fingraph/internal/logging"
)

func TestParseArgs_FlagsAndPositionals(t *testing.T) {
	parsed, err := parseArgs([]string{
		"docs/nvda.yaml", "docs/amd.yaml",
		"--type", "analysis",
		"--backend", "remote-api",
		"--model", "openrouter/x-ai/grok-4.1-fast",
		"--neo4j", "bolt://graph:7687",
		"--dry-run",
		"--limit", "5",
	})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}

	if len(parsed.positional) != 2 || parsed.positional[0] != "docs/nvda.yaml" {
		t.Fatalf("unexpected positionals: %v", parsed.positional)
	}
	if parsed.docType != "analysis" {
		t.Errorf("docType = %q", parsed.docType)
	}
	if parsed.opts.CLIBackend != "remote-api" {
		t.Errorf("CLIBackend = %q", parsed.opts.CLIBackend)
	}
	if parsed.opts.CLINeo4jURI != "bolt://graph:7687" {
		t.Errorf("CLINeo4jURI = %q", parsed.opts.CLINeo4jURI)
	}
	if !parsed.dryRun {
		t.Error("expected dryRun")
	}
	if parsed.limit != 5 {
		t.Errorf("limit = %d", parsed.limit)
	}
}

func TestParseArgs_StdinDashIsPositional(t *testing.T) {
	parsed, err := parseArgs([]string{"-", "--type", "news"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if len(parsed.positional) != 1 || parsed.positional[0] != "-" {
		t.Fatalf("expected '-' as positional, got %v", parsed.positional)
	}
}

func TestParseArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--frobnicate"}},
		{"missing value", []string{"--model"}},
		{"bad limit", []string{"--limit", "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseArgs(tt.args); err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
		})
	}
}

// countingBackend tallies every completion call it receives.
type countingBackend struct {
	calls atomic.Int64
}

func (b *countingBackend) Complete(ctx context.Context, prompt string, opts llm.CompletionOpts) (string, error) {
	b.calls.Add(1)
	return "[]", nil
}

func (b *countingBackend) Name() string { return "counting" }

type countingCommitter struct {
	commits atomic.Int64
}

func (c *countingCommitter) Commit(ctx context.Context, result *extract.ExtractionResult) error {
	c.commits.Add(1)
	return nil
}

func TestBuildPipelines_ShareOneBackend(t *testing.T) {
	backend := &countingBackend{}
	committer := &countingCommitter{}
	live, dry := buildPipelines(backend, committer, extract.DefaultAliases(), extract.Config{}, logging.Nop())

	ctx := context.Background()
	if _, err := live.ExtractText(ctx, "NVDA beat estimates.", "news", "doc-live", ""); err != nil {
		t.Fatalf("live ExtractText: %v", err)
	}
	if _, err := dry.ExtractText(ctx, "AMD guidance cut.", "news", "doc-dry", ""); err != nil {
		t.Fatalf("dry ExtractText: %v", err)
	}

	// Raw text is one field plus one relation pass, so two completions per
	// document; all four land on the single shared backend. If either
	// pipeline carried its own client, backend calls would be split across
	// two limiters and the process could exceed the configured rate.
	if got := backend.calls.Load(); got != 4 {
		t.Fatalf("expected 4 calls on the shared backend, got %d", got)
	}
	if got := committer.commits.Load(); got != 1 {
		t.Fatalf("expected exactly one commit from the live pipeline, got %d", got)
	}
}

func TestRedact(t *testing.T) {
	if got := redact(""); got != "" {
		t.Errorf("redact empty = %q", got)
	}
	if got := redact("super-secret"); got == "super-secret" || got == "" {
		t.Errorf("redact leaked or erased: %q", got)
	}
}
