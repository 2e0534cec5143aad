package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fingraph/fingraph/internal/config"
	"github.com/fingraph/fingraph/internal/extract"
	"github.com/fingraph/fingraph/internal/graph"
	"github.com/fingraph/fingraph/internal/journal"
	"github.com/fingraph/fingraph/internal/llm"
	"github.com/fingraph/fingraph/internal/logging"
	"github.com/fingraph/fingraph/internal/mcp"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "extract":
		err = runExtract(os.Args[2:])
	case "text":
		err = runText(os.Args[2:])
	case "pending":
		err = runPending(os.Args[2:])
	case "replay":
		err = runReplay(os.Args[2:])
	case "runs":
		err = runRuns(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("fingraph %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliArgs is the parsed command line shared by every subcommand.
type cliArgs struct {
	positional []string

	opts    config.ResolveOptions
	docType string
	docID   string
	url     string
	dryRun  bool
	limit   int
}

func parseArgs(args []string) (cliArgs, error) {
	out := cliArgs{limit: 20}

	takeValue := func(i *int, flag string) (string, error) {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", flag)
		}
		*i++
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		var err error
		switch arg {
		case "--config":
			out.opts.ConfigPath, err = takeValue(&i, arg)
		case "--backend":
			out.opts.CLIBackend, err = takeValue(&i, arg)
		case "--model":
			out.opts.CLIModel, err = takeValue(&i, arg)
		case "--endpoint":
			out.opts.CLIEndpoint, err = takeValue(&i, arg)
		case "--neo4j":
			out.opts.CLINeo4jURI, err = takeValue(&i, arg)
		case "--journal":
			out.opts.CLIJournal, err = takeValue(&i, arg)
		case "--aliases":
			out.opts.CLIAliasFile, err = takeValue(&i, arg)
		case "--log-level":
			out.opts.CLILogLevel, err = takeValue(&i, arg)
		case "--type":
			out.docType, err = takeValue(&i, arg)
		case "--id":
			out.docID, err = takeValue(&i, arg)
		case "--url":
			out.url, err = takeValue(&i, arg)
		case "--limit":
			var v string
			if v, err = takeValue(&i, arg); err == nil {
				out.limit, err = strconv.Atoi(v)
			}
		case "--dry-run", "-n":
			out.dryRun = true
		default:
			if strings.HasPrefix(arg, "-") && arg != "-" {
				return out, fmt.Errorf("unknown flag: %s", arg)
			}
			out.positional = append(out.positional, arg)
		}
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// app bundles the wired components a subcommand needs. pipeline commits
// to the graph; dryPipeline shares the same backend client and journal but
// stops after gating.
type app struct {
	cfg         config.ResolvedConfig
	log         *logging.Logger
	journal     *journal.Journal
	graph       *graph.Client
	pipeline    *extract.Pipeline
	dryPipeline *extract.Pipeline
}

func (a *app) close() {
	if a.graph != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.graph.Close(ctx)
	}
	if a.journal != nil {
		_ = a.journal.Close()
	}
	if a.log != nil {
		a.log.Sync()
	}
}

// newApp wires config through logging, journal, backend client, graph
// committer, and pipeline. With dryRun set the graph connection is skipped
// entirely so a dry extraction works without a reachable Neo4j.
func newApp(args cliArgs, dryRun bool) (*app, error) {
	cfg, err := config.ResolveConfig(args.opts)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel.Value, File: cfg.LogFile.Value})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	a.journal, err = journal.Open(cfg.JournalPath.Value)
	if err != nil {
		a.close()
		return nil, err
	}

	aliases := extract.DefaultAliases()
	if path := cfg.AliasFile.Value; path != "" {
		aliases, err = extract.LoadAliasFile(path)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	provider, err := llm.NewProvider(llm.BackendConfig{
		Backend:  cfg.Backend.Value,
		Model:    cfg.Model.Value,
		Endpoint: cfg.Endpoint.Value,
		APIKey:   cfg.APIKey.Value,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	limiter := llm.NewLimiter(cfg.RateLimitPerSecond.Int(llm.DefaultRatePerSecond))
	policy := llm.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.MaxRetryAttempts.Int(policy.MaxAttempts)
	client := llm.NewClient(provider, limiter, log,
		llm.WithTimeout(time.Duration(cfg.TimeoutSeconds.Int(30))*time.Second),
		llm.WithRetryPolicy(policy),
	)

	var committer extract.Committer
	if !dryRun {
		a.graph, err = graph.NewClient(graph.Config{
			URI:      cfg.Neo4jURI.Value,
			User:     cfg.Neo4jUser.Value,
			Password: cfg.Neo4jPassword.Value,
			Database: cfg.Neo4jDatabase.Value,
		}, log)
		if err != nil {
			a.close()
			return nil, err
		}
		gc := graph.NewCommitter(a.graph, a.journal, log)
		gc.EnsureConstraints(context.Background())
		committer = gc
	}

	a.pipeline, a.dryPipeline = buildPipelines(client, committer, aliases, extract.Config{
		CommitThreshold: cfg.CommitThreshold.Float(extract.DefaultCommitThreshold),
		FlagThreshold:   cfg.FlagThreshold.Float(extract.DefaultFlagThreshold),
	}, log)
	if dryRun {
		a.pipeline = a.dryPipeline
	}

	return a, nil
}

// buildPipelines derives the committing and dry pipelines from one shared
// backend, so every call in the process funnels through the same rate
// limiter regardless of which pipeline issued it.
func buildPipelines(backend extract.Backend, committer extract.Committer, aliases *extract.Aliases, cfg extract.Config, log *logging.Logger) (live, dry *extract.Pipeline) {
	live = extract.NewPipeline(backend, committer, aliases, cfg, log)
	dryCfg := cfg
	dryCfg.DryRun = true
	dry = extract.NewPipeline(backend, nil, aliases, dryCfg, log)
	return live, dry
}

func runExtract(args []string) error {
	parsed, err := parseArgs(args)
	if err != nil {
		return err
	}
	if len(parsed.positional) == 0 {
		return fmt.Errorf("usage: fingraph extract <path> [--type analysis|news|note] [--dry-run]")
	}

	a, err := newApp(parsed, parsed.dryRun)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	for _, path := range parsed.positional {
		result, err := a.pipeline.ExtractFile(ctx, path, parsed.docType)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", path, err)
			continue
		}
		if _, err := a.journal.RecordRun(ctx, result); err != nil {
			a.log.Warn("journaling run failed", "doc_id", result.SourceDocID, "error", err)
		}
		printResult(result)
	}
	return nil
}

func runText(args []string) error {
	parsed, err := parseArgs(args)
	if err != nil {
		return err
	}

	text := strings.Join(parsed.positional, " ")
	if text == "" || text == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(b)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("usage: fingraph text <text|-> [--type note|news] [--id doc-id] [--url source] [--dry-run]")
	}

	a, err := newApp(parsed, parsed.dryRun)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	result, err := a.pipeline.ExtractText(ctx, text, parsed.docType, parsed.docID, parsed.url)
	if err != nil {
		return err
	}
	if _, err := a.journal.RecordRun(ctx, result); err != nil {
		a.log.Warn("journaling run failed", "doc_id", result.SourceDocID, "error", err)
	}
	printResult(result)
	return nil
}

func runPending(args []string) error {
	parsed, err := parseArgs(args)
	if err != nil {
		return err
	}
	cfg, err := config.ResolveConfig(parsed.opts)
	if err != nil {
		return err
	}
	j, err := journal.Open(cfg.JournalPath.Value)
	if err != nil {
		return err
	}
	defer j.Close()

	pending, err := j.ListPending(context.Background())
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("No pending commits.")
		return nil
	}
	for _, p := range pending {
		fmt.Printf("  #%d  %s  %s  (%s)\n", p.ID, p.CreatedAt.Format(time.RFC3339), p.DocID, p.Cause)
	}
	fmt.Printf("\n%d pending commit(s). Run 'fingraph replay' to retry.\n", len(pending))
	return nil
}

func runReplay(args []string) error {
	parsed, err := parseArgs(args)
	if err != nil {
		return err
	}
	cfg, err := config.ResolveConfig(parsed.opts)
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel.Value, File: cfg.LogFile.Value})
	if err != nil {
		return err
	}
	defer log.Sync()

	j, err := journal.Open(cfg.JournalPath.Value)
	if err != nil {
		return err
	}
	defer j.Close()

	gc, err := graph.NewClient(graph.Config{
		URI:      cfg.Neo4jURI.Value,
		User:     cfg.Neo4jUser.Value,
		Password: cfg.Neo4jPassword.Value,
		Database: cfg.Neo4jDatabase.Value,
	}, log)
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer gc.Close(ctx)

	// A nil pending sink keeps a failed replay from re-queueing itself;
	// the original entry simply stays pending.
	committer := graph.NewCommitter(gc, nil, log)

	pending, err := j.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("No pending commits.")
		return nil
	}

	replayed := 0
	for _, p := range pending {
		result, err := p.Result()
		if err != nil {
			fmt.Fprintf(os.Stderr, "  #%d %s: %v\n", p.ID, p.DocID, err)
			continue
		}
		if err := committer.Commit(ctx, result); err != nil {
			fmt.Fprintf(os.Stderr, "  #%d %s: %v\n", p.ID, p.DocID, err)
			continue
		}
		if err := j.MarkReplayed(ctx, p.ID); err != nil {
			return err
		}
		replayed++
		fmt.Printf("  #%d %s committed\n", p.ID, p.DocID)
	}
	fmt.Printf("\nReplayed %d of %d pending commit(s).\n", replayed, len(pending))
	return nil
}

func runRuns(args []string) error {
	parsed, err := parseArgs(args)
	if err != nil {
		return err
	}
	cfg, err := config.ResolveConfig(parsed.opts)
	if err != nil {
		return err
	}
	j, err := journal.Open(cfg.JournalPath.Value)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(context.Background(), parsed.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	for _, r := range runs {
		status := "committed"
		if !r.Committed {
			status = "not committed"
			if r.ErrorMessage != "" {
				status = r.ErrorMessage
			}
		}
		fmt.Printf("  %s  %-20s %-10s %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"), r.DocID, r.DocType, status)
	}
	return nil
}

func runMCP(args []string) error {
	parsed, err := parseArgs(args)
	if err != nil {
		return err
	}

	a, err := newApp(parsed, false)
	if err != nil {
		return err
	}
	defer a.close()

	srv := mcp.NewServer(mcp.ServerConfig{
		Pipeline:    a.pipeline,
		DryPipeline: a.dryPipeline,
		Journal:     a.journal,
		Version:     version,
	})
	a.log.Info("serving MCP over stdio", "version", version)
	return mcpserver.ServeStdio(srv)
}

func runConfig(args []string) error {
	parsed, err := parseArgs(args)
	if err != nil {
		return err
	}
	cfg, err := config.ResolveConfig(parsed.opts)
	if err != nil {
		return err
	}
	// Secrets never print.
	cfg.APIKey.Value = redact(cfg.APIKey.Value)
	cfg.Neo4jPassword.Value = redact(cfg.Neo4jPassword.Value)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func redact(v string) string {
	if v == "" {
		return ""
	}
	return "••••"
}

func printResult(result *extract.ExtractionResult) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", result)
		return
	}
	fmt.Println(string(data))
}

func printUsage() {
	fmt.Printf(`fingraph %s — Financial knowledge graph extraction

Usage:
  fingraph <command> [arguments]

Commands:
  extract <path>...   Extract entities and relations from YAML documents
  text <text|->       Extract from raw text (use '-' or pipe for stdin)
  pending             List failed graph commits queued for replay
  replay              Retry pending graph commits
  runs                List recent extraction runs
  mcp                 Serve the extraction tools over MCP stdio
  config              Print the resolved configuration
  version             Print version

Extraction Flags:
  --type <t>          Document type (analysis, news, note)
  --id <id>           Document id for raw text (default: generated)
  --url <u>           Source URL recorded as provenance
  -n, --dry-run       Extract and gate without committing to the graph

Connection Flags:
  --config <path>     Config file (default: ~/.fingraph/config.yaml)
  --backend <b>       LLM backend: ollama or remote-api
  --model <m>         Model name
  --endpoint <url>    Backend endpoint override
  --neo4j <uri>       Neo4j bolt URI
  --journal <path>    Journal database path
  --aliases <path>    Alias overlay file
  --log-level <l>     debug, info, warn, error

Flags:
  -h, --help          Show this help message
  -v, --version       Print version
`, version)
}
