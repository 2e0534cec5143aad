package extract

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fingraph/fingraph/internal/document"
	"github.com/fingraph/fingraph/internal/llm"
	"github.com/fingraph/fingraph/internal/logging"
)

// Backend is the completion surface the pipeline drives. Satisfied by
// *llm.Client; faked in tests.
type Backend interface {
	Complete(ctx context.Context, prompt string, opts llm.CompletionOpts) (string, error)
	Name() string
}

// Committer finalizes a result against the graph store. Satisfied by
// *graph.Committer.
type Committer interface {
	Commit(ctx context.Context, result *ExtractionResult) error
}

// DefaultFieldPaths are the labeled fields extracted from structured
// analysis documents.
var DefaultFieldPaths = []string{
	"thesis",
	"summary",
	"biases[]",
	"strategies[]",
	"patterns[]",
	"risks[].description",
	"risks[]",
	"catalysts[]",
	"notes",
}

// DefaultSkipPaths are metadata keys omitted from the whole-document
// flatten used for relation extraction.
var DefaultSkipPaths = []string{"metadata", "id", "created", "updated", "schema_version"}

// Config tunes one pipeline instance.
type Config struct {
	CommitThreshold float64
	FlagThreshold   float64
	FieldPaths      []string
	SkipPaths       []string
	DryRun          bool
}

// fill applies defaults for zero values.
func (c Config) fill() Config {
	if c.CommitThreshold == 0 {
		c.CommitThreshold = DefaultCommitThreshold
	}
	if c.FlagThreshold == 0 {
		c.FlagThreshold = DefaultFlagThreshold
	}
	if len(c.FieldPaths) == 0 {
		c.FieldPaths = DefaultFieldPaths
	}
	if len(c.SkipPaths) == 0 {
		c.SkipPaths = DefaultSkipPaths
	}
	return c
}

// Pipeline runs the extraction-normalization-commit sequence for one
// document at a time. Instances are safe for concurrent use; all backend
// calls funnel through the shared rate limiter inside the Backend.
type Pipeline struct {
	backend   Backend
	committer Committer
	norm      *Normalizer
	cfg       Config
	log       *logging.Logger
}

// NewPipeline assembles a pipeline. committer may be nil, in which case
// every run behaves as a dry run.
func NewPipeline(backend Backend, committer Committer, aliases *Aliases, cfg Config, log *logging.Logger) *Pipeline {
	if log == nil {
		log = logging.Nop()
	}
	return &Pipeline{
		backend:   backend,
		committer: committer,
		norm:      NewNormalizer(aliases),
		cfg:       cfg.fill(),
		log:       log,
	}
}

// ExtractFile loads a file-backed document and runs the pipeline. Pre-flight
// rejections (template, missing, unparseable) return an error and no result.
func (p *Pipeline) ExtractFile(ctx context.Context, path, docType string) (*ExtractionResult, error) {
	doc, err := document.LoadFile(path, docType)
	if err != nil {
		p.log.Warn("document rejected", "path", path, "stage", StageRejected, "error", err)
		return nil, err
	}
	return p.run(ctx, doc), nil
}

// ExtractText runs the pipeline over raw text with no backing file.
func (p *Pipeline) ExtractText(ctx context.Context, text, docType, docID, sourceURL string) (*ExtractionResult, error) {
	doc, err := document.NewRawText(text, docType, docID, sourceURL)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, doc), nil
}

// run drives one document through the full state machine. It always returns
// a complete ExtractionResult; backend failures after retry exhaustion are
// surfaced in ErrorMessage with Committed=false.
func (p *Pipeline) run(ctx context.Context, doc *document.Document) *ExtractionResult {
	result := &ExtractionResult{
		SourceDocID:       doc.DocID,
		SourceDocType:     doc.DocType,
		SourceFile:        doc.Path,
		SourceTextHash:    doc.TextHash(),
		ExtractedAt:       time.Now().UTC(),
		Extractor:         p.backend.Name(),
		ExtractionVersion: ExtractionVersion,
	}
	log := p.log.With("doc_id", doc.DocID, "doc_type", doc.DocType)
	log.Debug("pipeline started", "stage", StageLoaded)

	fields := document.ExtractFields(doc, p.cfg.FieldPaths)
	log.Debug("fields extracted", "stage", StageFieldsExtracted, "fields", len(fields))

	entities, relations, err := p.callBackend(ctx, doc, fields, log)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("extraction failed: %v", err)
		log.Error("extraction aborted", "stage", StageBackendCalled, "error", err)
		return result
	}
	log.Debug("responses parsed", "stage", StageParsed,
		"entities", len(entities), "relations", len(relations))

	for i := range entities {
		entities[i] = p.norm.NormalizeEntity(entities[i])
	}
	for i := range relations {
		relations[i] = p.norm.NormalizeRelation(relations[i])
	}
	log.Debug("normalized", "stage", StageNormalized)

	entities = Dedupe(entities)
	relations = DedupeRelations(relations)
	log.Debug("deduplicated", "stage", StageDeduped,
		"entities", len(entities), "relations", len(relations))

	result.Entities = Gate(entities, p.cfg.CommitThreshold, p.cfg.FlagThreshold)
	result.Relations = GateRelations(relations, p.cfg.CommitThreshold, p.cfg.FlagThreshold)
	for _, e := range result.Entities {
		if e.NeedsReview {
			log.Info("entity flagged for review", "type", e.Type, "value", e.Value, "confidence", e.Confidence)
		}
	}
	log.Debug("gated", "stage", StageGated,
		"entities", len(result.Entities), "relations", len(result.Relations))

	if p.cfg.DryRun || p.committer == nil {
		log.Info("dry run, commit skipped",
			"entities", len(result.Entities), "relations", len(result.Relations))
		return result
	}

	log.Debug("committing", "stage", StageCommitAttempted)
	if err := p.committer.Commit(ctx, result); err != nil {
		// Committer has already recorded the failure on the result and
		// queued the payload for replay.
		log.Error("commit failed", "stage", StageCommitFailed, "error", err)
		return result
	}
	log.Info("document committed", "stage", StageCommitted,
		"entities", len(result.Entities), "relations", len(result.Relations))
	return result
}

// fieldOutcome carries the parsed candidates from one backend call,
// slotted by index so assembly order is deterministic regardless of
// completion order.
type fieldOutcome struct {
	entities  []EntityExtraction
	relations []RelationExtraction
}

// callBackend fans field-level entity calls and the whole-document relation
// call out through the shared limiter. Per-field parse failures degrade to
// empty candidate lists; backend failures after retry exhaustion abort the
// document.
func (p *Pipeline) callBackend(ctx context.Context, doc *document.Document, fields []document.Field, log *logging.Logger) ([]EntityExtraction, []RelationExtraction, error) {
	outcomes := make([]fieldOutcome, len(fields)+1)

	g, gctx := errgroup.WithContext(ctx)
	for i, field := range fields {
		g.Go(func() error {
			raw, err := p.backend.Complete(gctx, entityPrompt(field.Path, field.Text), llm.CompletionOpts{
				System: entitySystemPrompt,
				Format: "json",
			})
			if err != nil {
				return fmt.Errorf("field %q: %w", field.Path, err)
			}
			parsed := ParseEntities(raw)
			if len(parsed) == 0 {
				log.Debug("field yielded no entities", "field", field.Path)
			}
			outcomes[i] = fieldOutcome{entities: parsed}
			return nil
		})
	}

	g.Go(func() error {
		flat := document.Flatten(doc, p.cfg.SkipPaths)
		raw, err := p.backend.Complete(gctx, relationPrompt(flat), llm.CompletionOpts{
			System: relationSystemPrompt,
			Format: "json",
		})
		if err != nil {
			return fmt.Errorf("relations: %w", err)
		}
		outcomes[len(fields)] = fieldOutcome{relations: ParseRelations(raw)}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var entities []EntityExtraction
	var relations []RelationExtraction
	for _, o := range outcomes {
		entities = append(entities, o.entities...)
		relations = append(relations, o.relations...)
	}
	return entities, relations, nil
}
