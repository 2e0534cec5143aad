// Package extract implements the extraction-normalization-commit pipeline
// for financial documents.
//
// Labeled text fields from a source document are run through the LLM
// backend, the responses parsed tolerantly into candidate entities and
// relations, normalized against the canonical vocabulary, deduplicated,
// confidence-gated, and handed to the graph committer as one unit of work
// per document.
package extract

import (
	"time"
)

// ExtractionVersion tags results with the pipeline revision that produced
// them, so downstream consumers can re-extract when the pipeline changes.
const ExtractionVersion = "2.0"

// EntityExtraction is a single typed, valued mention extracted from source
// text. (Type, Value) is the identity key after normalization.
type EntityExtraction struct {
	Type        string  `json:"type"`
	Value       string  `json:"value"`
	Confidence  float64 `json:"confidence"`
	Evidence    string  `json:"evidence"`
	NeedsReview bool    `json:"needs_review"`

	// ResolvedTicker is set on Company entities whose name resolved to a
	// ticker symbol. Absent, not empty, on miss.
	ResolvedTicker string `json:"resolved_ticker,omitempty"`
}

// RelationExtraction is a typed edge between two entity mentions.
type RelationExtraction struct {
	SourceType  string  `json:"source_type"`
	SourceValue string  `json:"source_value"`
	Relation    string  `json:"relation"`
	TargetType  string  `json:"target_type"`
	TargetValue string  `json:"target_value"`
	Confidence  float64 `json:"confidence"`
	Evidence    string  `json:"evidence"`
	NeedsReview bool    `json:"needs_review"`
}

// Stage names the pipeline state machine positions for one document run.
type Stage string

const (
	StageLoaded          Stage = "LOADED"
	StageRejected        Stage = "REJECTED"
	StageFieldsExtracted Stage = "FIELDS_EXTRACTED"
	StageBackendCalled   Stage = "BACKEND_CALLED"
	StageParsed          Stage = "PARSED"
	StageNormalized      Stage = "NORMALIZED"
	StageDeduped         Stage = "DEDUPED"
	StageGated           Stage = "GATED"
	StageCommitAttempted Stage = "COMMIT_ATTEMPTED"
	StageCommitted       Stage = "COMMITTED"
	StageCommitFailed    Stage = "COMMIT_FAILED"
)

// ExtractionResult aggregates everything extracted from one document. It is
// created at pipeline start, mutated by each stage, finalized once by the
// committer, and never reused across documents.
type ExtractionResult struct {
	SourceDocID       string               `json:"source_doc_id"`
	SourceDocType     string               `json:"source_doc_type"`
	SourceFile        string               `json:"source_file,omitempty"`
	SourceTextHash    string               `json:"source_text_hash"`
	ExtractedAt       time.Time            `json:"extracted_at"`
	Extractor         string               `json:"extractor"`
	ExtractionVersion string               `json:"extraction_version"`
	Entities          []EntityExtraction   `json:"entities"`
	Relations         []RelationExtraction `json:"relations"`
	Committed         bool                 `json:"committed"`
	ErrorMessage      string               `json:"error_message,omitempty"`
}
