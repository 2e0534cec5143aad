package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fingraph/fingraph/internal/extract"
	"github.com/fingraph/fingraph/internal/logging"
)

// PendingSink records extraction results whose graph write failed, for
// later replay. Implemented by the journal.
type PendingSink interface {
	AddPending(ctx context.Context, result *extract.ExtractionResult, cause string) error
}

// Committer translates gated extraction results into idempotent graph
// upserts, one write transaction per document.
type Committer struct {
	client  *Client
	pending PendingSink
	log     *logging.Logger
	now     func() time.Time
}

// NewCommitter builds a Committer. pending may be nil, in which case failed
// payloads are only logged.
func NewCommitter(client *Client, pending PendingSink, log *logging.Logger) *Committer {
	if log == nil {
		log = logging.Nop()
	}
	return &Committer{client: client, pending: pending, log: log, now: time.Now}
}

// Commit upserts every surviving entity and relation of the result as a
// single logical unit of work, then finalizes the result: Committed=true on
// success; on failure Committed=false, ErrorMessage records the cause, and
// the unwritten payload is appended to the pending-commits log.
func (c *Committer) Commit(ctx context.Context, result *extract.ExtractionResult) error {
	if err := c.write(ctx, result); err != nil {
		result.Committed = false
		result.ErrorMessage = fmt.Sprintf("graph commit failed: %v", err)
		c.queuePending(ctx, result, err)
		return err
	}
	result.Committed = true
	return nil
}

func (c *Committer) write(ctx context.Context, result *extract.ExtractionResult) error {
	if c.client == nil || c.client.Driver == nil {
		return fmt.Errorf("graph store not configured")
	}

	now := c.now()
	entities, skippedEntities := entityRows(result, now)
	relations, skippedRelations := relationRows(result, now)
	tradesAs := tradesAsRows(result, now)

	for _, e := range skippedEntities {
		c.log.Warn("skipping entity with unusable label", "type", e.Type, "value", e.Value)
	}
	for _, r := range skippedRelations {
		c.log.Warn("skipping relation with unusable identifier",
			"relation", r.Relation, "source", r.SourceValue, "target", r.TargetValue)
	}

	if len(entities) == 0 && len(relations) == 0 {
		c.log.Debug("nothing to commit", "doc_id", result.SourceDocID)
		return nil
	}

	session := c.client.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, label := range sortedLabels(entities) {
			if err := runConsumed(ctx, tx, entityMergeQuery(label), map[string]any{"rows": entities[label]}); err != nil {
				return nil, fmt.Errorf("merging %s nodes: %w", label, err)
			}
		}

		if len(tradesAs) > 0 {
			if err := runConsumed(ctx, tx, tradesAsMergeQuery, map[string]any{"rows": tradesAs}); err != nil {
				return nil, fmt.Errorf("merging TRADES_AS edges: %w", err)
			}
		}

		for _, key := range sortedRelationKeys(relations) {
			if err := runConsumed(ctx, tx, relationMergeQuery(key), map[string]any{"rows": relations[key]}); err != nil {
				return nil, fmt.Errorf("merging %s edges: %w", key.Relation, err)
			}
		}
		return nil, nil
	})
	return err
}

// queuePending appends the unwritten payload to the pending-commits log so
// a failed write is never silently lost.
func (c *Committer) queuePending(ctx context.Context, result *extract.ExtractionResult, cause error) {
	if c.pending == nil {
		c.log.Error("no pending sink configured, dropping failed commit payload",
			"doc_id", result.SourceDocID, "cause", cause)
		return
	}
	if err := c.pending.AddPending(ctx, result, cause.Error()); err != nil {
		c.log.Error("queueing pending commit failed",
			"doc_id", result.SourceDocID, "cause", cause, "error", err)
	}
}

func runConsumed(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) error {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// EnsureConstraints creates uniqueness constraints for the known node
// labels. Best-effort: failures are logged and do not abort startup.
func (c *Committer) EnsureConstraints(ctx context.Context) {
	if c.client == nil || c.client.Driver == nil {
		return
	}
	labels := []string{"Ticker", "Company", "Bias", "Strategy", "Pattern", "Risk", "Sector", "Event"}

	session := c.client.writeSession(ctx)
	defer session.Close(ctx)

	for _, label := range labels {
		query := fmt.Sprintf(
			`CREATE CONSTRAINT %s_value_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.value IS UNIQUE`,
			lowerFirst(label), label)
		if res, err := session.Run(ctx, query, nil); err != nil {
			c.log.Warn("constraint init failed (continuing)", "label", label, "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]|0x20) + s[1:]
}
