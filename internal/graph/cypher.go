package graph

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/fingraph/fingraph/internal/extract"
)

// identifierRE constrains node labels and relationship types. Cypher cannot
// parameterize identifiers, so anything not matching is skipped rather than
// spliced into a query.
var identifierRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// validIdentifier reports whether s is safe to use as a label or
// relationship type.
func validIdentifier(s string) bool {
	return identifierRE.MatchString(s)
}

// entityRows groups gated entities by node label into UNWIND parameter
// rows. Invalid labels are returned separately for logging.
func entityRows(result *extract.ExtractionResult, now time.Time) (map[string][]map[string]any, []extract.EntityExtraction) {
	rows := make(map[string][]map[string]any)
	var skipped []extract.EntityExtraction

	ts := now.UTC().Format(time.RFC3339Nano)
	for _, e := range result.Entities {
		if !validIdentifier(e.Type) {
			skipped = append(skipped, e)
			continue
		}
		rows[e.Type] = append(rows[e.Type], map[string]any{
			"value":         e.Value,
			"confidence":    e.Confidence,
			"evidence":      e.Evidence,
			"needs_review":  e.NeedsReview,
			"source_doc_id": result.SourceDocID,
			"updated_at":    ts,
		})
	}
	return rows, skipped
}

// tradesAsRows collects Company entities that resolved to a ticker.
func tradesAsRows(result *extract.ExtractionResult, now time.Time) []map[string]any {
	var rows []map[string]any
	ts := now.UTC().Format(time.RFC3339Nano)
	for _, e := range result.Entities {
		if e.Type != "Company" || e.ResolvedTicker == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"company":    e.Value,
			"ticker":     e.ResolvedTicker,
			"updated_at": ts,
		})
	}
	return rows
}

// relationKey identifies one (source label, relation type, target label)
// grouping; Cypher identifiers differ per group so each needs its own
// statement.
type relationKey struct {
	SourceLabel string
	Relation    string
	TargetLabel string
}

// relationRows groups gated relations by their Cypher identifiers.
func relationRows(result *extract.ExtractionResult, now time.Time) (map[relationKey][]map[string]any, []extract.RelationExtraction) {
	rows := make(map[relationKey][]map[string]any)
	var skipped []extract.RelationExtraction

	ts := now.UTC().Format(time.RFC3339Nano)
	for _, r := range result.Relations {
		if !validIdentifier(r.SourceType) || !validIdentifier(r.TargetType) || !validIdentifier(r.Relation) {
			skipped = append(skipped, r)
			continue
		}
		key := relationKey{SourceLabel: r.SourceType, Relation: r.Relation, TargetLabel: r.TargetType}
		rows[key] = append(rows[key], map[string]any{
			"source_value":  r.SourceValue,
			"target_value":  r.TargetValue,
			"confidence":    r.Confidence,
			"evidence":      r.Evidence,
			"needs_review":  r.NeedsReview,
			"source_doc_id": result.SourceDocID,
			"updated_at":    ts,
		})
	}
	return rows, skipped
}

// sortedLabels returns map keys in stable order so commit statements run
// deterministically.
func sortedLabels(rows map[string][]map[string]any) []string {
	labels := make([]string, 0, len(rows))
	for label := range rows {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// sortedRelationKeys returns relation groupings in stable order.
func sortedRelationKeys(rows map[relationKey][]map[string]any) []relationKey {
	keys := make([]relationKey, 0, len(rows))
	for key := range rows {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.SourceLabel != b.SourceLabel {
			return a.SourceLabel < b.SourceLabel
		}
		if a.Relation != b.Relation {
			return a.Relation < b.Relation
		}
		return a.TargetLabel < b.TargetLabel
	})
	return keys
}

// entityMergeQuery builds the upsert statement for one node label.
func entityMergeQuery(label string) string {
	return fmt.Sprintf(`
UNWIND $rows AS row
MERGE (n:%s {value: row.value})
SET n.confidence = row.confidence,
    n.evidence = row.evidence,
    n.needs_review = row.needs_review,
    n.source_doc_id = row.source_doc_id,
    n.updated_at = row.updated_at
`, label)
}

// tradesAsMergeQuery links resolved Company nodes to their Ticker nodes.
const tradesAsMergeQuery = `
UNWIND $rows AS row
MERGE (c:Company {value: row.company})
MERGE (t:Ticker {value: row.ticker})
MERGE (c)-[rel:TRADES_AS]->(t)
SET rel.updated_at = row.updated_at
`

// relationMergeQuery builds the edge upsert statement for one grouping.
// Endpoint nodes are merged first, so a relation whose endpoint entity was
// gated out still commits against a bare node.
func relationMergeQuery(key relationKey) string {
	return fmt.Sprintf(`
UNWIND $rows AS row
MERGE (a:%s {value: row.source_value})
MERGE (b:%s {value: row.target_value})
MERGE (a)-[rel:%s]->(b)
SET rel.confidence = row.confidence,
    rel.evidence = row.evidence,
    rel.needs_review = row.needs_review,
    rel.source_doc_id = row.source_doc_id,
    rel.updated_at = row.updated_at
`, key.SourceLabel, key.TargetLabel, key.Relation)
}
