package graph

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingraph/fingraph/internal/extract"
)

func sampleResult() *extract.ExtractionResult {
	return &extract.ExtractionResult{
		SourceDocID: "nvda-q4",
		Entities: []extract.EntityExtraction{
			{Type: "Ticker", Value: "NVDA", Confidence: 0.95, Evidence: "NVDA beat"},
			{Type: "Ticker", Value: "AMD", Confidence: 0.6, Evidence: "AMD trails", NeedsReview: true},
			{Type: "Company", Value: "NVIDIA", Confidence: 0.9, Evidence: "NVIDIA", ResolvedTicker: "NVDA"},
			{Type: "Bad Label!", Value: "x", Confidence: 0.9},
		},
		Relations: []extract.RelationExtraction{
			{SourceType: "Ticker", SourceValue: "AMD", Relation: "COMPETES_WITH", TargetType: "Ticker", TargetValue: "NVDA", Confidence: 0.8, Evidence: "trail"},
			{SourceType: "Ticker", SourceValue: "NVDA", Relation: "BAD REL", TargetType: "Ticker", TargetValue: "AMD", Confidence: 0.8},
		},
	}
}

func TestEntityRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows, skipped := entityRows(sampleResult(), now)

	require.Len(t, rows, 2, "Ticker and Company groups")
	require.Len(t, rows["Ticker"], 2)
	require.Len(t, rows["Company"], 1)

	nvda := rows["Ticker"][0]
	assert.Equal(t, "NVDA", nvda["value"])
	assert.Equal(t, 0.95, nvda["confidence"])
	assert.Equal(t, false, nvda["needs_review"])
	assert.Equal(t, "nvda-q4", nvda["source_doc_id"])

	amd := rows["Ticker"][1]
	assert.Equal(t, true, amd["needs_review"])

	require.Len(t, skipped, 1, "unusable label must be skipped, not spliced into Cypher")
	assert.Equal(t, "Bad Label!", skipped[0].Type)
}

func TestTradesAsRows(t *testing.T) {
	rows := tradesAsRows(sampleResult(), time.Now())
	require.Len(t, rows, 1)
	assert.Equal(t, "NVIDIA", rows[0]["company"])
	assert.Equal(t, "NVDA", rows[0]["ticker"])
}

func TestRelationRows(t *testing.T) {
	rows, skipped := relationRows(sampleResult(), time.Now())

	require.Len(t, rows, 1)
	key := relationKey{SourceLabel: "Ticker", Relation: "COMPETES_WITH", TargetLabel: "Ticker"}
	require.Len(t, rows[key], 1)
	assert.Equal(t, "AMD", rows[key][0]["source_value"])
	assert.Equal(t, "NVDA", rows[key][0]["target_value"])

	require.Len(t, skipped, 1, "relation with space in type is not a valid Cypher identifier")
}

func TestValidIdentifier(t *testing.T) {
	valid := []string{"Ticker", "EarningsEvent", "COMPETES_WITH", "A1"}
	for _, s := range valid {
		assert.True(t, validIdentifier(s), s)
	}
	invalid := []string{"", "1Ticker", "Bad Label", "DROP;", "a-b", "MATCH (n) DETACH DELETE n//"}
	for _, s := range invalid {
		assert.False(t, validIdentifier(s), s)
	}
}

func TestMergeQueries(t *testing.T) {
	q := entityMergeQuery("Ticker")
	assert.Contains(t, q, "MERGE (n:Ticker {value: row.value})")
	assert.Contains(t, q, "UNWIND $rows AS row")
	assert.NotContains(t, q, "CREATE (")

	rq := relationMergeQuery(relationKey{SourceLabel: "Ticker", Relation: "COMPETES_WITH", TargetLabel: "Ticker"})
	assert.Contains(t, rq, "MERGE (a)-[rel:COMPETES_WITH]->(b)")
	// Endpoints merge before the edge so orphaned relations still commit.
	assert.Less(t, strings.Index(rq, "MERGE (a:Ticker"), strings.Index(rq, "MERGE (a)-[rel:"))
}

func TestSortedOrderingIsStable(t *testing.T) {
	rows := map[string][]map[string]any{"Ticker": nil, "Bias": nil, "Company": nil}
	assert.Equal(t, []string{"Bias", "Company", "Ticker"}, sortedLabels(rows))

	relRows := map[relationKey][]map[string]any{
		{SourceLabel: "Ticker", Relation: "SUPPLIES_TO", TargetLabel: "Ticker"}:   nil,
		{SourceLabel: "Risk", Relation: "THREATENS", TargetLabel: "Ticker"}:       nil,
		{SourceLabel: "Ticker", Relation: "COMPETES_WITH", TargetLabel: "Ticker"}: nil,
	}
	keys := sortedRelationKeys(relRows)
	require.Len(t, keys, 3)
	assert.Equal(t, "THREATENS", keys[0].Relation)
	assert.Equal(t, "COMPETES_WITH", keys[1].Relation)
	assert.Equal(t, "SUPPLIES_TO", keys[2].Relation)
}
