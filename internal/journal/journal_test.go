package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingraph/fingraph/internal/extract"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func testResult(docID string, committed bool) *extract.ExtractionResult {
	return &extract.ExtractionResult{
		SourceDocID:       docID,
		SourceDocType:     "news",
		SourceTextHash:    "abc123",
		Extractor:         "ollama/llama3.1",
		ExtractionVersion: extract.ExtractionVersion,
		Entities: []extract.EntityExtraction{
			{Type: "Ticker", Value: "NVDA", Confidence: 0.95, Evidence: "NVDA beat"},
		},
		Committed: committed,
	}
}

func TestJournal_RecordAndListRuns(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	id1, err := j.RecordRun(ctx, testResult("doc-1", true))
	require.NoError(t, err)
	assert.Positive(t, id1)

	failed := testResult("doc-2", false)
	failed.ErrorMessage = "graph commit failed: connection refused"
	_, err = j.RecordRun(ctx, failed)
	require.NoError(t, err)

	runs, err := j.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, "doc-2", runs[0].DocID)
	assert.False(t, runs[0].Committed)
	assert.Contains(t, runs[0].ErrorMessage, "connection refused")
	assert.Equal(t, "doc-1", runs[1].DocID)
	assert.True(t, runs[1].Committed)
}

func TestJournal_PendingLifecycle(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.AddPending(ctx, testResult("doc-1", false), "neo4j unavailable"))
	require.NoError(t, j.AddPending(ctx, testResult("doc-2", false), "neo4j unavailable"))

	pending, err := j.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "doc-1", pending[0].DocID, "oldest first")
	assert.Equal(t, "neo4j unavailable", pending[0].Cause)

	// The payload round-trips to a full result for replay.
	result, err := pending[0].Result()
	require.NoError(t, err)
	assert.Equal(t, "doc-1", result.SourceDocID)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "NVDA", result.Entities[0].Value)

	require.NoError(t, j.MarkReplayed(ctx, pending[0].ID))

	remaining, err := j.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "doc-2", remaining[0].DocID)

	// Replaying twice is an error, not a silent no-op.
	assert.Error(t, j.MarkReplayed(ctx, pending[0].ID))
}

func TestJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.RecordRun(context.Background(), testResult("doc-1", true))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	// Migration is idempotent and data survives.
	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()

	runs, err := j2.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
