// Package journal provides the local SQLite side store for the pipeline:
// a record of every extraction run and a durable pending-commits log for
// graph writes that failed partway, kept for later replay.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fingraph/fingraph/internal/extract"
)

// DefaultDBPath is the default journal location.
const DefaultDBPath = "~/.fingraph/journal.db"

// Journal is the SQLite-backed run/pending store.
type Journal struct {
	db   *sql.DB
	path string
}

// Run is one recorded extraction result.
type Run struct {
	ID           int64     `json:"id"`
	DocID        string    `json:"doc_id"`
	DocType      string    `json:"doc_type"`
	TextHash     string    `json:"text_hash"`
	Extractor    string    `json:"extractor"`
	Committed    bool      `json:"committed"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PendingCommit is one failed graph write queued for replay.
type PendingCommit struct {
	ID         int64      `json:"id"`
	DocID      string     `json:"doc_id"`
	Cause      string     `json:"cause"`
	CreatedAt  time.Time  `json:"created_at"`
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`
	payload    string
}

// Result decodes the stored extraction payload.
func (p *PendingCommit) Result() (*extract.ExtractionResult, error) {
	var result extract.ExtractionResult
	if err := json.Unmarshal([]byte(p.payload), &result); err != nil {
		return nil, fmt.Errorf("decoding pending payload %d: %w", p.ID, err)
	}
	return &result, nil
}

// Open opens (creating if needed) the journal at path. "~/" prefixes are
// expanded against the user home directory.
func Open(path string) (*Journal, error) {
	if path == "" {
		path = DefaultDBPath
	}
	path = expandHome(path)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	j := &Journal{db: db, path: path}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Path returns the resolved database path.
func (j *Journal) Path() string {
	return j.path
}

// RecordRun persists one finalized extraction result.
func (j *Journal) RecordRun(ctx context.Context, result *extract.ExtractionResult) (int64, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("encoding result: %w", err)
	}

	res, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (doc_id, doc_type, text_hash, extractor, extraction_version, payload, committed, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.SourceDocID, result.SourceDocType, result.SourceTextHash,
		result.Extractor, result.ExtractionVersion, string(payload),
		boolToInt(result.Committed), result.ErrorMessage,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}
	return res.LastInsertId()
}

// ListRuns returns the most recent runs, newest first.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, doc_id, doc_type, text_hash, extractor, committed, error_message, created_at
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var committed int
		var createdAt string
		if err := rows.Scan(&r.ID, &r.DocID, &r.DocType, &r.TextHash, &r.Extractor, &committed, &r.ErrorMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Committed = committed != 0
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// AddPending appends a failed commit payload to the pending-commits log.
// Implements graph.PendingSink.
func (j *Journal) AddPending(ctx context.Context, result *extract.ExtractionResult, cause string) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding pending payload: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO pending_commits (doc_id, payload, cause, created_at)
		VALUES (?, ?, ?, ?)`,
		result.SourceDocID, string(payload), cause,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("queueing pending commit: %w", err)
	}
	return nil
}

// ListPending returns unreplayed pending commits, oldest first.
func (j *Journal) ListPending(ctx context.Context) ([]*PendingCommit, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, doc_id, payload, cause, created_at, replayed_at
		FROM pending_commits WHERE replayed_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing pending commits: %w", err)
	}
	defer rows.Close()

	var pending []*PendingCommit
	for rows.Next() {
		var p PendingCommit
		var createdAt string
		var replayedAt sql.NullString
		if err := rows.Scan(&p.ID, &p.DocID, &p.payload, &p.Cause, &createdAt, &replayedAt); err != nil {
			return nil, fmt.Errorf("scanning pending commit: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if replayedAt.Valid {
			t, _ := time.Parse(time.RFC3339Nano, replayedAt.String)
			p.ReplayedAt = &t
		}
		pending = append(pending, &p)
	}
	return pending, rows.Err()
}

// MarkReplayed stamps a pending commit as successfully replayed.
func (j *Journal) MarkReplayed(ctx context.Context, id int64) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE pending_commits SET replayed_at = ? WHERE id = ? AND replayed_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("marking pending commit %d replayed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("pending commit %d not found or already replayed", id)
	}
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
