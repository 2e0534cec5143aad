package journal

import (
	"fmt"
)

// migrate creates all tables if they don't exist and stamps the schema
// version.
func (j *Journal) migrate() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			text_hash TEXT NOT NULL,
			extractor TEXT NOT NULL DEFAULT '',
			extraction_version TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL,
			committed INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_doc_id ON runs(doc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_text_hash ON runs(text_hash)`,
		`CREATE TABLE IF NOT EXISTS pending_commits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			cause TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			replayed_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_unreplayed ON pending_commits(replayed_at) WHERE replayed_at IS NULL`,
	}

	for _, stmt := range ddl {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("journal migration: %w", err)
		}
	}

	_, err := j.db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', '1')`)
	if err != nil {
		return fmt.Errorf("seeding journal metadata: %w", err)
	}
	return nil
}
