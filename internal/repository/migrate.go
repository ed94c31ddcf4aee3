package repository

import (
	"fmt"
	"strings"
)

// Schema shared by both dialects. Content hashes are stored hex-encoded
// so the DDL stays portable, timestamps use the drivers' native
// time.Time handling.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS scan_files (
	id            TEXT PRIMARY KEY,
	source_path   TEXT NOT NULL,
	filename      TEXT NOT NULL,
	file_ext      TEXT NOT NULL,
	file_size     INTEGER NOT NULL,
	content_hash  TEXT NOT NULL UNIQUE,
	year          TEXT NOT NULL DEFAULT '',
	uploaded_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS extract_jobs (
	id             TEXT PRIMARY KEY,
	file_id        TEXT NOT NULL REFERENCES scan_files (id),
	status         TEXT NOT NULL,
	started_at     TIMESTAMP NOT NULL,
	finished_at    TIMESTAMP,
	error_message  TEXT,
	confidence     REAL,
	needs_review   BOOLEAN NOT NULL DEFAULT FALSE,
	ocr_text       TEXT,
	extracted_json TEXT,
	provider       TEXT
);

CREATE INDEX IF NOT EXISTS idx_extract_jobs_file ON extract_jobs (file_id);
CREATE INDEX IF NOT EXISTS idx_extract_jobs_status ON extract_jobs (status);
`

const schemaVersion = 1

func migrate(db *DB) error {
	if db.dialect == "sqlite" {
		return migrateSQLite(db)
	}
	// postgres DDL is idempotent, no version bookkeeping needed
	return execStatements(db, schemaV1)
}

// migrateSQLite tracks the schema through PRAGMA user_version so future
// versions can run incremental steps.
func migrateSQLite(db *DB) error {
	version, err := getUserVersion(db)
	if err != nil {
		return err
	}
	if version >= schemaVersion {
		return nil
	}
	if err := execStatements(db, schemaV1); err != nil {
		return err
	}
	return setUserVersion(db, schemaVersion)
}

// execStatements runs each semicolon-separated statement on its own.
// pgx's extended protocol rejects multi-statement commands.
func execStatements(db *DB, ddl string) error {
	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.SQL.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func getUserVersion(db *DB) (int, error) {
	var version int
	if err := db.SQL.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *DB, version int) error {
	if _, err := db.SQL.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
