// Package sqlite implements every storage interface on a single SQLite
// database using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS app_dbs (
	tenant   TEXT NOT NULL,
	dataset  TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	PRIMARY KEY (tenant, dataset)
);
CREATE TABLE IF NOT EXISTS revision_log (
	tenant      TEXT NOT NULL,
	dataset     TEXT NOT NULL,
	doc_id      TEXT NOT NULL,
	rev         TEXT NOT NULL,
	last_update INTEGER NOT NULL,
	seq         INTEGER NOT NULL,
	PRIMARY KEY (tenant, dataset, seq)
);
CREATE INDEX IF NOT EXISTS revision_log_doc
	ON revision_log (tenant, dataset, doc_id);
CREATE TABLE IF NOT EXISTS checkpoints (
	tenant  TEXT NOT NULL,
	dataset TEXT NOT NULL,
	seq     INTEGER NOT NULL,
	ts      INTEGER NOT NULL,
	PRIMARY KEY (tenant, dataset, seq)
);
CREATE TABLE IF NOT EXISTS local_docs (
	tenant  TEXT NOT NULL,
	dataset TEXT NOT NULL,
	doc_id  TEXT NOT NULL,
	rev     TEXT NOT NULL,
	body    TEXT NOT NULL,
	PRIMARY KEY (tenant, dataset, doc_id)
);
`

// Store bundles the four sub-stores on a shared *sql.DB handle. There is no
// process-wide connection: every collaborator receives the handle it needs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and applies the schema.
// Pass ":memory:" for an in-memory database.
//
// The pragmas are part of the DSN so that every connection the pool opens
// carries them, not just the first.
func Open(dsn string) (*Store, error) {
	memory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
	if !memory {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if memory {
		// each pool connection to ":memory:" is its own private empty
		// database; a single connection keeps them all on the same one
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Directory() *DirectoryStore     { return &DirectoryStore{db: s.db} }
func (s *Store) Ledger() *LedgerStore           { return &LedgerStore{db: s.db} }
func (s *Store) Checkpoints() *CheckpointsStore { return &CheckpointsStore{db: s.db} }
func (s *Store) Locals() *LocalsStore           { return &LocalsStore{db: s.db} }

func (s *Store) Close() error { return s.db.Close() }

// placeholders returns "?, ?, ..." with n slots, for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
