package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fiatjaf/dancing-couches/internal/storage"
	"github.com/fiatjaf/dancing-couches/pkg/model"
)

// LedgerStore is the append-only revision ledger. Sequence numbers are an
// explicit per-(tenant, dataset) counter assigned inside the append
// transaction, which yields the same dense, gapless numbering as ranking
// every row by insertion order, in O(1) per append.
type LedgerStore struct {
	db *sql.DB
}

func (s *LedgerStore) Append(ctx context.Context, tenant, dataset string, entries []storage.NewEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if _, err := model.ParseRev(e.Rev); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM revision_log WHERE tenant = ? AND dataset = ?`,
		tenant, dataset,
	).Scan(&next); err != nil {
		return err
	}

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO revision_log (tenant, dataset, doc_id, rev, last_update, seq)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			tenant, dataset, e.DocID, e.Rev, e.LastUpdate.UnixMilli(), next,
		); err != nil {
			return err
		}
		next++
	}
	return tx.Commit()
}

func (s *LedgerStore) Winner(ctx context.Context, tenant, dataset, docID string) (*storage.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT doc_id, rev, last_update, seq FROM revision_log
		 WHERE tenant = ? AND dataset = ? AND doc_id = ?
		 ORDER BY seq DESC LIMIT 1`,
		tenant, dataset, docID,
	)
	e, err := scanEntry(row, tenant, dataset)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", docID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *LedgerStore) Winners(ctx context.Context, tenant, dataset string, docIDs []string) (map[string]storage.Entry, error) {
	if len(docIDs) == 0 {
		return map[string]storage.Entry{}, nil
	}
	args := []interface{}{tenant, dataset}
	for _, id := range docIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, rev, last_update, seq FROM (
		   SELECT doc_id, rev, last_update, seq,
		          ROW_NUMBER() OVER (PARTITION BY doc_id ORDER BY seq DESC) AS rn
		   FROM revision_log
		   WHERE tenant = ? AND dataset = ? AND doc_id IN (`+placeholders(len(docIDs))+`)
		 ) WHERE rn = 1`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]storage.Entry, len(docIDs))
	for rows.Next() {
		e, err := scanEntry(rows, tenant, dataset)
		if err != nil {
			return nil, err
		}
		out[e.DocID] = *e
	}
	return out, rows.Err()
}

func (s *LedgerStore) SequenceOf(ctx context.Context, tenant, dataset, docID, rev string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT seq FROM revision_log
		 WHERE tenant = ? AND dataset = ? AND doc_id = ? AND rev = ?`,
		tenant, dataset, docID, rev,
	).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("revision %s of %s: %w", rev, docID, model.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *LedgerStore) SequencesOf(ctx context.Context, tenant, dataset string, pairs []storage.DocRev) (map[storage.DocRev]int64, error) {
	out := make(map[storage.DocRev]int64, len(pairs))
	if len(pairs) == 0 {
		return out, nil
	}
	query, args := pairQuery(
		`SELECT doc_id, rev, seq FROM revision_log WHERE tenant = ? AND dataset = ? AND (`,
		tenant, dataset, pairs,
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var pair storage.DocRev
		var seq int64
		if err := rows.Scan(&pair.DocID, &pair.Rev, &seq); err != nil {
			return nil, err
		}
		out[pair] = seq
	}
	return out, rows.Err()
}

func (s *LedgerStore) EntriesSince(ctx context.Context, tenant, dataset string, afterSeq int64, limit int) ([]storage.Entry, error) {
	query := `SELECT doc_id, rev, last_update, seq FROM revision_log
		 WHERE tenant = ? AND dataset = ? AND seq > ?
		 ORDER BY seq ASC`
	args := []interface{}{tenant, dataset, afterSeq}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Entry
	for rows.Next() {
		e, err := scanEntry(rows, tenant, dataset)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *LedgerStore) KnownRevisions(ctx context.Context, tenant, dataset string, pairs []storage.DocRev) (map[storage.DocRev]bool, error) {
	out := make(map[storage.DocRev]bool, len(pairs))
	if len(pairs) == 0 {
		return out, nil
	}
	query, args := pairQuery(
		`SELECT DISTINCT doc_id, rev FROM revision_log WHERE tenant = ? AND dataset = ? AND (`,
		tenant, dataset, pairs,
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var pair storage.DocRev
		if err := rows.Scan(&pair.DocID, &pair.Rev); err != nil {
			return nil, err
		}
		out[pair] = true
	}
	return out, rows.Err()
}

func (s *LedgerStore) MaxSequence(ctx context.Context, tenant, dataset string) (int64, error) {
	var max int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM revision_log WHERE tenant = ? AND dataset = ?`,
		tenant, dataset,
	).Scan(&max)
	return max, err
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scannable, tenant, dataset string) (*storage.Entry, error) {
	var e storage.Entry
	var updated int64
	if err := row.Scan(&e.DocID, &e.Rev, &updated, &e.Seq); err != nil {
		return nil, err
	}
	e.Tenant = tenant
	e.Dataset = dataset
	e.LastUpdate = millisToTime(updated)
	return &e, nil
}

// pairQuery expands a batch of (doc, rev) pairs into an OR chain appended
// to prefix, which must end with an open parenthesis.
func pairQuery(prefix, tenant, dataset string, pairs []storage.DocRev) (string, []interface{}) {
	args := []interface{}{tenant, dataset}
	clauses := make([]string, 0, len(pairs))
	for _, p := range pairs {
		clauses = append(clauses, `(doc_id = ? AND rev = ?)`)
		args = append(args, p.DocID, p.Rev)
	}
	query := prefix
	for i, c := range clauses {
		if i > 0 {
			query += ` OR `
		}
		query += c
	}
	return query + `)`, args
}
