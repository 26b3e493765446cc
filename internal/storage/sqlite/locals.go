package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fiatjaf/dancing-couches/internal/storage"
	"github.com/fiatjaf/dancing-couches/pkg/model"
)

// LocalsStore holds non-replicated local documents, keyed per
// (tenant, dataset, id) and overwritten unconditionally on put.
type LocalsStore struct {
	db *sql.DB
}

func (s *LocalsStore) Get(ctx context.Context, tenant, dataset, docID string) (*storage.LocalDoc, error) {
	var rev, raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT rev, body FROM local_docs
		 WHERE tenant = ? AND dataset = ? AND doc_id = ?`,
		tenant, dataset, docID,
	).Scan(&rev, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("local document %s: %w", docID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var body model.Document
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("decode local document %s: %w", docID, err)
	}
	return &storage.LocalDoc{DocID: docID, Rev: rev, Body: body}, nil
}

func (s *LocalsStore) Put(ctx context.Context, tenant, dataset, docID, rev string, body model.Document) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode local document %s: %w", docID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO local_docs (tenant, dataset, doc_id, rev, body) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (tenant, dataset, doc_id) DO UPDATE SET rev = excluded.rev, body = excluded.body`,
		tenant, dataset, docID, rev, string(raw),
	)
	return err
}
