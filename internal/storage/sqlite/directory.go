package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fiatjaf/dancing-couches/pkg/model"
)

// DirectoryStore maps (tenant, dataset) pairs to backend endpoints.
type DirectoryStore struct {
	db *sql.DB
}

func (s *DirectoryStore) Lookup(ctx context.Context, tenant, dataset string) (string, error) {
	var endpoint string
	err := s.db.QueryRowContext(ctx,
		`SELECT endpoint FROM app_dbs WHERE tenant = ? AND dataset = ?`,
		tenant, dataset,
	).Scan(&endpoint)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("database %s/%s: %w", tenant, dataset, model.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return endpoint, nil
}

func (s *DirectoryStore) Register(ctx context.Context, tenant, dataset, endpoint string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_dbs (tenant, dataset, endpoint) VALUES (?, ?, ?)
		 ON CONFLICT (tenant, dataset) DO UPDATE SET endpoint = excluded.endpoint`,
		tenant, dataset, endpoint,
	)
	return err
}
