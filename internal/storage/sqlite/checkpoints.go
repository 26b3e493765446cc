package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CheckpointsStore maps assigned sequence numbers to backend timestamps.
type CheckpointsStore struct {
	db *sql.DB
}

func (s *CheckpointsStore) LatestAtOrBefore(ctx context.Context, tenant, dataset string, seq int64) (time.Time, bool, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT ts FROM checkpoints
		 WHERE tenant = ? AND dataset = ? AND seq <= ?
		 ORDER BY seq DESC LIMIT 1`,
		tenant, dataset, seq,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return millisToTime(ts), true, nil
}

func (s *CheckpointsStore) Record(ctx context.Context, tenant, dataset string, seq int64, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (tenant, dataset, seq, ts) VALUES (?, ?, ?, ?)
		 ON CONFLICT (tenant, dataset, seq) DO NOTHING`,
		tenant, dataset, seq, ts.UnixMilli(),
	)
	return err
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
