package replica

import (
	"context"
	"sort"
	"time"

	"github.com/fiatjaf/dancing-couches/internal/backend"
	"github.com/fiatjaf/dancing-couches/internal/storage"
	"github.com/fiatjaf/dancing-couches/pkg/model"
)

// Change is one row of the changes feed.
type Change struct {
	Seq     int64       `json:"seq"`
	ID      string      `json:"id"`
	Changes []ChangeRev `json:"changes"`
}

type ChangeRev struct {
	Rev string `json:"rev"`
}

// ChangesResult is the assembled page of the changes feed.
type ChangesResult struct {
	Results []Change `json:"results"`
	LastSeq int64    `json:"last_seq"`
}

// Changes reconciles backend-reported changes against the ledger, mints new
// revisions for documents that actually changed, and returns the page of
// changes with sequence greater than since.
func (s *Service) Changes(ctx context.Context, tenant, dataset string, creds backend.Credentials, since int64, limit int) (*ChangesResult, error) {
	endpoint, err := s.Resolve(ctx, tenant, dataset)
	if err != nil {
		return nil, err
	}
	s.metrics.ChangesRequests.Inc()

	// translate the sequence cursor into the backend's timestamp notion
	lower, _, err := s.checkpoints.LatestAtOrBefore(ctx, tenant, dataset, since)
	if err != nil {
		return nil, err
	}

	reported, err := s.backend.Changes(ctx, endpoint, creds, lower)
	if err != nil {
		// read path: degrade to an empty report
		s.metrics.BackendErrors.WithLabelValues("changes").Inc()
		s.logger.Warn("backend change report failed, assuming no changes",
			"tenant", tenant, "dataset", dataset, "err", err)
		reported = nil
	}

	unlock := s.locks.lock(tenant, dataset)
	defer unlock()

	ids := make([]string, 0, len(reported))
	for _, r := range reported {
		ids = append(ids, r.ID)
	}
	winners, err := s.ledger.Winners(ctx, tenant, dataset, ids)
	if err != nil {
		return nil, err
	}

	// mint revisions for genuinely changed documents, keep existing
	// revisions for unchanged ones
	revByDoc := make(map[string]string, len(reported))
	var minted []storage.NewEntry
	for _, r := range reported {
		// the ledger stores timestamps at millisecond granularity; compare
		// at the same granularity or an unchanged document with a
		// sub-millisecond last_update would mint forever
		updatedAt := r.LastUpdate.Truncate(time.Millisecond)
		winner, known := winners[r.ID]
		switch {
		case !known:
			rev, err := model.NextRev("")
			if err != nil {
				return nil, err
			}
			revByDoc[r.ID] = rev
			minted = append(minted, storage.NewEntry{DocID: r.ID, Rev: rev, LastUpdate: updatedAt})
		case !winner.LastUpdate.Equal(updatedAt):
			rev, err := model.NextRev(winner.Rev)
			if err != nil {
				return nil, err
			}
			revByDoc[r.ID] = rev
			minted = append(minted, storage.NewEntry{DocID: r.ID, Rev: rev, LastUpdate: updatedAt})
		default:
			revByDoc[r.ID] = winner.Rev
		}
	}

	if err := s.ledger.Append(ctx, tenant, dataset, minted); err != nil {
		return nil, err
	}
	s.metrics.RevisionsAppended.Add(float64(len(minted)))

	// resolve sequence numbers for every reported document, new or not
	pairs := make([]storage.DocRev, 0, len(revByDoc))
	for id, rev := range revByDoc {
		pairs = append(pairs, storage.DocRev{DocID: id, Rev: rev})
	}
	seqs, err := s.ledger.SequencesOf(ctx, tenant, dataset, pairs)
	if err != nil {
		return nil, err
	}

	results := make([]Change, 0, len(seqs))
	for pair, seq := range seqs {
		if seq <= since {
			continue
		}
		results = append(results, Change{
			Seq:     seq,
			ID:      pair.DocID,
			Changes: []ChangeRev{{Rev: pair.Rev}},
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Seq < results[j].Seq })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	// lastSeq reflects the whole ledger, not just this page
	lastSeq, err := s.ledger.MaxSequence(ctx, tenant, dataset)
	if err != nil {
		return nil, err
	}
	if lastSeq == 0 {
		return &ChangesResult{Results: results, LastSeq: since}, nil
	}
	if err := s.checkpoints.Record(ctx, tenant, dataset, lastSeq, s.now().UTC()); err != nil {
		return nil, err
	}

	s.publishAppended(ctx, tenant, dataset, minted)
	return &ChangesResult{Results: results, LastSeq: lastSeq}, nil
}
