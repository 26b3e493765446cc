package replica

import (
	"context"

	"github.com/fiatjaf/dancing-couches/internal/backend"
	"github.com/fiatjaf/dancing-couches/internal/storage"
	"github.com/fiatjaf/dancing-couches/pkg/model"
)

// MissingRevs lists the revisions of one document the ledger does not know.
type MissingRevs struct {
	Missing []string `json:"missing"`
}

// RevsDiff reports, for each requested (document, revision) pair, whether
// the revision is unknown to the ledger. Unknown documents report every
// requested revision as missing.
func (s *Service) RevsDiff(ctx context.Context, tenant, dataset string, requested map[string][]string) (map[string]MissingRevs, error) {
	if _, err := s.Resolve(ctx, tenant, dataset); err != nil {
		return nil, err
	}

	out := make(map[string]MissingRevs, len(requested))
	if len(requested) == 0 {
		return out, nil
	}

	var pairs []storage.DocRev
	for id, revs := range requested {
		for _, rev := range revs {
			pairs = append(pairs, storage.DocRev{DocID: id, Rev: rev})
		}
	}
	known, err := s.ledger.KnownRevisions(ctx, tenant, dataset, pairs)
	if err != nil {
		return nil, err
	}

	for id, revs := range requested {
		missing := MissingRevs{Missing: []string{}}
		for _, rev := range revs {
			if !known[storage.DocRev{DocID: id, Rev: rev}] {
				missing.Missing = append(missing.Missing, rev)
			}
		}
		out[id] = missing
	}
	return out, nil
}

// AllDocsRow is one row of the all-docs response, shaped like the
// replication protocol expects.
type AllDocsRow struct {
	ID    string         `json:"id"`
	Key   string         `json:"key"`
	Value AllDocsValue   `json:"value"`
	Doc   model.Document `json:"doc"`
}

type AllDocsValue struct {
	Rev string `json:"_rev"`
}

type AllDocsResult struct {
	Offset    int          `json:"offset"`
	Rows      []AllDocsRow `json:"rows"`
	TotalRows int          `json:"total_rows"`
}

// AllDocs resolves each requested ID to its ledger winning revision and
// fetches the bodies from the backend in one batched call. IDs with no
// ledger entry are omitted.
func (s *Service) AllDocs(ctx context.Context, tenant, dataset string, creds backend.Credentials, ids []string) (*AllDocsResult, error) {
	endpoint, err := s.Resolve(ctx, tenant, dataset)
	if err != nil {
		return nil, err
	}

	winners, err := s.ledger.Winners(ctx, tenant, dataset, ids)
	if err != nil {
		return nil, err
	}
	fetchIDs := make([]string, 0, len(winners))
	for _, id := range ids {
		if _, ok := winners[id]; ok {
			fetchIDs = append(fetchIDs, id)
		}
	}

	fetched, err := s.backend.Fetch(ctx, endpoint, creds, fetchIDs)
	if err != nil {
		s.metrics.BackendErrors.WithLabelValues("fetch").Inc()
		s.logger.Warn("backend fetch failed, returning no rows",
			"tenant", tenant, "dataset", dataset, "err", err)
		fetched = nil
	}

	rows := make([]AllDocsRow, 0, len(fetched))
	for _, raw := range fetched {
		id, _ := raw["id"].(string)
		winner, ok := winners[id]
		if !ok {
			continue
		}
		doc := raw.Clone()
		delete(doc, "id")
		doc.SetID(id)
		doc.SetRev(winner.Rev)
		rows = append(rows, AllDocsRow{
			ID:    id,
			Key:   id,
			Value: AllDocsValue{Rev: winner.Rev},
			Doc:   doc,
		})
	}
	return &AllDocsResult{Offset: 0, Rows: rows, TotalRows: len(rows)}, nil
}

// BulkGetItem is one outcome inside a bulk-get result row: either a body or
// a not-found marker, never both.
type BulkGetItem struct {
	OK    model.Document `json:"ok,omitempty"`
	Error *BulkGetError  `json:"error,omitempty"`
}

type BulkGetError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

type BulkGetResult struct {
	ID   string        `json:"id"`
	Docs []BulkGetItem `json:"docs"`
}

// BulkGet resolves a batch of (id, rev) pairs: pairs matching the ledger's
// current winner get the fetched body, every other requested pair gets a
// not-found marker. Every requested pair yields exactly one outcome.
func (s *Service) BulkGet(ctx context.Context, tenant, dataset string, creds backend.Credentials, reqs []storage.DocRev) ([]BulkGetResult, error) {
	endpoint, err := s.Resolve(ctx, tenant, dataset)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	for _, req := range reqs {
		if !seen[req.DocID] {
			seen[req.DocID] = true
			ids = append(ids, req.DocID)
		}
	}
	winners, err := s.ledger.Winners(ctx, tenant, dataset, ids)
	if err != nil {
		return nil, err
	}

	// fetch bodies only for documents whose requested revision is the
	// current winner
	fetchIDs := make([]string, 0, len(ids))
	wanted := make(map[string]bool)
	for _, req := range reqs {
		if winner, ok := winners[req.DocID]; ok && winner.Rev == req.Rev && !wanted[req.DocID] {
			wanted[req.DocID] = true
			fetchIDs = append(fetchIDs, req.DocID)
		}
	}

	fetched, err := s.backend.Fetch(ctx, endpoint, creds, fetchIDs)
	if err != nil {
		s.metrics.BackendErrors.WithLabelValues("fetch").Inc()
		s.logger.Warn("backend fetch failed, reporting not found",
			"tenant", tenant, "dataset", dataset, "err", err)
		fetched = nil
	}

	results := make([]BulkGetResult, 0, len(reqs))
	// presence is tracked with an explicit map, never an index value that
	// could be conflated with position zero
	rowIndex := make(map[string]int)
	satisfied := make(map[storage.DocRev]bool)

	for _, raw := range fetched {
		id, _ := raw["id"].(string)
		winner, ok := winners[id]
		if !ok {
			continue
		}
		doc := raw.Clone()
		delete(doc, "id")
		doc.SetID(id)
		doc.SetRev(winner.Rev)
		results = append(results, BulkGetResult{
			ID:   id,
			Docs: []BulkGetItem{{OK: doc}},
		})
		rowIndex[id] = len(results) - 1
		satisfied[storage.DocRev{DocID: id, Rev: winner.Rev}] = true
	}

	for _, req := range reqs {
		if satisfied[req] {
			// this occurrence is the fetched one; a duplicate of the
			// same pair still needs its own outcome
			satisfied[req] = false
			continue
		}
		item := BulkGetItem{Error: &BulkGetError{Error: "not_found", Reason: "deleted"}}
		if idx, ok := rowIndex[req.DocID]; ok {
			results[idx].Docs = append(results[idx].Docs, item)
		} else {
			results = append(results, BulkGetResult{ID: req.DocID, Docs: []BulkGetItem{item}})
			rowIndex[req.DocID] = len(results) - 1
		}
	}
	return results, nil
}
