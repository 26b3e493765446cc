package replica

import (
	"context"
	"fmt"

	"github.com/fiatjaf/dancing-couches/internal/backend"
	"github.com/fiatjaf/dancing-couches/internal/storage"
	"github.com/fiatjaf/dancing-couches/pkg/model"
)

// DocResult is the per-document outcome of a bulk docs synchronization.
type DocResult struct {
	ID    string `json:"id"`
	Rev   string `json:"rev,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// candidate is the winning submission for one document within a batch.
type candidate struct {
	doc        model.Document
	generation int
}

// BulkDocs accepts an incoming batch of document revisions (the push
// path), forwards only non-stale per-document winners to the backend's
// write API, and records every submitted revision in the ledger. Backend
// failure aborts the whole invocation with no ledger mutation.
func (s *Service) BulkDocs(ctx context.Context, tenant, dataset string, creds backend.Credentials, docs []model.Document) ([]DocResult, error) {
	endpoint, err := s.Resolve(ctx, tenant, dataset)
	if err != nil {
		return nil, err
	}
	s.metrics.BulkDocsRequests.Inc()

	// validate up front: the ledger never accepts an unparseable revision
	generations := make([]int, len(docs))
	for i, doc := range docs {
		if doc.ID() == "" {
			return nil, fmt.Errorf("document %d has no _id: %w", i, model.ErrBadRevision)
		}
		gen, err := model.Generation(doc.Rev())
		if err != nil {
			return nil, err
		}
		generations[i] = gen
	}

	// per-document winner within the batch, by numeric generation
	candidates := make(map[string]candidate)
	order := make([]string, 0, len(docs))
	for i, doc := range docs {
		id := doc.ID()
		cur, seen := candidates[id]
		if !seen {
			order = append(order, id)
		}
		if !seen || generations[i] > cur.generation {
			candidates[id] = candidate{doc: doc, generation: generations[i]}
		}
	}

	unlock := s.locks.lock(tenant, dataset)
	defer unlock()

	stored, err := s.ledger.Winners(ctx, tenant, dataset, order)
	if err != nil {
		return nil, err
	}

	// forward a candidate only when its generation is not behind the
	// stored winner; equal generations make resubmission idempotent
	var batch backend.SaveBatch
	var creates, updates, deletes []string
	for _, id := range order {
		cand := candidates[id]
		if winner, ok := stored[id]; ok {
			storedGen, err := model.Generation(winner.Rev)
			if err != nil {
				return nil, err
			}
			if cand.generation < storedGen {
				continue
			}
		}

		body := cand.doc.StripReserved()
		body["id"] = id
		switch {
		case cand.doc.Deleted():
			batch.Delete = append(batch.Delete, body)
			deletes = append(deletes, id)
		case cand.generation == 1:
			batch.Create = append(batch.Create, body)
			creates = append(creates, id)
		default:
			batch.Update = append(batch.Update, body)
			updates = append(updates, id)
		}
	}

	// create, update, delete concatenation order, for per-doc verdicts
	forwarded := append(append(creates, updates...), deletes...)

	var verdicts map[string]bool
	if len(forwarded) > 0 {
		result, err := s.backend.Save(ctx, endpoint, creds, batch)
		if err != nil {
			// hard failure: no ledger entry may be observed afterwards
			s.metrics.BackendErrors.WithLabelValues("save").Inc()
			return nil, err
		}
		if result.PerDoc != nil {
			verdicts = make(map[string]bool, len(forwarded))
			for i, id := range forwarded {
				if i < len(result.PerDoc) {
					verdicts[id] = result.PerDoc[i]
				}
			}
		}
	}

	// record every submitted revision, stale ones included, so revs-diff
	// and bulk-get recognize them as known; pairs the ledger already holds
	// are not re-appended, or one revision would occupy several sequence
	// slots
	pairs := make([]storage.DocRev, 0, len(docs))
	for _, doc := range docs {
		pairs = append(pairs, storage.DocRev{DocID: doc.ID(), Rev: doc.Rev()})
	}
	known, err := s.ledger.KnownRevisions(ctx, tenant, dataset, pairs)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	entries := make([]storage.NewEntry, 0, len(docs))
	for _, pair := range pairs {
		if known[pair] {
			continue
		}
		known[pair] = true
		entries = append(entries, storage.NewEntry{DocID: pair.DocID, Rev: pair.Rev, LastUpdate: now})
	}
	if err := s.ledger.Append(ctx, tenant, dataset, entries); err != nil {
		return nil, err
	}
	s.metrics.RevisionsAppended.Add(float64(len(entries)))

	results := make([]DocResult, 0, len(docs))
	for _, doc := range docs {
		ok := true
		if verdicts != nil {
			if verdict, reported := verdicts[doc.ID()]; reported {
				ok = verdict
			}
		}
		results = append(results, DocResult{ID: doc.ID(), Rev: doc.Rev(), OK: ok})
	}

	s.publishAppended(ctx, tenant, dataset, entries)
	return results, nil
}
