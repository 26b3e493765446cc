package replica

import (
	"context"

	"github.com/fiatjaf/dancing-couches/pkg/model"
)

// LocalGet reads a non-replicated local document.
func (s *Service) LocalGet(ctx context.Context, tenant, dataset, docID string) (model.Document, error) {
	if _, err := s.Resolve(ctx, tenant, dataset); err != nil {
		return nil, err
	}
	doc, err := s.locals.Get(ctx, tenant, dataset, docID)
	if err != nil {
		return nil, err
	}
	body := doc.Body.Clone()
	body.SetID(docID)
	body.SetRev(doc.Rev)
	return body, nil
}

// LocalPut writes a local document, computing the next revision from the
// body's supplied prior revision (generation 1 when absent) and
// overwriting unconditionally. No generation-conflict check is performed.
func (s *Service) LocalPut(ctx context.Context, tenant, dataset, docID string, body model.Document) (string, error) {
	if _, err := s.Resolve(ctx, tenant, dataset); err != nil {
		return "", err
	}
	rev, err := model.NextRev(body.Rev())
	if err != nil {
		return "", err
	}
	stored := body.Clone()
	delete(stored, model.FieldID)
	delete(stored, model.FieldRev)
	if err := s.locals.Put(ctx, tenant, dataset, docID, rev, stored); err != nil {
		return "", err
	}
	return rev, nil
}
