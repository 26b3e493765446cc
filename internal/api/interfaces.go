package api

import (
	"context"

	"github.com/fiatjaf/dancing-couches/internal/backend"
	"github.com/fiatjaf/dancing-couches/internal/replica"
	"github.com/fiatjaf/dancing-couches/internal/storage"
	"github.com/fiatjaf/dancing-couches/pkg/model"
)

// ReplicaService is the synchronization core the handlers drive.
type ReplicaService interface {
	Resolve(ctx context.Context, tenant, dataset string) (string, error)
	RegisterDatabase(ctx context.Context, tenant, dataset, endpoint string) error
	Info(ctx context.Context, tenant, dataset string) (map[string]interface{}, error)
	Changes(ctx context.Context, tenant, dataset string, creds backend.Credentials, since int64, limit int) (*replica.ChangesResult, error)
	RevsDiff(ctx context.Context, tenant, dataset string, requested map[string][]string) (map[string]replica.MissingRevs, error)
	AllDocs(ctx context.Context, tenant, dataset string, creds backend.Credentials, ids []string) (*replica.AllDocsResult, error)
	BulkGet(ctx context.Context, tenant, dataset string, creds backend.Credentials, reqs []storage.DocRev) ([]replica.BulkGetResult, error)
	BulkDocs(ctx context.Context, tenant, dataset string, creds backend.Credentials, docs []model.Document) ([]replica.DocResult, error)
	LocalGet(ctx context.Context, tenant, dataset, docID string) (model.Document, error)
	LocalPut(ctx context.Context, tenant, dataset, docID string, body model.Document) (string, error)
}

// AuthService verifies passed-through credentials against the backend.
type AuthService interface {
	Allowed(ctx context.Context, endpoint string, creds backend.Credentials) bool
}
