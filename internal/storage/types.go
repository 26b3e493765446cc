package storage

import (
	"context"
	"time"

	"github.com/fiatjaf/dancing-couches/pkg/model"
)

// Entry is one row of the revision ledger. The ledger is append-only:
// rows are never updated or deleted.
type Entry struct {
	Tenant     string
	Dataset    string
	DocID      string
	Rev        string
	LastUpdate time.Time
	// Seq is the dense, gapless, per-(tenant, dataset) ordinal assigned at
	// append time. It is the replication cursor exposed to clients.
	Seq int64
}

// NewEntry is a ledger row about to be appended; Seq is assigned by the store.
type NewEntry struct {
	DocID      string
	Rev        string
	LastUpdate time.Time
}

// DocRev identifies a single requested revision of a document.
type DocRev struct {
	DocID string
	Rev   string
}

// LocalDoc is a non-replicated per-id document, independent of the ledger.
type LocalDoc struct {
	DocID string
	Rev   string
	Body  model.Document
}

// Directory maps a (tenant, dataset) pair to the backend application
// endpoint serving it.
type Directory interface {
	// Lookup returns the backend endpoint for the pair, or model.ErrNotFound.
	Lookup(ctx context.Context, tenant, dataset string) (string, error)

	// Register creates or replaces the pair's endpoint.
	Register(ctx context.Context, tenant, dataset, endpoint string) error
}

// Ledger is the durable append log of document revisions, the source of
// sequence numbers and of current winning revisions.
type Ledger interface {
	// Append adds entries in one transaction, assigning each the next
	// sequence number for the pair. Callers must hold the pair's lock when
	// the append depends on a prior read of ledger state.
	Append(ctx context.Context, tenant, dataset string, entries []NewEntry) error

	// Winner returns the last-appended entry for the document, or
	// model.ErrNotFound when the document has no entries.
	Winner(ctx context.Context, tenant, dataset, docID string) (*Entry, error)

	// Winners resolves the current winning entry for each of the given
	// document IDs. IDs with no entries are absent from the result.
	Winners(ctx context.Context, tenant, dataset string, docIDs []string) (map[string]Entry, error)

	// SequenceOf returns the sequence assigned to one (doc, rev) pair, or
	// model.ErrNotFound.
	SequenceOf(ctx context.Context, tenant, dataset, docID, rev string) (int64, error)

	// SequencesOf resolves sequences for a batch of (doc, rev) pairs.
	// Unknown pairs are absent from the result.
	SequencesOf(ctx context.Context, tenant, dataset string, pairs []DocRev) (map[DocRev]int64, error)

	// EntriesSince returns entries with sequence greater than afterSeq,
	// ascending, capped at limit (limit <= 0 means no cap).
	EntriesSince(ctx context.Context, tenant, dataset string, afterSeq int64, limit int) ([]Entry, error)

	// KnownRevisions reports which of the given (doc, rev) pairs have ever
	// been appended.
	KnownRevisions(ctx context.Context, tenant, dataset string, pairs []DocRev) (map[DocRev]bool, error)

	// MaxSequence returns the highest sequence assigned for the pair, or 0.
	MaxSequence(ctx context.Context, tenant, dataset string) (int64, error)
}

// Checkpoints maps assigned sequence numbers to the backend timestamp in
// effect when they were produced, so a changes feed can resume without
// rescanning history.
type Checkpoints interface {
	// LatestAtOrBefore returns the timestamp of the greatest checkpointed
	// sequence <= seq. ok is false when no such checkpoint exists, which
	// callers treat as the zero timestamp (full resync).
	LatestAtOrBefore(ctx context.Context, tenant, dataset string, seq int64) (time.Time, bool, error)

	// Record stores a checkpoint. Recording an already-checkpointed
	// sequence is a no-op, not an error.
	Record(ctx context.Context, tenant, dataset string, seq int64, ts time.Time) error
}

// Locals is the small non-replicated key/value store replicating clients
// use to persist their own cursors.
type Locals interface {
	Get(ctx context.Context, tenant, dataset, docID string) (*LocalDoc, error)
	Put(ctx context.Context, tenant, dataset, docID, rev string, body model.Document) error
}
