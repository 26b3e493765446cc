package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiatjaf/dancing-couches/internal/storage"
	"github.com/fiatjaf/dancing-couches/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ts(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func TestDirectory_LookupAndRegister(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	dir := s.Directory()

	_, err := dir.Lookup(ctx, "acme", "main")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, dir.Register(ctx, "acme", "main", "http://app1.local"))
	endpoint, err := dir.Lookup(ctx, "acme", "main")
	require.NoError(t, err)
	assert.Equal(t, "http://app1.local", endpoint)

	// upsert replaces
	require.NoError(t, dir.Register(ctx, "acme", "main", "http://app2.local"))
	endpoint, err = dir.Lookup(ctx, "acme", "main")
	require.NoError(t, err)
	assert.Equal(t, "http://app2.local", endpoint)
}

func TestLedger_AppendAssignsDenseSequences(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ledger := s.Ledger()

	require.NoError(t, ledger.Append(ctx, "acme", "main", []storage.NewEntry{
		{DocID: "a", Rev: "1-aa", LastUpdate: ts(100)},
		{DocID: "b", Rev: "1-bb", LastUpdate: ts(100)},
	}))
	require.NoError(t, ledger.Append(ctx, "acme", "main", []storage.NewEntry{
		{DocID: "a", Rev: "2-cc", LastUpdate: ts(200)},
	}))
	// other pairs stay independent
	require.NoError(t, ledger.Append(ctx, "acme", "other", []storage.NewEntry{
		{DocID: "z", Rev: "1-zz", LastUpdate: ts(100)},
	}))

	entries, err := ledger.EntriesSince(ctx, "acme", "main", 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
	}

	max, err := ledger.MaxSequence(ctx, "acme", "main")
	require.NoError(t, err)
	assert.Equal(t, int64(3), max)

	max, err = ledger.MaxSequence(ctx, "acme", "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), max)

	max, err = ledger.MaxSequence(ctx, "nobody", "nothing")
	require.NoError(t, err)
	assert.Equal(t, int64(0), max)
}

func TestLedger_RejectsMalformedRevision(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Ledger().Append(ctx, "acme", "main", []storage.NewEntry{
		{DocID: "a", Rev: "bogus", LastUpdate: ts(1)},
	})
	assert.ErrorIs(t, err, model.ErrBadRevision)

	// nothing was appended
	max, err := s.Ledger().MaxSequence(ctx, "acme", "main")
	require.NoError(t, err)
	assert.Equal(t, int64(0), max)
}

func TestLedger_WinnerIsLastAppended(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ledger := s.Ledger()

	_, err := ledger.Winner(ctx, "acme", "main", "a")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, ledger.Append(ctx, "acme", "main", []storage.NewEntry{
		{DocID: "a", Rev: "1-aa", LastUpdate: ts(100)},
		{DocID: "a", Rev: "2-bb", LastUpdate: ts(200)},
		{DocID: "b", Rev: "1-cc", LastUpdate: ts(100)},
	}))

	w, err := ledger.Winner(ctx, "acme", "main", "a")
	require.NoError(t, err)
	assert.Equal(t, "2-bb", w.Rev)
	assert.Equal(t, ts(200), w.LastUpdate)

	winners, err := ledger.Winners(ctx, "acme", "main", []string{"a", "b", "missing"})
	require.NoError(t, err)
	require.Len(t, winners, 2)
	assert.Equal(t, "2-bb", winners["a"].Rev)
	assert.Equal(t, "1-cc", winners["b"].Rev)
}

func TestLedger_Sequences(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ledger := s.Ledger()

	require.NoError(t, ledger.Append(ctx, "acme", "main", []storage.NewEntry{
		{DocID: "a", Rev: "1-aa", LastUpdate: ts(100)},
		{DocID: "b", Rev: "1-bb", LastUpdate: ts(100)},
		{DocID: "a", Rev: "2-cc", LastUpdate: ts(200)},
	}))

	seq, err := ledger.SequenceOf(ctx, "acme", "main", "a", "2-cc")
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)

	_, err = ledger.SequenceOf(ctx, "acme", "main", "a", "9-zz")
	assert.ErrorIs(t, err, model.ErrNotFound)

	seqs, err := ledger.SequencesOf(ctx, "acme", "main", []storage.DocRev{
		{DocID: "a", Rev: "1-aa"},
		{DocID: "b", Rev: "1-bb"},
		{DocID: "b", Rev: "5-unknown"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[storage.DocRev]int64{
		{DocID: "a", Rev: "1-aa"}: 1,
		{DocID: "b", Rev: "1-bb"}: 2,
	}, seqs)
}

func TestLedger_EntriesSinceHonorsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ledger := s.Ledger()

	require.NoError(t, ledger.Append(ctx, "acme", "main", []storage.NewEntry{
		{DocID: "a", Rev: "1-aa", LastUpdate: ts(1)},
		{DocID: "b", Rev: "1-bb", LastUpdate: ts(2)},
		{DocID: "c", Rev: "1-cc", LastUpdate: ts(3)},
	}))

	entries, err := ledger.EntriesSince(ctx, "acme", "main", 1, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].Seq)
	assert.Equal(t, "b", entries[0].DocID)
}

func TestLedger_KnownRevisions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ledger := s.Ledger()

	require.NoError(t, ledger.Append(ctx, "acme", "main", []storage.NewEntry{
		{DocID: "a", Rev: "1-aa", LastUpdate: ts(1)},
	}))

	known, err := ledger.KnownRevisions(ctx, "acme", "main", []storage.DocRev{
		{DocID: "a", Rev: "1-aa"},
		{DocID: "a", Rev: "2-bb"},
		{DocID: "nope", Rev: "1-cc"},
	})
	require.NoError(t, err)
	assert.True(t, known[storage.DocRev{DocID: "a", Rev: "1-aa"}])
	assert.False(t, known[storage.DocRev{DocID: "a", Rev: "2-bb"}])
	assert.False(t, known[storage.DocRev{DocID: "nope", Rev: "1-cc"}])

	empty, err := ledger.KnownRevisions(ctx, "acme", "main", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCheckpoints_RecordAndResolve(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	cps := s.Checkpoints()

	_, ok, err := cps.LatestAtOrBefore(ctx, "acme", "main", 10)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cps.Record(ctx, "acme", "main", 3, ts(300)))
	require.NoError(t, cps.Record(ctx, "acme", "main", 7, ts(700)))
	// re-recording the same sequence is a no-op
	require.NoError(t, cps.Record(ctx, "acme", "main", 7, ts(999)))

	got, ok, err := cps.LatestAtOrBefore(ctx, "acme", "main", 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ts(700), got)

	got, ok, err = cps.LatestAtOrBefore(ctx, "acme", "main", 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ts(300), got)

	_, ok, err = cps.LatestAtOrBefore(ctx, "acme", "main", 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocals_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	locals := s.Locals()

	_, err := locals.Get(ctx, "acme", "main", "cursor1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	body := model.Document{"last_seq": "12"}
	require.NoError(t, locals.Put(ctx, "acme", "main", "cursor1", "1-aa", body))

	doc, err := locals.Get(ctx, "acme", "main", "cursor1")
	require.NoError(t, err)
	assert.Equal(t, "1-aa", doc.Rev)
	assert.Equal(t, model.Document{"last_seq": "12"}, doc.Body)

	// overwrite unconditionally
	require.NoError(t, locals.Put(ctx, "acme", "main", "cursor1", "2-bb", model.Document{"last_seq": "20"}))
	doc, err = locals.Get(ctx, "acme", "main", "cursor1")
	require.NoError(t, err)
	assert.Equal(t, "2-bb", doc.Rev)
	assert.Equal(t, model.Document{"last_seq": "20"}, doc.Body)
}

func TestOpen_FileDatabase(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Directory().Register(ctx, "acme", "main", "http://app.local"))
	endpoint, err := s.Directory().Lookup(ctx, "acme", "main")
	require.NoError(t, err)
	assert.Equal(t, "http://app.local", endpoint)
}

func TestOpen_MemoryDatabaseSharedAcrossCallers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ledger := s.Ledger()

	require.NoError(t, ledger.Append(ctx, "acme", "main", []storage.NewEntry{
		{DocID: "a", Rev: "1-x", LastUpdate: ts(100)},
	}))

	// keep one connection occupied in a transaction; a concurrent read
	// must still see the schema rather than landing on a private empty
	// in-memory database
	tx, err := s.db.BeginTx(ctx, nil)
	require.NoError(t, err)

	type answer struct {
		max int64
		err error
	}
	done := make(chan answer, 1)
	go func() {
		max, err := ledger.MaxSequence(ctx, "acme", "main")
		done <- answer{max, err}
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, tx.Commit())

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, int64(1), res.max)
}
