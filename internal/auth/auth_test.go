package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiatjaf/dancing-couches/internal/backend"
	"github.com/fiatjaf/dancing-couches/pkg/model"
)

type fakeChecker struct {
	calls   int
	verdict bool
	err     error
}

func (f *fakeChecker) UserAllowed(ctx context.Context, endpoint string, creds backend.Credentials) (bool, error) {
	f.calls++
	return f.verdict, f.err
}

func TestFromRequest(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	assert.Equal(t, backend.Credentials{}, FromRequest(r))

	r.SetBasicAuth("alice", "secret")
	assert.Equal(t, backend.Credentials{Username: "alice", Password: "secret"}, FromRequest(r))
}

func TestAllowed_CachesVerdict(t *testing.T) {
	checker := &fakeChecker{verdict: true}
	s := NewService(checker)
	creds := backend.Credentials{Username: "alice", Password: "secret"}

	assert.True(t, s.Allowed(context.Background(), "http://app", creds))
	assert.True(t, s.Allowed(context.Background(), "http://app", creds))
	assert.Equal(t, 1, checker.calls)

	// different credentials miss the cache
	other := backend.Credentials{Username: "bob", Password: "hunter2"}
	s.Allowed(context.Background(), "http://app", other)
	assert.Equal(t, 2, checker.calls)
}

func TestAllowed_BackendFailureNotCached(t *testing.T) {
	checker := &fakeChecker{err: model.ErrBackendUnavailable}
	s := NewService(checker)
	creds := backend.Credentials{Username: "alice", Password: "secret"}

	assert.False(t, s.Allowed(context.Background(), "http://app", creds))
	assert.False(t, s.Allowed(context.Background(), "http://app", creds))
	// each attempt re-asks the backend
	assert.Equal(t, 2, checker.calls)

	// recovery is picked up immediately
	checker.err = nil
	checker.verdict = true
	assert.True(t, s.Allowed(context.Background(), "http://app", creds))
}
