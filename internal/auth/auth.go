// Package auth passes inbound credentials through to the backend
// application and caches its USER_ALLOWED verdicts. No authentication
// policy lives here: the backend decides, this package only asks.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zeebo/blake3"

	"github.com/fiatjaf/dancing-couches/internal/backend"
)

const (
	cacheSize = 1024
	cacheTTL  = time.Minute
)

// FromRequest extracts the caller's basic-auth credentials. Absent
// credentials yield the zero value, which the backend is free to reject.
func FromRequest(r *http.Request) backend.Credentials {
	username, password, _ := r.BasicAuth()
	return backend.Credentials{Username: username, Password: password}
}

type allowedChecker interface {
	UserAllowed(ctx context.Context, endpoint string, creds backend.Credentials) (bool, error)
}

// Service answers "may these credentials write through this endpoint",
// remembering recent verdicts so replicator request bursts do not hammer
// the backend.
type Service struct {
	backend allowedChecker
	cache   *expirable.LRU[[32]byte, bool]
}

func NewService(caller allowedChecker) *Service {
	return &Service{
		backend: caller,
		cache:   expirable.NewLRU[[32]byte, bool](cacheSize, nil, cacheTTL),
	}
}

// Allowed checks the credentials against the backend's USER_ALLOWED
// operation. A backend failure counts as not allowed; the failure verdict
// is not cached.
func (s *Service) Allowed(ctx context.Context, endpoint string, creds backend.Credentials) bool {
	key := cacheKey(endpoint, creds)
	if verdict, ok := s.cache.Get(key); ok {
		return verdict
	}

	verdict, err := s.backend.UserAllowed(ctx, endpoint, creds)
	if err != nil {
		return false
	}
	s.cache.Add(key, verdict)
	return verdict
}

// cacheKey hashes the credentials so raw passwords are not retained in the
// cache.
func cacheKey(endpoint string, creds backend.Credentials) [32]byte {
	return blake3.Sum256([]byte(endpoint + "\x00" + creds.Username + "\x00" + creds.Password))
}
