package replica

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// pairLocks serializes read-decide-append sequences per (tenant, dataset).
// Requests for different pairs proceed in parallel.
type pairLocks struct {
	mutexes *xsync.MapOf[string, *sync.Mutex]
}

func newPairLocks() *pairLocks {
	return &pairLocks{mutexes: xsync.NewMapOf[string, *sync.Mutex]()}
}

// lock acquires the pair's mutex and returns the release function.
func (l *pairLocks) lock(tenant, dataset string) func() {
	mu, _ := l.mutexes.LoadOrCompute(tenant+"\x00"+dataset, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	mu.Lock()
	return mu.Unlock
}
