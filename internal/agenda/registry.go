package agenda

import (
	"context"
	"errors"
	"sync"
	"time"

	"casa/internal/cache"
	"casa/internal/store"
)

var ErrNoOwner = errors.New("owner id is required")

// Registry hands out one loaded Store per owner. Stores are created lazily on
// first use and evicted by LRU or TTL; concurrent first requests for the same
// owner share a single load.
//
// A caller may keep writing through a Store after it was evicted and the
// owner reloaded. Such writes drop the newer cached copy, and a load that
// overlaps a write starts over, so the cache never misses a committed write.
type Registry struct {
	repo   store.TaskRepository
	stores *cache.Loading[*Store]

	mu       sync.Mutex
	versions map[string]uint64
}

// NewRegistry keeps at most maxOwners stores warm, each for at most ttl.
func NewRegistry(repo store.TaskRepository, maxOwners int, ttl time.Duration) *Registry {
	r := &Registry{repo: repo, versions: make(map[string]uint64)}
	r.stores = cache.NewLoading(cache.NewLRUCache[*Store](maxOwners, ttl), r.load)
	return r
}

func (r *Registry) load(ctx context.Context, ownerID string) (*Store, error) {
	for {
		before := r.version(ownerID)
		s := NewStore(r.repo, ownerID)
		if err := s.Load(ctx); err != nil {
			return nil, err
		}
		if r.version(ownerID) == before {
			s.OnWrite(r.written)
			return s, nil
		}
	}
}

func (r *Registry) version(ownerID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.versions[ownerID]
}

// written runs after s persisted a write.
func (r *Registry) written(s *Store) {
	r.mu.Lock()
	r.versions[s.owner]++
	r.mu.Unlock()

	if cur, ok := r.stores.Get(s.owner); ok && cur != s {
		r.stores.Delete(s.owner)
	}
}

// For returns the loaded store of ownerID.
func (r *Registry) For(ctx context.Context, ownerID string) (*Store, error) {
	if ownerID == "" {
		return nil, ErrNoOwner
	}
	return r.stores.Fetch(ctx, ownerID)
}

// Forget drops the cached store so the next call reloads it.
func (r *Registry) Forget(ownerID string) {
	r.stores.Delete(ownerID)
}

// Cache exposes the underlying cache for registration with a cache.Manager.
func (r *Registry) Cache() cache.Cleaner {
	return r.stores.LRUCache
}
