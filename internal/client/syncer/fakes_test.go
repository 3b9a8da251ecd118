package syncer

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote"
	"github.com/dmitrijs2005/quotekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/quotekeeper/internal/timex"
)

var errRemoteDown = errors.New("remote down")

// fakeRemote wraps the in-memory backend with call counters and failure
// injection.
type fakeRemote struct {
	mem *remote.MemoryBackend

	mu         sync.Mutex
	queries    int
	upserts    int
	deletes    int
	queried    []models.EntityType
	failQuery  bool
	failUpsert map[string]bool
	failBatch  bool
	failDelete map[string]bool
	onQuery    func()
}

func newFakeRemote(clock timex.Clock) *fakeRemote {
	return &fakeRemote{
		mem:        remote.NewMemoryBackend(clock),
		failUpsert: map[string]bool{},
		failDelete: map[string]bool{},
	}
}

func (f *fakeRemote) Store(e models.EntityType) remote.Store {
	return &fakeStore{f: f, e: e, inner: f.mem.Store(e)}
}

func (f *fakeRemote) counts() (q, u, d int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries, f.upserts, f.deletes
}

type fakeStore struct {
	f     *fakeRemote
	e     models.EntityType
	inner remote.Store
}

func (s *fakeStore) Upsert(ctx context.Context, records []models.Record) error {
	s.f.mu.Lock()
	s.f.upserts++
	fail := s.f.failBatch && len(records) > 1
	for _, r := range records {
		fail = fail || s.f.failUpsert[r.ID]
	}
	s.f.mu.Unlock()
	if fail {
		return errRemoteDown
	}
	return s.inner.Upsert(ctx, records)
}

func (s *fakeStore) Query(ctx context.Context, q remote.Query) ([]models.Record, error) {
	s.f.mu.Lock()
	s.f.queries++
	s.f.queried = append(s.f.queried, s.e)
	fail, hook := s.f.failQuery, s.f.onQuery
	s.f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if fail {
		return nil, errRemoteDown
	}
	return s.inner.Query(ctx, q)
}

func (s *fakeStore) Delete(ctx context.Context, id, owner string) error {
	s.f.mu.Lock()
	s.f.deletes++
	fail := s.f.failDelete[id]
	s.f.mu.Unlock()
	if fail {
		return errRemoteDown
	}
	return s.inner.Delete(ctx, id, owner)
}

// flakyRepo fails the first Set of one key.
type flakyRepo struct {
	*kv.MemoryRepository
	mu      sync.Mutex
	failKey string
	failed  bool
}

func (r *flakyRepo) Set(ctx context.Context, key string, value []byte) error {
	r.mu.Lock()
	if key == r.failKey && !r.failed {
		r.failed = true
		r.mu.Unlock()
		return errors.New("disk full")
	}
	r.mu.Unlock()
	return r.MemoryRepository.Set(ctx, key, value)
}
