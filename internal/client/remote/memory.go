package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
	"github.com/dmitrijs2005/quotekeeper/internal/timex"
)

// MemoryStore keeps records in process memory. It backs the "memory" remote
// backend (offline demo mode) and serves as a reference in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.Record
	clock   timex.Clock
}

func NewMemoryStore(clock timex.Clock) *MemoryStore {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	return &MemoryStore{records: make(map[string]models.Record), clock: clock}
}

func (m *MemoryStore) Upsert(_ context.Context, records []models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		if r.OwnerID == "" {
			return fmt.Errorf("%w: record %s has no owner", common.ErrValidation, r.ID)
		}
		if have, ok := m.records[r.ID]; ok && have.OwnerID != r.OwnerID {
			return fmt.Errorf("%w: %s", ErrOwnerMismatch, r.ID)
		}
	}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *MemoryStore) Query(_ context.Context, q Query) ([]models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Record
	for _, r := range m.records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	SortForPaging(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok || r.OwnerID != ownerID || r.IsDeleted() {
		return nil
	}
	now := m.clock.Now()
	r.DeletedAt = &now
	r.UpdatedAt = now
	m.records[id] = r
	return nil
}

// Len counts stored records, deleted ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// MemoryBackend is a Backend of MemoryStores created on first use.
type MemoryBackend struct {
	mu     sync.Mutex
	clock  timex.Clock
	stores map[models.EntityType]*MemoryStore
}

func NewMemoryBackend(clock timex.Clock) *MemoryBackend {
	return &MemoryBackend{clock: clock, stores: make(map[models.EntityType]*MemoryStore)}
}

func (b *MemoryBackend) Store(e models.EntityType) Store {
	return b.Memory(e)
}

// Memory returns the concrete store of e, for inspection.
func (b *MemoryBackend) Memory(e models.EntityType) *MemoryStore {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.stores[e]
	if !ok {
		s = NewMemoryStore(b.clock)
		b.stores[e] = s
	}
	return s
}
