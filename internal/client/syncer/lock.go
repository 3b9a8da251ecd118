package syncer

import (
	"sync"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
)

// Coordinator is the in-memory half of the single-flight guard: at most one
// holder per entity type inside this process.
type Coordinator struct {
	mu   sync.Mutex
	held map[models.EntityType]bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{held: make(map[models.EntityType]bool)}
}

// TryAcquire takes the lock of e if free.
func (c *Coordinator) TryAcquire(e models.EntityType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held[e] {
		return false
	}
	c.held[e] = true
	return true
}

func (c *Coordinator) Release(e models.EntityType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, e)
}

// Held reports whether e is locked.
func (c *Coordinator) Held(e models.EntityType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held[e]
}
