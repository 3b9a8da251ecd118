package syncer

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/quotekeeper/internal/client/auth"
	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote"
	"github.com/dmitrijs2005/quotekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/quotekeeper/internal/client/store"
	"github.com/dmitrijs2005/quotekeeper/internal/logging"
	"github.com/dmitrijs2005/quotekeeper/internal/timex"
)

// Tuning defaults. They are empirical; override through Options.
const (
	DefaultCooldown       = 5 * time.Second
	DefaultStaleLockAfter = 60 * time.Second
	DefaultBatchSize      = 50
)

type Options struct {
	// Cooldown is the minimum gap between completed cycles of one entity.
	Cooldown time.Duration
	// StaleLockAfter is the age after which a persisted lock is presumed
	// abandoned by a crashed run.
	StaleLockAfter time.Duration
	// BatchSize caps one download page and one migration upload batch.
	BatchSize int
}

func DefaultOptions() Options {
	return Options{
		Cooldown:       DefaultCooldown,
		StaleLockAfter: DefaultStaleLockAfter,
		BatchSize:      DefaultBatchSize,
	}
}

// SkipReason says why a cycle did no work.
type SkipReason string

const (
	NotSkipped      SkipReason = ""
	SkipCooldown    SkipReason = "cooldown"
	SkipLocked      SkipReason = "locked"
	SkipNotEntitled SkipReason = "not_entitled"
)

// Result reports one cycle. Success is false when the cycle was skipped or
// any operation failed; the counts are still accurate in that case.
type Result struct {
	Entity     models.EntityType
	Success    bool
	Downloaded int
	Uploaded   int
	Deleted    int
	// HasMore is set when the download page was full; call Sync again to
	// fetch the rest.
	HasMore  bool
	Skipped  SkipReason
	Failures int
}

// Engine runs sync cycles. One Engine (or one Coordinator shared between
// Engines) per process keeps cycles of the same entity from overlapping.
type Engine struct {
	store       *store.Store
	backend     remote.Backend
	state       kv.Repository
	sessions    auth.SessionSource
	entitlement auth.Entitlement
	clock       timex.Clock
	logger      logging.Logger
	opts        Options
	locks       *Coordinator

	queueMu   sync.Mutex
	migrateMu sync.Map // models.EntityType -> *sync.Mutex
}

type Option func(*Engine)

func WithOptions(o Options) Option {
	return func(e *Engine) { e.opts = o }
}

func WithClock(c timex.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithEntitlement(en auth.Entitlement) Option {
	return func(e *Engine) { e.entitlement = en }
}

// WithCoordinator shares in-memory locks with other engines.
func WithCoordinator(c *Coordinator) Option {
	return func(e *Engine) { e.locks = c }
}

// New wires an engine. state holds sync metadata, locks and queues; it is
// usually the same repository the record store is built on.
func New(st *store.Store, backend remote.Backend, state kv.Repository, sessions auth.SessionSource, opts ...Option) *Engine {
	e := &Engine{
		store:       st,
		backend:     backend,
		state:       state,
		sessions:    sessions,
		entitlement: auth.DefaultEntitlement,
		clock:       timex.SystemClock{},
		logger:      logging.NewNop(),
		opts:        DefaultOptions(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.locks == nil {
		e.locks = NewCoordinator()
	}
	e.logger = logging.Module(e.logger, "sync")
	return e
}

func (e *Engine) migrateLock(entity models.EntityType) *sync.Mutex {
	mu, _ := e.migrateMu.LoadOrStore(entity, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
