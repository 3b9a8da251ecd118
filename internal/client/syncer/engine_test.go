package syncer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/quotekeeper/internal/client/auth"
	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote"
	"github.com/dmitrijs2005/quotekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/quotekeeper/internal/client/store"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
	"github.com/dmitrijs2005/quotekeeper/internal/testutil"
)

var t0 = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

const owner = "u1"

type env struct {
	ctx    context.Context
	clock  *testutil.ManualClock
	repo   kv.Repository
	store  *store.Store
	remote *fakeRemote
	engine *Engine
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	return newEnvWithRepo(t, kv.NewMemoryRepository(), auth.Static{OwnerID: owner, Tier: "pro"}, opts...)
}

func newEnvWithRepo(t *testing.T, repo kv.Repository, sessions auth.SessionSource, opts ...Option) *env {
	t.Helper()
	clock := testutil.NewManualClock(t0)
	st := store.New(repo)
	fr := newFakeRemote(clock)
	opts = append([]Option{WithClock(clock)}, opts...)
	return &env{
		ctx:    context.Background(),
		clock:  clock,
		repo:   repo,
		store:  st,
		remote: fr,
		engine: New(st, fr, repo, sessions, opts...),
	}
}

func rec(id string, updated time.Time, payload string) models.Record {
	return models.Record{
		ID:        id,
		OwnerID:   owner,
		CreatedAt: updated,
		UpdatedAt: updated,
		Data:      json.RawMessage(payload),
	}
}

func (e *env) local(t *testing.T, entity models.EntityType) map[string]models.Record {
	t.Helper()
	all, err := e.store.ReadAll(e.ctx, entity)
	require.NoError(t, err)
	return models.ByID(all)
}

func (e *env) remoteAll(t *testing.T, entity models.EntityType) map[string]models.Record {
	t.Helper()
	all, err := e.remote.mem.Store(entity).Query(e.ctx, remote.Query{OwnerID: owner})
	require.NoError(t, err)
	return models.ByID(all)
}

func (e *env) seedRemote(t *testing.T, entity models.EntityType, recs ...models.Record) {
	t.Helper()
	require.NoError(t, e.remote.mem.Store(entity).Upsert(e.ctx, recs))
}

// next moves past the cooldown.
func (e *env) next() { e.clock.Advance(DefaultCooldown + time.Second) }

func TestSync_NoOwnerAbortsWithoutWork(t *testing.T) {
	e := newEnvWithRepo(t, kv.NewMemoryRepository(), auth.Static{})

	res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.ErrorIs(t, err, common.ErrNoOwner)
	assert.False(t, res.Success)

	q, u, d := e.remote.counts()
	assert.Zero(t, q+u+d)
}

func TestSync_NotEntitledIsSkipped(t *testing.T) {
	e := newEnvWithRepo(t, kv.NewMemoryRepository(), auth.Static{OwnerID: owner, Tier: "free"})

	res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.Equal(t, SkipNotEntitled, res.Skipped)
	assert.False(t, res.Success)

	q, _, _ := e.remote.counts()
	assert.Zero(t, q)
}

func TestSync_FirstCycleDownloadsAndUploads(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.Upsert(e.ctx, models.EntityQuotes, rec("local", t0.Add(-time.Hour), `{"n":"l"}`)))
	e.seedRemote(t, models.EntityQuotes, rec("remote", t0.Add(-30*time.Minute), `{"n":"r"}`))

	res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Downloaded)
	assert.Equal(t, 1, res.Uploaded)
	assert.False(t, res.HasMore)

	assert.Contains(t, e.local(t, models.EntityQuotes), "remote")
	assert.Contains(t, e.remoteAll(t, models.EntityQuotes), "local")

	meta, err := e.engine.Metadata(e.ctx, owner, models.EntityQuotes)
	require.NoError(t, err)
	require.NotNil(t, meta.LastSyncAt)
	assert.Equal(t, t0, *meta.LastSyncAt)
	require.NotNil(t, meta.LastCompletedAt)

	lock, err := e.engine.loadLock(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.False(t, lock.InProgress, "lock released")
	assert.False(t, e.engine.locks.Held(models.EntityQuotes))
}

func TestSync_MergeIsLastWriteWins(t *testing.T) {
	tests := []struct {
		name         string
		localAt      time.Time
		remoteAt     time.Time
		wantLocal    string
		wantRemote   string
		wantUploaded int
	}{
		{"remote newer", t0.Add(-2 * time.Hour), t0.Add(-time.Hour), `{"v":"remote"}`, `{"v":"remote"}`, 0},
		{"local newer", t0.Add(-time.Hour), t0.Add(-2 * time.Hour), `{"v":"local"}`, `{"v":"local"}`, 1},
		{"tie keeps local", t0.Add(-time.Hour), t0.Add(-time.Hour), `{"v":"local"}`, `{"v":"remote"}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			require.NoError(t, e.store.Upsert(e.ctx, models.EntityAssemblies, rec("x", tt.localAt, `{"v":"local"}`)))
			e.seedRemote(t, models.EntityAssemblies, rec("x", tt.remoteAt, `{"v":"remote"}`))

			res, err := e.engine.Sync(e.ctx, models.EntityAssemblies)
			require.NoError(t, err)
			require.True(t, res.Success)
			assert.Equal(t, tt.wantUploaded, res.Uploaded)

			assert.JSONEq(t, tt.wantLocal, string(e.local(t, models.EntityAssemblies)["x"].Data))
			assert.JSONEq(t, tt.wantRemote, string(e.remoteAll(t, models.EntityAssemblies)["x"].Data))
		})
	}
}

func TestSync_CooldownSkipsSecondCall(t *testing.T) {
	e := newEnv(t)

	_, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)

	e.clock.Advance(4 * time.Second)
	res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.Equal(t, SkipCooldown, res.Skipped)
	assert.False(t, res.Success)
	assert.Zero(t, res.Downloaded+res.Uploaded)

	q, _, _ := e.remote.counts()
	assert.Equal(t, 1, q, "no download during cooldown")

	e.clock.Advance(2 * time.Second)
	res, err = e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestSync_CooldownIsPerEntity(t *testing.T) {
	e := newEnv(t)
	_, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)

	res, err := e.engine.Sync(e.ctx, models.EntityPricebook)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestSync_ConcurrentCallsAreMutuallyExclusive(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.Upsert(e.ctx, models.EntityQuotes, rec("q", t0.Add(-time.Hour), `{}`)))

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	e.remote.onQuery = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	first := make(chan Result, 1)
	go func() {
		res, _ := e.engine.Sync(e.ctx, models.EntityQuotes)
		first <- res
	}()
	<-entered

	res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.Equal(t, SkipLocked, res.Skipped)
	assert.False(t, res.Success)
	assert.Zero(t, res.Downloaded)
	assert.Zero(t, res.Uploaded)

	close(release)
	got := <-first
	assert.True(t, got.Success)
	assert.Equal(t, 1, got.Uploaded)

	q, _, _ := e.remote.counts()
	assert.Equal(t, 1, q)
}

func TestSync_SharedCoordinatorAcrossEngines(t *testing.T) {
	c := NewCoordinator()
	e := newEnv(t, WithCoordinator(c))
	require.True(t, c.TryAcquire(models.EntityPricebook))

	res, err := e.engine.Sync(e.ctx, models.EntityPricebook)
	require.NoError(t, err)
	assert.Equal(t, SkipLocked, res.Skipped)

	c.Release(models.EntityPricebook)
	res, err = e.engine.Sync(e.ctx, models.EntityPricebook)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestSync_PersistedLock(t *testing.T) {
	t.Run("fresh lock blocks", func(t *testing.T) {
		e := newEnv(t)
		started := t0.Add(-10 * time.Second)
		require.NoError(t, e.engine.saveLock(e.ctx, models.EntityQuotes, models.SyncLock{InProgress: true, StartedAt: &started}))

		res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
		require.NoError(t, err)
		assert.Equal(t, SkipLocked, res.Skipped)

		lock, err := e.engine.loadLock(e.ctx, models.EntityQuotes)
		require.NoError(t, err)
		assert.True(t, lock.InProgress, "someone else's lock is left alone")
		assert.False(t, e.engine.locks.Held(models.EntityQuotes))
	})

	t.Run("stale lock is cleared", func(t *testing.T) {
		e := newEnv(t)
		started := t0.Add(-61 * time.Second)
		require.NoError(t, e.engine.saveLock(e.ctx, models.EntityQuotes, models.SyncLock{InProgress: true, StartedAt: &started}))

		res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, NotSkipped, res.Skipped)

		lock, err := e.engine.loadLock(e.ctx, models.EntityQuotes)
		require.NoError(t, err)
		assert.False(t, lock.InProgress)
	})

	t.Run("corrupt lock is treated as stale", func(t *testing.T) {
		e := newEnv(t)
		require.NoError(t, e.repo.Set(e.ctx, lockKey(models.EntityQuotes), []byte("{")))

		res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
		require.NoError(t, err)
		assert.True(t, res.Success)
	})
}

func TestSync_DeletionQueue(t *testing.T) {
	e := newEnv(t)
	gone := rec("d1", t0.Add(-time.Hour), `{"v":"local"}`)
	del := t0.Add(-time.Minute)
	gone.DeletedAt = &del
	require.NoError(t, e.store.Upsert(e.ctx, models.EntityQuotes, gone, rec("keep", t0.Add(-time.Hour), `{}`)))
	e.seedRemote(t, models.EntityQuotes, rec("d1", t0.Add(-time.Hour), `{"v":"remote"}`))
	require.NoError(t, e.engine.Enqueue(e.ctx, models.EntityQuotes, "d1"))

	pending, err := e.engine.Pending(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, pending)

	res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Deleted)
	assert.Zero(t, res.Downloaded, "queued id is not merged back")
	assert.Equal(t, 1, res.Uploaded, "only the live record is pushed")

	assert.NotContains(t, e.local(t, models.EntityQuotes), "d1")
	r := e.remoteAll(t, models.EntityQuotes)["d1"]
	assert.True(t, r.IsDeleted())

	pending, err = e.engine.Pending(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSync_FailedDeletionStaysQueued(t *testing.T) {
	e := newEnv(t)
	gone := rec("d1", t0.Add(-time.Hour), `{"v":"local"}`)
	del := t0.Add(-time.Minute)
	gone.DeletedAt = &del
	require.NoError(t, e.store.Upsert(e.ctx, models.EntityQuotes, gone))
	e.seedRemote(t, models.EntityQuotes, rec("d1", t0, `{"v":"remote"}`))
	require.NoError(t, e.engine.Enqueue(e.ctx, models.EntityQuotes, "d1"))
	e.remote.failDelete["d1"] = true

	res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Failures)
	assert.Zero(t, res.Deleted)
	assert.Zero(t, res.Downloaded, "newer remote copy of a queued id is ignored")

	l := e.local(t, models.EntityQuotes)["d1"]
	assert.True(t, l.IsDeleted())

	pending, err := e.engine.Pending(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, pending)

	delete(e.remote.failDelete, "d1")
	e.next()
	res, err = e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Deleted)
}

func TestSync_PagesWithCursorAndDefersAbsentUploads(t *testing.T) {
	e := newEnv(t, WithOptions(Options{Cooldown: DefaultCooldown, StaleLockAfter: DefaultStaleLockAfter, BatchSize: 2}))
	e.seedRemote(t, models.EntityPricebook,
		rec("p1", t0.Add(-3*time.Minute), `{}`),
		rec("p2", t0.Add(-2*time.Minute), `{}`),
		rec("p3", t0.Add(-time.Minute), `{}`),
	)
	require.NoError(t, e.store.Upsert(e.ctx, models.EntityPricebook, rec("mine", t0.Add(-10*time.Minute), `{}`)))

	res, err := e.engine.Sync(e.ctx, models.EntityPricebook)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.HasMore)
	assert.Equal(t, 2, res.Downloaded)
	assert.Zero(t, res.Uploaded, "absent record waits for the last page")

	meta, err := e.engine.Metadata(e.ctx, owner, models.EntityPricebook)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(-2*time.Minute), *meta.LastSyncAt)

	parked, err := e.engine.PendingUploads(e.ctx, models.EntityPricebook)
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, parked)

	e.next()
	res, err = e.engine.Sync(e.ctx, models.EntityPricebook)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.HasMore)
	assert.Equal(t, 1, res.Downloaded)
	assert.Equal(t, 1, res.Uploaded)

	assert.Len(t, e.local(t, models.EntityPricebook), 4)
	assert.Contains(t, e.remoteAll(t, models.EntityPricebook), "mine")

	parked, err = e.engine.PendingUploads(e.ctx, models.EntityPricebook)
	require.NoError(t, err)
	assert.Empty(t, parked)
}

func TestSync_PageBoundaryInsideTimestampTie(t *testing.T) {
	e := newEnv(t, WithOptions(Options{Cooldown: DefaultCooldown, StaleLockAfter: DefaultStaleLockAfter, BatchSize: 2}))
	tie := t0.Add(-time.Minute)
	e.seedRemote(t, models.EntityPricebook,
		rec("p3", tie, `{}`),
		rec("p1", tie, `{}`),
		rec("p2", tie, `{}`),
	)

	res, err := e.engine.Sync(e.ctx, models.EntityPricebook)
	require.NoError(t, err)
	assert.True(t, res.HasMore)
	assert.Equal(t, 2, res.Downloaded)

	meta, err := e.engine.Metadata(e.ctx, owner, models.EntityPricebook)
	require.NoError(t, err)
	require.NotNil(t, meta.LastSyncAt)
	assert.Equal(t, tie, *meta.LastSyncAt)
	assert.Equal(t, "p2", meta.LastSyncID)

	e.next()
	res, err = e.engine.Sync(e.ctx, models.EntityPricebook)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.HasMore)
	assert.Equal(t, 1, res.Downloaded)

	local := e.local(t, models.EntityPricebook)
	assert.Len(t, local, 3)
	assert.Contains(t, local, "p3")

	meta, err = e.engine.Metadata(e.ctx, owner, models.EntityPricebook)
	require.NoError(t, err)
	assert.Empty(t, meta.LastSyncID, "a short page resets the cursor to the cycle start")
}

func TestSync_IncrementalSkipsUnchangedLocal(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.Upsert(e.ctx, models.EntityQuotes, rec("q1", t0.Add(-time.Hour), `{"v":1}`)))

	res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	require.Equal(t, 1, res.Uploaded)

	e.next()
	res, err = e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, res.Uploaded)
	_, upserts, _ := e.remote.counts()
	assert.Equal(t, 1, upserts)

	e.next()
	require.NoError(t, e.store.Upsert(e.ctx, models.EntityQuotes, rec("q1", e.clock.Now(), `{"v":2}`)))
	e.next()
	res, err = e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)
	assert.JSONEq(t, `{"v":2}`, string(e.remoteAll(t, models.EntityQuotes)["q1"].Data))
}

func TestSync_FailedUploadIsRetried(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.Upsert(e.ctx, models.EntityQuotes,
		rec("ok", t0.Add(-time.Hour), `{}`), rec("bad", t0.Add(-time.Hour), `{}`)))
	e.remote.failUpsert["bad"] = true

	res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, 1, res.Uploaded, "one failure does not stop the batch")

	parked, err := e.engine.PendingUploads(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.Equal(t, []string{"bad"}, parked)

	meta, err := e.engine.Metadata(e.ctx, owner, models.EntityQuotes)
	require.NoError(t, err)
	require.NotNil(t, meta.LastSyncAt, "cursor advances despite record failures")

	delete(e.remote.failUpsert, "bad")
	e.next()
	res, err = e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Uploaded)
	assert.Contains(t, e.remoteAll(t, models.EntityQuotes), "bad")
}

func TestSync_DownloadFailureKeepsCursor(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.Upsert(e.ctx, models.EntityQuotes, rec("q", t0.Add(-time.Hour), `{}`)))
	e.remote.failQuery = true

	res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, res.Uploaded)

	meta, err := e.engine.Metadata(e.ctx, owner, models.EntityQuotes)
	require.NoError(t, err)
	assert.Nil(t, meta.LastSyncAt)
	assert.NotNil(t, meta.LastCompletedAt)
}

func TestSync_CorruptionForcesFullDownload(t *testing.T) {
	e := newEnv(t)
	e.seedRemote(t, models.EntityQuotes, rec("r1", t0.Add(-time.Hour), `{}`))

	_, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)

	require.NoError(t, e.repo.Set(e.ctx, store.CanonicalKey(models.EntityQuotes), []byte("garbage")))
	_, err = e.store.List(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	require.True(t, e.store.CorruptionDetected())

	e.next()
	res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Downloaded, "rebuilt from remote")
	assert.False(t, e.store.CorruptionDetected())
	assert.Contains(t, e.local(t, models.EntityQuotes), "r1")
}

func TestSync_BatchWriteFallsBackToSingleWrites(t *testing.T) {
	repo := &flakyRepo{MemoryRepository: kv.NewMemoryRepository(), failKey: store.CanonicalKey(models.EntityPricebook)}
	e := newEnvWithRepo(t, repo, auth.Static{OwnerID: owner, Tier: "pro"})
	e.seedRemote(t, models.EntityPricebook, rec("a", t0.Add(-time.Hour), `{}`), rec("b", t0.Add(-time.Hour), `{}`))

	res, err := e.engine.Sync(e.ctx, models.EntityPricebook)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Downloaded)
	assert.Len(t, e.local(t, models.EntityPricebook), 2)
}

func TestSync_ForeignRecordsAreNotUploaded(t *testing.T) {
	e := newEnv(t)
	foreign := rec("f", t0.Add(-time.Hour), `{}`)
	foreign.OwnerID = "someone-else"
	orphan := rec("o", t0.Add(-time.Hour), `{}`)
	orphan.OwnerID = ""
	require.NoError(t, e.store.Upsert(e.ctx, models.EntityQuotes, foreign, orphan))

	res, err := e.engine.Sync(e.ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)

	r := e.remoteAll(t, models.EntityQuotes)
	assert.Contains(t, r, "o")
	assert.Equal(t, owner, r["o"].OwnerID)
}

func TestSync_IgnoresCancellationAfterLock(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.Upsert(e.ctx, models.EntityQuotes, rec("q", t0.Add(-time.Hour), `{}`)))

	ctx, cancel := context.WithCancel(context.Background())
	e.remote.onQuery = cancel

	res, err := e.engine.Sync(ctx, models.EntityQuotes)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Uploaded)
}

func TestSyncAll_OrderAndOwner(t *testing.T) {
	e := newEnv(t)
	results, err := e.engine.SyncAll(e.ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []models.EntityType{models.EntityPricebook, models.EntityAssemblies, models.EntityQuotes}, e.remote.queried)
	for _, r := range results {
		assert.True(t, r.Success, r.Entity)
	}

	noOwner := newEnvWithRepo(t, kv.NewMemoryRepository(), auth.Static{})
	_, err = noOwner.engine.SyncAll(noOwner.ctx)
	assert.ErrorIs(t, err, common.ErrNoOwner)
}
