package repair

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/quotekeeper/internal/client/auth"
	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote"
	"github.com/dmitrijs2005/quotekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/quotekeeper/internal/client/store"
	"github.com/dmitrijs2005/quotekeeper/internal/testutil"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx     context.Context
	clock   *testutil.ManualClock
	store   *store.Store
	backend *remote.MemoryBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewManualClock(t0)
	return &fixture{
		ctx:     context.Background(),
		clock:   clock,
		store:   store.New(kv.NewMemoryRepository()),
		backend: remote.NewMemoryBackend(clock),
	}
}

func (f *fixture) pricebook(t *testing.T, id, name string) {
	t.Helper()
	rec, err := models.Wrap(id, "u1", t0, t0, models.PricebookItem{Name: name, UnitPrice: 3.5})
	require.NoError(t, err)
	require.NoError(t, f.store.Upsert(f.ctx, models.EntityPricebook, rec))
}

func (f *fixture) assembly(t *testing.T, id string, items ...models.AssemblyItem) {
	t.Helper()
	rec, err := models.Wrap(id, "u1", t0, t0, models.Assembly{Name: id, Items: items})
	require.NoError(t, err)
	require.NoError(t, f.store.Upsert(f.ctx, models.EntityAssemblies, rec))
}

func (f *fixture) load(t *testing.T, id string) (models.Record, models.Assembly) {
	t.Helper()
	rec, err := f.store.Get(f.ctx, models.EntityAssemblies, id)
	require.NoError(t, err)
	a, err := models.Unwrap[models.Assembly](rec)
	require.NoError(t, err)
	return rec, a
}

func (f *fixture) repairer(opts ...Option) *Repairer {
	base := []Option{
		WithClock(f.clock),
		WithRemote(f.backend, auth.Static{OwnerID: "u1", Tier: "pro"}, auth.AllowAll{}),
	}
	return New(f.store, append(base, opts...)...)
}

func pb(id, name string, qty float64) models.AssemblyItem {
	return models.AssemblyItem{ProductID: id, Source: models.SourcePricebook, Name: name, Qty: models.FixedQty(qty)}
}

func TestRun_RelinksDanglingItemByName(t *testing.T) {
	f := newFixture(t)
	f.pricebook(t, "pb-new", "2x4 Stud 8ft")
	f.assembly(t, "a1", pb("pb-gone", "2X4 stud 8FT", 12))
	f.clock.Advance(time.Minute)

	sum, err := f.repairer().Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{AssembliesChecked: 1, AssembliesRepaired: 1, ItemsFixed: 1}, sum)

	rec, a := f.load(t, "a1")
	require.Len(t, a.Items, 1)
	assert.Equal(t, "pb-new", a.Items[0].ProductID)
	assert.Equal(t, models.SourcePricebook, a.Items[0].Source)
	assert.Equal(t, models.FixedQty(12), a.Items[0].Qty)
	assert.False(t, a.HasUnresolvedItems)
	assert.Equal(t, t0.Add(time.Minute), rec.UpdatedAt)

	uploaded, err := f.backend.Store(models.EntityAssemblies).Query(f.ctx, remote.Query{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, uploaded, 1)
	assert.Equal(t, "a1", uploaded[0].ID)
}

func TestRun_ValidItemsAreLeftAlone(t *testing.T) {
	f := newFixture(t)
	f.pricebook(t, "pb1", "Drywall sheet")
	f.assembly(t, "a1", pb("pb1", "Drywall sheet", 4),
		models.AssemblyItem{ProductID: "cat-9", Source: models.SourceCatalog, Qty: models.FixedQty(1)})
	f.clock.Advance(time.Minute)

	sum, err := f.repairer().Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.AssembliesChecked)
	assert.Zero(t, sum.AssembliesRepaired)
	assert.Empty(t, sum.Unfixable)

	rec, _ := f.load(t, "a1")
	assert.Equal(t, t0, rec.UpdatedAt, "not re-saved")
	assert.Zero(t, f.backend.Memory(models.EntityAssemblies).Len())
}

func TestRun_UnfixableItemIsKeptAndFlagged(t *testing.T) {
	f := newFixture(t)
	f.assembly(t, "a1", pb("pb-gone", "Mystery fitting", 2), pb("pb-gone-2", "", 1))

	sum, err := f.repairer().Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, sum.Unfixable)
	assert.Zero(t, sum.ItemsFixed)

	_, a := f.load(t, "a1")
	assert.Len(t, a.Items, 2, "user data is never dropped")
	assert.True(t, a.HasUnresolvedItems)
	assert.Zero(t, f.backend.Memory(models.EntityAssemblies).Len(), "marker-only change waits for sync")

	sum, err = f.repairer().Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, sum.Unfixable)
}

func TestRun_MarkerIsClearedOnceResolved(t *testing.T) {
	f := newFixture(t)
	rec, err := models.Wrap("a1", "u1", t0, t0, models.Assembly{
		Name: "a1", Items: []models.AssemblyItem{pb("pb1", "Tile", 1)}, HasUnresolvedItems: true,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Upsert(f.ctx, models.EntityAssemblies, rec))
	f.pricebook(t, "pb1", "Tile")

	needs, err := f.repairer().NeedsRepair(f.ctx)
	require.NoError(t, err)
	assert.True(t, needs)

	_, err = f.repairer().Run(f.ctx)
	require.NoError(t, err)
	_, a := f.load(t, "a1")
	assert.False(t, a.HasUnresolvedItems)
}

func TestRun_SeedAssemblyIsRemoved(t *testing.T) {
	f := newFixture(t)
	f.pricebook(t, "pb1", "Deck screw")
	f.assembly(t, "seed-deck-framing", pb("pb1", "Deck screw", 100), pb("pb-gone", "Joist hanger", 8))
	require.NoError(t, f.backend.Store(models.EntityAssemblies).Upsert(f.ctx, []models.Record{
		{ID: "seed-deck-framing", OwnerID: "u1", CreatedAt: t0, UpdatedAt: t0, Data: []byte(`{}`)},
	}))

	sum, err := f.repairer().Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.SeedAssembliesRemoved)
	assert.Empty(t, sum.Unfixable)

	all, err := f.store.ReadAll(f.ctx, models.EntityAssemblies)
	require.NoError(t, err)
	assert.Empty(t, all)

	remoteRecs, err := f.backend.Store(models.EntityAssemblies).Query(f.ctx, remote.Query{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, remoteRecs, 1)
	assert.True(t, remoteRecs[0].IsDeleted())
}

func TestRun_SeedIDsAreConfigurable(t *testing.T) {
	f := newFixture(t)
	f.assembly(t, "starter", pb("pb-gone", "", 1))
	f.assembly(t, "seed-deck-framing", pb("pb-gone", "", 1))

	sum, err := f.repairer(WithSeedIDs("starter")).Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.SeedAssembliesRemoved)
	assert.Equal(t, []string{"seed-deck-framing"}, sum.Unfixable)
}

type recordingQueue struct{ ids []string }

func (q *recordingQueue) Enqueue(_ context.Context, _ models.EntityType, ids ...string) error {
	q.ids = append(q.ids, ids...)
	return nil
}

type failingBackend struct{}

func (failingBackend) Store(models.EntityType) remote.Store { return failingStore{} }

type failingStore struct{}

var errOffline = errors.New("offline")

func (failingStore) Upsert(context.Context, []models.Record) error { return errOffline }
func (failingStore) Query(context.Context, remote.Query) ([]models.Record, error) {
	return nil, errOffline
}
func (failingStore) Delete(context.Context, string, string) error { return errOffline }

func TestRun_RemoteFailures(t *testing.T) {
	f := newFixture(t)
	f.pricebook(t, "pb1", "Grout")
	f.assembly(t, "a1", pb("gone", "grout", 1))
	f.assembly(t, "a2", pb("gone", "GROUT", 2))
	f.assembly(t, "seed-bathroom-rough-in", pb("gone", "", 1))

	q := &recordingQueue{}
	r := New(f.store,
		WithClock(f.clock),
		WithRemote(failingBackend{}, auth.Static{OwnerID: "u1", Tier: "pro"}, auth.AllowAll{}),
		WithDeletionQueue(q),
	)
	sum, err := r.Run(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.AssembliesRepaired, "an upload failure does not stop the run")
	assert.Len(t, sum.Errors, 2)
	assert.Equal(t, 1, sum.SeedAssembliesRemoved)
	assert.Equal(t, []string{"seed-bathroom-rough-in"}, q.ids)

	_, a := f.load(t, "a2")
	assert.Equal(t, "pb1", a.Items[0].ProductID, "repaired locally anyway")
}

func TestRun_NotEntitledRepairsLocallyOnly(t *testing.T) {
	f := newFixture(t)
	f.pricebook(t, "pb1", "Caulk")
	f.assembly(t, "a1", pb("gone", "caulk", 1))

	r := New(f.store, WithClock(f.clock),
		WithRemote(f.backend, auth.Static{OwnerID: "u1", Tier: "free"}, auth.DefaultEntitlement))
	sum, err := r.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.ItemsFixed)
	assert.Empty(t, sum.Errors)
	assert.Zero(t, f.backend.Memory(models.EntityAssemblies).Len())
}

type fakeCatalog map[string]bool

func (c fakeCatalog) Exists(_ context.Context, id string) (bool, error) {
	if id == "broken" {
		return false, errors.New("catalog unavailable")
	}
	return c[id], nil
}

func TestRun_CatalogItems(t *testing.T) {
	f := newFixture(t)
	f.pricebook(t, "pb1", "Copper pipe 1/2in")
	cat := func(id, name string) models.AssemblyItem {
		return models.AssemblyItem{ProductID: id, Source: models.SourceCatalog, Name: name, Qty: models.FixedQty(1)}
	}
	f.assembly(t, "known", cat("c1", "whatever"))
	f.assembly(t, "retired", cat("c2", "copper pipe 1/2in"))
	f.assembly(t, "flaky", cat("broken", "x"))

	sum, err := f.repairer(WithCatalog(fakeCatalog{"c1": true})).Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.AssembliesChecked)
	assert.Equal(t, 1, sum.ItemsFixed)
	assert.Len(t, sum.Errors, 1)

	_, a := f.load(t, "retired")
	assert.Equal(t, "pb1", a.Items[0].ProductID)
	assert.Equal(t, models.SourcePricebook, a.Items[0].Source)

	_, a = f.load(t, "known")
	assert.Equal(t, "c1", a.Items[0].ProductID)
}

func TestNeedsRepair_DoesNotWrite(t *testing.T) {
	f := newFixture(t)
	f.pricebook(t, "pb1", "Rebar")
	f.assembly(t, "ok", pb("pb1", "Rebar", 1))

	r := f.repairer()
	needs, err := r.NeedsRepair(f.ctx)
	require.NoError(t, err)
	assert.False(t, needs)

	f.assembly(t, "broken", pb("gone", "rebar", 3))
	needs, err = r.NeedsRepair(f.ctx)
	require.NoError(t, err)
	assert.True(t, needs)

	_, a := f.load(t, "broken")
	assert.Equal(t, "gone", a.Items[0].ProductID)
	assert.Zero(t, f.backend.Memory(models.EntityAssemblies).Len())
}
