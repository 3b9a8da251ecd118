// Package repair finds assembly items whose product reference no longer
// resolves and re-links them to the user's price list by name. It runs after
// sync, when pricebook deletions from other devices have landed locally.
package repair

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/quotekeeper/internal/client/auth"
	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote"
	"github.com/dmitrijs2005/quotekeeper/internal/client/store"
	"github.com/dmitrijs2005/quotekeeper/internal/logging"
	"github.com/dmitrijs2005/quotekeeper/internal/timex"
)

// DefaultSeedAssemblyIDs are the example assemblies shipped with the app.
var DefaultSeedAssemblyIDs = []string{
	"seed-bathroom-rough-in",
	"seed-kitchen-backsplash",
	"seed-deck-framing",
}

// Catalog verifies references into the shared product catalog.
type Catalog interface {
	Exists(ctx context.Context, productID string) (bool, error)
}

// DeletionQueue takes over remote deletes that could not be done right away.
type DeletionQueue interface {
	Enqueue(ctx context.Context, entity models.EntityType, ids ...string) error
}

// Summary reports one repair run.
type Summary struct {
	AssembliesChecked     int      `json:"assemblies_checked"`
	AssembliesRepaired    int      `json:"assemblies_repaired"`
	ItemsFixed            int      `json:"items_fixed"`
	SeedAssembliesRemoved int      `json:"seed_assemblies_removed"`
	Unfixable             []string `json:"unfixable"`
	Errors                []string `json:"errors"`
}

type Repairer struct {
	store       *store.Store
	backend     remote.Backend
	sessions    auth.SessionSource
	entitlement auth.Entitlement
	catalog     Catalog
	queue       DeletionQueue
	seeds       map[string]bool
	clock       timex.Clock
	logger      logging.Logger
}

type Option func(*Repairer)

// WithRemote enables uploads of repaired assemblies and remote deletion of
// seed assemblies for entitled owners.
func WithRemote(b remote.Backend, sessions auth.SessionSource, en auth.Entitlement) Option {
	return func(r *Repairer) {
		r.backend = b
		r.sessions = sessions
		r.entitlement = en
	}
}

// WithCatalog verifies catalog-sourced items. Without one they are trusted.
func WithCatalog(c Catalog) Option {
	return func(r *Repairer) { r.catalog = c }
}

func WithDeletionQueue(q DeletionQueue) Option {
	return func(r *Repairer) { r.queue = q }
}

func WithSeedIDs(ids ...string) Option {
	return func(r *Repairer) {
		r.seeds = make(map[string]bool, len(ids))
		for _, id := range ids {
			r.seeds[id] = true
		}
	}
}

func WithClock(c timex.Clock) Option {
	return func(r *Repairer) { r.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(r *Repairer) { r.logger = l }
}

func New(st *store.Store, opts ...Option) *Repairer {
	r := &Repairer{
		store:  st,
		clock:  timex.SystemClock{},
		logger: logging.NewNop(),
	}
	WithSeedIDs(DefaultSeedAssemblyIDs...)(r)
	for _, o := range opts {
		o(r)
	}
	r.logger = logging.Module(r.logger, "repair")
	return r
}

type itemState int

const (
	itemOK itemState = iota
	itemFixed
	itemUnresolved
)

// plan is the outcome computed for one assembly before anything is written.
type plan struct {
	assembly   models.Assembly
	fixed      int
	unresolved int
	seed       bool
}

func (p plan) remove() bool { return p.seed && p.unresolved > 0 }

func (p plan) changed(before models.Assembly) bool {
	return p.fixed > 0 || before.HasUnresolvedItems != (p.unresolved > 0)
}

// priceIndex looks up live price-list entries by id and by folded name.
type priceIndex struct {
	byID   map[string]models.PricebookEntry
	byName map[string]models.PricebookEntry
}

func nameKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (r *Repairer) loadIndex(ctx context.Context) (priceIndex, error) {
	recs, err := r.store.List(ctx, models.EntityPricebook)
	if err != nil {
		return priceIndex{}, err
	}
	entries, errs := models.PricebookEntries(recs)
	for _, err := range errs {
		r.logger.Warn(ctx, "skipping unreadable pricebook item", "error", err)
	}
	idx := priceIndex{
		byID:   make(map[string]models.PricebookEntry, len(entries)),
		byName: make(map[string]models.PricebookEntry, len(entries)),
	}
	for _, e := range entries {
		idx.byID[e.ID] = e
		k := nameKey(e.Name)
		if _, dup := idx.byName[k]; k != "" && !dup {
			idx.byName[k] = e
		}
	}
	return idx, nil
}

func (r *Repairer) verified(ctx context.Context, it models.AssemblyItem, idx priceIndex) (bool, error) {
	switch it.Source {
	case models.SourcePricebook:
		_, ok := idx.byID[it.ProductID]
		return ok, nil
	case models.SourceCatalog:
		if r.catalog == nil {
			return true, nil
		}
		return r.catalog.Exists(ctx, it.ProductID)
	default:
		return false, nil
	}
}

func (r *Repairer) checkItem(ctx context.Context, it models.AssemblyItem, idx priceIndex) (models.AssemblyItem, itemState, error) {
	ok, err := r.verified(ctx, it, idx)
	if err != nil {
		return it, itemOK, err
	}
	if ok {
		return it, itemOK, nil
	}
	match, found := idx.byName[nameKey(it.Name)]
	if nameKey(it.Name) == "" || !found {
		return it, itemUnresolved, nil
	}
	it.ProductID = match.ID
	it.Source = models.SourcePricebook
	return it, itemFixed, nil
}

// planAssembly checks every item of a. It never writes.
func (r *Repairer) planAssembly(ctx context.Context, id string, a models.Assembly, idx priceIndex) (plan, error) {
	p := plan{assembly: a, seed: r.seeds[id]}
	p.assembly.Items = make([]models.AssemblyItem, len(a.Items))
	for i, it := range a.Items {
		next, state, err := r.checkItem(ctx, it, idx)
		if err != nil {
			return plan{}, fmt.Errorf("verify item %s: %w", it.ProductID, err)
		}
		switch state {
		case itemFixed:
			p.fixed++
		case itemUnresolved:
			p.unresolved++
		}
		p.assembly.Items[i] = next
	}
	p.assembly.HasUnresolvedItems = p.unresolved > 0
	return p, nil
}

// NeedsRepair reports whether Run would change anything. It performs the
// same lookups as Run without writing.
func (r *Repairer) NeedsRepair(ctx context.Context) (bool, error) {
	idx, err := r.loadIndex(ctx)
	if err != nil {
		return false, err
	}
	recs, err := r.store.List(ctx, models.EntityAssemblies)
	if err != nil {
		return false, err
	}
	for _, rec := range recs {
		a, err := models.Unwrap[models.Assembly](rec)
		if err != nil {
			continue
		}
		p, err := r.planAssembly(ctx, rec.ID, a, idx)
		if err != nil {
			continue
		}
		if p.remove() || p.changed(a) {
			return true, nil
		}
	}
	return false, nil
}

// Run repairs every local assembly. Failures of one assembly are recorded
// in Summary.Errors and do not stop the others; the returned error is only
// for failures to read the local collections at all.
func (r *Repairer) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	idx, err := r.loadIndex(ctx)
	if err != nil {
		return sum, err
	}
	recs, err := r.store.List(ctx, models.EntityAssemblies)
	if err != nil {
		return sum, err
	}
	owner := r.uploadOwner(ctx)

	for _, rec := range recs {
		log := r.logger.With("assembly", rec.ID)
		a, err := models.Unwrap[models.Assembly](rec)
		if err != nil {
			sum.Errors = append(sum.Errors, err.Error())
			continue
		}
		sum.AssembliesChecked++

		p, err := r.planAssembly(ctx, rec.ID, a, idx)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("assembly %s: %v", rec.ID, err))
			continue
		}

		if p.remove() {
			if err := r.removeSeed(ctx, rec, owner); err != nil {
				sum.Errors = append(sum.Errors, fmt.Sprintf("remove seed assembly %s: %v", rec.ID, err))
				continue
			}
			log.Info(ctx, "removed seed assembly with unresolved items", "unresolved", p.unresolved)
			sum.SeedAssembliesRemoved++
			continue
		}
		if p.unresolved > 0 {
			sum.Unfixable = append(sum.Unfixable, rec.ID)
		}
		if !p.changed(a) {
			continue
		}

		updated, err := models.Rewrap(rec, p.assembly, r.clock.Now())
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("assembly %s: %v", rec.ID, err))
			continue
		}
		if err := r.store.Upsert(ctx, models.EntityAssemblies, updated); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("save assembly %s: %v", rec.ID, err))
			continue
		}
		if p.fixed == 0 {
			continue
		}
		sum.AssembliesRepaired++
		sum.ItemsFixed += p.fixed
		log.Info(ctx, "repaired assembly", "items_fixed", p.fixed)

		if err := r.upload(ctx, updated, owner); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("upload assembly %s: %v", rec.ID, err))
		}
	}
	return sum, nil
}

// uploadOwner returns the owner remote writes are scoped to, or "" when
// remote writes are off for this run.
func (r *Repairer) uploadOwner(ctx context.Context) string {
	if r.backend == nil || r.sessions == nil {
		return ""
	}
	s, err := r.sessions.Session(ctx)
	if err != nil || s == nil || s.OwnerID == "" {
		return ""
	}
	if r.entitlement != nil && !r.entitlement.CanSync(s.Tier) {
		return ""
	}
	return s.OwnerID
}

func (r *Repairer) upload(ctx context.Context, rec models.Record, owner string) error {
	if owner == "" {
		return nil
	}
	if rec.OwnerID != "" && rec.OwnerID != owner {
		return nil
	}
	rec.OwnerID = owner
	return r.backend.Store(models.EntityAssemblies).Upsert(ctx, []models.Record{rec})
}

// removeSeed deletes a seed assembly remotely (or queues the delete) and
// then purges it locally.
func (r *Repairer) removeSeed(ctx context.Context, rec models.Record, owner string) error {
	remoteDone := false
	if owner != "" {
		if err := r.backend.Store(models.EntityAssemblies).Delete(ctx, rec.ID, owner); err != nil {
			r.logger.Warn(ctx, "remote delete of seed assembly failed", "assembly", rec.ID, "error", err)
		} else {
			remoteDone = true
		}
	}
	if !remoteDone && r.queue != nil {
		if err := r.queue.Enqueue(ctx, models.EntityAssemblies, rec.ID); err != nil {
			return err
		}
	}
	return r.store.Purge(ctx, models.EntityAssemblies, rec.ID)
}
