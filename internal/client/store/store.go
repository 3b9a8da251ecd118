package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
	"github.com/dmitrijs2005/quotekeeper/internal/logging"
)

// DefaultLegacyKeys lists the keys earlier releases stored collections under.
var DefaultLegacyKeys = map[models.EntityType][]string{
	models.EntityQuotes:     {"quotes", "saved_quotes"},
	models.EntityAssemblies: {"assemblies", "custom_assemblies"},
	models.EntityPricebook:  {"pricebook", "pricebook_items"},
}

// CanonicalKey is the single key an entity's collection is written to.
func CanonicalKey(e models.EntityType) string {
	return "primary-" + string(e)
}

// Store is the local record store. See the package documentation.
type Store struct {
	kv     kv.Repository
	legacy map[models.EntityType][]string
	logger logging.Logger

	mu sync.Mutex
	// unreadable holds legacy keys whose last read failed with an I/O error;
	// WriteAll leaves them alone so their data can still be merged later.
	unreadable map[string]struct{}
	corrupt    atomic.Bool
}

type Option func(*Store)

// WithLegacyKeys replaces the legacy keys consulted for e.
func WithLegacyKeys(e models.EntityType, keys ...string) Option {
	return func(s *Store) { s.legacy[e] = keys }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func New(repo kv.Repository, opts ...Option) *Store {
	s := &Store{
		kv:         repo,
		legacy:     make(map[models.EntityType][]string, len(DefaultLegacyKeys)),
		logger:     logging.NewNop(),
		unreadable: make(map[string]struct{}),
	}
	for e, keys := range DefaultLegacyKeys {
		s.legacy[e] = append([]string(nil), keys...)
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = logging.Module(s.logger, "store")
	return s
}

// CorruptionDetected reports whether any read this session discarded a
// corrupt payload.
func (s *Store) CorruptionDetected() bool { return s.corrupt.Load() }

// ClearCorruption resets the flag; callers do this after a successful
// remote resync.
func (s *Store) ClearCorruption() { s.corrupt.Store(false) }

// ReadAll returns every stored record of e, soft-deleted ones included,
// merged across the canonical and legacy keys and sorted by ID.
func (s *Store) ReadAll(ctx context.Context, e models.EntityType) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll(ctx, e)
}

// List is ReadAll without soft-deleted records.
func (s *Store) List(ctx context.Context, e models.EntityType) ([]models.Record, error) {
	all, err := s.ReadAll(ctx, e)
	if err != nil {
		return nil, err
	}
	live := all[:0]
	for _, r := range all {
		if !r.IsDeleted() {
			live = append(live, r)
		}
	}
	return live, nil
}

// Get returns one live record.
func (s *Store) Get(ctx context.Context, e models.EntityType, id string) (models.Record, error) {
	all, err := s.ReadAll(ctx, e)
	if err != nil {
		return models.Record{}, err
	}
	for _, r := range all {
		if r.ID == id && !r.IsDeleted() {
			return r, nil
		}
	}
	return models.Record{}, fmt.Errorf("%s %s: %w", e, id, common.ErrorNotFound)
}

// WriteAll replaces the collection of e with records and removes the
// legacy keys.
func (s *Store) WriteAll(ctx context.Context, e models.EntityType, records []models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAll(ctx, e, records)
}

// Upsert stores records, replacing any copy with the same ID.
func (s *Store) Upsert(ctx context.Context, e models.EntityType, records ...models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readAll(ctx, e)
	if err != nil {
		return err
	}
	byID := models.ByID(current)
	for _, r := range records {
		byID[r.ID] = r
	}
	return s.writeAll(ctx, e, values(byID))
}

// Merge applies last-write-wins: each incoming record is stored when absent
// locally or strictly newer than the local copy. It returns how many were
// applied.
func (s *Store) Merge(ctx context.Context, e models.EntityType, records ...models.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readAll(ctx, e)
	if err != nil {
		return 0, err
	}
	byID := models.ByID(current)
	applied := 0
	for _, r := range records {
		if local, ok := byID[r.ID]; ok && !r.NewerThan(local) {
			continue
		}
		byID[r.ID] = r
		applied++
	}
	if applied == 0 {
		return 0, nil
	}
	if err := s.writeAll(ctx, e, values(byID)); err != nil {
		return 0, err
	}
	return applied, nil
}

// Purge physically removes records, soft-deleted or not.
func (s *Store) Purge(ctx context.Context, e models.EntityType, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readAll(ctx, e)
	if err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := current[:0]
	for _, r := range current {
		if _, ok := drop[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	return s.writeAll(ctx, e, kept)
}

func (s *Store) keys(e models.EntityType) []string {
	return append([]string{CanonicalKey(e)}, s.legacy[e]...)
}

func (s *Store) readAll(ctx context.Context, e models.EntityType) ([]models.Record, error) {
	merged := make(map[string]models.Record)
	var readErrs []error
	keys := s.keys(e)

	for _, key := range keys {
		b, err := s.kv.Get(ctx, key)
		if err != nil {
			s.logger.Warn(ctx, "read failed, skipping key", "key", key, "error", err)
			readErrs = append(readErrs, err)
			s.unreadable[key] = struct{}{}
			continue
		}
		delete(s.unreadable, key)
		if b == nil {
			continue
		}

		records, bad, err := decodeRecords(b)
		if err != nil {
			s.logger.Warn(ctx, "discarding corrupt payload", "key", key, "error", err)
			s.corrupt.Store(true)
			continue
		}
		if len(bad) > 0 {
			s.logger.Warn(ctx, "dropped corrupt records", "key", key, "count", len(bad), "error", errors.Join(bad...))
			s.corrupt.Store(true)
		}

		for _, r := range records {
			if have, ok := merged[r.ID]; ok && !r.Freshness().After(have.Freshness()) {
				continue
			}
			merged[r.ID] = r
		}
	}

	if len(readErrs) == len(keys) {
		return nil, fmt.Errorf("%w: read %s: %w", common.ErrStorage, e, errors.Join(readErrs...))
	}
	return values(merged), nil
}

func (s *Store) writeAll(ctx context.Context, e models.EntityType, records []models.Record) error {
	sorted := append([]models.Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	b, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", common.ErrStorage, e, err)
	}
	if err := s.kv.Set(ctx, CanonicalKey(e), b); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}

	var errs []error
	for _, key := range s.legacy[e] {
		if _, skip := s.unreadable[key]; skip {
			continue
		}
		if err := s.kv.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: drop legacy keys: %w", common.ErrStorage, errors.Join(errs...))
	}
	return nil
}

func values(m map[string]models.Record) []models.Record {
	out := make([]models.Record, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
