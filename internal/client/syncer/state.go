package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
)

func metaKey(owner string, e models.EntityType) string { return "sync-meta:" + owner + ":" + string(e) }
func lockKey(e models.EntityType) string               { return "sync-lock:" + string(e) }
func deletionsKey(e models.EntityType) string          { return "sync-deletions:" + string(e) }
func retryKey(e models.EntityType) string              { return "sync-retry:" + string(e) }

// loadJSON leaves v untouched when key is absent.
func (e *Engine) loadJSON(ctx context.Context, key string, v any) error {
	b, err := e.state.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: get %s: %w", common.ErrStorage, key, err)
	}
	if b == nil {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %s: %w", common.ErrCorruptPayload, key, err)
	}
	return nil
}

func (e *Engine) saveJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := e.state.Set(ctx, key, b); err != nil {
		return fmt.Errorf("%w: set %s: %w", common.ErrStorage, key, err)
	}
	return nil
}

// Metadata returns the sync metadata of owner and entity; the zero value
// before the first cycle.
func (e *Engine) Metadata(ctx context.Context, owner string, entity models.EntityType) (models.SyncMetadata, error) {
	var m models.SyncMetadata
	err := e.loadJSON(ctx, metaKey(owner, entity), &m)
	return m, err
}

func (e *Engine) saveMetadata(ctx context.Context, owner string, entity models.EntityType, m models.SyncMetadata) error {
	return e.saveJSON(ctx, metaKey(owner, entity), m)
}

func (e *Engine) loadLock(ctx context.Context, entity models.EntityType) (models.SyncLock, error) {
	var l models.SyncLock
	err := e.loadJSON(ctx, lockKey(entity), &l)
	return l, err
}

func (e *Engine) saveLock(ctx context.Context, entity models.EntityType, l models.SyncLock) error {
	return e.saveJSON(ctx, lockKey(entity), l)
}

func (e *Engine) clearLock(ctx context.Context, entity models.EntityType) error {
	return e.state.Delete(ctx, lockKey(entity))
}

// idSet is a persisted set of record ids.
type idSet map[string]struct{}

func (s idSet) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) loadIDs(ctx context.Context, key string) (idSet, error) {
	var ids []string
	if err := e.loadJSON(ctx, key, &ids); err != nil {
		return idSet{}, err
	}
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s, nil
}

// updateIDs applies add and remove to the set under key atomically with
// respect to other updates through this engine.
func (e *Engine) updateIDs(ctx context.Context, key string, add, remove []string) error {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	s, err := e.loadIDs(ctx, key)
	if err != nil {
		return err
	}
	for _, id := range add {
		s[id] = struct{}{}
	}
	for _, id := range remove {
		delete(s, id)
	}
	if len(s) == 0 {
		return e.state.Delete(ctx, key)
	}
	return e.saveJSON(ctx, key, s.sorted())
}

// Enqueue records ids for remote deletion by the next cycle. Callers
// soft-delete the local copies themselves.
func (e *Engine) Enqueue(ctx context.Context, entity models.EntityType, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return e.updateIDs(ctx, deletionsKey(entity), ids, nil)
}

// Pending lists ids waiting for a remote delete.
func (e *Engine) Pending(ctx context.Context, entity models.EntityType) ([]string, error) {
	s, err := e.loadIDs(ctx, deletionsKey(entity))
	if err != nil {
		return nil, err
	}
	return s.sorted(), nil
}

// PendingUploads lists ids whose upload failed or was deferred.
func (e *Engine) PendingUploads(ctx context.Context, entity models.EntityType) ([]string, error) {
	s, err := e.loadIDs(ctx, retryKey(entity))
	if err != nil {
		return nil, err
	}
	return s.sorted(), nil
}
