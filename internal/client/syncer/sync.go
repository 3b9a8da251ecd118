package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/quotekeeper/internal/client/auth"
	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
	"github.com/dmitrijs2005/quotekeeper/internal/logging"
)

// owner resolves the signed-in owner or fails with common.ErrNoOwner.
func (e *Engine) owner(ctx context.Context) (*auth.Session, error) {
	s, err := e.sessions.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrNoOwner, err)
	}
	if s == nil || s.OwnerID == "" {
		return nil, common.ErrNoOwner
	}
	return s, nil
}

// Sync runs one cycle for entity. The only error it returns is
// common.ErrNoOwner; everything else is reported through Result.
func (e *Engine) Sync(ctx context.Context, entity models.EntityType) (Result, error) {
	res := Result{Entity: entity}

	sess, err := e.owner(ctx)
	if err != nil {
		return res, err
	}
	if !e.entitlement.CanSync(sess.Tier) {
		res.Skipped = SkipNotEntitled
		return res, nil
	}
	owner := sess.OwnerID
	log := e.logger.With("entity", entity, "owner", owner)

	now := e.clock.Now()

	lock, err := e.loadLock(ctx, entity)
	if err != nil {
		log.Warn(ctx, "unreadable sync lock, treating as stale", "error", err)
		lock = models.SyncLock{InProgress: true}
	}
	if lock.Stale(now, e.opts.StaleLockAfter) {
		log.Warn(ctx, "clearing stale sync lock", "started_at", lock.StartedAt)
		if err := e.clearLock(ctx, entity); err != nil {
			log.Error(ctx, "clear stale lock failed", "error", err)
		}
		lock = models.SyncLock{}
	}

	meta, err := e.Metadata(ctx, owner, entity)
	if err != nil {
		log.Warn(ctx, "unreadable sync metadata, starting over", "error", err)
		meta = models.SyncMetadata{}
	}
	if meta.LastCompletedAt != nil && now.Sub(*meta.LastCompletedAt) < e.opts.Cooldown {
		log.Debug(ctx, "sync skipped, cooling down")
		res.Skipped = SkipCooldown
		return res, nil
	}

	if !e.locks.TryAcquire(entity) {
		res.Skipped = SkipLocked
		return res, nil
	}
	defer e.locks.Release(entity)
	if lock.InProgress {
		log.Debug(ctx, "sync skipped, persisted lock held")
		res.Skipped = SkipLocked
		return res, nil
	}

	// Past this point the cycle runs to completion.
	ctx = context.WithoutCancel(ctx)

	if err := e.saveLock(ctx, entity, models.SyncLock{InProgress: true, StartedAt: &now}); err != nil {
		log.Error(ctx, "persist sync lock failed", "error", err)
		res.Failures++
		return res, nil
	}
	defer func() {
		if err := e.clearLock(ctx, entity); err != nil {
			log.Error(ctx, "release sync lock failed", "error", err)
		}
	}()

	e.run(ctx, log, owner, entity, meta, now, &res)
	res.Success = res.Failures == 0

	log.Info(ctx, "sync finished",
		"success", res.Success, "downloaded", res.Downloaded, "uploaded", res.Uploaded,
		"deleted", res.Deleted, "failures", res.Failures, "has_more", res.HasMore)
	return res, nil
}

// run is the reconciliation part of a cycle, done under both locks.
func (e *Engine) run(ctx context.Context, log logging.Logger, owner string, entity models.EntityType,
	meta models.SyncMetadata, start time.Time, res *Result) {

	rs := e.backend.Store(entity)

	corrupt := e.store.CorruptionDetected()
	after, afterID := meta.LastSyncAt, meta.LastSyncID
	if corrupt {
		log.Warn(ctx, "local corruption detected, full download")
		after, afterID = nil, ""
	}

	// Download.
	downloaded, dlErr := rs.Query(ctx, remote.Query{
		OwnerID:        owner,
		UpdatedAfter:   after,
		AfterID:        afterID,
		Limit:          e.opts.BatchSize,
		ExcludeDeleted: true,
	})
	if dlErr != nil {
		log.Error(ctx, "download failed", "error", dlErr)
		res.Failures++
		downloaded = nil
	}
	cursor := syncCursor{at: start}
	if dlErr == nil && e.opts.BatchSize > 0 && len(downloaded) >= e.opts.BatchSize {
		// The page may end inside a run of equal timestamps, so the next
		// page resumes after the last (UpdatedAt, ID) pair seen.
		res.HasMore = true
		last := downloaded[len(downloaded)-1]
		cursor = syncCursor{at: last.UpdatedAt, id: last.ID}
	}

	// Deletions.
	deleting := e.pushDeletions(ctx, log, rs, owner, entity, res)

	local, err := e.store.ReadAll(ctx, entity)
	if err != nil {
		log.Error(ctx, "local read failed", "error", err)
		res.Failures++
		e.finish(ctx, log, owner, entity, meta, nil, res)
		return
	}
	localByID := models.ByID(local)

	// Remote to local.
	remoteByID := make(map[string]models.Record, len(downloaded))
	var staged []models.Record
	for _, r := range downloaded {
		if _, skip := deleting[r.ID]; skip {
			continue
		}
		remoteByID[r.ID] = r
		if l, ok := localByID[r.ID]; ok && !r.NewerThan(l) {
			continue
		}
		staged = append(staged, r)
	}
	res.Downloaded = e.writeStaged(ctx, log, entity, staged, res)

	// Local to remote. Without a download there is nothing to compare with.
	if dlErr == nil {
		e.pushLocal(ctx, log, rs, owner, entity, local, remoteByID, deleting, after, res)
	}

	var next *syncCursor
	if dlErr == nil {
		next = &cursor
		if corrupt {
			e.store.ClearCorruption()
		}
	}
	e.finish(ctx, log, owner, entity, meta, next, res)
}

// pushDeletions deletes queued ids remotely and purges the ones that went
// through. It returns every queued id, failed or not, so the merge can
// leave them alone.
func (e *Engine) pushDeletions(ctx context.Context, log logging.Logger, rs remote.Store, owner string,
	entity models.EntityType, res *Result) idSet {

	queued, err := e.loadIDs(ctx, deletionsKey(entity))
	if err != nil {
		log.Error(ctx, "deletion queue unreadable", "error", err)
		res.Failures++
		return idSet{}
	}

	var done []string
	for _, id := range queued.sorted() {
		if err := rs.Delete(ctx, id, owner); err != nil {
			log.Warn(ctx, "remote delete failed", "id", id, "error", err)
			res.Failures++
			continue
		}
		done = append(done, id)
	}
	if len(done) == 0 {
		return queued
	}

	if err := e.store.Purge(ctx, entity, done...); err != nil {
		log.Error(ctx, "purge after delete failed", "error", err)
		res.Failures++
	}
	if err := e.updateIDs(ctx, deletionsKey(entity), nil, done); err != nil {
		log.Error(ctx, "deletion queue update failed", "error", err)
		res.Failures++
	}
	res.Deleted = len(done)
	return queued
}

// writeStaged stores downloaded records in one batch, falling back to one
// write per record if the batch fails.
func (e *Engine) writeStaged(ctx context.Context, log logging.Logger, entity models.EntityType,
	staged []models.Record, res *Result) int {

	if len(staged) == 0 {
		return 0
	}
	n, err := e.store.Merge(ctx, entity, staged...)
	if err == nil {
		return n
	}
	log.Warn(ctx, "batch write failed, writing one by one", "count", len(staged), "error", err)

	applied := 0
	for _, r := range staged {
		n, err := e.store.Merge(ctx, entity, r)
		if err != nil {
			log.Error(ctx, "local write failed", "id", r.ID, "error", err)
			res.Failures++
			continue
		}
		applied += n
	}
	return applied
}

// pushLocal uploads local records changed since after (all of them when
// after is nil) plus those parked in the retry set.
func (e *Engine) pushLocal(ctx context.Context, log logging.Logger, rs remote.Store, owner string,
	entity models.EntityType, local []models.Record, remoteByID map[string]models.Record,
	deleting idSet, after *time.Time, res *Result) {

	retry, err := e.loadIDs(ctx, retryKey(entity))
	if err != nil {
		log.Warn(ctx, "upload retry set unreadable", "error", err)
	}

	var park, clear []string
	for _, l := range local {
		if _, skip := deleting[l.ID]; skip {
			continue
		}
		if l.OwnerID != "" && l.OwnerID != owner {
			continue
		}
		_, retrying := retry[l.ID]
		changed := after == nil || retrying || l.UpdatedAt.After(*after)
		if !changed {
			continue
		}

		if r, ok := remoteByID[l.ID]; ok {
			if !l.UpdatedAt.After(r.UpdatedAt) {
				if retrying {
					clear = append(clear, l.ID)
				}
				continue
			}
		} else if res.HasMore {
			park = append(park, l.ID)
			continue
		}

		l.OwnerID = owner
		if err := rs.Upsert(ctx, []models.Record{l}); err != nil {
			log.Warn(ctx, "upload failed", "id", l.ID, "error", err)
			res.Failures++
			park = append(park, l.ID)
			continue
		}
		res.Uploaded++
		if retrying {
			clear = append(clear, l.ID)
		}
	}

	if len(park) > 0 || len(clear) > 0 {
		if err := e.updateIDs(ctx, retryKey(entity), park, clear); err != nil {
			log.Error(ctx, "upload retry set update failed", "error", err)
		}
	}
}

// syncCursor is the download position: records sorting after (at, id) in
// paging order are still to come. An empty id means everything at at has
// been seen.
type syncCursor struct {
	at time.Time
	id string
}

// finish persists metadata. next == nil keeps the previous cursor.
func (e *Engine) finish(ctx context.Context, log logging.Logger, owner string, entity models.EntityType,
	meta models.SyncMetadata, next *syncCursor, res *Result) {

	if next != nil {
		at := next.at
		meta.LastSyncAt = &at
		meta.LastSyncID = next.id
	}
	done := e.clock.Now()
	meta.LastCompletedAt = &done
	if err := e.saveMetadata(ctx, owner, entity, meta); err != nil {
		log.Error(ctx, "save sync metadata failed", "error", err)
		res.Failures++
	}
}

// SyncAll syncs every entity type in dependency order. It stops only on
// common.ErrNoOwner.
func (e *Engine) SyncAll(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(models.EntityTypes))
	for _, entity := range models.EntityTypes {
		res, err := e.Sync(ctx, entity)
		if errors.Is(err, common.ErrNoOwner) {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
