package syncer

import (
	"context"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
)

// Migrate uploads every local record of entity once per owner, the first
// time sync becomes available. Records without an owner are claimed for
// the current one. HasMigrated is only set when every upload succeeded, so
// a partial migration is retried on the next call. Calls for the same
// entity are serialized; a call that finds HasMigrated set does nothing.
func (e *Engine) Migrate(ctx context.Context, entity models.EntityType) (int, error) {
	sess, err := e.owner(ctx)
	if err != nil {
		return 0, err
	}
	owner := sess.OwnerID
	log := e.logger.With("entity", entity, "owner", owner, "op", "migrate")
	if !e.entitlement.CanSync(sess.Tier) {
		log.Debug(ctx, "migration skipped, not entitled")
		return 0, nil
	}

	mu := e.migrateLock(entity)
	mu.Lock()
	defer mu.Unlock()

	meta, err := e.Metadata(ctx, owner, entity)
	if err != nil {
		log.Warn(ctx, "unreadable sync metadata", "error", err)
		meta = models.SyncMetadata{}
	}
	if meta.HasMigrated {
		return 0, nil
	}

	local, err := e.store.ReadAll(ctx, entity)
	if err != nil {
		log.Error(ctx, "local read failed", "error", err)
		return 0, nil
	}

	var (
		mine    []models.Record
		claimed []models.Record
	)
	for _, r := range local {
		switch r.OwnerID {
		case owner:
		case "":
			r.OwnerID = owner
			claimed = append(claimed, r)
		default:
			continue
		}
		mine = append(mine, r)
	}
	if len(claimed) > 0 {
		if err := e.store.Upsert(ctx, entity, claimed...); err != nil {
			log.Warn(ctx, "claiming local records failed", "error", err)
		}
	}

	rs := e.backend.Store(entity)
	uploaded, failed := 0, 0
	for start := 0; start < len(mine); start += e.batchSize() {
		batch := mine[start:min(start+e.batchSize(), len(mine))]
		err := rs.Upsert(ctx, batch)
		if err == nil {
			uploaded += len(batch)
			continue
		}
		log.Warn(ctx, "batch upload failed, uploading one by one", "count", len(batch), "error", err)
		for _, r := range batch {
			if err := rs.Upsert(ctx, []models.Record{r}); err != nil {
				log.Warn(ctx, "upload failed", "id", r.ID, "error", err)
				failed++
				continue
			}
			uploaded++
		}
	}

	if failed > 0 {
		log.Warn(ctx, "migration incomplete", "uploaded", uploaded, "failed", failed)
		return uploaded, nil
	}

	// Re-read so a cycle that ran meanwhile is not rolled back.
	if current, err := e.Metadata(ctx, owner, entity); err == nil {
		meta = current
	}
	meta.HasMigrated = true
	if err := e.saveMetadata(ctx, owner, entity, meta); err != nil {
		log.Error(ctx, "save migration flag failed", "error", err)
	}
	log.Info(ctx, "migration finished", "uploaded", uploaded)
	return uploaded, nil
}

func (e *Engine) batchSize() int {
	if e.opts.BatchSize > 0 {
		return e.opts.BatchSize
	}
	return DefaultBatchSize
}
