// Package services holds the application services the CLI talks to. They
// own the save-then-upload sequencing: the record store knows nothing about
// sync, and the sync engine knows nothing about payloads.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/quotekeeper/internal/client/auth"
	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/store"
	"github.com/dmitrijs2005/quotekeeper/internal/client/syncer"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
	"github.com/dmitrijs2005/quotekeeper/internal/logging"
	"github.com/dmitrijs2005/quotekeeper/internal/timex"
)

// SyncTrigger is the part of the sync engine services use.
type SyncTrigger interface {
	Enqueue(ctx context.Context, entity models.EntityType, ids ...string) error
	Sync(ctx context.Context, entity models.EntityType) (syncer.Result, error)
}

// RecordService saves and deletes records of any entity type.
//
// Contract:
//   - Save stamps the record header (id, owner, timestamps) and writes it
//     locally; the next sync cycle uploads it.
//   - Delete soft-deletes locally and queues the remote delete.
//   - With auto sync on, every write is followed by a sync cycle of the
//     entity. Its outcome is logged, never returned: local work succeeds
//     whether or not the remote is reachable.
type RecordService struct {
	store    *store.Store
	sessions auth.SessionSource
	sync     SyncTrigger
	autoSync bool
	clock    timex.Clock
	logger   logging.Logger
	newID    func() string
}

type Option func(*RecordService)

func WithSync(s SyncTrigger, auto bool) Option {
	return func(r *RecordService) {
		r.sync = s
		r.autoSync = auto
	}
}

func WithClock(c timex.Clock) Option {
	return func(r *RecordService) { r.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(r *RecordService) { r.logger = l }
}

// WithIDs replaces uuid generation.
func WithIDs(f func() string) Option {
	return func(r *RecordService) { r.newID = f }
}

func NewRecordService(st *store.Store, sessions auth.SessionSource, opts ...Option) *RecordService {
	r := &RecordService{
		store:    st,
		sessions: sessions,
		clock:    timex.SystemClock{},
		logger:   logging.NewNop(),
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = logging.Module(r.logger, "services")
	return r
}

func (s *RecordService) currentOwner(ctx context.Context) string {
	if s.sessions == nil {
		return ""
	}
	sess, err := s.sessions.Session(ctx)
	if err != nil || sess == nil {
		return ""
	}
	return sess.OwnerID
}

// Save writes payload under id, creating the record when id is empty or
// unknown. It returns the stored record.
func (s *RecordService) Save(ctx context.Context, entity models.EntityType, id string, payload any) (models.Record, error) {
	now := s.clock.Now().UTC()
	created := now
	owner := s.currentOwner(ctx)

	if id == "" {
		id = s.newID()
	} else {
		existing, err := s.store.Get(ctx, entity, id)
		switch {
		case err == nil:
			created = existing.CreatedAt
			if existing.OwnerID != "" {
				owner = existing.OwnerID
			}
		case !errors.Is(err, common.ErrorNotFound):
			return models.Record{}, err
		}
	}

	rec, err := models.Wrap(id, owner, created, now, payload)
	if err != nil {
		return models.Record{}, fmt.Errorf("%w: encode %s %s: %w", common.ErrValidation, entity, id, err)
	}
	if err := s.store.Upsert(ctx, entity, rec); err != nil {
		return models.Record{}, err
	}
	s.afterWrite(ctx, entity)
	return rec, nil
}

// Delete soft-deletes id and queues its remote deletion.
func (s *RecordService) Delete(ctx context.Context, entity models.EntityType, id string) error {
	rec, err := s.store.Get(ctx, entity, id)
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC()
	rec.DeletedAt = &now
	rec.UpdatedAt = now
	if err := s.store.Upsert(ctx, entity, rec); err != nil {
		return err
	}
	if s.sync != nil {
		if err := s.sync.Enqueue(ctx, entity, id); err != nil {
			return err
		}
	}
	s.afterWrite(ctx, entity)
	return nil
}

func (s *RecordService) List(ctx context.Context, entity models.EntityType) ([]models.Record, error) {
	return s.store.List(ctx, entity)
}

// Get returns a live record; soft-deleted ones are reported as not found.
func (s *RecordService) Get(ctx context.Context, entity models.EntityType, id string) (models.Record, error) {
	return s.store.Get(ctx, entity, id)
}

func (s *RecordService) afterWrite(ctx context.Context, entity models.EntityType) {
	if s.sync == nil || !s.autoSync {
		return
	}
	res, err := s.sync.Sync(ctx, entity)
	if err != nil {
		s.logger.Debug(ctx, "sync after write skipped", "entity", entity, "error", err)
		return
	}
	if !res.Success && res.Skipped == syncer.NotSkipped {
		s.logger.Warn(ctx, "sync incomplete", "entity", entity, "failures", res.Failures)
	}
}
