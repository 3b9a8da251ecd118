// Package remote defines the contract of the remote record store the sync
// engine reconciles against, and an in-memory implementation.
//
// Adapters for concrete backends live in sub-packages: postgres (tables in
// PostgreSQL), s3store (JSON objects in S3-compatible storage) and
// grpcstore (a record service reached over gRPC).
package remote

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
)

// ErrOwnerMismatch is returned when a write targets a record id that
// belongs to another owner.
var ErrOwnerMismatch = errors.New("record belongs to another owner")

// Query selects an owner's records.
type Query struct {
	OwnerID string
	// UpdatedAfter, when set, keeps records with UpdatedAt strictly after it.
	UpdatedAfter *time.Time
	// AfterID extends UpdatedAfter to a (UpdatedAt, ID) keyset cursor:
	// records updated exactly at UpdatedAfter are kept when their ID sorts
	// after AfterID. Ignored without UpdatedAfter.
	AfterID string
	// Limit caps the page size; zero means no cap.
	Limit          int
	ExcludeDeleted bool
}

// Matches reports whether r passes every filter of q except Limit.
func (q Query) Matches(r models.Record) bool {
	if r.OwnerID != q.OwnerID {
		return false
	}
	if q.ExcludeDeleted && r.IsDeleted() {
		return false
	}
	if q.UpdatedAfter != nil {
		return q.After(r)
	}
	return true
}

// After reports whether r sorts after the query's cursor in paging order.
func (q Query) After(r models.Record) bool {
	if q.UpdatedAfter == nil {
		return true
	}
	if r.UpdatedAt.After(*q.UpdatedAfter) {
		return true
	}
	return q.AfterID != "" && r.UpdatedAt.Equal(*q.UpdatedAfter) && r.ID > q.AfterID
}

// Store is the remote record store of one entity type. Upsert is keyed by
// record id and must be safe to repeat. Delete is a soft delete: the record
// gets a DeletedAt marker and a fresh UpdatedAt so other devices observe it.
// Deleting an unknown id is not an error.
//
// Query results are ordered by UpdatedAt, then ID, ascending; the sync
// engine relies on this to page with an (UpdatedAfter, AfterID) cursor.
type Store interface {
	Upsert(ctx context.Context, records []models.Record) error
	Query(ctx context.Context, q Query) ([]models.Record, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// Backend hands out the Store of each entity type.
type Backend interface {
	Store(e models.EntityType) Store
}

// SortForPaging orders records the way Query results are returned.
func SortForPaging(records []models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
}
