// Package models defines client-side data models: the synced Record envelope,
// the typed payloads it carries, and the values produced by sync, repair and
// matching.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityType names one synced collection.
type EntityType string

const (
	EntityQuotes     EntityType = "quotes"
	EntityAssemblies EntityType = "assemblies"
	EntityPricebook  EntityType = "pricebook"
)

// EntityTypes lists every synced collection in dependency order: pricebook
// items are referenced by assemblies, assemblies are expanded into quotes.
var EntityTypes = []EntityType{EntityPricebook, EntityAssemblies, EntityQuotes}

// ParseEntityType validates a user-supplied collection name.
func ParseEntityType(s string) (EntityType, error) {
	for _, e := range EntityTypes {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Record is the envelope persisted locally and synced with the remote store.
// The Sync Engine only looks at the header fields; Data is opaque to it.
type Record struct {
	// ID is globally unique and immutable after creation.
	ID string `json:"id"`

	// OwnerID is the authenticated user owning the record.
	OwnerID string `json:"owner_id"`

	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the authority for last-write-wins conflict resolution.
	UpdatedAt time.Time `json:"updated_at"`

	// DeletedAt marks a soft delete when set.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// Data is the JSON encoded entity payload.
	Data json.RawMessage `json:"data"`
}

// IsDeleted reports whether the record carries a soft-delete marker.
func (r Record) IsDeleted() bool {
	return r.DeletedAt != nil
}

// Freshness is max(UpdatedAt, CreatedAt); it decides which of two stored
// copies of the same record survives de-duplication.
func (r Record) Freshness() time.Time {
	if r.CreatedAt.After(r.UpdatedAt) {
		return r.CreatedAt
	}
	return r.UpdatedAt
}

// NewerThan reports whether r was updated strictly after other.
// Ties are not newer, so on equal timestamps the existing copy is kept.
func (r Record) NewerThan(other Record) bool {
	return r.UpdatedAt.After(other.UpdatedAt)
}

// Wrap encodes v as the payload of a new record header.
func Wrap[T any](id, ownerID string, createdAt, updatedAt time.Time, v T) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:        id,
		OwnerID:   ownerID,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
		Data:      b,
	}, nil
}

// Unwrap decodes the payload of r into T.
func Unwrap[T any](r Record) (T, error) {
	var v T
	if len(r.Data) == 0 {
		return v, fmt.Errorf("record %s has no payload", r.ID)
	}
	if err := json.Unmarshal(r.Data, &v); err != nil {
		return v, fmt.Errorf("decode record %s: %w", r.ID, err)
	}
	return v, nil
}

// Rewrap replaces the payload of r, bumping UpdatedAt.
func Rewrap[T any](r Record, v T, now time.Time) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Record{}, err
	}
	r.Data = b
	r.UpdatedAt = now.UTC()
	return r, nil
}

// ByID indexes records by ID.
func ByID(records []Record) map[string]Record {
	m := make(map[string]Record, len(records))
	for _, r := range records {
		m[r.ID] = r
	}
	return m
}
