package models

import "time"

// SyncMetadata is kept per owner and entity type. It is created on the first
// sync attempt, updated after every completed cycle and never deleted.
type SyncMetadata struct {
	// LastSyncAt is the incremental download cursor; nil means full sync.
	LastSyncAt *time.Time `json:"last_sync_at"`
	// LastSyncID breaks UpdatedAt ties at LastSyncAt when the previous page
	// ended inside a run of records sharing one timestamp.
	LastSyncID string `json:"last_sync_id,omitempty"`
	// LastCompletedAt is when the last cycle finished; drives the cooldown.
	LastCompletedAt *time.Time `json:"last_completed_at"`
	HasMigrated     bool       `json:"has_migrated"`
}

// SyncLock is the persisted half of the per-entity single-flight guard.
type SyncLock struct {
	InProgress bool       `json:"in_progress"`
	StartedAt  *time.Time `json:"started_at"`
}

// Stale reports whether a held lock is older than maxAge at now.
func (l SyncLock) Stale(now time.Time, maxAge time.Duration) bool {
	if !l.InProgress {
		return false
	}
	if l.StartedAt == nil {
		return true
	}
	return now.Sub(*l.StartedAt) > maxAge
}
