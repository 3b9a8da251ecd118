// Package syncer reconciles the local record store with a remote record
// store, one entity type per cycle, using last-write-wins on UpdatedAt.
//
// A cycle (Engine.Sync) runs these steps:
//
//  1. resolve the owner; no owner is an error, no entitlement a skip
//  2. force-clear a persisted lock older than Options.StaleLockAfter
//  3. skip when the previous cycle completed less than Options.Cooldown ago
//  4. take the in-memory lock, then the persisted lock
//  5. download one page of remote changes since the cursor
//  6. push queued deletions and purge them locally
//  7. merge remote into local, then push changed local records
//  8. advance the cursor and release both locks
//
// Remote failures of single records are counted in Result.Failures and
// never abort the cycle. Once past lock acquisition a cycle ignores
// cancellation of its context and runs to completion.
//
// Persisted state lives in the key/value repository:
//
//	sync-meta:<owner>:<entity>   SyncMetadata
//	sync-lock:<entity>           SyncLock
//	sync-deletions:<entity>      ids waiting for a remote delete
//	sync-retry:<entity>          ids whose upload is pending
package syncer
