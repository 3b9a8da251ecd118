// Package store is the local record store: durable, corruption-tolerant
// storage of the user's quotes, assemblies and pricebook items on top of a
// key/value repository.
//
// # Layout
//
// Each entity type lives under one canonical key ("primary-quotes",
// "primary-assemblies", "primary-pricebook") holding a JSON array of
// models.Record. Older app versions wrote the same collections under other
// keys; those legacy keys are read and merged on every ReadAll and deleted by
// the next WriteAll. They are never written again.
//
// # Corruption
//
// A key whose payload no longer parses is discarded and raises a
// session-scoped corruption flag (CorruptionDetected). The sync engine reads
// the flag to fall back to a full download, and clears it after a clean
// cycle. The flag is not persisted.
//
// # Concurrency
//
// Every mutation is a full read-merge-write of the entity's collection under
// an in-process mutex, so writes are atomic from the point of view of this
// process.
package store
