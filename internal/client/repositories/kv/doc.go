// Package kv provides the key/value persistence underneath the local record
// store, sync metadata, sync locks, the deletion queue and the session token.
//
// The SQLite implementation (SQLiteRepository) works over a dbx.DBTX, so the
// same code runs on *sql.DB or inside a transaction:
//
//	repo := kv.NewSQLiteRepository(db)
//	_ = repo.Set(ctx, "primary-quotes", payload)
//	b, _ := repo.Get(ctx, "primary-quotes")
//	all, _ := repo.List(ctx, "sync-meta:")
//
// Values are opaque bytes; callers decide the encoding (JSON throughout this
// module).
package kv
