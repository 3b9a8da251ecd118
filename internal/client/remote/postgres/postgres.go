// Package postgres implements the remote record store on PostgreSQL.
// Each entity type has its own table of enveloped records with the payload
// kept as JSONB; writes are scoped to the owner that created the row.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote/postgres/migrations"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
	"github.com/dmitrijs2005/quotekeeper/internal/dbx"
	"github.com/dmitrijs2005/quotekeeper/internal/timex"
)

var tables = map[models.EntityType]string{
	models.EntityQuotes:     "quotes",
	models.EntityAssemblies: "assemblies",
	models.EntityPricebook:  "pricebook_items",
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations creates or upgrades the record tables.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return gooseUpContext(ctx, db, ".")
}

// Backend hands out table-bound stores sharing one connection pool.
type Backend struct {
	db    *sql.DB
	clock timex.Clock
}

// Open connects with the pgx driver and runs migrations.
func Open(ctx context.Context, dsn string, clock timex.Clock) (*Backend, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %w", common.ErrRemote, err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate postgres: %w", common.ErrRemote, err)
	}
	return NewBackend(db, clock), nil
}

func NewBackend(db *sql.DB, clock timex.Clock) *Backend {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	return &Backend{db: db, clock: clock}
}

func (b *Backend) Store(e models.EntityType) remote.Store {
	return &Store{db: b.db, table: tables[e], clock: b.clock}
}

func (b *Backend) Close() error { return b.db.Close() }

// Store is the remote.Store of one table.
type Store struct {
	db    *sql.DB
	table string
	clock timex.Clock
}

// Upsert writes all records in one transaction. A record id already owned
// by someone else aborts the whole batch with remote.ErrOwnerMismatch.
func (s *Store) Upsert(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (id, owner_id, created_at, updated_at, deleted_at, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at,
			data = EXCLUDED.data
			WHERE %[1]s.owner_id = EXCLUDED.owner_id;
	`, s.table)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, r := range records {
			res, err := tx.ExecContext(ctx, query,
				r.ID, r.OwnerID, r.CreatedAt.UTC(), r.UpdatedAt.UTC(), utcPtr(r.DeletedAt), string(r.Data))
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected error: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("%w: %s", remote.ErrOwnerMismatch, r.ID)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %w", common.ErrRemote, s.table, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q remote.Query) ([]models.Record, error) {
	var (
		where = []string{"owner_id = $1"}
		args  = []any{q.OwnerID}
	)
	if q.UpdatedAfter != nil {
		args = append(args, q.UpdatedAfter.UTC())
		if q.AfterID != "" {
			args = append(args, q.AfterID)
			where = append(where, fmt.Sprintf("(updated_at, id) > ($%d, $%d)", len(args)-1, len(args)))
		} else {
			where = append(where, fmt.Sprintf("updated_at > $%d", len(args)))
		}
	}
	if q.ExcludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	query := fmt.Sprintf(
		"SELECT id, owner_id, created_at, updated_at, deleted_at, data FROM %s WHERE %s ORDER BY updated_at, id",
		s.table, strings.Join(where, " AND "))
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", common.ErrRemote, s.table, err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		var (
			r       models.Record
			deleted sql.NullTime
			data    []byte
		)
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.CreatedAt, &r.UpdatedAt, &deleted, &data); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %w", common.ErrRemote, s.table, err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		r.UpdatedAt = r.UpdatedAt.UTC()
		if deleted.Valid {
			t := deleted.Time.UTC()
			r.DeletedAt = &t
		}
		r.Data = data
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", common.ErrRemote, s.table, err)
	}
	return result, nil
}

// Delete marks the row deleted. Unknown, foreign or already deleted rows
// are left untouched.
func (s *Store) Delete(ctx context.Context, id, ownerID string) error {
	query := fmt.Sprintf(
		`UPDATE %s SET deleted_at = $3, updated_at = $3 WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`,
		s.table)
	if _, err := s.db.ExecContext(ctx, query, id, ownerID, s.clock.Now().UTC()); err != nil {
		return fmt.Errorf("%w: delete %s/%s: %w", common.ErrRemote, s.table, id, err)
	}
	return nil
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
