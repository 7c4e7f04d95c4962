// Package db holds Postgres bulk-write helpers shared by the store.
package db

import (
	"context"
	"slices"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // registers the postgres dialect
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	Copier
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Copier runs COPY FROM. Pools and transactions both qualify.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// CopyFrom writes rows to table with the COPY protocol. Pass a pgx.Tx to
// keep the copy inside a transaction.
func CopyFrom(ctx context.Context, c Copier, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := c.CopyFrom(ctx, identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: copy into %s", table)
	}
	return n, nil
}

// Upsert describes a bulk insert that updates rows colliding on Conflict.
// Update defaults to every column outside Conflict.
type Upsert struct {
	Table    string
	Columns  []string
	Conflict []string
	Update   []string
}

func (u Upsert) updateColumns() []string {
	if u.Update != nil {
		return u.Update
	}
	var out []string
	for _, c := range u.Columns {
		if !slices.Contains(u.Conflict, c) {
			out = append(out, c)
		}
	}
	return out
}

// BulkUpsert copies rows into a transaction-scoped temp table and merges
// them into the target with INSERT ... ON CONFLICT DO UPDATE. It returns the
// number of rows inserted or updated.
func BulkUpsert(ctx context.Context, pool Pool, u Upsert, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(u.Columns) == 0 || len(u.Conflict) == 0 {
		return 0, eris.Errorf("db: upsert into %s needs columns and conflict keys", u.Table)
	}

	staging := "_upsert_" + strings.ReplaceAll(u.Table, ".", "_")
	merge, err := mergeSQL(u, staging)
	if err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	create := "CREATE TEMP TABLE " + identifier(staging).Sanitize() +
		" (LIKE " + identifier(u.Table).Sanitize() + " INCLUDING DEFAULTS) ON COMMIT DROP"
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert staging table for %s", u.Table)
	}
	if _, err := CopyFrom(ctx, tx, staging, u.Columns, rows); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, merge)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert merge into %s", u.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert commit")
	}
	return tag.RowsAffected(), nil
}

func mergeSQL(u Upsert, staging string) (string, error) {
	cols := make([]any, len(u.Columns))
	for i, c := range u.Columns {
		cols[i] = c
	}
	set := goqu.Record{}
	for _, c := range u.updateColumns() {
		set[c] = goqu.I("excluded." + c)
	}

	sql, _, err := goqu.Dialect("postgres").
		Insert(goqu.T(u.Table)).
		Cols(cols...).
		FromQuery(goqu.From(staging).Select(cols...)).
		OnConflict(goqu.DoUpdate(strings.Join(u.Conflict, ", "), set)).
		ToSQL()
	return sql, eris.Wrapf(err, "db: build upsert for %s", u.Table)
}

// identifier splits an optional schema prefix off table.
func identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.SplitN(table, ".", 2))
}
