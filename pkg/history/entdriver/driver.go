// Package entdriver implements history.Driver on top of ent's SQL dialect
// builders. It is database-agnostic and is embedded by the sqlite and
// postgres drivers.
package entdriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/fuhaigao/inference-server/pkg/history"
)

const table = "generations"

var columns = []string{
	"id",
	"mode",
	"prompt",
	"output",
	"max_length",
	"status",
	"error_kind",
	"error",
	"started_at",
	"completed_at",
}

// EntDriver provides history operations over an ent SQL driver.
type EntDriver struct {
	Driver *entsql.Driver
}

var _ history.Driver = (*EntDriver)(nil)

// New wraps db for the given ent dialect and creates the schema if needed.
func New(ctx context.Context, dialect string, db *sql.DB) (*EntDriver, error) {
	ed := &EntDriver{Driver: entsql.OpenDB(dialect, db)}
	if err := ed.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return ed, nil
}

func (ed *EntDriver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(ed.Driver.Dialect())
}

// migrate creates the table and index. Both statements are idempotent.
func (ed *EntDriver) migrate(ctx context.Context) error {
	create, args := ed.builder().CreateTable(table).
		IfNotExists().
		Columns(
			entsql.Column("id").Type("VARCHAR(64)").Attr("NOT NULL"),
			entsql.Column("mode").Type("VARCHAR(16)").Attr("NOT NULL"),
			entsql.Column("prompt").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("output").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("max_length").Type("INTEGER").Attr("NOT NULL"),
			entsql.Column("status").Type("VARCHAR(16)").Attr("NOT NULL"),
			entsql.Column("error_kind").Type("VARCHAR(32)").Attr("NOT NULL"),
			entsql.Column("error").Type("TEXT").Attr("NOT NULL"),
			entsql.Column("started_at").Type("BIGINT").Attr("NOT NULL"),
			entsql.Column("completed_at").Type("BIGINT").Attr("NOT NULL"),
		).
		PrimaryKey("id").
		Query()
	if _, err := ed.Driver.DB().ExecContext(ctx, create, args...); err != nil {
		return err
	}

	index, args := ed.builder().CreateIndex(table+"_started_at").
		IfNotExists().
		Table(table).
		Columns("started_at").
		Query()
	_, err := ed.Driver.DB().ExecContext(ctx, index, args...)
	return err
}

// Put inserts rec, replacing the stored row when the ID already exists.
func (ed *EntDriver) Put(ctx context.Context, rec *history.Record) error {
	if rec == nil {
		return errors.New("cannot store nil record")
	}
	if rec.ID == "" {
		return errors.New("cannot store record without id")
	}

	query, args := ed.builder().Insert(table).
		Columns(columns...).
		Values(
			rec.ID,
			string(rec.Mode),
			rec.Prompt,
			rec.Output,
			rec.MaxLength,
			rec.Status,
			rec.ErrorKind,
			rec.Error,
			toUnix(rec.StartedAt),
			toUnix(rec.CompletedAt),
		).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if _, err := ed.Driver.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (ed *EntDriver) Get(ctx context.Context, id string) (*history.Record, error) {
	query, args := ed.builder().Select(columns...).
		From(entsql.Table(table)).
		Where(entsql.EQ("id", id)).
		Query()

	rec, err := scanRecord(ed.Driver.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, history.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// List returns records most recently started first.
func (ed *EntDriver) List(ctx context.Context, limit int) ([]*history.Record, error) {
	sel := ed.builder().Select(columns...).
		From(entsql.Table(table)).
		OrderBy(entsql.Desc("started_at"), entsql.Asc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := ed.Driver.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []*history.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (ed *EntDriver) Close() error {
	return ed.Driver.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*history.Record, error) {
	var (
		rec                history.Record
		mode               string
		started, completed int64
	)
	err := s.Scan(
		&rec.ID,
		&mode,
		&rec.Prompt,
		&rec.Output,
		&rec.MaxLength,
		&rec.Status,
		&rec.ErrorKind,
		&rec.Error,
		&started,
		&completed,
	)
	if err != nil {
		return nil, err
	}

	rec.Mode = history.Mode(mode)
	rec.StartedAt = fromUnix(started)
	rec.CompletedAt = fromUnix(completed)
	return &rec, nil
}

// Timestamps are stored as Unix nanoseconds so both dialects share a schema.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
