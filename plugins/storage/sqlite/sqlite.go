// Package sqlite provides a SQLite implementation of the storage.Store
// interface.
//
// Examples:
//
//	store := sqlite.New(
//		"file:taskhub.s3db?_auth&_auth_user=admin&_auth_pass=admin",
//		sqlite.WithPrefix("app_"),
//	)
//
//	store := sqlite.New(":memory:")
//
//nolint:gosec // Reports on G202. SQL string concat used to parameterize table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/plugins/storage"

	"github.com/mattn/go-sqlite3"
)

// Option is a functional option for configuring the store.
type Option func(*store)

// WithPrefix overrides the default prefix for table names.
func WithPrefix(prefix string) Option {
	return func(s *store) {
		s.prefix = prefix
	}
}

// New returns a store that provides sqlite backed storage, the table will be
// created optimistically on initialization. Any errors are considered
// non-recoverable and will panic.
func New(conn string, opts ...Option) storage.Store {
	db, err := sql.Open("sqlite3", conn)
	if err != nil {
		panic("failed to open sqlite connection: " + err.Error())
	}
	s := &store{
		db:     db,
		prefix: "taskhub_",
		tables: map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + s.prefix + `default (
		id TEXT,
		entity_type TEXT,
		value BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id, entity_type)
	);`); err != nil {
		panic("failed to create default table: " + err.Error())
	}
	return s
}

// store keeps every model as a JSON blob. Models that have not been
// registered via InitModel share a catch-all table keyed by (id, entity_type),
// registered models get a dedicated table keyed by id alone.
type store struct {
	db     *sql.DB
	prefix string
	tables map[string]bool
}

// From ModelInitializer interface. Sets up a dedicated table for the model.
func (s *store) InitModel(model storage.Model) error {
	name := storage.Name(model)
	s.tables[name] = true
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS ` + s.prefix + name + ` (
		id TEXT,
		value BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id)
	);`)
	if err != nil {
		return errors.Errorf("failed to create table [%s]: %w", name, err)
	}
	return nil
}

func (s *store) Create(ctx context.Context, models ...storage.Model) error {
	return s.insert(ctx, false, models...)
}

func (s *store) Upsert(ctx context.Context, models ...storage.Model) error {
	return s.insert(ctx, true, models...)
}

func (s *store) Read(ctx context.Context, id string, model storage.Model) error {
	if err := storage.ValidateReceiver(model); err != nil {
		return err
	}

	table, cond, args := s.keyPredicate(model, id)
	row := s.db.QueryRowContext(ctx, "SELECT value FROM "+table+" WHERE "+cond, args...)

	var value []byte
	if err := row.Scan(&value); err != nil {
		return translateError(err)
	}
	return errors.MaybeWrap(json.Unmarshal(value, model), 0)
}

func (s *store) Update(ctx context.Context, models ...storage.Model) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, model := range models {
			value, err := json.Marshal(model)
			if err != nil {
				return errors.Mark(storage.ErrInvalidModel, 0).Append(err.Error())
			}

			table, cond, args := s.keyPredicate(model, model.PK())
			res, err := execStmt(ctx, tx,
				"UPDATE "+table+" SET value = ?, updated_at = CURRENT_TIMESTAMP WHERE "+cond,
				append([]any{value}, args...)...)
			if err != nil {
				return translateError(err)
			}
			if n, err := res.RowsAffected(); n == 0 || err != nil {
				return errors.Mark(storage.ErrNotFound, 0)
			}
		}
		return nil
	})
}

func (s *store) Delete(ctx context.Context, model storage.Model) error {
	table, cond, args := s.keyPredicate(model, model.PK())
	stmt, err := s.db.PrepareContext(ctx, "DELETE FROM "+table+" WHERE "+cond)
	if err != nil {
		return translateError(err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return translateError(err)
	}
	if n, err := res.RowsAffected(); n == 0 || err != nil {
		return errors.Mark(storage.ErrNotFound, 0)
	}
	return nil
}

func (s *store) Exists(ctx context.Context, id string, model storage.Model) (bool, error) {
	table, cond, args := s.keyPredicate(model, id)

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE "+cond, args...).Scan(&count)
	if err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

func (s *store) List(ctx context.Context, models any, filter storage.Model) error {
	modelsVal := reflect.ValueOf(models)
	if modelsVal.Kind() != reflect.Ptr || modelsVal.Elem().Kind() != reflect.Slice {
		return errors.Mark(storage.ErrSliceRequired, 0)
	}
	sliceVal := modelsVal.Elem()
	elemType := sliceVal.Type().Elem()
	if elemType != reflect.TypeOf(filter) {
		return errors.Mark(storage.ErrTypeMismatch, 0)
	}

	query, args := s.buildListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return translateError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return translateError(err)
		}

		elem := reflect.New(elemType)
		if err := json.Unmarshal([]byte(value), elem.Interface()); err != nil {
			return errors.Mark(storage.ErrInvalidModel, 0).
				Append(err.Error()).
				Append(fmt.Sprintf("<%v>", value))
		}
		sliceVal.Set(reflect.Append(sliceVal, elem.Elem()))
	}

	return translateError(rows.Err())
}

func (s *store) insert(ctx context.Context, upsert bool, models ...storage.Model) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, model := range models {
			value, err := json.Marshal(model)
			if err != nil {
				return errors.Errorf("%w: %s", storage.ErrInvalidModel, err)
			}

			table, isDefault := s.tableName(model)
			var query string
			var args []any
			if isDefault {
				query = `INSERT INTO ` + table + ` (id, entity_type, value, created_at, updated_at)
					VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
				if upsert {
					query += `
						ON CONFLICT(id, entity_type) DO UPDATE SET
						value = excluded.value, updated_at = CURRENT_TIMESTAMP`
				}
				args = []any{model.PK(), storage.Name(model), value}
			} else {
				query = `INSERT INTO ` + table + ` (id, value, created_at, updated_at)
					VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
				if upsert {
					query += `
						ON CONFLICT(id) DO UPDATE SET
						value = excluded.value, updated_at = CURRENT_TIMESTAMP`
				}
				args = []any{model.PK(), value}
			}
			if _, err := execStmt(ctx, tx, query, args...); err != nil {
				return translateError(err)
			}
		}
		return nil
	})
}

// inTx runs fn inside a transaction, rolling back when fn fails.
func (s *store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateError(err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return translateError(err)
	}
	return nil
}

func (s *store) tableName(model storage.Model) (string, bool) {
	name := storage.Name(model)
	if _, ok := s.tables[name]; !ok {
		return s.prefix + "default", true
	}
	return s.prefix + name, false
}

// keyPredicate returns the table and WHERE clause that select the row for a
// single primary key. Rows in the shared table also match on entity_type.
func (s *store) keyPredicate(model storage.Model, id string) (string, string, []any) {
	table, isDefault := s.tableName(model)
	if isDefault {
		return table, "id = ? AND entity_type = ?", []any{id, storage.Name(model)}
	}
	return table, "id = ?", []any{id}
}

func (s *store) buildListQuery(model storage.Model) (string, []any) {
	table, isDefault := s.tableName(model)
	filterValue := reflect.ValueOf(model)

	var conds []string
	var params []any

	if isDefault {
		conds = append(conds, "entity_type = ?")
		params = append(params, storage.Name(model))
	}

	for i := range filterValue.NumField() {
		field := filterValue.Field(i)
		typeField := filterValue.Type().Field(i)

		// Only include fields that are non-nil pointers or are non-zero values.
		if (field.Kind() == reflect.Ptr && !field.IsNil()) || (!field.IsZero() && field.Kind() != reflect.Ptr) {
			conds = append(conds, fmt.Sprintf("json_extract(value, '$.%s') = ?", typeField.Name))
			params = append(params, field.Interface())
		}
	}

	query := "SELECT value FROM " + table
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return query, params
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Mark(storage.ErrNotFound, 0)
	}
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code {
		case sqlite3.ErrNotFound:
			return errors.Mark(storage.ErrNotFound, 0)
		case sqlite3.ErrConstraint:
			return errors.Mark(storage.ErrAlreadyExists, 0)
		}
	}
	return errors.MaybeWrap(err, 0)
}

func execStmt(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	defer stmt.Close()
	return stmt.ExecContext(ctx, args...)
}
