// Package sqlite implements docstore.Store on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/docstore"
	"github.com/julianstephens/habitflow/internal/logger"
	"github.com/julianstephens/habitflow/internal/migration"
	"github.com/julianstephens/habitflow/migrations"
)

type Store struct {
	path   string
	db     *sql.DB
	hub    *docstore.Hub
	now    func() time.Time
	closed atomic.Bool
}

func New(path string) *Store {
	return &Store{
		path: path,
		hub:  docstore.NewHub(),
		now:  time.Now,
	}
}

// Init opens the database file, creating its directory if needed, and
// applies pending migrations.
func (s *Store) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := "file:" + s.path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)
	s.db = db

	if err := s.runMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	runner := migration.NewRunner(s.db, subFS, migration.SQLite)
	_, err = runner.Apply(ctx, func(msg string) {
		logger.Debug(msg, "store", "sqlite")
	})
	return err
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) check(ref docstore.Ref) error {
	if s.closed.Load() || s.db == nil {
		return docstore.ErrClosed
	}
	return ref.Validate()
}

func (s *Store) Create(ctx context.Context, ref docstore.Ref, fields docstore.Document) (docstore.Document, error) {
	return s.Set(ctx, ref, uuid.NewString(), fields)
}

func (s *Store) Set(ctx context.Context, ref docstore.Ref, id string, fields docstore.Document) (docstore.Document, error) {
	if err := s.check(ref); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: empty document id", docstore.ErrInvalidRef)
	}

	data, err := json.Marshal(docstore.UserFields(fields))
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	now := s.now().UTC()
	stamp := now.Format(docstore.TimeLayout)
	var created string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (space, owner, kind, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (space, owner, kind, id)
		DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
		RETURNING created_at
	`, ref.Space, ref.Owner, ref.Kind, id, string(data), stamp, stamp).Scan(&created)
	if err != nil {
		return nil, fmt.Errorf("failed to write document %s/%s: %w", ref, id, err)
	}

	s.hub.Notify(ref.String())
	return docstore.Assemble(id, fields, parseTime(created), now), nil
}

func (s *Store) Get(ctx context.Context, ref docstore.Ref, id string) (docstore.Document, error) {
	if err := s.check(ref); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, data, created_at, updated_at FROM documents
		WHERE space = ? AND owner = ? AND kind = ? AND id = ?
	`, ref.Space, ref.Owner, ref.Kind, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, ref, id)
	}
	return doc, err
}

func (s *Store) List(ctx context.Context, ref docstore.Ref, q docstore.Query) ([]docstore.Document, error) {
	if err := s.check(ref); err != nil {
		return nil, err
	}
	if err := docstore.ValidateQuery(ref, q); err != nil {
		return nil, err
	}

	query, args := buildList(ref, q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", ref, err)
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func buildList(ref docstore.Ref, q docstore.Query) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT id, data, created_at, updated_at FROM documents WHERE space = ? AND owner = ? AND kind = ?")
	args := []any{ref.Space, ref.Owner, ref.Kind}

	for _, f := range q.Filters {
		expr, path := column(f.Field)
		if path != "" {
			args = append(args, path)
		}
		b.WriteString(" AND " + expr + " = ?")
		args = append(args, bindValue(f.Value))
	}

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = constants.FieldCreatedAt
	}
	expr, path := column(orderBy)
	if path != "" {
		args = append(args, path)
	}
	b.WriteString(" ORDER BY " + expr + " " + q.Direction.String() + " NULLS LAST, id ASC")

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args
}

// column maps a validated field name to its SQL expression. Document fields
// return the json path to bind for the expression's placeholder.
func column(field string) (expr, path string) {
	switch field {
	case constants.FieldID:
		return "id", ""
	case constants.FieldCreatedAt:
		return "created_at", ""
	case constants.FieldUpdatedAt:
		return "updated_at", ""
	default:
		return "json_extract(data, ?)", "$." + field
	}
}

// bindValue converts a filter value to what json_extract yields for it.
func bindValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case string, int, int64, float64, float32, int32:
		return x
	case nil:
		return nil
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

func (s *Store) Update(ctx context.Context, ref docstore.Ref, id string, fields docstore.Document) (docstore.Document, error) {
	if err := s.check(ref); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, data, created_at, updated_at FROM documents
		WHERE space = ? AND owner = ? AND kind = ? AND id = ?
	`, ref.Space, ref.Owner, ref.Kind, id)
	current, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, ref, id)
	}
	if err != nil {
		return nil, err
	}

	merged := docstore.Merge(docstore.UserFields(current), docstore.UserFields(fields))
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	now := s.now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET data = ?, updated_at = ?
		WHERE space = ? AND owner = ? AND kind = ? AND id = ?
	`, string(data), now.Format(docstore.TimeLayout), ref.Space, ref.Owner, ref.Kind, id); err != nil {
		return nil, fmt.Errorf("failed to update document %s/%s: %w", ref, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	s.hub.Notify(ref.String())
	created, _ := current[constants.FieldCreatedAt].(string)
	return docstore.Assemble(id, merged, parseTime(created), now), nil
}

func (s *Store) Delete(ctx context.Context, ref docstore.Ref, id string) error {
	if err := s.check(ref); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE space = ? AND owner = ? AND kind = ? AND id = ?
	`, ref.Space, ref.Owner, ref.Kind, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", ref, id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.hub.Notify(ref.String())
	}
	return nil
}

func (s *Store) Watch(ctx context.Context, ref docstore.Ref, fn func()) (func(), error) {
	if err := s.check(ref); err != nil {
		return nil, err
	}
	return s.hub.Add(ctx, ref, fn), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (docstore.Document, error) {
	var id, data, created, updated string
	if err := row.Scan(&id, &data, &created, &updated); err != nil {
		return nil, err
	}
	fields := docstore.Document{}
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return docstore.Assemble(id, fields, parseTime(created), parseTime(updated)), nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(docstore.TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
