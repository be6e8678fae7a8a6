// Package postgres implements docstore.Store on PostgreSQL, using jsonb
// documents and LISTEN/NOTIFY for change notifications.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	pq "github.com/lib/pq"

	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/docstore"
	"github.com/julianstephens/habitflow/internal/logger"
	"github.com/julianstephens/habitflow/internal/migration"
	"github.com/julianstephens/habitflow/migrations"
)

type Store struct {
	connStr string
	db      *sql.DB
	hub     *docstore.Hub
	now     func() time.Time

	mu       sync.Mutex
	listener *pq.Listener
	closed   bool
}

// New returns a store for connStr. password, if set, is added to the
// connection without ever being part of the configured string.
func New(connStr, password string) (*Store, error) {
	if err := ValidateConnString(connStr); err != nil {
		return nil, err
	}
	full, err := withDefaults(connStr, password)
	if err != nil {
		return nil, err
	}
	return &Store{
		connStr: full,
		hub:     docstore.NewHub(),
		now:     time.Now,
	}, nil
}

// Init connects, creates the habitflow schema and applies migrations.
func (s *Store) Init(ctx context.Context) error {
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasParam(s.connStr, "sslmode") {
			return fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+constants.AppName); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.db = db

	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	runner := migration.NewRunner(db, subFS, migration.Postgres)
	if _, err := runner.Apply(ctx, func(msg string) { logger.Debug(msg, "store", "postgres") }); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	l := s.listener
	s.mu.Unlock()

	if l != nil {
		_ = l.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) check(ref docstore.Ref) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || s.db == nil {
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
	var created time.Time
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (space, owner, kind, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (space, owner, kind, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`, ref.Space, ref.Owner, ref.Kind, id, string(data), now).Scan(&created)
	if err != nil {
		return nil, fmt.Errorf("failed to write document %s/%s: %w", ref, id, err)
	}
	return docstore.Assemble(id, fields, created, now), nil
}

func (s *Store) Get(ctx context.Context, ref docstore.Ref, id string) (docstore.Document, error) {
	if err := s.check(ref); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, data, created_at, updated_at FROM documents
		WHERE space = $1 AND owner = $2 AND kind = $3 AND id = $4
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

	query, args, err := buildList(ref, q)
	if err != nil {
		return nil, err
	}
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

func buildList(ref docstore.Ref, q docstore.Query) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT id, data, created_at, updated_at FROM documents WHERE space = $1 AND owner = $2 AND kind = $3")
	args := []any{ref.Space, ref.Owner, ref.Kind}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	for _, f := range q.Filters {
		switch f.Field {
		case constants.FieldID:
			b.WriteString(" AND id = " + next(fmt.Sprint(f.Value)))
		case constants.FieldCreatedAt, constants.FieldUpdatedAt:
			return "", nil, fmt.Errorf("%w: cannot filter on %s", docstore.ErrInvalidField, f.Field)
		default:
			value, err := json.Marshal(f.Value)
			if err != nil {
				return "", nil, fmt.Errorf("failed to encode filter value: %w", err)
			}
			b.WriteString(" AND data->(" + next(f.Field) + "::text) = " + next(string(value)) + "::jsonb")
		}
	}

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = constants.FieldCreatedAt
	}
	var expr string
	switch orderBy {
	case constants.FieldID:
		expr = "id"
	case constants.FieldCreatedAt:
		expr = "created_at"
	case constants.FieldUpdatedAt:
		expr = "updated_at"
	default:
		expr = "data->(" + next(orderBy) + "::text)"
	}
	b.WriteString(" ORDER BY " + expr + " " + q.Direction.String() + " NULLS LAST, id ASC")

	if q.Limit > 0 {
		b.WriteString(" LIMIT " + next(q.Limit))
	}
	return b.String(), args, nil
}

func (s *Store) Update(ctx context.Context, ref docstore.Ref, id string, fields docstore.Document) (docstore.Document, error) {
	if err := s.check(ref); err != nil {
		return nil, err
	}
	patch, err := json.Marshal(docstore.UserFields(fields))
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE documents SET data = data || $5::jsonb, updated_at = $6
		WHERE space = $1 AND owner = $2 AND kind = $3 AND id = $4
		RETURNING id, data, created_at, updated_at
	`, ref.Space, ref.Owner, ref.Kind, id, string(patch), s.now().UTC())
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, ref, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update document %s/%s: %w", ref, id, err)
	}
	return doc, nil
}

func (s *Store) Delete(ctx context.Context, ref docstore.Ref, id string) error {
	if err := s.check(ref); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE space = $1 AND owner = $2 AND kind = $3 AND id = $4
	`, ref.Space, ref.Owner, ref.Kind, id); err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", ref, id, err)
	}
	return nil
}

// Watch registers fn for changes to ref. The first watcher starts a
// LISTEN connection shared by every later one.
func (s *Store) Watch(ctx context.Context, ref docstore.Ref, fn func()) (func(), error) {
	if err := s.check(ref); err != nil {
		return nil, err
	}
	if err := s.ensureListener(); err != nil {
		return nil, err
	}
	return s.hub.Add(ctx, ref, fn), nil
}

func (s *Store) ensureListener() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	l := pq.NewListener(s.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("document change listener", "event", ev, "error", err)
		}
	})
	if err := l.Listen(constants.NotifyChannel); err != nil {
		_ = l.Close()
		return fmt.Errorf("failed to listen for document changes: %w", err)
	}
	s.listener = l
	go s.forward(l)
	return nil
}

func (s *Store) forward(l *pq.Listener) {
	for n := range l.Notify {
		// A nil notification follows a reconnect; changes may have been
		// missed, so every watcher refreshes.
		if n == nil {
			s.hub.NotifyAll()
			continue
		}
		s.hub.Notify(n.Extra)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (docstore.Document, error) {
	var (
		id               string
		data             []byte
		created, updated time.Time
	)
	if err := row.Scan(&id, &data, &created, &updated); err != nil {
		return nil, err
	}
	fields := docstore.Document{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return docstore.Assemble(id, fields, created, updated), nil
}
