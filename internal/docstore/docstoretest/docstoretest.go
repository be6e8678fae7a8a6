// Package docstoretest provides test doubles and a behavioural test suite
// shared by every docstore.Store implementation.
package docstoretest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/julianstephens/habitflow/internal/docstore"
)

// ErrUnavailable is returned by every Failing call.
var ErrUnavailable = errors.New("document store unavailable")

// Failing is a Store whose every call fails, standing in for an
// unreachable remote.
type Failing struct {
	Err   error
	calls atomic.Int64
}

func (f *Failing) err() error {
	f.calls.Add(1)
	if f.Err != nil {
		return f.Err
	}
	return ErrUnavailable
}

// Calls reports how many store calls were attempted.
func (f *Failing) Calls() int { return int(f.calls.Load()) }

func (f *Failing) Create(context.Context, docstore.Ref, docstore.Document) (docstore.Document, error) {
	return nil, f.err()
}

func (f *Failing) Set(context.Context, docstore.Ref, string, docstore.Document) (docstore.Document, error) {
	return nil, f.err()
}

func (f *Failing) Get(context.Context, docstore.Ref, string) (docstore.Document, error) {
	return nil, f.err()
}

func (f *Failing) List(context.Context, docstore.Ref, docstore.Query) ([]docstore.Document, error) {
	return nil, f.err()
}

func (f *Failing) Update(context.Context, docstore.Ref, string, docstore.Document) (docstore.Document, error) {
	return nil, f.err()
}

func (f *Failing) Delete(context.Context, docstore.Ref, string) error { return f.err() }

func (f *Failing) Watch(context.Context, docstore.Ref, func()) (func(), error) {
	return nil, f.err()
}

func (f *Failing) Close() error { return nil }

// Flaky wraps a Store and fails chosen operations on demand. Operation
// names are the lower-case method names: "get", "list", "update" and so on.
type Flaky struct {
	docstore.Store

	mu   sync.Mutex
	fail map[string]int
}

func NewFlaky(s docstore.Store) *Flaky {
	return &Flaky{Store: s, fail: make(map[string]int)}
}

// FailNext makes the next n calls of op return ErrUnavailable. A negative
// n fails every call until FailNext(op, 0).
func (f *Flaky) FailNext(op string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = n
}

func (f *Flaky) injected(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch n := f.fail[op]; {
	case n < 0:
		return ErrUnavailable
	case n > 0:
		f.fail[op] = n - 1
		return ErrUnavailable
	}
	return nil
}

func (f *Flaky) Create(ctx context.Context, ref docstore.Ref, fields docstore.Document) (docstore.Document, error) {
	if err := f.injected("create"); err != nil {
		return nil, err
	}
	return f.Store.Create(ctx, ref, fields)
}

func (f *Flaky) Set(ctx context.Context, ref docstore.Ref, id string, fields docstore.Document) (docstore.Document, error) {
	if err := f.injected("set"); err != nil {
		return nil, err
	}
	return f.Store.Set(ctx, ref, id, fields)
}

func (f *Flaky) Get(ctx context.Context, ref docstore.Ref, id string) (docstore.Document, error) {
	if err := f.injected("get"); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, ref, id)
}

func (f *Flaky) List(ctx context.Context, ref docstore.Ref, q docstore.Query) ([]docstore.Document, error) {
	if err := f.injected("list"); err != nil {
		return nil, err
	}
	return f.Store.List(ctx, ref, q)
}

func (f *Flaky) Update(ctx context.Context, ref docstore.Ref, id string, fields docstore.Document) (docstore.Document, error) {
	if err := f.injected("update"); err != nil {
		return nil, err
	}
	return f.Store.Update(ctx, ref, id, fields)
}

func (f *Flaky) Delete(ctx context.Context, ref docstore.Ref, id string) error {
	if err := f.injected("delete"); err != nil {
		return err
	}
	return f.Store.Delete(ctx, ref, id)
}

func (f *Flaky) Watch(ctx context.Context, ref docstore.Ref, fn func()) (func(), error) {
	if err := f.injected("watch"); err != nil {
		return nil, err
	}
	return f.Store.Watch(ctx, ref, fn)
}

// Run exercises the docstore.Store contract against a fresh store from
// open.
func Run(t *testing.T, open func(t *testing.T) docstore.Store) {
	ctx := context.Background()
	ref := docstore.Ref{Space: "users", Owner: "u1", Kind: "todos"}

	t.Run("create then get", func(t *testing.T) {
		s := open(t)
		created, err := s.Create(ctx, ref, docstore.Document{"title": "Buy milk", "id": "ignored"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if created.ID() == "" || created.ID() == "ignored" {
			t.Fatalf("Create returned id %q, want a generated id", created.ID())
		}
		if created["createdAt"] == "" || created["updatedAt"] == "" {
			t.Errorf("Create returned no timestamps: %v", created)
		}

		got, err := s.Get(ctx, ref, created.ID())
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got["title"] != "Buy milk" {
			t.Errorf("title = %v, want Buy milk", got["title"])
		}
		if got["createdAt"] != created["createdAt"] {
			t.Errorf("createdAt = %v, want %v", got["createdAt"], created["createdAt"])
		}
	})

	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		if _, err := s.Get(ctx, ref, "nope"); !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("collections are isolated by owner", func(t *testing.T) {
		s := open(t)
		other := docstore.Ref{Space: ref.Space, Owner: "u2", Kind: ref.Kind}
		if _, err := s.Create(ctx, ref, docstore.Document{"title": "mine"}); err != nil {
			t.Fatalf("Create: %v", err)
		}
		docs, err := s.List(ctx, other, docstore.Query{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(docs) != 0 {
			t.Errorf("other owner sees %d documents, want 0", len(docs))
		}
	})

	t.Run("list filters and orders", func(t *testing.T) {
		s := open(t)
		seed := []docstore.Document{
			{"title": "b", "completed": false, "rank": 2},
			{"title": "a", "completed": true, "rank": 1},
			{"title": "c", "completed": false, "rank": 3},
			{"title": "d", "completed": false},
		}
		for _, d := range seed {
			if _, err := s.Create(ctx, ref, d); err != nil {
				t.Fatalf("Create: %v", err)
			}
		}

		docs, err := s.List(ctx, ref, docstore.Query{
			Filters:   []docstore.Filter{{Field: "completed", Value: false}},
			OrderBy:   "rank",
			Direction: docstore.Desc,
		})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		var titles []string
		for _, d := range docs {
			titles = append(titles, d["title"].(string))
		}
		if len(titles) != 3 || titles[0] != "c" || titles[1] != "b" {
			t.Errorf("titles = %v, want [c b d] with the unranked document last", titles)
		}

		docs, err = s.List(ctx, ref, docstore.Query{Filters: []docstore.Filter{{Field: "title", Value: "a"}}})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(docs) != 1 || docs[0]["completed"] != true {
			t.Errorf("filter by title returned %v", docs)
		}
	})

	t.Run("list rejects bad field names", func(t *testing.T) {
		s := open(t)
		_, err := s.List(ctx, ref, docstore.Query{OrderBy: "title; DROP TABLE documents"})
		if !errors.Is(err, docstore.ErrInvalidField) {
			t.Errorf("List error = %v, want ErrInvalidField", err)
		}
	})

	t.Run("update merges", func(t *testing.T) {
		s := open(t)
		created, err := s.Create(ctx, ref, docstore.Document{"title": "t", "completed": false})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		updated, err := s.Update(ctx, ref, created.ID(), docstore.Document{"completed": true})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated["title"] != "t" || updated["completed"] != true {
			t.Errorf("Update returned %v", updated)
		}
		if updated["createdAt"] != created["createdAt"] {
			t.Errorf("Update changed createdAt")
		}
	})

	t.Run("update missing", func(t *testing.T) {
		s := open(t)
		_, err := s.Update(ctx, ref, "nope", docstore.Document{"completed": true})
		if !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := open(t)
		created, err := s.Create(ctx, ref, docstore.Document{"title": "t"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := s.Delete(ctx, ref, created.ID()); err != nil {
				t.Fatalf("Delete #%d: %v", i+1, err)
			}
		}
		if _, err := s.Get(ctx, ref, created.ID()); !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("Get after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("set upserts", func(t *testing.T) {
		s := open(t)
		settings := docstore.Ref{Space: "userData", Owner: "u1", Kind: "settings"}
		first, err := s.Set(ctx, settings, "settings", docstore.Document{"theme": "light"})
		if err != nil {
			t.Fatalf("Set: %v", err)
		}
		second, err := s.Set(ctx, settings, "settings", docstore.Document{"theme": "dark"})
		if err != nil {
			t.Fatalf("Set: %v", err)
		}
		if second["theme"] != "dark" || second["createdAt"] != first["createdAt"] {
			t.Errorf("second Set = %v", second)
		}
	})

	t.Run("watch sees writes", func(t *testing.T) {
		s := open(t)
		changed := make(chan struct{}, 8)
		cancel, err := s.Watch(ctx, ref, func() { changed <- struct{}{} })
		if err != nil {
			t.Fatalf("Watch: %v", err)
		}
		defer cancel()

		if _, err := s.Create(ctx, ref, docstore.Document{"title": "t"}); err != nil {
			t.Fatalf("Create: %v", err)
		}
		select {
		case <-changed:
		case <-time.After(5 * time.Second):
			t.Fatal("watcher not notified")
		}
	})
}
