package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/docstore"
	"github.com/julianstephens/habitflow/internal/logger"
	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/state"
)

// Order sorts list results. The zero Order sorts by the kind's default
// field, newest first.
type Order struct {
	Field     string
	Direction docstore.Direction
}

// UpdateRef is the optimistic result of an update.
type UpdateRef struct {
	ID    string
	Patch models.Patch
}

// Options configures a Collection or Settings gateway.
type Options struct {
	Policy   Policy
	Reporter Reporter
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Reporter == nil {
		o.Reporter = nopReporter{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Collection is the remote gateway for one entity kind, stored at
// users/<owner>/<collection>.
type Collection[T models.Record] struct {
	kind state.Kind[T]
	docs docstore.Store
	opts Options
}

func NewCollection[T models.Record](kind state.Kind[T], docs docstore.Store, opts Options) *Collection[T] {
	return &Collection[T]{kind: kind, docs: docs, opts: opts.withDefaults()}
}

func (c *Collection[T]) Name() string { return c.kind.Collection() }

func (c *Collection[T]) ref(owner string) (docstore.Ref, error) {
	if owner == "" {
		return docstore.Ref{}, ErrNoIdentity
	}
	return docstore.Ref{Space: constants.SpaceUsers, Owner: owner, Kind: c.kind.Collection()}, nil
}

// absorb records a remote failure and decides, by policy, whether it is
// returned or kept as the result's degraded cause.
func (c *Collection[T]) absorb(op string, err error) error {
	c.opts.Reporter.ObserveCall(c.kind.Collection(), op, err)
	if err == nil {
		return nil
	}
	if c.opts.Policy == Strict {
		return fmt.Errorf("%w: %s %s: %w", ErrRemote, op, c.kind.Collection(), err)
	}
	logger.Warn("remote call failed, continuing locally", "kind", c.kind.Collection(), "op", op, "error", err)
	return nil
}

func (c *Collection[T]) stamp() string {
	return c.opts.Now().UTC().Format(docstore.TimeLayout)
}

// Create validates item and stores it. Under the offline policy a remote
// failure yields a degraded result carrying item with a generated id and
// local timestamps.
func (c *Collection[T]) Create(ctx context.Context, owner string, item T) (SyncResult[T], error) {
	ref, err := c.ref(owner)
	if err != nil {
		return SyncResult[T]{Value: item}, err
	}
	if err := item.Validate(); err != nil {
		return SyncResult[T]{Value: item}, err
	}
	fields, err := models.ToFields(item)
	if err != nil {
		return SyncResult[T]{Value: item}, err
	}

	doc, remoteErr := c.docs.Create(ctx, ref, fields)
	var created T
	if remoteErr == nil {
		created, remoteErr = models.FromFields[T](doc)
	}
	if err := c.absorb("create", remoteErr); err != nil {
		return SyncResult[T]{Value: item}, err
	}
	if remoteErr == nil {
		return ok(created), nil
	}

	now := c.stamp()
	local, err := models.FillMeta(item, models.Meta{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return SyncResult[T]{Value: item}, err
	}
	return SyncResult[T]{Value: local, Err: remoteErr}, nil
}

// GetAll lists every record of the owner's collection.
func (c *Collection[T]) GetAll(ctx context.Context, owner string, order ...Order) (SyncResult[[]T], error) {
	return c.list(ctx, owner, "getAll", nil, order)
}

// GetFiltered lists records whose fields equal every value in filters.
func (c *Collection[T]) GetFiltered(ctx context.Context, owner string, filters map[string]any, order ...Order) (SyncResult[[]T], error) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fs := make([]docstore.Filter, 0, len(keys))
	for _, k := range keys {
		fs = append(fs, docstore.Filter{Field: k, Value: filters[k]})
	}
	return c.list(ctx, owner, "getFiltered", fs, order)
}

func (c *Collection[T]) query(filters []docstore.Filter, order []Order) docstore.Query {
	q := docstore.Query{Filters: filters, OrderBy: c.kind.OrderBy(), Direction: docstore.Desc}
	if len(order) > 0 {
		if order[0].Field != "" {
			q.OrderBy = order[0].Field
		}
		q.Direction = order[0].Direction
	}
	return q
}

func (c *Collection[T]) list(ctx context.Context, owner, op string, filters []docstore.Filter, order []Order) (SyncResult[[]T], error) {
	ref, err := c.ref(owner)
	if err != nil {
		return ok([]T{}), err
	}
	q := c.query(filters, order)
	for _, f := range q.Filters {
		if err := docstore.ValidateField(f.Field); err != nil {
			return ok([]T{}), err
		}
	}
	if err := docstore.ValidateField(q.OrderBy); err != nil {
		return ok([]T{}), err
	}

	items, remoteErr := c.fetch(ctx, ref, q)
	if err := c.absorb(op, remoteErr); err != nil {
		return ok([]T{}), err
	}
	if remoteErr != nil {
		return SyncResult[[]T]{Value: []T{}, Err: remoteErr}, nil
	}
	return ok(items), nil
}

func (c *Collection[T]) fetch(ctx context.Context, ref docstore.Ref, q docstore.Query) ([]T, error) {
	docs, err := c.docs.List(ctx, ref, q)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(docs))
	for _, d := range docs {
		item, err := models.FromFields[T](d)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", d.ID(), err)
		}
		items = append(items, item)
	}
	return items, nil
}

// GetByID returns the record with id, if it exists.
func (c *Collection[T]) GetByID(ctx context.Context, owner, id string) (T, bool, error) {
	var zero T
	ref, err := c.ref(owner)
	if err != nil {
		return zero, false, err
	}

	doc, remoteErr := c.docs.Get(ctx, ref, id)
	if errors.Is(remoteErr, docstore.ErrNotFound) {
		c.opts.Reporter.ObserveCall(c.kind.Collection(), "getById", nil)
		return zero, false, nil
	}
	var item T
	if remoteErr == nil {
		item, remoteErr = models.FromFields[T](doc)
	}
	if err := c.absorb("getById", remoteErr); err != nil {
		return zero, false, err
	}
	if remoteErr != nil {
		return zero, false, nil
	}
	return item, true, nil
}

// Update validates the merged record, when the current document can be
// read, and merges patch into the stored document.
func (c *Collection[T]) Update(ctx context.Context, owner, id string, patch models.Patch) (SyncResult[UpdateRef], error) {
	result := UpdateRef{ID: id, Patch: patch}
	ref, err := c.ref(owner)
	if err != nil {
		return ok(result), err
	}
	if err := c.validatePatch(ctx, ref, id, patch); err != nil {
		return ok(result), err
	}

	_, remoteErr := c.docs.Update(ctx, ref, id, docstore.Document(patch))
	if err := c.absorb("update", remoteErr); err != nil {
		return ok(result), err
	}
	return SyncResult[UpdateRef]{Value: result, Err: remoteErr}, nil
}

func (c *Collection[T]) validatePatch(ctx context.Context, ref docstore.Ref, id string, patch models.Patch) error {
	doc, err := c.docs.Get(ctx, ref, id)
	if err != nil {
		// Without the current document only the patch's field types can
		// be checked.
		var zero T
		_, err := models.Apply(zero, patch)
		return err
	}
	current, err := models.FromFields[T](doc)
	if err != nil {
		return err
	}
	merged, err := models.Apply(current, patch)
	if err != nil {
		return err
	}
	return merged.Validate()
}

// Delete removes the record with id and returns the id.
func (c *Collection[T]) Delete(ctx context.Context, owner, id string) (SyncResult[string], error) {
	ref, err := c.ref(owner)
	if err != nil {
		return ok(id), err
	}
	remoteErr := c.docs.Delete(ctx, ref, id)
	if err := c.absorb("delete", remoteErr); err != nil {
		return ok(id), err
	}
	return SyncResult[string]{Value: id, Err: remoteErr}, nil
}

// Subscribe calls fn with the full ordered collection now and after every
// remote change until the returned cancel is called. Under the offline
// policy a failed subscription, including a failed first read, calls fn
// with an empty list once and returns a no-op cancel.
func (c *Collection[T]) Subscribe(ctx context.Context, owner string, fn func([]T), order ...Order) (func(), error) {
	ref, err := c.ref(owner)
	if err != nil {
		return func() {}, err
	}
	q := c.query(nil, order)

	var (
		mu   sync.Mutex
		live bool
	)
	refresh := func() {
		mu.Lock()
		defer mu.Unlock()
		if !live {
			return
		}
		items, err := c.fetch(ctx, ref, q)
		if err != nil {
			logger.Warn("subscription refresh failed", "kind", c.kind.Collection(), "error", err)
			return
		}
		fn(items)
	}

	cancel, remoteErr := c.docs.Watch(ctx, ref, refresh)
	if remoteErr == nil {
		mu.Lock()
		var items []T
		if items, remoteErr = c.fetch(ctx, ref, q); remoteErr == nil {
			live = true
			fn(items)
		}
		mu.Unlock()
		if remoteErr != nil {
			cancel()
		}
	}

	if err := c.absorb("subscribe", remoteErr); err != nil {
		return func() {}, err
	}
	if remoteErr != nil {
		fn([]T{})
		return func() {}, nil
	}
	return cancel, nil
}

// The methods below serve the type-erased dispatch in Gateway.ForAction.

func (c *Collection[T]) createRecord(ctx context.Context, owner string, r models.Record) (SyncResult[models.Record], error) {
	item, isT := r.(T)
	if !isT {
		return ok(r), fmt.Errorf("%w: %T is not a %s record", models.ErrInvalid, r, c.kind.Collection())
	}
	res, err := c.Create(ctx, owner, item)
	return SyncResult[models.Record]{Value: res.Value, Err: res.Err}, err
}

func (c *Collection[T]) load(ctx context.Context, owner string) (SyncResult[Fill], error) {
	res, err := c.GetAll(ctx, owner)
	if err != nil {
		return SyncResult[Fill]{}, err
	}
	items := res.Value
	fill := func(p *state.Partial) { c.kind.Fill(p, items) }
	return SyncResult[Fill]{Value: fill, Err: res.Err}, nil
}
