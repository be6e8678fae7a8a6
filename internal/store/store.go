// Package store owns the in-memory state. It binds the session identity to
// bulk loading and wraps dispatch with best-effort remote sync.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitflow/internal/docstore"
	"github.com/julianstephens/habitflow/internal/gateway"
	"github.com/julianstephens/habitflow/internal/logger"
	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/session"
	"github.com/julianstephens/habitflow/internal/state"
)

// ErrIdentityChanged is returned by Dispatch when the identity changed
// while the remote call was in flight; the result is not applied.
var ErrIdentityChanged = errors.New("identity changed during dispatch")

type Phase int

const (
	Unauthenticated Phase = iota
	Loading
	Ready
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unauthenticated"
	}
}

// Remote is the gateway surface the Store needs.
type Remote interface {
	Collections() []string
	Load(ctx context.Context, owner, name string) (gateway.SyncResult[gateway.Fill], error)
	LoadSettings(ctx context.Context, owner string) (gateway.SyncResult[gateway.Fill], error)
	ForAction(ctx context.Context, owner string, a state.Action) (gateway.SyncResult[state.Action], error)
}

// Cache is the local durable cache used when there is no Remote.
type Cache interface {
	Save(state.State) error
	Load() (state.Partial, bool, error)
}

// Metrics receives dispatch and bulk-load outcomes.
type Metrics interface {
	ObserveDispatch(actionType string, remote, degraded bool)
	ObserveBulkLoad(d time.Duration, failed int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveDispatch(string, bool, bool) {}
func (nopMetrics) ObserveBulkLoad(time.Duration, int) {}

// Options configures a Store. A nil Gateway makes a local-only build, in
// which Cache, if set, persists the state after every change.
type Options struct {
	Gateway Remote
	Cache   Cache
	Metrics Metrics
	Now     func() time.Time
}

// Outcome describes what Dispatch applied. Err is the remote failure
// absorbed on the way, if any; the action was still applied locally.
type Outcome struct {
	Action state.Action
	Remote bool
	Err    error
}

func (o Outcome) Degraded() bool { return o.Err != nil }

// SyncStatus counts remote outcomes so divergence from the remote store is
// visible instead of only logged.
type SyncStatus struct {
	Phase         Phase     `json:"-"`
	PhaseName     string    `json:"phase"`
	Synced        int       `json:"synced"`
	Degraded      int       `json:"degraded"`
	LoadsDegraded int       `json:"loadsDegraded"`
	LastError     string    `json:"lastError,omitempty"`
	LastErrorAt   time.Time `json:"lastErrorAt,omitzero"`
	LastLoadAt    time.Time `json:"lastLoadAt,omitzero"`
}

// Store is the single owner of application state. All mutation goes
// through Dispatch.
type Store struct {
	remote  Remote
	cache   Cache
	metrics Metrics
	now     func() time.Time

	mu     sync.Mutex
	state  state.State
	phase  Phase
	gen    uint64
	status SyncStatus

	// taken before mu is released so changes publish in the order applied
	notifyMu  sync.Mutex
	listeners map[int]func(state.State)
	nextID    int

	loads sync.WaitGroup
}

func New(opts Options) *Store {
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		remote:    opts.Gateway,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		now:       opts.Now,
		state:     state.Default(),
		listeners: make(map[int]func(state.State)),
	}
}

// LocalOnly reports whether the store runs without a remote gateway.
func (s *Store) LocalOnly() bool { return s.remote == nil }

// Open rehydrates a local-only store from its cache.
func (s *Store) Open(context.Context) error {
	if s.remote != nil || s.cache == nil {
		return nil
	}
	p, found, err := s.cache.Load()
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	s.apply(func(cur state.State) state.State {
		return state.Reduce(cur, state.LoadData{Data: p})
	})
	logger.Debug("state restored from cache")
	return nil
}

// State returns a copy of the current state.
func (s *Store) State() state.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Store) SyncStatus() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Phase = s.phase
	st.PhaseName = s.phase.String()
	return st
}

// Subscribe registers fn for every state change. Listeners run outside
// the state lock, one change at a time; they must not call Dispatch
// synchronously.
func (s *Store) Subscribe(fn func(state.State)) (unsubscribe func()) {
	s.notifyMu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.notifyMu.Lock()
			delete(s.listeners, id)
			s.notifyMu.Unlock()
		})
	}
}

// apply runs fn under the state lock and publishes the result.
func (s *Store) apply(fn func(state.State) state.State) {
	s.mu.Lock()
	s.state = fn(s.state)
	s.publishLocked()
}

// publishLocked must be called with mu held; it releases mu.
func (s *Store) publishLocked() {
	snapshot := s.state.Clone()
	persist := s.remote == nil && s.cache != nil
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	if persist {
		if err := s.cache.Save(snapshot); err != nil {
			logger.Warn("failed to persist state", "error", err)
		}
	}
	for _, fn := range s.listeners {
		fn(snapshot.Clone())
	}
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(docstore.TimeLayout)
}

func (s *Store) localMeta() models.Meta {
	now := s.stamp()
	return models.Meta{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
}

// Bind subscribes the store to provider. Every identity change resets or
// reloads the state; a load superseded by a later change is discarded.
func (s *Store) Bind(ctx context.Context, provider session.Provider) (unbind func()) {
	return provider.Subscribe(func(id *models.Identity) {
		gen := s.begin(id)
		if id == nil {
			return
		}
		s.loads.Add(1)
		go func() {
			defer s.loads.Done()
			s.load(ctx, gen, id.ID)
		}()
	})
}

// Wait blocks until bulk loads started by Bind have finished.
func (s *Store) Wait() { s.loads.Wait() }

// SetIdentity switches the identity and, for a non-nil identity, performs
// the bulk load before returning.
func (s *Store) SetIdentity(ctx context.Context, id *models.Identity) {
	gen := s.begin(id)
	if id != nil {
		s.load(ctx, gen, id.ID)
	}
}

func (s *Store) begin(id *models.Identity) uint64 {
	s.mu.Lock()
	s.gen++
	gen := s.gen

	switch {
	case id == nil:
		s.state = state.Default()
		s.phase = Unauthenticated
	case s.state.User != nil && s.state.User.ID == id.ID:
		s.state = state.Reduce(s.state, state.SetUser{User: id})
		s.phase = Loading
	default:
		s.state = state.Reduce(state.Default(), state.SetUser{User: id})
		s.phase = Loading
	}
	if id != nil && s.remote == nil {
		s.phase = Ready
	}
	s.publishLocked()
	return gen
}

type loaded struct {
	name string
	res  gateway.SyncResult[gateway.Fill]
	err  error
}

// load fetches every collection and the settings in parallel and applies
// them as one LoadData once all have settled.
func (s *Store) load(ctx context.Context, gen uint64, owner string) {
	if s.remote == nil {
		return
	}
	start := s.now()
	names := s.remote.Collections()
	results := make([]loaded, len(names)+1)

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Go(func() {
			res, err := s.remote.Load(ctx, owner, name)
			results[i] = loaded{name: name, res: res, err: err}
		})
	}
	wg.Go(func() {
		res, err := s.remote.LoadSettings(ctx, owner)
		results[len(names)] = loaded{res: res, err: err}
	})
	wg.Wait()

	var p state.Partial
	failed := 0
	var lastErr error
	for _, r := range results {
		cause := r.err
		if cause == nil {
			cause = r.res.Err
		}
		if cause != nil {
			failed++
			lastErr = cause
		}
		switch {
		case r.err == nil && r.res.Value != nil:
			r.res.Value(&p)
		case r.name == "":
			defaults := models.DefaultUserSettings()
			p.NutritionGoals = &defaults.NutritionGoals
			p.Preferences = &defaults.Preferences
		default:
			if k, found := state.KindByCollection(r.name); found {
				k.Clear(&p)
			}
		}
	}
	s.metrics.ObserveBulkLoad(s.now().Sub(start), failed)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		logger.Debug("discarding superseded bulk load", "owner", owner)
		return
	}
	s.state = state.Reduce(s.state, state.LoadData{Data: p})
	s.phase = Ready
	s.status.LastLoadAt = s.now()
	if failed > 0 {
		s.status.LoadsDegraded++
		s.status.LastError = lastErr.Error()
		s.status.LastErrorAt = s.now()
		logger.Warn("bulk load degraded", "owner", owner, "failed", failed)
	}
	s.publishLocked()
}

type validator interface {
	Validate(state.State) error
}

// Dispatch applies a. With an identity and a remote gateway, mutating
// actions are sent to the remote first and the result applied locally
// even when the remote call failed. Validation failures reject the action
// and nothing is applied.
func (s *Store) Dispatch(ctx context.Context, a state.Action) (Outcome, error) {
	s.mu.Lock()
	cur := s.state
	gen := s.gen
	s.mu.Unlock()

	if v, isValidator := a.(validator); isValidator {
		if err := v.Validate(cur); err != nil {
			return Outcome{Action: a}, err
		}
	}

	user := cur.User
	if c, isCreation := a.(state.Creation); isCreation {
		meta := models.Meta{}
		if user == nil || s.remote == nil {
			meta = s.localMeta()
		}
		prepared, err := c.Prepared(user, meta)
		if err != nil {
			return Outcome{Action: a}, err
		}
		a = prepared
	}

	if user == nil || s.remote == nil || !mutating(a) {
		s.apply(func(st state.State) state.State { return state.Reduce(st, a) })
		s.metrics.ObserveDispatch(a.Type(), false, false)
		return Outcome{Action: a}, nil
	}

	res, err := s.remote.ForAction(ctx, user.ID, a)
	applied, cause := res.Value, res.Err
	if err != nil {
		if !errors.Is(err, gateway.ErrRemote) {
			return Outcome{Action: a}, err
		}
		applied, cause = a, err
	}
	if applied == nil {
		applied = a
	}
	if c, isCreation := applied.(state.Creation); isCreation && c.TargetID() == "" {
		if filled, err := c.Prepared(nil, s.localMeta()); err == nil {
			applied = filled
		}
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return Outcome{Action: applied, Remote: true, Err: cause}, ErrIdentityChanged
	}
	s.state = state.Reduce(s.state, applied)
	if cause != nil {
		s.status.Degraded++
		s.status.LastError = cause.Error()
		s.status.LastErrorAt = s.now()
	} else {
		s.status.Synced++
	}
	s.publishLocked()

	s.metrics.ObserveDispatch(applied.Type(), true, cause != nil)
	return Outcome{Action: applied, Remote: true, Err: cause}, nil
}

func mutating(a state.Action) bool {
	switch a.(type) {
	case state.EntityAction, state.UpdateNutritionGoals:
		return true
	}
	return false
}
