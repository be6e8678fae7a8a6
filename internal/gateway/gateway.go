package gateway

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitflow/internal/docstore"
	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/state"
)

// Fill writes one loaded collection into a bulk-load payload.
type Fill func(*state.Partial)

type collection interface {
	Name() string
	Update(ctx context.Context, owner, id string, patch models.Patch) (SyncResult[UpdateRef], error)
	Delete(ctx context.Context, owner, id string) (SyncResult[string], error)
	createRecord(ctx context.Context, owner string, r models.Record) (SyncResult[models.Record], error)
	load(ctx context.Context, owner string) (SyncResult[Fill], error)
}

// Gateway holds one Collection per entity kind plus the settings gateway.
type Gateway struct {
	UserHabits          *Collection[models.UserHabit]
	HabitLogs           *Collection[models.HabitLog]
	Todos               *Collection[models.Todo]
	JournalEntries      *Collection[models.JournalEntry]
	CalendarEvents      *Collection[models.CalendarEvent]
	MealEntries         *Collection[models.MealEntry]
	WaterEntries        *Collection[models.WaterEntry]
	FinanceTransactions *Collection[models.FinanceTransaction]
	Budgets             *Collection[models.Budget]
	SchoolAssignments   *Collection[models.SchoolAssignment]
	Goals               *Collection[models.Goal]
	FutureLetters       *Collection[models.FutureLetter]
	BucketListItems     *Collection[models.BucketListItem]
	DailyReflections    *Collection[models.DailyReflection]
	Settings            *Settings

	docs   docstore.Store
	opts   Options
	byName map[string]collection
	names  []string
}

func New(docs docstore.Store, opts Options) *Gateway {
	g := &Gateway{
		docs:   docs,
		opts:   opts.withDefaults(),
		byName: make(map[string]collection),
	}
	g.UserHabits = register(g, state.UserHabits)
	g.HabitLogs = register(g, state.HabitLogs)
	g.Todos = register(g, state.Todos)
	g.JournalEntries = register(g, state.JournalEntries)
	g.CalendarEvents = register(g, state.CalendarEvents)
	g.MealEntries = register(g, state.MealEntries)
	g.WaterEntries = register(g, state.WaterEntries)
	g.FinanceTransactions = register(g, state.FinanceTransactions)
	g.Budgets = register(g, state.Budgets)
	g.SchoolAssignments = register(g, state.SchoolAssignments)
	g.Goals = register(g, state.Goals)
	g.FutureLetters = register(g, state.FutureLetters)
	g.BucketListItems = register(g, state.BucketListItems)
	g.DailyReflections = register(g, state.DailyReflections)
	g.Settings = NewSettings(docs, g.opts)
	return g
}

func register[T models.Record](g *Gateway, kind state.Kind[T]) *Collection[T] {
	c := NewCollection(kind, g.docs, g.opts)
	g.byName[kind.Collection()] = c
	g.names = append(g.names, kind.Collection())
	return c
}

func (g *Gateway) Policy() Policy { return g.opts.Policy }

// Docs returns the underlying document store.
func (g *Gateway) Docs() docstore.Store { return g.docs }

// Collections lists the collection names in registration order.
func (g *Gateway) Collections() []string {
	return append([]string(nil), g.names...)
}

// Load fetches one collection, by name, for a bulk load.
func (g *Gateway) Load(ctx context.Context, owner, name string) (SyncResult[Fill], error) {
	c, found := g.byName[name]
	if !found {
		return SyncResult[Fill]{}, fmt.Errorf("unknown collection %q", name)
	}
	return c.load(ctx, owner)
}

// LoadSettings fetches the settings singleton for a bulk load.
func (g *Gateway) LoadSettings(ctx context.Context, owner string) (SyncResult[Fill], error) {
	res, err := g.Settings.Get(ctx, owner)
	if err != nil {
		return SyncResult[Fill]{}, err
	}
	settings := res.Value
	fill := func(p *state.Partial) {
		goals, prefs := settings.NutritionGoals, settings.Preferences
		p.NutritionGoals = &goals
		p.Preferences = &prefs
	}
	return SyncResult[Fill]{Value: fill, Err: res.Err}, nil
}

// ForAction performs the remote call matching a and returns the action to
// apply locally. For adds that is the add carrying the stored record.
// Actions with no remote counterpart are returned unchanged.
func (g *Gateway) ForAction(ctx context.Context, owner string, a state.Action) (SyncResult[state.Action], error) {
	switch act := a.(type) {
	case state.Creation:
		c, err := g.lookup(act)
		if err != nil {
			return ok(a), err
		}
		res, err := c.createRecord(ctx, owner, act.Record())
		if err != nil {
			return ok(a), err
		}
		next, _ := act.WithRecord(res.Value)
		return SyncResult[state.Action]{Value: next, Err: res.Err}, nil

	case state.Modification:
		c, err := g.lookup(act)
		if err != nil {
			return ok(a), err
		}
		res, err := c.Update(ctx, owner, act.TargetID(), act.Patch())
		return SyncResult[state.Action]{Value: a, Err: res.Err}, err

	case state.EntityAction:
		if act.Op() != state.OpDelete {
			return ok(a), nil
		}
		c, err := g.lookup(act)
		if err != nil {
			return ok(a), err
		}
		res, err := c.Delete(ctx, owner, act.TargetID())
		return SyncResult[state.Action]{Value: a, Err: res.Err}, err

	case state.UpdateNutritionGoals:
		res, err := g.Settings.UpdateNutritionGoals(ctx, owner, act.Updates)
		return SyncResult[state.Action]{Value: a, Err: res.Err}, err

	default:
		return ok(a), nil
	}
}

func (g *Gateway) lookup(a state.EntityAction) (collection, error) {
	c, found := g.byName[a.Collection()]
	if !found {
		return nil, fmt.Errorf("no remote collection for %s", a.Type())
	}
	return c, nil
}
