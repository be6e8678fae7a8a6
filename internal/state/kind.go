package state

import (
	"encoding/json"
	"fmt"

	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/models"
)

// Kind describes one per-user entity kind: its remote collection name, the
// tag used in action type names, and where its records live in State and
// Partial.
type Kind[T models.Record] struct {
	collection string
	tag        string
	orderBy    string
	field      func(*State) *[]T
	partial    func(*Partial) *[]T
	prepare    func(T, *models.Identity) T
}

// AnyKind is a Kind with its record type erased.
type AnyKind interface {
	Collection() string
	Tag() string
	OrderBy() string
	Clear(*Partial)

	reset(*State)
	copyInto(dst *State, src State)
	snapshot(*Partial, State)
	merge(*State, Partial)
	decodeAdd(json.RawMessage) (Action, error)
	update(id string, patch models.Patch) Action
	delete(id string) Action
}

func newKind[T models.Record](collection, tag string, field func(*State) *[]T, partial func(*Partial) *[]T) Kind[T] {
	return Kind[T]{
		collection: collection,
		tag:        tag,
		orderBy:    constants.FieldCreatedAt,
		field:      field,
		partial:    partial,
	}
}

func (k Kind[T]) withPrepare(fn func(T, *models.Identity) T) Kind[T] {
	k.prepare = fn
	return k
}

func (k Kind[T]) Collection() string { return k.collection }
func (k Kind[T]) Tag() string        { return k.tag }
func (k Kind[T]) OrderBy() string    { return k.orderBy }

func (k Kind[T]) valid() bool { return k.field != nil }

// Items returns the kind's collection in s.
func (k Kind[T]) Items(s State) []T {
	if !k.valid() {
		return nil
	}
	return *k.field(&s)
}

// Find returns the record with the given id.
func (k Kind[T]) Find(s State, id string) (T, bool) {
	for _, item := range k.Items(s) {
		if item.GetID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Prepare fills kind-specific defaults on a record about to be created.
func (k Kind[T]) Prepare(item T, user *models.Identity) T {
	if k.prepare == nil {
		return item
	}
	return k.prepare(item, user)
}

// Fill stores items as the kind's collection in p.
func (k Kind[T]) Fill(p *Partial, items []T) {
	if !k.valid() {
		return
	}
	if items == nil {
		items = []T{}
	}
	*k.partial(p) = items
}

// Clear sets the kind's collection in p to an empty slice, so a LoadData
// carrying p empties it.
func (k Kind[T]) Clear(p *Partial) { *k.partial(p) = []T{} }

func (k Kind[T]) reset(s *State) { *k.field(s) = []T{} }

func (k Kind[T]) copyInto(dst *State, src State) {
	*k.field(dst) = append([]T{}, *k.field(&src)...)
}

func (k Kind[T]) snapshot(p *Partial, s State) { *k.partial(p) = *k.field(&s) }

func (k Kind[T]) merge(s *State, p Partial) {
	if items := *k.partial(&p); items != nil {
		*k.field(s) = items
	}
}

func (k Kind[T]) decodeAdd(raw json.RawMessage) (Action, error) {
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", k.tag, err)
	}
	return Add(k, item), nil
}

func (k Kind[T]) update(id string, patch models.Patch) Action { return Update(k, id, patch) }
func (k Kind[T]) delete(id string) Action                     { return Delete(k, id) }

var (
	UserHabits = newKind("userHabits", "USER_HABIT",
		func(s *State) *[]models.UserHabit { return &s.UserHabits },
		func(p *Partial) *[]models.UserHabit { return &p.UserHabits }).
		withPrepare(func(h models.UserHabit, _ *models.Identity) models.UserHabit {
			if h.Title == "" {
				if tmpl, ok := models.FindCatalogHabit(h.HabitID); ok {
					h.Title = tmpl.Title
				}
			}
			return h
		})
	HabitLogs = newKind("habitLogs", "HABIT_LOG",
		func(s *State) *[]models.HabitLog { return &s.HabitLogs },
		func(p *Partial) *[]models.HabitLog { return &p.HabitLogs })
	Todos = newKind("todos", "TODO",
		func(s *State) *[]models.Todo { return &s.Todos },
		func(p *Partial) *[]models.Todo { return &p.Todos })
	JournalEntries = newKind("journalEntries", "JOURNAL_ENTRY",
		func(s *State) *[]models.JournalEntry { return &s.JournalEntries },
		func(p *Partial) *[]models.JournalEntry { return &p.JournalEntries }).
		withPrepare(func(e models.JournalEntry, user *models.Identity) models.JournalEntry {
			if e.CreatedBy == "" && user != nil {
				e.CreatedBy = user.Email
			}
			return e
		})
	CalendarEvents = newKind("calendarEvents", "CALENDAR_EVENT",
		func(s *State) *[]models.CalendarEvent { return &s.CalendarEvents },
		func(p *Partial) *[]models.CalendarEvent { return &p.CalendarEvents }).
		withPrepare(func(e models.CalendarEvent, _ *models.Identity) models.CalendarEvent {
			if e.Color == "" {
				e.Color = constants.DefaultEventColor
			}
			return e
		})
	MealEntries = newKind("mealEntries", "MEAL_ENTRY",
		func(s *State) *[]models.MealEntry { return &s.MealEntries },
		func(p *Partial) *[]models.MealEntry { return &p.MealEntries })
	WaterEntries = newKind("waterEntries", "WATER_ENTRY",
		func(s *State) *[]models.WaterEntry { return &s.WaterEntries },
		func(p *Partial) *[]models.WaterEntry { return &p.WaterEntries })
	FinanceTransactions = newKind("financeTransactions", "FINANCE_TRANSACTION",
		func(s *State) *[]models.FinanceTransaction { return &s.FinanceTransactions },
		func(p *Partial) *[]models.FinanceTransaction { return &p.FinanceTransactions })
	Budgets = newKind("budgets", "BUDGET",
		func(s *State) *[]models.Budget { return &s.Budgets },
		func(p *Partial) *[]models.Budget { return &p.Budgets })
	SchoolAssignments = newKind("schoolAssignments", "SCHOOL_ASSIGNMENT",
		func(s *State) *[]models.SchoolAssignment { return &s.SchoolAssignments },
		func(p *Partial) *[]models.SchoolAssignment { return &p.SchoolAssignments })
	Goals = newKind("goals", "GOAL",
		func(s *State) *[]models.Goal { return &s.Goals },
		func(p *Partial) *[]models.Goal { return &p.Goals }).
		withPrepare(func(g models.Goal, _ *models.Identity) models.Goal {
			if g.Status == "" {
				g.Status = models.GoalActive
			}
			return g
		})
	FutureLetters = newKind("futureLetters", "FUTURE_LETTER",
		func(s *State) *[]models.FutureLetter { return &s.FutureLetters },
		func(p *Partial) *[]models.FutureLetter { return &p.FutureLetters })
	BucketListItems = newKind("bucketListItems", "BUCKET_LIST_ITEM",
		func(s *State) *[]models.BucketListItem { return &s.BucketListItems },
		func(p *Partial) *[]models.BucketListItem { return &p.BucketListItems })
	DailyReflections = newKind("dailyReflections", "DAILY_REFLECTION",
		func(s *State) *[]models.DailyReflection { return &s.DailyReflections },
		func(p *Partial) *[]models.DailyReflection { return &p.DailyReflections })
)

var kinds = []AnyKind{
	UserHabits,
	HabitLogs,
	Todos,
	JournalEntries,
	CalendarEvents,
	MealEntries,
	WaterEntries,
	FinanceTransactions,
	Budgets,
	SchoolAssignments,
	Goals,
	FutureLetters,
	BucketListItems,
	DailyReflections,
}

// Kinds returns every per-user entity kind.
func Kinds() []AnyKind {
	return append([]AnyKind(nil), kinds...)
}

// KindByCollection looks up a kind by its collection name.
func KindByCollection(name string) (AnyKind, bool) {
	for _, k := range kinds {
		if k.Collection() == name {
			return k, true
		}
	}
	return nil, false
}

func kindByTag(tag string) (AnyKind, bool) {
	for _, k := range kinds {
		if k.Tag() == tag {
			return k, true
		}
	}
	return nil, false
}
