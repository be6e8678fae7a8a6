package state

import (
	"fmt"

	"github.com/julianstephens/habitflow/internal/models"
)

// Action is a request to change State. The set of actions is closed: every
// implementation lives in this package.
type Action interface {
	Type() string
	payload() any
}

// Op is the kind of change an EntityAction makes.
type Op int

const (
	OpAdd Op = iota + 1
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// EntityAction is an add, update or delete against one kind's collection.
type EntityAction interface {
	Action
	Collection() string
	Op() Op
	TargetID() string
	// Validate reports whether applying the action to s would leave a
	// record that fails validation.
	Validate(s State) error
	reduce(State) State
}

// Creation is implemented by every Add action.
type Creation interface {
	EntityAction
	Record() models.Record
	// Prepared applies the kind's creation defaults and fills any empty
	// id or timestamp from meta.
	Prepared(user *models.Identity, meta models.Meta) (Creation, error)
	// WithRecord swaps the payload for r when r has the same record type.
	WithRecord(r models.Record) (Creation, bool)
}

// Modification is implemented by every Update action.
type Modification interface {
	EntityAction
	Patch() models.Patch
}

type AddAction[T models.Record] struct {
	Kind Kind[T]
	Item T
}

// Add appends item to the kind's collection.
func Add[T models.Record](kind Kind[T], item T) AddAction[T] {
	return AddAction[T]{Kind: kind, Item: item}
}

func (a AddAction[T]) Type() string          { return "ADD_" + a.Kind.tag }
func (a AddAction[T]) Collection() string    { return a.Kind.collection }
func (a AddAction[T]) Op() Op                { return OpAdd }
func (a AddAction[T]) TargetID() string      { return a.Item.GetID() }
func (a AddAction[T]) Record() models.Record { return a.Item }
func (a AddAction[T]) Validate(State) error  { return a.Item.Validate() }
func (a AddAction[T]) payload() any          { return a.Item }

func (a AddAction[T]) Prepared(user *models.Identity, meta models.Meta) (Creation, error) {
	item, err := models.FillMeta(a.Kind.Prepare(a.Item, user), meta)
	if err != nil {
		return a, err
	}
	a.Item = item
	return a, nil
}

func (a AddAction[T]) WithRecord(r models.Record) (Creation, bool) {
	item, ok := r.(T)
	if !ok {
		return a, false
	}
	a.Item = item
	return a, true
}

func (a AddAction[T]) reduce(s State) State {
	if !a.Kind.valid() {
		return s
	}
	items := *a.Kind.field(&s)
	*a.Kind.field(&s) = append(items[:len(items):len(items)], a.Item)
	return s
}

type UpdateAction[T models.Record] struct {
	Kind    Kind[T]
	ID      string
	Updates models.Patch
}

// Update shallow-merges updates into the record with the given id.
func Update[T models.Record](kind Kind[T], id string, updates models.Patch) UpdateAction[T] {
	return UpdateAction[T]{Kind: kind, ID: id, Updates: updates}
}

func (a UpdateAction[T]) Type() string        { return "UPDATE_" + a.Kind.tag }
func (a UpdateAction[T]) Collection() string  { return a.Kind.collection }
func (a UpdateAction[T]) Op() Op              { return OpUpdate }
func (a UpdateAction[T]) TargetID() string    { return a.ID }
func (a UpdateAction[T]) Patch() models.Patch { return a.Updates }

func (a UpdateAction[T]) payload() any {
	updates := a.Updates
	if updates == nil {
		updates = models.Patch{}
	}
	return updatePayload{ID: a.ID, Updates: updates}
}

func (a UpdateAction[T]) Validate(s State) error {
	current, ok := a.Kind.Find(s, a.ID)
	if !ok {
		return nil
	}
	merged, err := models.Apply(current, a.Updates)
	if err != nil {
		return err
	}
	return merged.Validate()
}

func (a UpdateAction[T]) reduce(s State) State {
	if !a.Kind.valid() {
		return s
	}
	items := *a.Kind.field(&s)
	for i, item := range items {
		if item.GetID() != a.ID {
			continue
		}
		merged, err := models.Apply(item, a.Updates)
		if err != nil {
			return s
		}
		next := append([]T(nil), items...)
		next[i] = merged
		*a.Kind.field(&s) = next
		return s
	}
	return s
}

type DeleteAction[T models.Record] struct {
	Kind Kind[T]
	ID   string
}

// Delete removes the record with the given id, if present.
func Delete[T models.Record](kind Kind[T], id string) DeleteAction[T] {
	return DeleteAction[T]{Kind: kind, ID: id}
}

func (a DeleteAction[T]) Type() string         { return "DELETE_" + a.Kind.tag }
func (a DeleteAction[T]) Collection() string   { return a.Kind.collection }
func (a DeleteAction[T]) Op() Op               { return OpDelete }
func (a DeleteAction[T]) TargetID() string     { return a.ID }
func (a DeleteAction[T]) Validate(State) error { return nil }
func (a DeleteAction[T]) payload() any         { return a.ID }

func (a DeleteAction[T]) reduce(s State) State {
	if !a.Kind.valid() {
		return s
	}
	items := *a.Kind.field(&s)
	next := make([]T, 0, len(items))
	for _, item := range items {
		if item.GetID() != a.ID {
			next = append(next, item)
		}
	}
	if len(next) == len(items) {
		return s
	}
	*a.Kind.field(&s) = next
	return s
}

// SetUser replaces the current identity; nil means signed out.
type SetUser struct {
	User *models.Identity
}

func (SetUser) Type() string   { return "SET_USER" }
func (a SetUser) payload() any { return a.User }

// LoadData merges a partial state in one step.
type LoadData struct {
	Data Partial
}

func (LoadData) Type() string   { return "LOAD_DATA" }
func (a LoadData) payload() any { return a.Data }

// UpdateNutritionGoals shallow-merges updates into the nutrition goals.
type UpdateNutritionGoals struct {
	Updates models.Patch
}

func (UpdateNutritionGoals) Type() string { return "UPDATE_NUTRITION_GOALS" }

func (a UpdateNutritionGoals) payload() any {
	if a.Updates == nil {
		return models.Patch{}
	}
	return a.Updates
}

// Validate reports whether the merged goals would be valid.
func (a UpdateNutritionGoals) Validate(s State) error {
	merged, err := models.Apply(s.NutritionGoals, a.Updates)
	if err != nil {
		return err
	}
	return merged.Validate()
}

// Unknown is an action type the reducer does not recognise. It is kept so
// decoding never fails on a well-formed envelope.
type Unknown struct {
	Name string
}

func (a Unknown) Type() string { return a.Name }
func (Unknown) payload() any   { return nil }

type updatePayload struct {
	ID      string       `json:"id"`
	Updates models.Patch `json:"updates"`
}

// Describe renders a for logs.
func Describe(a Action) string {
	if a == nil {
		return "<nil>"
	}
	if e, ok := a.(EntityAction); ok && e.TargetID() != "" {
		return fmt.Sprintf("%s(%s)", a.Type(), e.TargetID())
	}
	return a.Type()
}
