package state

import "github.com/julianstephens/habitflow/internal/models"

// Reduce applies action to s and returns the next state. It is total and
// pure: unknown or malformed actions return s unchanged, and the collections
// of s are never modified.
func Reduce(s State, action Action) State {
	switch a := action.(type) {
	case nil:
		return s
	case SetUser:
		if a.User != nil {
			u := *a.User
			s.User = &u
		} else {
			s.User = nil
		}
		return s
	case LoadData:
		return s.merge(a.Data)
	case UpdateNutritionGoals:
		goals, err := models.Apply(s.NutritionGoals, a.Updates)
		if err != nil {
			return s
		}
		s.NutritionGoals = goals
		return s
	case EntityAction:
		return a.reduce(s)
	case Unknown:
		return s
	default:
		return s
	}
}
