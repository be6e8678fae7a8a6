package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/habitflow/internal/docstore"
	"github.com/julianstephens/habitflow/internal/docstore/docstoretest"
	"github.com/julianstephens/habitflow/internal/docstore/sqlite"
	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/state"
)

type call struct {
	collection, op string
	failed         bool
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) ObserveCall(collection, op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{collection, op, err != nil})
}

func setupSQLite(t *testing.T) docstore.Store {
	s := sqlite.New(filepath.Join(t.TempDir(), "remote.db"))
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

func TestCreateAndGetAll(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	g := New(setupSQLite(t), Options{Reporter: rec})

	res, err := g.Todos.Create(ctx, "u1", models.Todo{Title: "Buy milk"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Degraded() {
		t.Fatalf("Create degraded: %v", res.Err)
	}
	if res.Value.ID == "" || res.Value.CreatedAt == "" {
		t.Errorf("created todo missing meta: %+v", res.Value.Meta)
	}

	if _, err := g.Todos.Create(ctx, "u1", models.Todo{Title: "Walk dog"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := g.Todos.Create(ctx, "u2", models.Todo{Title: "Not mine"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	all, err := g.Todos.GetAll(ctx, "u1")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all.Value) != 2 {
		t.Fatalf("GetAll returned %d todos, want 2", len(all.Value))
	}
	if all.Value[0].Title != "Walk dog" {
		t.Errorf("first todo = %q, want newest first", all.Value[0].Title)
	}

	asc, err := g.Todos.GetAll(ctx, "u1", Order{Field: "title", Direction: docstore.Asc})
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if asc.Value[0].Title != "Buy milk" {
		t.Errorf("ordered by title asc, first = %q", asc.Value[0].Title)
	}

	if len(rec.calls) == 0 || rec.calls[0] != (call{"todos", "create", false}) {
		t.Errorf("reporter calls = %+v", rec.calls)
	}
}

func TestGetFilteredAndGetByID(t *testing.T) {
	ctx := context.Background()
	g := New(setupSQLite(t), Options{})

	done, err := g.Todos.Create(ctx, "u1", models.Todo{Title: "done", Completed: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := g.Todos.Create(ctx, "u1", models.Todo{Title: "open"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := g.Todos.GetFiltered(ctx, "u1", map[string]any{"completed": true})
	if err != nil {
		t.Fatalf("GetFiltered: %v", err)
	}
	if len(res.Value) != 1 || res.Value[0].Title != "done" {
		t.Errorf("GetFiltered = %+v", res.Value)
	}

	got, found, err := g.Todos.GetByID(ctx, "u1", done.Value.ID)
	if err != nil || !found {
		t.Fatalf("GetByID = %v, %v", found, err)
	}
	if got.Title != "done" {
		t.Errorf("GetByID title = %q", got.Title)
	}

	_, found, err = g.Todos.GetByID(ctx, "u1", "missing")
	if err != nil || found {
		t.Errorf("GetByID(missing) = %v, %v; want not found, nil", found, err)
	}

	if _, err := g.Todos.GetFiltered(ctx, "u1", map[string]any{"bad field": 1}); !errors.Is(err, docstore.ErrInvalidField) {
		t.Errorf("bad filter field error = %v, want ErrInvalidField", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	g := New(setupSQLite(t), Options{})

	created, err := g.Goals.Create(ctx, "u1", models.Goal{Title: "Run", Progress: 20})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := created.Value.ID

	res, err := g.Goals.Update(ctx, "u1", id, models.Patch{"progress": 70})
	if err != nil || res.Degraded() {
		t.Fatalf("Update: %v / %v", err, res.Err)
	}
	if res.Value.ID != id {
		t.Errorf("Update ref id = %q, want %q", res.Value.ID, id)
	}
	got, _, _ := g.Goals.GetByID(ctx, "u1", id)
	if got.Progress != 70 || got.Title != "Run" {
		t.Errorf("after update: %+v", got)
	}

	if _, err := g.Goals.Update(ctx, "u1", id, models.Patch{"progress": 170}); !errors.Is(err, models.ErrInvalid) {
		t.Errorf("invalid update error = %v, want ErrInvalid", err)
	}
	got, _, _ = g.Goals.GetByID(ctx, "u1", id)
	if got.Progress != 70 {
		t.Errorf("invalid update was written: progress = %d", got.Progress)
	}

	for i := 0; i < 2; i++ {
		del, err := g.Goals.Delete(ctx, "u1", id)
		if err != nil || del.Degraded() || del.Value != id {
			t.Fatalf("Delete #%d = %+v, %v", i+1, del, err)
		}
	}
}

func TestOfflineFallback(t *testing.T) {
	ctx := context.Background()
	failing := &docstoretest.Failing{}
	rec := &recorder{}
	g := New(failing, Options{Policy: Offline, Reporter: rec, Now: fixedNow})

	res, err := g.Todos.Create(ctx, "u1", models.Todo{Title: "Buy milk"})
	if err != nil {
		t.Fatalf("offline Create returned error: %v", err)
	}
	if !res.Degraded() || !errors.Is(res.Err, docstoretest.ErrUnavailable) {
		t.Errorf("Create result = %+v, want degraded by ErrUnavailable", res)
	}
	if res.Value.ID == "" {
		t.Error("degraded create has no local id")
	}
	if res.Value.CreatedAt != "2026-03-01T09:00:00.000000Z" || res.Value.UpdatedAt == "" {
		t.Errorf("degraded create timestamps = %+v", res.Value.Meta)
	}

	all, err := g.Todos.GetAll(ctx, "u1")
	if err != nil || !all.Degraded() || all.Value == nil || len(all.Value) != 0 {
		t.Errorf("GetAll = %+v, %v; want degraded empty list", all, err)
	}

	upd, err := g.Todos.Update(ctx, "u1", "t1", models.Patch{"completed": true})
	if err != nil || !upd.Degraded() || upd.Value.ID != "t1" {
		t.Errorf("Update = %+v, %v", upd, err)
	}

	del, err := g.Todos.Delete(ctx, "u1", "t1")
	if err != nil || !del.Degraded() || del.Value != "t1" {
		t.Errorf("Delete = %+v, %v", del, err)
	}

	var got [][]models.Todo
	cancel, err := g.Todos.Subscribe(ctx, "u1", func(items []models.Todo) { got = append(got, items) })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()
	if len(got) != 1 || len(got[0]) != 0 {
		t.Errorf("Subscribe callbacks = %v, want one empty list", got)
	}

	for _, c := range rec.calls {
		if !c.failed {
			t.Errorf("call %+v reported as ok against failing store", c)
		}
	}
}

func TestStrictPolicy(t *testing.T) {
	ctx := context.Background()
	g := New(&docstoretest.Failing{}, Options{Policy: Strict})

	if _, err := g.Todos.Create(ctx, "u1", models.Todo{Title: "x"}); !errors.Is(err, ErrRemote) || !errors.Is(err, docstoretest.ErrUnavailable) {
		t.Errorf("strict Create error = %v", err)
	}
	if _, err := g.Todos.GetAll(ctx, "u1"); !errors.Is(err, ErrRemote) {
		t.Errorf("strict GetAll error = %v", err)
	}
	if _, err := g.Todos.Delete(ctx, "u1", "t1"); !errors.Is(err, ErrRemote) {
		t.Errorf("strict Delete error = %v", err)
	}
	if _, err := g.Todos.Subscribe(ctx, "u1", func([]models.Todo) {}); !errors.Is(err, ErrRemote) {
		t.Errorf("strict Subscribe error = %v", err)
	}
	if _, err := g.Settings.Get(ctx, "u1"); !errors.Is(err, ErrRemote) {
		t.Errorf("strict settings Get error = %v", err)
	}
}

func TestValidationBeforeWrite(t *testing.T) {
	ctx := context.Background()
	for _, policy := range []Policy{Offline, Strict} {
		t.Run(policy.String(), func(t *testing.T) {
			failing := &docstoretest.Failing{}
			g := New(failing, Options{Policy: policy})

			_, err := g.Todos.Create(ctx, "u1", models.Todo{Title: "  "})
			if !errors.Is(err, models.ErrInvalid) {
				t.Errorf("Create error = %v, want ErrInvalid", err)
			}
			if failing.Calls() != 0 {
				t.Errorf("store called %d times for an invalid record", failing.Calls())
			}
		})
	}
}

func TestNoIdentity(t *testing.T) {
	g := New(&docstoretest.Failing{}, Options{})
	if _, err := g.Todos.Create(context.Background(), "", models.Todo{Title: "x"}); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("Create without owner error = %v, want ErrNoIdentity", err)
	}
}

func TestSubscribeSeesChanges(t *testing.T) {
	ctx := context.Background()
	g := New(setupSQLite(t), Options{})

	updates := make(chan []models.Todo, 8)
	cancel, err := g.Todos.Subscribe(ctx, "u1", func(items []models.Todo) { updates <- items })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if first := <-updates; len(first) != 0 {
		t.Fatalf("initial snapshot = %v, want empty", first)
	}
	if _, err := g.Todos.Create(ctx, "u1", models.Todo{Title: "x"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	select {
	case items := <-updates:
		if len(items) != 1 {
			t.Errorf("snapshot after create has %d items, want 1", len(items))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot after create")
	}
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	g := New(setupSQLite(t), Options{})

	first, err := g.Settings.Get(ctx, "u1")
	if err != nil || first.Degraded() {
		t.Fatalf("Get: %v / %v", err, first.Err)
	}
	if first.Value.NutritionGoals != models.DefaultNutritionGoals() {
		t.Errorf("first read goals = %+v, want defaults", first.Value.NutritionGoals)
	}

	res, err := g.Settings.UpdateNutritionGoals(ctx, "u1", models.Patch{"daily_calories": 1800})
	if err != nil || res.Degraded() {
		t.Fatalf("UpdateNutritionGoals: %v / %v", err, res.Err)
	}
	want := models.DefaultNutritionGoals()
	want.DailyCalories = 1800
	if res.Value != want {
		t.Errorf("merged goals = %+v, want %+v", res.Value, want)
	}

	again, err := g.Settings.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Value.NutritionGoals != want {
		t.Errorf("stored goals = %+v, want %+v", again.Value.NutritionGoals, want)
	}
	if again.Value.Preferences.Theme != "light" {
		t.Errorf("preferences lost: %+v", again.Value.Preferences)
	}

	if _, err := g.Settings.UpdateNutritionGoals(ctx, "u1", models.Patch{"daily_calories": -5}); !errors.Is(err, models.ErrInvalid) {
		t.Errorf("negative calories error = %v, want ErrInvalid", err)
	}
}

func TestForAction(t *testing.T) {
	ctx := context.Background()
	g := New(setupSQLite(t), Options{})

	res, err := g.ForAction(ctx, "u1", state.Add(state.Todos, models.Todo{Title: "Buy milk"}))
	if err != nil || res.Degraded() {
		t.Fatalf("ForAction(add): %v / %v", err, res.Err)
	}
	add, isAdd := res.Value.(state.AddAction[models.Todo])
	if !isAdd || add.Item.ID == "" {
		t.Fatalf("ForAction(add) returned %#v, want an add carrying the stored id", res.Value)
	}

	if _, err := g.ForAction(ctx, "u1", state.Update(state.Todos, add.Item.ID, models.Patch{"completed": true})); err != nil {
		t.Fatalf("ForAction(update): %v", err)
	}
	got, _, _ := g.Todos.GetByID(ctx, "u1", add.Item.ID)
	if !got.Completed {
		t.Error("update not written")
	}

	if _, err := g.ForAction(ctx, "u1", state.Delete(state.Todos, add.Item.ID)); err != nil {
		t.Fatalf("ForAction(delete): %v", err)
	}
	if _, found, _ := g.Todos.GetByID(ctx, "u1", add.Item.ID); found {
		t.Error("delete not written")
	}

	local := state.Unknown{Name: "TOGGLE_THEME"}
	res, err = g.ForAction(ctx, "u1", local)
	if err != nil || res.Value != state.Action(local) {
		t.Errorf("ForAction(unknown) = %+v, %v", res, err)
	}
}

func TestEveryKindHasACollection(t *testing.T) {
	g := New(&docstoretest.Failing{}, Options{})
	names := map[string]bool{}
	for _, n := range g.Collections() {
		names[n] = true
	}
	for _, k := range state.Kinds() {
		if !names[k.Collection()] {
			t.Errorf("no gateway collection for %s", k.Collection())
		}
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", Offline, false},
		{"offline", Offline, false},
		{"strict", Strict, false},
		{"yolo", Offline, true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestUpdateNutritionGoalsKeepsStoredGoalsWhenReadFails(t *testing.T) {
	ctx := context.Background()
	flaky := docstoretest.NewFlaky(setupSQLite(t))
	g := New(flaky, Options{})

	if _, err := g.Settings.UpdateNutritionGoals(ctx, "u1", models.Patch{"daily_calories": 1800, "daily_protein": 120}); err != nil {
		t.Fatalf("UpdateNutritionGoals: %v", err)
	}

	flaky.FailNext("get", 1)
	res, err := g.Settings.UpdateNutritionGoals(ctx, "u1", models.Patch{"daily_water": 80})
	if err != nil {
		t.Fatalf("UpdateNutritionGoals with failed read: %v", err)
	}
	if !res.Degraded() {
		t.Error("update after a failed read is not degraded")
	}
	if res.Value.DailyWater != 80 {
		t.Errorf("returned goals = %+v, want daily_water 80", res.Value)
	}

	stored, err := g.Settings.Get(ctx, "u1")
	if err != nil || stored.Degraded() {
		t.Fatalf("Get: %v / %v", err, stored.Err)
	}
	goals := stored.Value.NutritionGoals
	if goals.DailyCalories != 1800 || goals.DailyProtein != 120 {
		t.Errorf("stored goals = %+v, want calories 1800 and protein 120 kept", goals)
	}
	if goals.DailyWater != models.DefaultNutritionGoals().DailyWater {
		t.Errorf("stored daily_water = %v, want it unwritten", goals.DailyWater)
	}

	strict := New(flaky, Options{Policy: Strict})
	flaky.FailNext("get", 1)
	if _, err := strict.Settings.UpdateNutritionGoals(ctx, "u1", models.Patch{"daily_water": 80}); !errors.Is(err, ErrRemote) {
		t.Errorf("strict update after failed read error = %v, want ErrRemote", err)
	}
}

func TestSubscribeFirstReadFails(t *testing.T) {
	ctx := context.Background()

	t.Run("offline", func(t *testing.T) {
		flaky := docstoretest.NewFlaky(setupSQLite(t))
		flaky.FailNext("list", -1)
		rec := &recorder{}
		g := New(flaky, Options{Reporter: rec})

		var calls [][]models.Todo
		cancel, err := g.Todos.Subscribe(ctx, "u1", func(items []models.Todo) { calls = append(calls, items) })
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		defer cancel()
		if len(calls) != 1 || calls[0] == nil || len(calls[0]) != 0 {
			t.Fatalf("callbacks = %v, want one empty list", calls)
		}

		flaky.FailNext("list", 0)
		if _, err := g.Todos.Create(ctx, "u1", models.Todo{Title: "x"}); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if len(calls) != 1 {
			t.Errorf("failed subscription still delivered %d callbacks", len(calls))
		}

		rec.mu.Lock()
		defer rec.mu.Unlock()
		var reported bool
		for _, c := range rec.calls {
			if c.op == "subscribe" {
				reported = true
				if !c.failed {
					t.Error("subscribe reported as ok")
				}
			}
		}
		if !reported {
			t.Error("subscribe was not reported")
		}
	})

	t.Run("strict", func(t *testing.T) {
		flaky := docstoretest.NewFlaky(setupSQLite(t))
		flaky.FailNext("list", -1)
		g := New(flaky, Options{Policy: Strict})

		called := 0
		if _, err := g.Todos.Subscribe(ctx, "u1", func([]models.Todo) { called++ }); !errors.Is(err, ErrRemote) {
			t.Errorf("Subscribe error = %v, want ErrRemote", err)
		}
		if called != 0 {
			t.Errorf("strict subscription called back %d times, want 0", called)
		}
	})
}
