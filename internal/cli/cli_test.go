package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/habitflow/internal/backup"
	"github.com/julianstephens/habitflow/internal/config"
	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/session"
	"github.com/julianstephens/habitflow/internal/state"
)

type runner interface {
	Run(ctx *Context) error
}

func setupLocal(t *testing.T, dir string) (*Context, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	ctx := &Context{
		Config: config.Config{
			DataDir:    dir,
			Policy:     "offline",
			SessionTTL: time.Hour,
		},
		Out: out,
	}
	t.Cleanup(func() { ctx.Close() })
	return ctx, out
}

func setupRemote(t *testing.T, remote string) (*Context, *bytes.Buffer) {
	t.Helper()
	ctx, out := setupLocal(t, t.TempDir())
	ctx.Config.Remote = remote
	ctx.Config.JWTSecret = "test-secret-test-secret-test-secret"
	return ctx, out
}

func mustRun(t *testing.T, ctx *Context, cmds ...runner) {
	t.Helper()
	for _, cmd := range cmds {
		if err := cmd.Run(ctx); err != nil {
			t.Fatalf("%T: %v", cmd, err)
		}
	}
}

func TestTodoCommands(t *testing.T) {
	ctx, out := setupLocal(t, t.TempDir())

	mustRun(t, ctx,
		&TodoAddCmd{Title: "Buy milk", Priority: "high", Due: "2026-10-20"},
		&TodoAddCmd{Title: "Call mom", Priority: "low"},
	)
	todos := ctx.store.State().Todos
	if len(todos) != 2 {
		t.Fatalf("got %d todos, want 2", len(todos))
	}

	mustRun(t, ctx, &TodoDoneCmd{ID: todos[0].ID[:6]})
	if !ctx.store.State().Todos[0].Completed {
		t.Error("todo not completed")
	}

	out.Reset()
	mustRun(t, ctx, &TodoListCmd{})
	if strings.Contains(out.String(), "Buy milk") || !strings.Contains(out.String(), "Call mom") {
		t.Errorf("list without --all:\n%s", out.String())
	}
	out.Reset()
	mustRun(t, ctx, &TodoListCmd{All: true})
	if !strings.Contains(out.String(), "[x] ") {
		t.Errorf("list --all does not show the completed todo:\n%s", out.String())
	}

	mustRun(t, ctx, &TodoUndoCmd{ID: todos[0].ID}, &TodoDeleteCmd{ID: todos[1].ID})
	got := ctx.store.State().Todos
	if len(got) != 1 || got[0].Completed {
		t.Errorf("todos = %+v", got)
	}
}

func TestTodoAddRejectsInvalid(t *testing.T) {
	ctx, _ := setupLocal(t, t.TempDir())

	if err := (&TodoAddCmd{Title: "  "}).Run(ctx); !errors.Is(err, models.ErrInvalid) {
		t.Errorf("blank title: error = %v, want ErrInvalid", err)
	}
	if err := (&TodoAddCmd{Title: "x", Due: "next week"}).Run(ctx); err == nil {
		t.Error("expected error for bad due date")
	}
	if err := (&TodoDoneCmd{ID: "missing"}).Run(ctx); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestLocalStatePersists(t *testing.T) {
	dir := t.TempDir()
	first, _ := setupLocal(t, dir)
	mustRun(t, first, &JournalAddCmd{Content: []string{"dear", "diary"}, Mood: "calm"})
	first.Close()

	second, out := setupLocal(t, dir)
	mustRun(t, second, &JournalListCmd{Limit: 5})
	if !strings.Contains(out.String(), "dear diary") || !strings.Contains(out.String(), "(calm)") {
		t.Errorf("journal list after reopen:\n%s", out.String())
	}
}

func TestGoalCommands(t *testing.T) {
	ctx, out := setupLocal(t, t.TempDir())

	mustRun(t, ctx, &GoalAddCmd{Title: "Marathon", Milestones: []string{"10k", "Half"}})
	id := ctx.store.State().Goals[0].ID

	mustRun(t, ctx, &GoalToggleCmd{ID: id, Milestone: 1})
	g := ctx.store.State().Goals[0]
	if !g.Milestones[0].Completed || g.Progress != 50 {
		t.Errorf("after toggle: %+v", g)
	}

	mustRun(t, ctx, &GoalMilestoneCmd{ID: id, Title: "Full"})
	if g := ctx.store.State().Goals[0]; len(g.Milestones) != 3 || g.Progress != 33 {
		t.Errorf("after milestone: progress %d, %d milestones", g.Progress, len(g.Milestones))
	}

	if err := (&GoalToggleCmd{ID: id, Milestone: 9}).Run(ctx); err == nil {
		t.Error("expected error for milestone out of range")
	}
	if err := (&GoalProgressCmd{ID: id, Percent: 150}).Run(ctx); !errors.Is(err, models.ErrInvalid) {
		t.Errorf("progress 150: error = %v, want ErrInvalid", err)
	}

	mustRun(t, ctx, &GoalProgressCmd{ID: id, Percent: 100})
	if g := ctx.store.State().Goals[0]; g.Status != models.GoalCompleted {
		t.Errorf("status = %q, want completed", g.Status)
	}

	out.Reset()
	mustRun(t, ctx, &GoalListCmd{})
	if !strings.Contains(out.String(), "Marathon [completed]") {
		t.Errorf("goal list:\n%s", out.String())
	}

	mustRun(t, ctx, &GoalDeleteCmd{ID: id})
	if len(ctx.store.State().Goals) != 0 {
		t.Error("goal not deleted")
	}
}

func TestHabitCommands(t *testing.T) {
	ctx, out := setupLocal(t, t.TempDir())
	habit := models.Catalog()[0]

	mustRun(t, ctx, &HabitAdoptCmd{HabitID: habit.ID, Frequency: "weekly", Days: "mon,Wed,5", Time: "07:30"})
	uh := ctx.store.State().UserHabits[0]
	if uh.Title != habit.Title || len(uh.Schedule.Days) != 3 || uh.Schedule.Days[1] != 3 {
		t.Errorf("adopted habit = %+v", uh)
	}
	if err := (&HabitAdoptCmd{HabitID: habit.ID, Frequency: "daily"}).Run(ctx); err == nil {
		t.Error("expected error adopting the same habit twice")
	}
	if err := (&HabitAdoptCmd{HabitID: "habit-404", Frequency: "daily"}).Run(ctx); err == nil {
		t.Error("expected error for unknown catalog habit")
	}

	// by tracked habit id prefix, then again by catalog id
	mustRun(t, ctx, &HabitLogCmd{Habit: uh.ID[:8], Date: "today"})
	if err := (&HabitLogCmd{Habit: habit.ID, Date: "today"}).Run(ctx); err == nil {
		t.Error("expected error logging the same day twice")
	}
	logs := ctx.store.State().HabitLogs
	if len(logs) != 1 || logs[0].HabitID != habit.ID || !logs[0].Completed {
		t.Errorf("logs = %+v", logs)
	}

	out.Reset()
	mustRun(t, ctx, &HabitListCmd{})
	if !strings.Contains(out.String(), "[x]") {
		t.Errorf("habit list does not show today's completion:\n%s", out.String())
	}
}

func TestNutritionCommands(t *testing.T) {
	ctx, out := setupLocal(t, t.TempDir())
	cal := 1800.0

	mustRun(t, ctx,
		&NutritionSetCmd{Calories: &cal, WaterUnit: "ml"},
		&MealAddCmd{Name: "Oats", Type: "breakfast", Calories: 350, Protein: 12},
		&WaterAddCmd{Amount: 500},
	)
	st := ctx.store.State()
	if st.NutritionGoals.DailyCalories != 1800 || st.NutritionGoals.DailyProtein != models.DefaultNutritionGoals().DailyProtein {
		t.Errorf("goals = %+v", st.NutritionGoals)
	}
	if st.WaterEntries[0].Unit != "ml" {
		t.Errorf("water unit = %q, want the goal unit", st.WaterEntries[0].Unit)
	}
	if err := (&MealAddCmd{Name: "x", Type: "brunch"}).Validate(); err == nil {
		t.Error("expected error for unknown meal type")
	}

	out.Reset()
	mustRun(t, ctx, &NutritionShowCmd{Date: "today"})
	for _, want := range []string{"350 / 1800", "500.0 / "} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("nutrition show missing %q:\n%s", want, out.String())
		}
	}
}

func TestFinanceCommands(t *testing.T) {
	ctx, out := setupLocal(t, t.TempDir())

	mustRun(t, ctx,
		&FinanceAddCmd{Type: "income", Amount: 1000, Category: "job", Date: "2026-10-01"},
		&FinanceAddCmd{Type: "expense", Amount: 300, Category: "food", Date: "2026-10-02"},
		&FinanceAddCmd{Type: "expense", Amount: 50, Category: "food", Date: "2026-09-30"},
		&EntityAddCmd{Kind: "budgets", Fields: `{"category":"Food","limit":200,"month":"2026-10"}`},
	)
	if c := ctx.store.State().FinanceTransactions[0].Category; c != "Job" {
		t.Errorf("category = %q, want the canonical name", c)
	}

	out.Reset()
	mustRun(t, ctx, &FinanceSummaryCmd{Month: "2026-10"})
	for _, want := range []string{"1000.00", "300.00", "700.00", "over budget"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("summary missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	mustRun(t, ctx, &FinanceListCmd{Month: "2026-09"})
	if lines := strings.Count(out.String(), "\n"); lines != 1 {
		t.Errorf("list --month 2026-09 printed %d lines:\n%s", lines, out.String())
	}
}

func TestLetterCommands(t *testing.T) {
	ctx, out := setupLocal(t, t.TempDir())

	mustRun(t, ctx,
		&LetterAddCmd{Unlock: "2020-01-01", Content: []string{"past", "me"}, Title: "Old"},
		&LetterAddCmd{Unlock: "2999-01-01", Content: []string{"secret"}},
	)
	out.Reset()
	mustRun(t, ctx, &LetterListCmd{})
	s := out.String()
	if !strings.Contains(s, "past me") || strings.Contains(s, "secret") || !strings.Contains(s, "sealed until 2999-01-01") {
		t.Errorf("letter list:\n%s", s)
	}
}

func TestEntityCommands(t *testing.T) {
	ctx, out := setupLocal(t, t.TempDir())

	mustRun(t, ctx, &EntityAddCmd{Kind: "calendarEvents", Fields: `{"title":"Dentist","start_date":"2026-11-02"}`})
	events := ctx.store.State().CalendarEvents
	if len(events) != 1 || events[0].Color != "blue" {
		t.Fatalf("events = %+v", events)
	}

	mustRun(t, ctx, &EntityUpdateCmd{Kind: "CALENDAR_EVENT", ID: events[0].ID[:8], Fields: `{"location":"Main St"}`})
	if loc := ctx.store.State().CalendarEvents[0].Location; loc != "Main St" {
		t.Errorf("location = %q", loc)
	}

	out.Reset()
	mustRun(t, ctx, &EntityListCmd{Kind: "calendarevents"})
	var items []map[string]any
	if err := json.Unmarshal(out.Bytes(), &items); err != nil || len(items) != 1 {
		t.Fatalf("entity list output %q: %v", out.String(), err)
	}

	mustRun(t, ctx, &EntityDeleteCmd{Kind: "calendarEvents", ID: events[0].ID})
	if len(ctx.store.State().CalendarEvents) != 0 {
		t.Error("event not deleted")
	}

	tests := []struct {
		name string
		cmd  runner
	}{
		{"unknown kind", &EntityAddCmd{Kind: "widgets", Fields: `{}`}},
		{"bad json", &EntityAddCmd{Kind: "budgets", Fields: `[1,2]`}},
		{"invalid record", &EntityAddCmd{Kind: "budgets", Fields: `{"limit":5}`}},
		{"unknown id", &EntityDeleteCmd{Kind: "budgets", ID: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cmd.Run(ctx); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDispatchCmd(t *testing.T) {
	ctx, out := setupLocal(t, t.TempDir())

	mustRun(t, ctx, &DispatchCmd{Action: `{"type":"ADD_TODO","payload":{"title":"From JSON"}}`})
	if todos := ctx.store.State().Todos; len(todos) != 1 || todos[0].Title != "From JSON" {
		t.Errorf("todos = %+v", todos)
	}
	var res dispatchResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil || res.Type != "ADD_TODO" || res.Remote {
		t.Errorf("result %q: %v", out.String(), err)
	}

	if err := (&DispatchCmd{Action: `{"payload":{}}`}).Run(ctx); !errors.Is(err, state.ErrMalformed) {
		t.Errorf("missing type: error = %v, want ErrMalformed", err)
	}
}

func TestRemoteRequiresSignIn(t *testing.T) {
	gokeyring.MockInit()
	ctx, _ := setupRemote(t, filepath.Join(t.TempDir(), "remote.db"))

	if err := (&TodoAddCmd{Title: "x"}).Run(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("error = %v, want ErrNotSignedIn", err)
	}
	if err := (&WhoamiCmd{}).Run(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("whoami error = %v, want ErrNotSignedIn", err)
	}
}

func TestRemoteSession(t *testing.T) {
	gokeyring.MockInit()
	remote := filepath.Join(t.TempDir(), "remote.db")

	first, out := setupRemote(t, remote)
	mustRun(t, first,
		&SignupCmd{Email: "ada@example.com", Name: "Ada", Password: "correct horse"},
		&TodoAddCmd{Title: "Synced todo", Priority: "medium"},
	)
	if !strings.Contains(out.String(), "Created account for ada@example.com") {
		t.Errorf("signup output:\n%s", out.String())
	}
	first.Close()

	// a new process restores the session from the keyring and loads remotely
	second, out := setupRemote(t, remote)
	mustRun(t, second, &TodoListCmd{}, &WhoamiCmd{})
	if !strings.Contains(out.String(), "Synced todo") || !strings.Contains(out.String(), "Ada <ada@example.com>") {
		t.Errorf("second session output:\n%s", out.String())
	}

	mustRun(t, second, &LogoutCmd{})
	second.Close()

	third, _ := setupRemote(t, remote)
	if err := (&TodoListCmd{}).Run(third); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("after logout: error = %v, want ErrNotSignedIn", err)
	}
	mustRun(t, third, &LoginCmd{Email: "ADA@example.com", Password: "correct horse"})
}

func TestPasswdCommand(t *testing.T) {
	gokeyring.MockInit()
	remote := filepath.Join(t.TempDir(), "remote.db")

	ctx, out := setupRemote(t, remote)
	if err := (&PasswdCmd{Password: "correct horse", NewPassword: "battery staple"}).Run(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("passwd while signed out: error = %v, want ErrNotSignedIn", err)
	}

	mustRun(t, ctx, &SignupCmd{Email: "ada@example.com", Password: "correct horse"})
	if err := (&PasswdCmd{Password: "wrong horse", NewPassword: "battery staple"}).Run(ctx); !errors.Is(err, session.ErrInvalidCredentials) {
		t.Errorf("wrong current password: error = %v, want ErrInvalidCredentials", err)
	}
	if err := (&PasswdCmd{Password: "correct horse", NewPassword: "short"}).Run(ctx); !errors.Is(err, session.ErrWeakPassword) {
		t.Errorf("weak new password: error = %v, want ErrWeakPassword", err)
	}
	mustRun(t, ctx, &PasswdCmd{Password: "correct horse", NewPassword: "battery staple"})
	if !strings.Contains(out.String(), "Password changed for ada@example.com") {
		t.Errorf("passwd output:\n%s", out.String())
	}

	out.Reset()
	mustRun(t, ctx, &WhoamiCmd{Token: true})
	if tok := strings.TrimSpace(out.String()); strings.Count(tok, ".") != 2 {
		t.Errorf("whoami --token printed %q, want a JWT", tok)
	}

	mustRun(t, ctx, &LogoutCmd{})
	if err := (&LoginCmd{Email: "ada@example.com", Password: "correct horse"}).Run(ctx); !errors.Is(err, session.ErrInvalidCredentials) {
		t.Errorf("login with old password: error = %v, want ErrInvalidCredentials", err)
	}
	mustRun(t, ctx, &LoginCmd{Email: "ada@example.com", Password: "battery staple"})
}

func TestStatsCommand(t *testing.T) {
	ctx, out := setupLocal(t, t.TempDir())
	mustRun(t, ctx,
		&TodoAddCmd{Title: "Buy milk", Priority: "medium"},
		&TodoAddCmd{Title: "Call mom", Priority: "medium"},
		&JournalAddCmd{Content: []string{"Good", "day"}},
	)
	mustRun(t, ctx, &TodoDoneCmd{ID: ctx.store.State().Todos[0].ID})

	out.Reset()
	mustRun(t, ctx, &StatsCmd{JSON: true})
	var st state.Stats
	if err := json.Unmarshal(out.Bytes(), &st); err != nil {
		t.Fatalf("stats output %q: %v", out.String(), err)
	}
	if st.TasksCompleted != 1 || st.JournalEntries != 1 || st.Level != nil {
		t.Errorf("stats = %+v", st)
	}

	out.Reset()
	mustRun(t, ctx, &StatsCmd{})
	if !strings.Contains(out.String(), "Tasks done:        1") {
		t.Errorf("stats output:\n%s", out.String())
	}
}

func TestLocalOnlyRejectsAccounts(t *testing.T) {
	ctx, _ := setupLocal(t, t.TempDir())
	if err := (&LoginCmd{Email: "a@b.c", Password: "x"}).Run(ctx); !errors.Is(err, ErrLocalOnly) {
		t.Errorf("error = %v, want ErrLocalOnly", err)
	}
	if err := (&MigrateCmd{}).Run(ctx); !errors.Is(err, ErrLocalOnly) {
		t.Errorf("migrate error = %v, want ErrLocalOnly", err)
	}
}

func TestResolve(t *testing.T) {
	items := []models.Todo{
		{Meta: models.Meta{ID: "abc123"}},
		{Meta: models.Meta{ID: "abd456"}},
	}
	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"abc123", "abc123", false},
		{"abd", "abd456", false},
		{"ab", "", true},
		{"zzz", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := resolve(items, tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolve(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			}
			if got.ID != tt.want {
				t.Errorf("resolve(%q) = %q, want %q", tt.ref, got.ID, tt.want)
			}
		})
	}
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"mon,wednesday, Fri", []int{1, 3, 5}, false},
		{"0,6", []int{0, 6}, false},
		{"7", nil, true},
		{"someday", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDays(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDays(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseDays(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseDays(%q) = %v, want %v", tt.in, got, tt.want)
				}
			}
		})
	}
}

func TestPathsAndDoctor(t *testing.T) {
	ctx, out := setupLocal(t, t.TempDir())
	mustRun(t, ctx, &PathsCmd{})
	var paths map[string]any
	if err := json.Unmarshal(out.Bytes(), &paths); err != nil || paths["local_only"] != true {
		t.Errorf("paths output %q: %v", out.String(), err)
	}

	gokeyring.MockInit()
	out.Reset()
	mustRun(t, ctx, &DoctorCmd{})
	if !strings.Contains(out.String(), "Remote store reachable: SKIPPED") {
		t.Errorf("doctor output:\n%s", out.String())
	}
}

func TestBackupCommands(t *testing.T) {
	gokeyring.MockInit()
	remote := filepath.Join(t.TempDir(), "remote.db")
	ctx, out := setupRemote(t, remote)

	mustRun(t, ctx,
		&SignupCmd{Email: "grace@example.com", Password: "hunter2hunter2"},
		&TodoAddCmd{Title: "Before backup", Priority: "low"},
		&BackupCreateCmd{},
	)
	if !strings.Contains(out.String(), "Backup created: habitflow-") {
		t.Errorf("create output:\n%s", out.String())
	}
	if err := (&BackupRestoreCmd{Name: "x.db"}).Run(ctx); err == nil {
		t.Error("expected error restoring while the store is open")
	}
	ctx.Close()

	m := backup.NewManager(remote)
	backups, err := m.List()
	if err != nil || len(backups) != 1 {
		t.Fatalf("List() = %v, %v", backups, err)
	}

	out.Reset()
	mustRun(t, ctx, &BackupListCmd{}, &BackupRestoreCmd{Name: backups[0].Name()})
	if !strings.Contains(out.String(), backups[0].Name()) || !strings.Contains(out.String(), "✓ Restored") {
		t.Errorf("list/restore output:\n%s", out.String())
	}

	ctx.Config.Remote = "postgres://me@localhost:5432/habitflow"
	if err := (&BackupCreateCmd{}).Run(ctx); err == nil {
		t.Error("expected error backing up PostgreSQL")
	}
}
