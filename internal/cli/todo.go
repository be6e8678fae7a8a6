package cli

import (
	"context"
	"sort"

	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/state"
)

type TodoCmd struct {
	Add    TodoAddCmd    `cmd:"" help:"Add a todo."`
	List   TodoListCmd   `cmd:"" help:"List todos." default:"1"`
	Done   TodoDoneCmd   `cmd:"" help:"Mark a todo completed."`
	Undo   TodoUndoCmd   `cmd:"" help:"Mark a todo not completed."`
	Delete TodoDeleteCmd `cmd:"" help:"Delete a todo."`
}

type TodoAddCmd struct {
	Title    string `arg:"" help:"Todo title."`
	Priority string `short:"p" help:"Priority (low|medium|high)." enum:"low,medium,high" default:"medium"`
	Due      string `short:"d" help:"Due date (YYYY-MM-DD, today or tomorrow)."`
}

func (cmd *TodoAddCmd) Run(ctx *Context) error {
	due, err := parseDate(cmd.Due)
	if err != nil {
		return err
	}
	todo := models.Todo{Title: cmd.Title, Priority: cmd.Priority, DueDate: due}
	out, err := ctx.dispatch(context.Background(), state.Add(state.Todos, todo))
	if err != nil {
		return err
	}
	added := out.Action.(state.AddAction[models.Todo]).Item
	ctx.printf("Added todo: %s (ID: %s)\n", added.Title, shortID(added.ID))
	return nil
}

type TodoListCmd struct {
	All bool `short:"a" help:"Include completed todos."`
}

func (cmd *TodoListCmd) Run(ctx *Context) error {
	s, err := ctx.Ready(context.Background())
	if err != nil {
		return err
	}
	todos := s.State().Todos
	// open items first, then by due date
	sort.SliceStable(todos, func(i, j int) bool {
		if todos[i].Completed != todos[j].Completed {
			return !todos[i].Completed
		}
		return todos[i].DueDate < todos[j].DueDate
	})

	shown := 0
	for _, t := range todos {
		if t.Completed && !cmd.All {
			continue
		}
		if shown == 0 {
			ctx.printf("Todos:\n")
		}
		shown++
		ctx.printf("  %s %s  %s", checkbox(t.Completed), shortID(t.ID), t.Title)
		if t.Priority != "" {
			ctx.printf(" (%s)", t.Priority)
		}
		if t.DueDate != "" {
			ctx.printf(" due %s", t.DueDate)
		}
		ctx.printf("\n")
	}
	if shown == 0 {
		ctx.printf("No todos found\n")
	}
	return nil
}

type TodoDoneCmd struct {
	ID string `arg:"" help:"Todo ID or unique prefix."`
}

func (cmd *TodoDoneCmd) Run(ctx *Context) error {
	return setTodoCompleted(ctx, cmd.ID, true)
}

type TodoUndoCmd struct {
	ID string `arg:"" help:"Todo ID or unique prefix."`
}

func (cmd *TodoUndoCmd) Run(ctx *Context) error {
	return setTodoCompleted(ctx, cmd.ID, false)
}

func setTodoCompleted(ctx *Context, ref string, completed bool) error {
	c := context.Background()
	s, err := ctx.Ready(c)
	if err != nil {
		return err
	}
	todo, err := resolve(s.State().Todos, ref)
	if err != nil {
		return err
	}
	if _, err := ctx.dispatch(c, state.Update(state.Todos, todo.ID, models.Patch{"completed": completed})); err != nil {
		return err
	}
	ctx.printf("%s %s\n", checkbox(completed), todo.Title)
	return nil
}

type TodoDeleteCmd struct {
	ID string `arg:"" help:"Todo ID or unique prefix."`
}

func (cmd *TodoDeleteCmd) Run(ctx *Context) error {
	c := context.Background()
	s, err := ctx.Ready(c)
	if err != nil {
		return err
	}
	todo, err := resolve(s.State().Todos, cmd.ID)
	if err != nil {
		return err
	}
	if _, err := ctx.dispatch(c, state.Delete(state.Todos, todo.ID)); err != nil {
		return err
	}
	ctx.printf("Deleted todo: %s\n", todo.Title)
	return nil
}
