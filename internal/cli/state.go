package cli

import (
	"context"

	"github.com/julianstephens/habitflow/internal/state"
	"github.com/julianstephens/habitflow/internal/store"
)

type StateCmd struct {
	Collection string `arg:"" optional:"" help:"Print only this collection."`
}

func (cmd *StateCmd) Run(ctx *Context) error {
	s, err := ctx.Store(context.Background())
	if err != nil {
		return err
	}
	st := s.State()
	if cmd.Collection == "" {
		return ctx.printJSON(st)
	}
	kind, err := lookupKind(cmd.Collection)
	if err != nil {
		return err
	}
	items, err := records(st, kind)
	if err != nil {
		return err
	}
	return ctx.printJSON(items)
}

// DispatchCmd sends one action envelope, as accepted by POST /api/dispatch.
type DispatchCmd struct {
	Action string `arg:"" help:"Action as JSON, e.g. '{\"type\":\"ADD_TODO\",\"payload\":{\"title\":\"x\"}}'."`
}

type dispatchResult struct {
	Type     string `json:"type"`
	Remote   bool   `json:"remote"`
	Degraded bool   `json:"degraded"`
	Cause    string `json:"cause,omitempty"`
}

func (cmd *DispatchCmd) Run(ctx *Context) error {
	a, err := state.DecodeAction([]byte(cmd.Action))
	if err != nil {
		return err
	}
	out, err := ctx.dispatch(context.Background(), a)
	if err != nil {
		return err
	}
	res := dispatchResult{Type: a.Type(), Remote: out.Remote, Degraded: out.Degraded()}
	if out.Err != nil {
		res.Cause = out.Err.Error()
	}
	return ctx.printJSON(res)
}

type SyncCmd struct{}

func (cmd *SyncCmd) Run(ctx *Context) error {
	s, err := ctx.Store(context.Background())
	if err != nil {
		return err
	}
	st := s.State()
	status := s.SyncStatus()
	user := ""
	if st.User != nil {
		user = st.User.Email
	}
	return ctx.printJSON(struct {
		store.SyncStatus
		LocalOnly bool   `json:"localOnly"`
		User      string `json:"user,omitempty"`
	}{status, s.LocalOnly(), user})
}
