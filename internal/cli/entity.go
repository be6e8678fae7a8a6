package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/state"
)

// EntityCmd edits any collection through JSON, for kinds without their own
// command (calendarEvents, budgets, schoolAssignments, bucketListItems,
// dailyReflections).
type EntityCmd struct {
	Add    EntityAddCmd    `cmd:"" help:"Add a record from JSON fields."`
	Update EntityUpdateCmd `cmd:"" help:"Merge JSON fields into a record."`
	Delete EntityDeleteCmd `cmd:"" help:"Delete a record."`
	List   EntityListCmd   `cmd:"" help:"Print a collection as JSON."`
	Kinds  EntityKindsCmd  `cmd:"" help:"List collection names."`
}

func lookupKind(name string) (state.AnyKind, error) {
	for _, k := range state.Kinds() {
		if strings.EqualFold(k.Collection(), name) || strings.EqualFold(k.Tag(), name) {
			return k, nil
		}
	}
	names := make([]string, 0, len(state.Kinds()))
	for _, k := range state.Kinds() {
		names = append(names, k.Collection())
	}
	return nil, fmt.Errorf("unknown kind %q (one of %s)", name, strings.Join(names, ", "))
}

// records returns the raw records of one collection in the current state.
func records(st state.State, kind state.AnyKind) ([]map[string]any, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var items []map[string]any
	if raw, ok := all[kind.Collection()]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

type rawRecord map[string]any

func (r rawRecord) GetID() string {
	id, _ := r["id"].(string)
	return id
}

func (r rawRecord) Validate() error { return nil }

func (c *Context) resolveRaw(ctx context.Context, kind state.AnyKind, ref string) (string, error) {
	s, err := c.Ready(ctx)
	if err != nil {
		return "", err
	}
	items, err := records(s.State(), kind)
	if err != nil {
		return "", err
	}
	raw := make([]rawRecord, len(items))
	for i, it := range items {
		raw[i] = it
	}
	found, err := resolve(raw, ref)
	if err != nil {
		return "", err
	}
	return found.GetID(), nil
}

// dispatchEnvelope builds an action through the JSON codec so every kind
// is reachable by name.
func (c *Context) dispatchEnvelope(ctx context.Context, typ string, payload any) (state.Action, error) {
	env, err := json.Marshal(map[string]any{"type": typ, "payload": payload})
	if err != nil {
		return nil, err
	}
	a, err := state.DecodeAction(env)
	if err != nil {
		return nil, err
	}
	out, err := c.dispatch(ctx, a)
	if err != nil {
		return nil, err
	}
	return out.Action, nil
}

func parseFields(s string) (models.Patch, error) {
	var fields models.Patch
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, fmt.Errorf("fields must be a JSON object: %w", err)
	}
	return fields, nil
}

type EntityAddCmd struct {
	Kind   string `arg:"" help:"Collection name (see 'entity kinds')."`
	Fields string `arg:"" help:"Record fields as a JSON object."`
}

func (cmd *EntityAddCmd) Run(ctx *Context) error {
	kind, err := lookupKind(cmd.Kind)
	if err != nil {
		return err
	}
	fields, err := parseFields(cmd.Fields)
	if err != nil {
		return err
	}
	a, err := ctx.dispatchEnvelope(context.Background(), "ADD_"+kind.Tag(), fields)
	if err != nil {
		return err
	}
	if ea, ok := a.(state.EntityAction); ok {
		ctx.printf("Added %s (ID: %s)\n", kind.Collection(), ea.TargetID())
	}
	return nil
}

type EntityUpdateCmd struct {
	Kind   string `arg:"" help:"Collection name."`
	ID     string `arg:"" help:"Record ID or unique prefix."`
	Fields string `arg:"" help:"Fields to change as a JSON object."`
}

func (cmd *EntityUpdateCmd) Run(ctx *Context) error {
	c := context.Background()
	kind, err := lookupKind(cmd.Kind)
	if err != nil {
		return err
	}
	fields, err := parseFields(cmd.Fields)
	if err != nil {
		return err
	}
	id, err := ctx.resolveRaw(c, kind, cmd.ID)
	if err != nil {
		return err
	}
	payload := map[string]any{"id": id, "updates": fields}
	if _, err := ctx.dispatchEnvelope(c, "UPDATE_"+kind.Tag(), payload); err != nil {
		return err
	}
	ctx.printf("Updated %s %s\n", kind.Collection(), shortID(id))
	return nil
}

type EntityDeleteCmd struct {
	Kind string `arg:"" help:"Collection name."`
	ID   string `arg:"" help:"Record ID or unique prefix."`
}

func (cmd *EntityDeleteCmd) Run(ctx *Context) error {
	c := context.Background()
	kind, err := lookupKind(cmd.Kind)
	if err != nil {
		return err
	}
	id, err := ctx.resolveRaw(c, kind, cmd.ID)
	if err != nil {
		return err
	}
	if _, err := ctx.dispatchEnvelope(c, "DELETE_"+kind.Tag(), id); err != nil {
		return err
	}
	ctx.printf("Deleted %s %s\n", kind.Collection(), shortID(id))
	return nil
}

type EntityListCmd struct {
	Kind string `arg:"" help:"Collection name."`
}

func (cmd *EntityListCmd) Run(ctx *Context) error {
	kind, err := lookupKind(cmd.Kind)
	if err != nil {
		return err
	}
	s, err := ctx.Ready(context.Background())
	if err != nil {
		return err
	}
	items, err := records(s.State(), kind)
	if err != nil {
		return err
	}
	if items == nil {
		items = []map[string]any{}
	}
	return ctx.printJSON(items)
}

type EntityKindsCmd struct{}

func (cmd *EntityKindsCmd) Run(ctx *Context) error {
	for _, k := range state.Kinds() {
		ctx.printf("%-20s %s\n", k.Collection(), k.Tag())
	}
	return nil
}
