package cli

import (
	"context"
	"sort"
	"strings"

	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/state"
)

type JournalCmd struct {
	Add  JournalAddCmd  `cmd:"" help:"Write a journal entry."`
	List JournalListCmd `cmd:"" help:"List journal entries." default:"1"`
}

type JournalAddCmd struct {
	Content []string `arg:"" help:"Entry text."`
	Title   string   `short:"t" help:"Title."`
	Mood    string   `short:"m" help:"Mood."`
}

func (cmd *JournalAddCmd) Run(ctx *Context) error {
	entry := models.JournalEntry{
		Title:   cmd.Title,
		Content: strings.Join(cmd.Content, " "),
		Mood:    cmd.Mood,
	}
	out, err := ctx.dispatch(context.Background(), state.Add(state.JournalEntries, entry))
	if err != nil {
		return err
	}
	added := out.Action.(state.AddAction[models.JournalEntry]).Item
	ctx.printf("Saved journal entry (ID: %s)\n", shortID(added.ID))
	return nil
}

type JournalListCmd struct {
	Limit int `short:"n" help:"Number of entries to show." default:"10"`
}

func (cmd *JournalListCmd) Run(ctx *Context) error {
	s, err := ctx.Ready(context.Background())
	if err != nil {
		return err
	}
	entries := s.State().JournalEntries
	if len(entries) == 0 {
		ctx.printf("No journal entries found\n")
		return nil
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt > entries[j].CreatedAt })
	if cmd.Limit > 0 && len(entries) > cmd.Limit {
		entries = entries[:cmd.Limit]
	}
	for _, e := range entries {
		date := e.CreatedAt
		if len(date) >= 10 {
			date = date[:10]
		}
		ctx.printf("%s  %s", shortID(e.ID), date)
		if e.Title != "" {
			ctx.printf("  %s", e.Title)
		}
		if e.Mood != "" {
			ctx.printf("  (%s)", e.Mood)
		}
		ctx.printf("\n    %s\n", e.Content)
	}
	return nil
}
