package cli

import (
	"context"
	"strings"
	"time"

	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/state"
)

type LetterCmd struct {
	Add  LetterAddCmd  `cmd:"" help:"Write a letter to your future self."`
	List LetterListCmd `cmd:"" help:"List letters; unlocked ones are shown in full." default:"1"`
}

type LetterAddCmd struct {
	Unlock  string   `arg:"" help:"Unlock date (YYYY-MM-DD)."`
	Content []string `arg:"" help:"Letter text."`
	Title   string   `short:"t" help:"Title."`
}

func (cmd *LetterAddCmd) Run(ctx *Context) error {
	unlock, err := parseDate(cmd.Unlock)
	if err != nil {
		return err
	}
	letter := models.FutureLetter{
		Title:      cmd.Title,
		Content:    strings.Join(cmd.Content, " "),
		UnlockDate: unlock,
	}
	if _, err := ctx.dispatch(context.Background(), state.Add(state.FutureLetters, letter)); err != nil {
		return err
	}
	ctx.printf("Sealed letter until %s\n", letter.UnlockDate)
	return nil
}

type LetterListCmd struct{}

func (cmd *LetterListCmd) Run(ctx *Context) error {
	s, err := ctx.Ready(context.Background())
	if err != nil {
		return err
	}
	letters := s.State().FutureLetters
	if len(letters) == 0 {
		ctx.printf("No letters found\n")
		return nil
	}
	now := time.Now()
	for _, l := range letters {
		title := l.Title
		if title == "" {
			title = "(untitled)"
		}
		if !l.Unlocked(now) {
			ctx.printf("  🔒 %s  %s  sealed until %s\n", shortID(l.ID), title, l.UnlockDate)
			continue
		}
		ctx.printf("  ✉ %s  %s  (unlocked %s)\n    %s\n", shortID(l.ID), title, l.UnlockDate, l.Content)
	}
	return nil
}
