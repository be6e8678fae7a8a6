package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/julianstephens/habitflow/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *Context) error {
	sig, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctx.autoBackup(sig)

	s, err := ctx.Ready(sig)
	if err != nil {
		return err
	}
	return tui.Run(sig, s)
}
