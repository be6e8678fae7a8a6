package cli

import (
	"context"
	"errors"

	"github.com/julianstephens/habitflow/internal/session"
)

type SignupCmd struct {
	Email    string `arg:"" help:"Account email."`
	Name     string `short:"n" help:"Full name."`
	Password string `help:"Password (prompted when omitted)." env:"HABITFLOW_PASSWORD"`
}

func (cmd *SignupCmd) Run(ctx *Context) error {
	c := context.Background()
	sessions, err := ctx.Sessions(c)
	if err != nil {
		return err
	}
	pw := cmd.Password
	if pw == "" {
		if pw, err = promptPassword("Choose a password"); err != nil {
			return err
		}
	}
	id, err := sessions.SignUp(c, cmd.Email, pw, cmd.Name)
	if err != nil {
		return err
	}
	ctx.printf("✓ Created account for %s (ID: %s)\n", id.Email, id.ID)
	return nil
}

type LoginCmd struct {
	Email    string `arg:"" help:"Account email."`
	Password string `help:"Password (prompted when omitted)." env:"HABITFLOW_PASSWORD"`
}

func (cmd *LoginCmd) Run(ctx *Context) error {
	c := context.Background()
	sessions, err := ctx.Sessions(c)
	if err != nil {
		return err
	}
	pw := cmd.Password
	if pw == "" {
		if pw, err = promptPassword("Password"); err != nil {
			return err
		}
	}
	id, err := sessions.SignIn(c, cmd.Email, pw)
	if err != nil {
		return err
	}
	ctx.printf("✓ Signed in as %s\n", id.Name())
	return nil
}

type LogoutCmd struct{}

func (cmd *LogoutCmd) Run(ctx *Context) error {
	c := context.Background()
	sessions, err := ctx.Sessions(c)
	if err != nil {
		return err
	}
	if err := sessions.SignOut(c); err != nil {
		return err
	}
	ctx.printf("✓ Signed out\n")
	return nil
}

type PasswdCmd struct {
	Password    string `help:"Current password (prompted when omitted)." env:"HABITFLOW_PASSWORD"`
	NewPassword string `help:"New password (prompted when omitted)." env:"HABITFLOW_NEW_PASSWORD"`
}

func (cmd *PasswdCmd) Run(ctx *Context) error {
	c := context.Background()
	sessions, err := ctx.Sessions(c)
	if err != nil {
		return err
	}
	id, err := sessions.Restore(c)
	if errors.Is(err, session.ErrNoSession) {
		return ErrNotSignedIn
	}
	if err != nil {
		return err
	}

	current, next := cmd.Password, cmd.NewPassword
	if current == "" {
		if current, err = promptPassword("Current password"); err != nil {
			return err
		}
	}
	if next == "" {
		if next, err = promptPassword("New password"); err != nil {
			return err
		}
	}
	if err := sessions.ChangePassword(c, id.Email, current, next); err != nil {
		return err
	}
	ctx.printf("✓ Password changed for %s\n", id.Email)
	return nil
}

type WhoamiCmd struct {
	JSON  bool `help:"Print the identity as JSON."`
	Token bool `help:"Print the session token for API clients."`
}

func (cmd *WhoamiCmd) Run(ctx *Context) error {
	c := context.Background()
	sessions, err := ctx.Sessions(c)
	if err != nil {
		return err
	}
	id, err := sessions.Restore(c)
	if errors.Is(err, session.ErrNoSession) {
		return ErrNotSignedIn
	}
	if err != nil {
		return err
	}
	if cmd.Token {
		tok, err := sessions.Token()
		if err != nil {
			return err
		}
		ctx.printf("%s\n", tok)
		return nil
	}
	if cmd.JSON {
		return ctx.printJSON(id)
	}
	ctx.printf("%s <%s>\n", id.Name(), id.Email)
	ctx.printf("  ID:    %s\n", id.ID)
	ctx.printf("  Level: %d (%d XP)\n", id.Level, id.XP)
	return nil
}
