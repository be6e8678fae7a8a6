// Package cli implements the habitflow commands. Every command runs
// against a Context that lazily opens the remote document store, the
// session manager and the state store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/julianstephens/habitflow/internal/cache"
	"github.com/julianstephens/habitflow/internal/config"
	"github.com/julianstephens/habitflow/internal/docstore"
	"github.com/julianstephens/habitflow/internal/docstore/postgres"
	"github.com/julianstephens/habitflow/internal/docstore/sqlite"
	apperrors "github.com/julianstephens/habitflow/internal/errors"
	"github.com/julianstephens/habitflow/internal/gateway"
	"github.com/julianstephens/habitflow/internal/keyring"
	"github.com/julianstephens/habitflow/internal/logger"
	"github.com/julianstephens/habitflow/internal/metrics"
	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/session"
	"github.com/julianstephens/habitflow/internal/state"
	"github.com/julianstephens/habitflow/internal/store"
)

var (
	// ErrLocalOnly is returned by commands that need a remote store.
	ErrLocalOnly = errors.New("no remote store configured")
	// ErrNotSignedIn is returned when a remote build has no session.
	ErrNotSignedIn = errors.New("not signed in")
)

func init() {
	apperrors.RegisterHint(ErrLocalOnly, "set --remote or HABITFLOW_REMOTE to a SQLite path or postgres:// URL")
	apperrors.RegisterHint(ErrNotSignedIn, "run 'habitflow login' or 'habitflow signup'")
	apperrors.RegisterHint(session.ErrInvalidCredentials, "check the email and password, or create an account with 'habitflow signup'")
	apperrors.RegisterHint(session.ErrEmailTaken, "sign in with 'habitflow login' instead")
	apperrors.RegisterHint(keyring.ErrKeyringUnavailable, "set HABITFLOW_JWT_SECRET to run without an OS keyring")
	apperrors.RegisterHint(postgres.ErrInvalidConnectionString, "store the password with 'habitflow db-password' or in ~/.pgpass")
	apperrors.RegisterHint(models.ErrInvalid, "see 'habitflow <command> --help' for accepted values")
}

type remoteStore interface {
	docstore.Store
	Init(ctx context.Context) error
}

// Context is shared by all commands. Out defaults to stdout.
type Context struct {
	Config  config.Config
	Out     io.Writer
	Metrics *metrics.Collector

	docs     remoteStore
	sessions *session.Manager
	store    *store.Store
	unbind   func()
}

func (c *Context) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *Context) printf(format string, args ...any) {
	fmt.Fprintf(c.out(), format, args...)
}

// Docs opens and initializes the remote document store.
func (c *Context) Docs(ctx context.Context) (docstore.Store, error) {
	if c.docs != nil {
		return c.docs, nil
	}
	if c.Config.LocalOnly() {
		return nil, ErrLocalOnly
	}
	docs, err := openRemote(c.Config.RemotePath())
	if err != nil {
		return nil, err
	}
	if err := docs.Init(ctx); err != nil {
		docs.Close()
		return nil, err
	}
	c.docs = docs
	return docs, nil
}

func openRemote(remote string) (remoteStore, error) {
	if postgres.IsConnString(remote) {
		password, err := keyring.DatabasePassword()
		switch {
		case errors.Is(err, keyring.ErrNotFound):
			// fall back to .pgpass or PGPASSWORD
		case err != nil:
			logger.Warn("Could not read database password from keyring", "error", err)
		}
		return postgres.New(remote, password)
	}
	if err := os.MkdirAll(filepath.Dir(remote), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", remote, err)
	}
	return sqlite.New(remote), nil
}

// Sessions returns the session manager for the remote store.
func (c *Context) Sessions(ctx context.Context) (*session.Manager, error) {
	if c.sessions != nil {
		return c.sessions, nil
	}
	docs, err := c.Docs(ctx)
	if err != nil {
		return nil, err
	}
	key, err := c.signingKey()
	if err != nil {
		return nil, err
	}
	m, err := session.NewManager(session.Options{
		Docs:       docs,
		SigningKey: key,
		TTL:        c.Config.SessionTTL,
	})
	if err != nil {
		return nil, err
	}
	c.sessions = m
	return m, nil
}

func (c *Context) signingKey() ([]byte, error) {
	if secret := strings.TrimSpace(c.Config.JWTSecret); secret != "" {
		return []byte(secret), nil
	}
	return keyring.SigningKey()
}

// Store builds the state store. A local-only build rehydrates from the
// cache file; a remote build restores the saved session and waits for the
// bulk load before returning.
func (c *Context) Store(ctx context.Context) (*store.Store, error) {
	if c.store != nil {
		return c.store, nil
	}

	opts := store.Options{}
	if c.Metrics != nil {
		opts.Metrics = c.Metrics
	}

	if c.Config.LocalOnly() {
		if err := os.MkdirAll(c.Config.Dir(), 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		opts.Cache = cache.New(c.Config.CachePath())
		s := store.New(opts)
		if err := s.Open(ctx); err != nil {
			return nil, err
		}
		c.store = s
		return s, nil
	}

	docs, err := c.Docs(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := c.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := sessions.Restore(ctx); err != nil && !errors.Is(err, session.ErrNoSession) {
		logger.Warn("Could not restore session", "error", err)
	}

	gwOpts := gateway.Options{Policy: c.Config.SyncPolicy()}
	if c.Metrics != nil {
		gwOpts.Reporter = c.Metrics
	}
	opts.Gateway = gateway.New(docs, gwOpts)

	s := store.New(opts)
	c.unbind = s.Bind(ctx, sessions)
	s.Wait()
	c.store = s
	return s, nil
}

// Ready is Store for commands that read or write user data: a remote build
// must have a signed-in user.
func (c *Context) Ready(ctx context.Context) (*store.Store, error) {
	s, err := c.Store(ctx)
	if err != nil {
		return nil, err
	}
	if !s.LocalOnly() && s.Phase() == store.Unauthenticated {
		return nil, ErrNotSignedIn
	}
	return s, nil
}

// dispatch sends a through the store and reports a degraded remote write.
func (c *Context) dispatch(ctx context.Context, a state.Action) (store.Outcome, error) {
	s, err := c.Ready(ctx)
	if err != nil {
		return store.Outcome{}, err
	}
	out, err := s.Dispatch(ctx, a)
	if err != nil {
		return out, err
	}
	if out.Degraded() {
		c.printf("⚠ Remote write failed, the change was not saved remotely: %v\n", out.Err)
	}
	return out, nil
}

// Close releases the store binding and the remote connection.
func (c *Context) Close() error {
	if c.unbind != nil {
		c.unbind()
		c.unbind = nil
	}
	if c.store != nil {
		c.store.Wait()
	}
	if c.docs != nil {
		err := c.docs.Close()
		c.docs = nil
		return err
	}
	return nil
}
