// Package config holds the runtime settings shared by every habitflow
// command. Values come from flags, then HABITFLOW_* environment variables,
// then a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/docstore/postgres"
	"github.com/julianstephens/habitflow/internal/gateway"
	"github.com/julianstephens/habitflow/internal/logger"
)

type Config struct {
	DataDir    string        `help:"Directory for logs and the local cache." type:"path" default:"${data_dir}" env:"HABITFLOW_DATA_DIR"`
	Remote     string        `help:"Remote document store: a SQLite file path or a postgres:// connection string without a password. Empty runs local-only." env:"HABITFLOW_REMOTE"`
	Policy     string        `help:"Remote write policy (offline|strict)." enum:"offline,strict" default:"offline" env:"HABITFLOW_POLICY"`
	JWTSecret  string        `help:"Session signing secret. Defaults to a key generated once and kept in the OS keyring." env:"HABITFLOW_JWT_SECRET"`
	SessionTTL time.Duration `help:"Session lifetime." default:"${session_ttl}" env:"HABITFLOW_SESSION_TTL"`
	Listen     string        `help:"Address for the HTTP API." default:"${listen}" env:"HABITFLOW_LISTEN"`
	Debug      bool          `help:"Log debug output to stderr." env:"HABITFLOW_DEBUG"`
}

// Vars are the kong interpolation values for the Config defaults.
func Vars() map[string]string {
	return map[string]string{
		"data_dir":    constants.DefaultDataDir,
		"session_ttl": constants.DefaultSessionTTL.String(),
		"listen":      constants.DefaultListenAddr,
	}
}

// LoadDotEnv loads .env from the working directory into the process
// environment. Variables that are already set win; a missing file is fine.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load .env: %w", err)
}

// Validate checks the settings kong cannot.
func (c *Config) Validate() error {
	if _, err := gateway.ParsePolicy(c.Policy); err != nil {
		return err
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", c.SessionTTL)
	}
	if postgres.IsConnString(c.Remote) {
		return postgres.ValidateConnString(c.Remote)
	}
	return nil
}

// LocalOnly reports whether no remote store is configured.
func (c *Config) LocalOnly() bool { return strings.TrimSpace(c.Remote) == "" }

// SyncPolicy returns the parsed remote write policy.
func (c *Config) SyncPolicy() gateway.Policy {
	p, err := gateway.ParsePolicy(c.Policy)
	if err != nil {
		return gateway.Offline
	}
	return p
}

// Dir returns DataDir with a leading ~ expanded.
func (c *Config) Dir() string {
	return ExpandHome(c.DataDir)
}

// CachePath is where a local-only build keeps its state.
func (c *Config) CachePath() string {
	return filepath.Join(c.Dir(), constants.CacheFileName)
}

// RemotePath returns the remote setting with ~ expanded for SQLite paths.
func (c *Config) RemotePath() string {
	if postgres.IsConnString(c.Remote) {
		return c.Remote
	}
	return ExpandHome(c.Remote)
}

func (c *Config) Logger() logger.Config {
	return logger.Config{Debug: c.Debug, DataDir: c.Dir()}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
