package constants

import "time"

// SessionState represents the current state of the TUI application
type SessionState int

const (
	AppName            = "habitflow"
	DefaultKeyringUser = "session-token"
	SigningKeyUser     = "session-signing-key"
	DatabaseKeyUser    = "database-password"
	DefaultDataDir     = "~/.config/habitflow"
	DefaultListenAddr  = "127.0.0.1:8787"
	DefaultSessionTTL  = 30 * 24 * time.Hour
	Version            = "v0.3.0"

	// CacheFileName is the local-only whole-state blob inside the data directory
	CacheFileName = "state.json"

	// Document store spaces
	SpaceUsers    = "users"
	SpaceUserData = "userData"
	SpaceAccounts = "accounts"

	// Fixed owner/kind/id for documents that live outside a user's collections
	AccountsOwner   = "_"
	CredentialsKind = "credentials"
	ProfileKind     = "profile"
	ProfileDocID    = "profile"
	SettingsKind    = "settings"
	SettingsDocID   = "settings"

	// Standard document timestamp fields
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"

	// PostgreSQL change feed channel
	NotifyChannel = "habitflow_documents"

	// Sync policies
	PolicyOffline = "offline"
	PolicyStrict  = "strict"
)

// Session States
const (
	StateTodos SessionState = iota
	StateGoals
	StateHabits
	StateSync
	StateAddTodo
	StateConfirmDelete
)
