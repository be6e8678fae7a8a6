package session

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/docstore"
	"github.com/julianstephens/habitflow/internal/keyring"
	"github.com/julianstephens/habitflow/internal/logger"
	"github.com/julianstephens/habitflow/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", constants.MinPasswordLength)
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrNoSession          = errors.New("no active session")
	ErrInvalidToken       = errors.New("invalid session token")
)

// TokenStore persists the session token between runs.
type TokenStore interface {
	Token() (string, error)
	SetToken(string) error
	ClearToken() error
}

type keyringTokens struct{}

func (keyringTokens) Token() (string, error)  { return keyring.Token() }
func (keyringTokens) SetToken(t string) error { return keyring.SetToken(t) }
func (keyringTokens) ClearToken() error       { return keyring.ClearToken() }

type Options struct {
	Docs       docstore.Store
	SigningKey []byte
	TTL        time.Duration
	Tokens     TokenStore
	Now        func() time.Time
}

// Manager authenticates against credentials kept in the document store
// and persists the session token in the OS keyring.
type Manager struct {
	listeners

	docs   docstore.Store
	key    []byte
	ttl    time.Duration
	tokens TokenStore
	now    func() time.Time
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Docs == nil {
		return nil, errors.New("session manager needs a document store")
	}
	if len(opts.SigningKey) == 0 {
		return nil, errors.New("session manager needs a signing key")
	}
	if opts.TTL <= 0 {
		opts.TTL = constants.DefaultSessionTTL
	}
	if opts.Tokens == nil {
		opts.Tokens = keyringTokens{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		docs:   opts.Docs,
		key:    opts.SigningKey,
		ttl:    opts.TTL,
		tokens: opts.Tokens,
		now:    opts.Now,
	}, nil
}

var credentialsRef = docstore.Ref{
	Space: constants.SpaceAccounts,
	Owner: constants.AccountsOwner,
	Kind:  constants.CredentialsKind,
}

type credentials struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	FullName     string `json:"full_name,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return strings.ToLower(addr.Address), nil
}

// SignUp registers a new account and signs it in.
func (m *Manager) SignUp(ctx context.Context, email, password, fullName string) (*models.Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < constants.MinPasswordLength {
		return nil, ErrWeakPassword
	}

	if _, err := m.docs.Get(ctx, credentialsRef, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("failed to check account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := m.now().UTC().Format(time.RFC3339)
	creds := credentials{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
		CreatedAt:    now,
	}
	fields, err := models.ToFields(creds)
	if err != nil {
		return nil, err
	}
	if _, err := m.docs.Set(ctx, credentialsRef, email, fields); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	id := &models.Identity{
		ID:        creds.UID,
		Email:     email,
		FullName:  creds.FullName,
		CreatedAt: now,
		Level:     1,
	}
	m.createProfile(ctx, id)

	if err := m.start(id); err != nil {
		return nil, err
	}
	logger.Info("account created", "uid", id.ID)
	return copyIdentity(id), nil
}

// createProfile writes the profile and default settings documents. As
// with the settings gateway, failures here do not fail sign-up.
func (m *Manager) createProfile(ctx context.Context, id *models.Identity) {
	profile, err := models.ToFields(id)
	if err == nil {
		ref := docstore.Ref{Space: constants.SpaceUsers, Owner: id.ID, Kind: constants.ProfileKind}
		_, err = m.docs.Set(ctx, ref, constants.ProfileDocID, profile)
	}
	if err != nil {
		logger.Warn("failed to create profile", "uid", id.ID, "error", err)
	}

	settings, err := models.ToFields(models.DefaultUserSettings())
	if err == nil {
		ref := docstore.Ref{Space: constants.SpaceUserData, Owner: id.ID, Kind: constants.SettingsKind}
		_, err = m.docs.Set(ctx, ref, constants.SettingsDocID, settings)
	}
	if err != nil {
		logger.Warn("failed to create default settings", "uid", id.ID, "error", err)
	}
}

// authenticate returns the stored credentials when password matches.
func (m *Manager) authenticate(ctx context.Context, email, password string) (credentials, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return credentials{}, ErrInvalidCredentials
	}

	doc, err := m.docs.Get(ctx, credentialsRef, email)
	if errors.Is(err, docstore.ErrNotFound) {
		return credentials{}, ErrInvalidCredentials
	}
	if err != nil {
		return credentials{}, fmt.Errorf("failed to read account: %w", err)
	}
	creds, err := models.FromFields[credentials](doc)
	if err != nil {
		return credentials{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) != nil {
		return credentials{}, ErrInvalidCredentials
	}
	return creds, nil
}

// SignIn checks the password and starts a session.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	creds, err := m.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	id := m.profile(ctx, creds.UID)
	if id == nil {
		id = &models.Identity{ID: creds.UID, Email: creds.Email, FullName: creds.FullName, CreatedAt: creds.CreatedAt}
	}
	if err := m.start(id); err != nil {
		return nil, err
	}
	return copyIdentity(id), nil
}

// ChangePassword replaces the account password after checking the
// current one. The session, if any, is left as is.
func (m *Manager) ChangePassword(ctx context.Context, email, current, next string) error {
	creds, err := m.authenticate(ctx, email, current)
	if err != nil {
		return err
	}
	if len(next) < constants.MinPasswordLength {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	fields := docstore.Document{"password_hash": string(hash)}
	if _, err := m.docs.Update(ctx, credentialsRef, creds.Email, fields); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	logger.Info("password changed", "uid", creds.UID)
	return nil
}

func (m *Manager) profile(ctx context.Context, uid string) *models.Identity {
	ref := docstore.Ref{Space: constants.SpaceUsers, Owner: uid, Kind: constants.ProfileKind}
	doc, err := m.docs.Get(ctx, ref, constants.ProfileDocID)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			logger.Warn("failed to read profile", "uid", uid, "error", err)
		}
		return nil
	}
	id, err := models.FromFields[models.Identity](doc)
	if err != nil || id.ID != uid {
		return nil
	}
	return &id
}

func (m *Manager) start(id *models.Identity) error {
	tok, err := m.issue(id)
	if err != nil {
		return err
	}
	if err := m.tokens.SetToken(tok); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	m.set(id)
	return nil
}

// SignOut ends the session. Signing out while signed out is not an error.
func (m *Manager) SignOut(context.Context) error {
	if err := m.tokens.ClearToken(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	m.set(nil)
	return nil
}

// Restore resumes the persisted session, if it is still valid.
func (m *Manager) Restore(ctx context.Context) (*models.Identity, error) {
	tok, err := m.tokens.Token()
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	id, err := m.Verify(tok)
	if err != nil {
		if errors.Is(err, ErrNoSession) || errors.Is(err, ErrInvalidToken) {
			_ = m.tokens.ClearToken()
		}
		return nil, err
	}
	if p := m.profile(ctx, id.ID); p != nil {
		id = p
	}
	m.set(id)
	return copyIdentity(id), nil
}

// Token returns the current session token, for API clients.
func (m *Manager) Token() (string, error) {
	if m.Current() == nil {
		return "", ErrNoSession
	}
	return m.tokens.Token()
}
