package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/julianstephens/habitflow/internal/logger"
	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/session"
	"github.com/julianstephens/habitflow/internal/state"
	"github.com/julianstephens/habitflow/internal/store"
)

const maxBodyBytes = 1 << 20

// StateStore is the store surface the API serves.
type StateStore interface {
	State() state.State
	Dispatch(ctx context.Context, a state.Action) (store.Outcome, error)
	SyncStatus() store.SyncStatus
	Wait()
}

// Sessions is the account surface behind /api/session. It is nil for a
// local-only build.
type Sessions interface {
	SignUp(ctx context.Context, email, password, fullName string) (*models.Identity, error)
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
	SignOut(ctx context.Context) error
	ChangePassword(ctx context.Context, email, current, next string) error
	Current() *models.Identity
	Token() (string, error)
	Verify(token string) (*models.Identity, error)
}

type handler struct {
	store    StateStore
	sessions Sessions
}

func (h *handler) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.State())
}

func (h *handler) getSync(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.SyncStatus())
}

func (h *handler) getStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, state.ComputeStats(h.store.State()))
}

type dispatchResponse struct {
	Type     string          `json:"type"`
	Action   json.RawMessage `json:"action"`
	Remote   bool            `json:"remote"`
	Degraded bool            `json:"degraded"`
	Cause    string          `json:"cause,omitempty"`
}

func (h *handler) dispatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}
	action, err := state.DecodeAction(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_action", err.Error())
		return
	}

	out, err := h.store.Dispatch(r.Context(), action)
	switch {
	case errors.Is(err, models.ErrInvalid):
		writeError(w, http.StatusUnprocessableEntity, "invalid_record", err.Error())
		return
	case errors.Is(err, store.ErrIdentityChanged):
		writeError(w, http.StatusConflict, "identity_changed", err.Error())
		return
	case err != nil:
		logger.Error("dispatch failed", "type", action.Type(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "dispatch failed")
		return
	}

	applied, err := state.EncodeAction(out.Action)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to encode action")
		return
	}
	resp := dispatchResponse{
		Type:     out.Action.Type(),
		Action:   applied,
		Remote:   out.Remote,
		Degraded: out.Degraded(),
	}
	if out.Err != nil {
		resp.Cause = out.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName,omitempty"`
}

type sessionResponse struct {
	User  *models.Identity `json:"user"`
	Token string           `json:"token,omitempty"`
}

func (h *handler) readCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body must be JSON with email and password")
		return req, false
	}
	return req, true
}

func (h *handler) signUp(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	id, err := h.sessions.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	h.respondSession(w, http.StatusCreated, id)
}

func (h *handler) signIn(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	id, err := h.sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	h.respondSession(w, http.StatusOK, id)
}

// respondSession waits for the bulk load the identity change started, so
// the next /api/state read sees the user's data.
func (h *handler) respondSession(w http.ResponseWriter, status int, id *models.Identity) {
	h.store.Wait()
	tok, err := h.sessions.Token()
	if err != nil {
		logger.Warn("failed to read session token", "error", err)
	}
	writeJSON(w, status, sessionResponse{User: id, Token: tok})
}

func (h *handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(r.Context()); err != nil {
		logger.Error("sign-out failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "sign-out failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type passwordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body must be JSON with password and newPassword")
		return
	}
	id := h.sessions.Current()
	if id == nil {
		unauthorized(w, "no_session", session.ErrNoSession.Error())
		return
	}
	err := h.sessions.ChangePassword(r.Context(), id.Email, req.Password, req.NewPassword)
	switch {
	case errors.Is(err, session.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "weak_password", err.Error())
	case err != nil:
		writeSessionError(w, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Current()
	if id == nil {
		writeError(w, http.StatusUnauthorized, "no_session", session.ErrNoSession.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: id})
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, session.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, session.ErrWeakPassword), errors.Is(err, session.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid_signup", err.Error())
	default:
		logger.Error("session request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "session request failed")
	}
}

func localOnly(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, "local_only", "accounts need a remote document store")
}
