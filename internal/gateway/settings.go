package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/docstore"
	"github.com/julianstephens/habitflow/internal/logger"
	"github.com/julianstephens/habitflow/internal/models"
)

// Settings is the gateway for the per-user settings singleton at
// userData/<owner>/settings.
type Settings struct {
	docs docstore.Store
	opts Options
}

func NewSettings(docs docstore.Store, opts Options) *Settings {
	return &Settings{docs: docs, opts: opts.withDefaults()}
}

func (s *Settings) ref(owner string) (docstore.Ref, error) {
	if owner == "" {
		return docstore.Ref{}, ErrNoIdentity
	}
	return docstore.Ref{Space: constants.SpaceUserData, Owner: owner, Kind: constants.SettingsKind}, nil
}

func (s *Settings) absorb(op string, err error) error {
	s.opts.Reporter.ObserveCall(constants.SettingsKind, op, err)
	if err == nil {
		return nil
	}
	if s.opts.Policy == Strict {
		return fmt.Errorf("%w: %s settings: %w", ErrRemote, op, err)
	}
	logger.Warn("remote call failed, continuing locally", "kind", constants.SettingsKind, "op", op, "error", err)
	return nil
}

// Get returns the owner's settings. A missing document is created with
// the defaults.
func (s *Settings) Get(ctx context.Context, owner string) (SyncResult[models.UserSettings], error) {
	defaults := models.DefaultUserSettings()
	ref, err := s.ref(owner)
	if err != nil {
		return ok(defaults), err
	}

	doc, remoteErr := s.docs.Get(ctx, ref, constants.SettingsDocID)
	if errors.Is(remoteErr, docstore.ErrNotFound) {
		s.opts.Reporter.ObserveCall(constants.SettingsKind, "get", nil)
		return s.create(ctx, ref, defaults)
	}

	settings := defaults
	if remoteErr == nil {
		settings, remoteErr = models.Apply(defaults, models.Patch(doc))
	}
	if err := s.absorb("get", remoteErr); err != nil {
		return ok(defaults), err
	}
	if remoteErr != nil {
		return SyncResult[models.UserSettings]{Value: defaults, Err: remoteErr}, nil
	}
	return ok(settings), nil
}

func (s *Settings) create(ctx context.Context, ref docstore.Ref, settings models.UserSettings) (SyncResult[models.UserSettings], error) {
	fields, err := models.ToFields(settings)
	if err != nil {
		return ok(settings), err
	}
	_, remoteErr := s.docs.Set(ctx, ref, constants.SettingsDocID, fields)
	if err := s.absorb("create", remoteErr); err != nil {
		return ok(settings), err
	}
	return SyncResult[models.UserSettings]{Value: settings, Err: remoteErr}, nil
}

// UpdateNutritionGoals merges patch into the stored nutrition goals and
// returns the merged goals. Nothing is written when the stored settings
// cannot be read; the result is then degraded.
func (s *Settings) UpdateNutritionGoals(ctx context.Context, owner string, patch models.Patch) (SyncResult[models.NutritionGoals], error) {
	current, err := s.Get(ctx, owner)
	if err != nil {
		return ok(current.Value.NutritionGoals), err
	}
	goals, err := models.Apply(current.Value.NutritionGoals, patch)
	if err != nil {
		return ok(current.Value.NutritionGoals), err
	}
	if err := goals.Validate(); err != nil {
		return ok(current.Value.NutritionGoals), err
	}
	if current.Degraded() {
		return SyncResult[models.NutritionGoals]{Value: goals, Err: current.Err}, nil
	}

	remoteErr := s.write(ctx, owner, "nutritionGoals", goals)
	if err := s.absorb("update", remoteErr); err != nil {
		return ok(goals), err
	}
	return SyncResult[models.NutritionGoals]{Value: goals, Err: remoteErr}, nil
}

// UpdatePreferences merges patch into the stored preferences.
func (s *Settings) UpdatePreferences(ctx context.Context, owner string, patch models.Patch) (SyncResult[models.Preferences], error) {
	current, err := s.Get(ctx, owner)
	if err != nil {
		return ok(current.Value.Preferences), err
	}
	prefs, err := models.Apply(current.Value.Preferences, patch)
	if err != nil {
		return ok(current.Value.Preferences), err
	}
	if current.Degraded() {
		return SyncResult[models.Preferences]{Value: prefs, Err: current.Err}, nil
	}

	remoteErr := s.write(ctx, owner, "preferences", prefs)
	if err := s.absorb("update", remoteErr); err != nil {
		return ok(prefs), err
	}
	return SyncResult[models.Preferences]{Value: prefs, Err: remoteErr}, nil
}

func (s *Settings) write(ctx context.Context, owner, field string, value any) error {
	ref, err := s.ref(owner)
	if err != nil {
		return err
	}
	fields, err := models.ToFields(map[string]any{field: value})
	if err != nil {
		return err
	}
	_, err = s.docs.Update(ctx, ref, constants.SettingsDocID, fields)
	return err
}
