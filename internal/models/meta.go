package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitflow/internal/constants"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid record")

// Patch is a shallow set of field updates keyed by JSON field name.
type Patch map[string]any

// Record is implemented by every per-user entity kind.
type Record interface {
	GetID() string
	Validate() error
}

// Meta carries the identity and timestamps shared by every stored record.
type Meta struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"` // RFC3339 timestamp
	UpdatedAt string `json:"updatedAt,omitempty"` // RFC3339 timestamp
}

func (m Meta) GetID() string { return m.ID }

// Apply shallow-merges patch into v. Top-level keys replace the existing
// value; the id key is ignored so a record's identity never changes.
func Apply[T any](v T, patch Patch) (T, error) {
	if len(patch) == 0 {
		return v, nil
	}

	fields, err := ToFields(v)
	if err != nil {
		return v, err
	}
	for k, val := range patch {
		if k == constants.FieldID {
			continue
		}
		fields[k] = val
	}

	out, err := FromFields[T](fields)
	if err != nil {
		return v, err
	}
	return out, nil
}

// ToFields converts a record into its flat document field map.
func ToFields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode record fields: %w", err)
	}
	return fields, nil
}

// FromFields decodes a document field map into a record.
func FromFields[T any](fields map[string]any) (T, error) {
	var out T
	data, err := json.Marshal(fields)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return out, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func required(kind, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid("%s %s is required", kind, field)
	}
	return nil
}

// checkDate accepts an empty value; required-ness is checked separately.
func checkDate(kind, field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(constants.DateFormat, value); err != nil {
		return invalid("%s %s must be YYYY-MM-DD, got %q", kind, field, value)
	}
	return nil
}

func checkTime(kind, field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(constants.TimeFormat, value); err != nil {
		return invalid("%s %s must be HH:MM, got %q", kind, field, value)
	}
	return nil
}

// FillMeta fills any empty id or timestamp in v from meta.
func FillMeta[T any](v T, meta Meta) (T, error) {
	fields, err := ToFields(v)
	if err != nil {
		return v, err
	}
	fill := func(key, value string) {
		if cur, _ := fields[key].(string); cur == "" && value != "" {
			fields[key] = value
		}
	}
	fill(constants.FieldID, meta.ID)
	fill(constants.FieldCreatedAt, meta.CreatedAt)
	fill(constants.FieldUpdatedAt, meta.UpdatedAt)
	return FromFields[T](fields)
}
