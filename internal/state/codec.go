package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/habitflow/internal/models"
)

// ErrMalformed is returned when an action envelope or payload cannot be
// decoded.
var ErrMalformed = errors.New("malformed action")

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeAction renders a as {"type": ..., "payload": ...}.
func EncodeAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil action", ErrMalformed)
	}
	env := envelope{Type: a.Type()}
	if p := a.payload(); p != nil {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", a.Type(), err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// DecodeAction parses an action envelope. A well-formed envelope with an
// unrecognised type decodes to Unknown.
func DecodeAction(data []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	a, err := decode(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return a, nil
}

func decode(env envelope) (Action, error) {
	switch env.Type {
	case "SET_USER":
		var user *models.Identity
		if err := unmarshalPayload(env.Payload, &user); err != nil {
			return nil, err
		}
		return SetUser{User: user}, nil
	case "LOAD_DATA":
		var p Partial
		if err := unmarshalPayload(env.Payload, &p); err != nil {
			return nil, err
		}
		return LoadData{Data: p}, nil
	case "UPDATE_NUTRITION_GOALS":
		var patch models.Patch
		if err := unmarshalPayload(env.Payload, &patch); err != nil {
			return nil, err
		}
		return UpdateNutritionGoals{Updates: patch}, nil
	}

	op, tag, ok := strings.Cut(env.Type, "_")
	if !ok {
		return Unknown{Name: env.Type}, nil
	}
	kind, ok := kindByTag(tag)
	if !ok {
		return Unknown{Name: env.Type}, nil
	}

	switch op {
	case "ADD":
		return kind.decodeAdd(env.Payload)
	case "UPDATE":
		var p updatePayload
		if err := unmarshalPayload(env.Payload, &p); err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%s payload has no id", env.Type)
		}
		return kind.update(p.ID, p.Updates), nil
	case "DELETE":
		var id string
		if err := unmarshalPayload(env.Payload, &id); err != nil {
			return nil, err
		}
		if id == "" {
			return nil, fmt.Errorf("%s payload has no id", env.Type)
		}
		return kind.delete(id), nil
	default:
		return Unknown{Name: env.Type}, nil
	}
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(raw, v)
}
