// Package docstore defines the remote document store boundary: documents
// grouped into collections addressed by a three-level path, with equality
// queries, merge updates and change notifications.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/julianstephens/habitflow/internal/constants"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrClosed       = errors.New("document store is closed")
	ErrInvalidField = errors.New("invalid field name")
	ErrInvalidRef   = errors.New("invalid collection path")
)

// TimeLayout is the fixed-width UTC layout of createdAt and updatedAt.
// Fixed width keeps lexical and chronological order the same.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Ref addresses one collection: <space>/<owner>/<kind>.
type Ref struct {
	Space string
	Owner string
	Kind  string
}

func (r Ref) String() string {
	return r.Space + "/" + r.Owner + "/" + r.Kind
}

func (r Ref) Validate() error {
	for _, part := range []string{r.Space, r.Owner, r.Kind} {
		if part == "" || strings.Contains(part, "/") {
			return fmt.Errorf("%w: %q", ErrInvalidRef, r.String())
		}
	}
	return nil
}

// ParseRef is the inverse of Ref.String.
func ParseRef(s string) (Ref, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	r := Ref{Space: parts[0], Owner: parts[1], Kind: parts[2]}
	return r, r.Validate()
}

// Document is a stored document's fields. Documents returned by a Store
// always carry id, createdAt and updatedAt.
type Document map[string]any

func (d Document) ID() string {
	id, _ := d[constants.FieldID].(string)
	return id
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// Filter matches documents whose field equals Value.
type Filter struct {
	Field string
	Value any
}

type Query struct {
	Filters   []Filter
	OrderBy   string
	Direction Direction
	Limit     int
}

// Store is a remote document store. Implementations are safe for concurrent
// use.
type Store interface {
	// Create stores fields as a new document with a generated id.
	Create(ctx context.Context, ref Ref, fields Document) (Document, error)
	// Set creates or replaces the document with the given id.
	Set(ctx context.Context, ref Ref, id string, fields Document) (Document, error)
	Get(ctx context.Context, ref Ref, id string) (Document, error)
	List(ctx context.Context, ref Ref, q Query) ([]Document, error)
	// Update merges fields into an existing document. It returns
	// ErrNotFound when the document does not exist.
	Update(ctx context.Context, ref Ref, id string, fields Document) (Document, error)
	// Delete removes a document. Deleting a missing document is not an
	// error.
	Delete(ctx context.Context, ref Ref, id string) error
	// Watch calls fn after every change to the collection until cancel is
	// called or ctx is done.
	Watch(ctx context.Context, ref Ref, fn func()) (cancel func(), err error)
	Close() error
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateField rejects field names that cannot be used in a query path.
func ValidateField(name string) error {
	if !fieldPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}

// ValidateQuery checks the ref and every field name used by q.
func ValidateQuery(ref Ref, q Query) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	for _, f := range q.Filters {
		if err := ValidateField(f.Field); err != nil {
			return err
		}
	}
	if q.OrderBy != "" {
		return ValidateField(q.OrderBy)
	}
	return nil
}

// UserFields returns a copy of fields without the store-owned id and
// timestamp keys.
func UserFields(fields Document) Document {
	out := make(Document, len(fields))
	for k, v := range fields {
		switch k {
		case constants.FieldID, constants.FieldCreatedAt, constants.FieldUpdatedAt:
			continue
		}
		out[k] = v
	}
	return out
}

// Assemble builds a returned document from stored fields and metadata.
func Assemble(id string, fields Document, createdAt, updatedAt time.Time) Document {
	doc := UserFields(fields)
	doc[constants.FieldID] = id
	doc[constants.FieldCreatedAt] = createdAt.UTC().Format(TimeLayout)
	doc[constants.FieldUpdatedAt] = updatedAt.UTC().Format(TimeLayout)
	return doc
}

// Merge shallow-merges patch over base.
func Merge(base, patch Document) Document {
	out := make(Document, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
