// Package catalog provides the catalogue store adapters and the helpers shared
// by every backend: prefix ranges, case folding and the detail view helpers.
package catalog

import (
	"errors"
	"fmt"

	"github.com/giygas/medisearch/entities"
)

// ErrNotFound is returned when a document id has no record. It is a
// legitimate result, not a fault.
var ErrNotFound = errors.New("medicine not found")

// QueryError wraps a backend failure during a catalogue query.
type QueryError struct {
	Op    string
	Field entities.CatalogField
	Err   error
}

func (e *QueryError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("catalog %s on %s: %v", e.Op, e.Field, e.Err)
	}
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsQueryError reports whether err is, or wraps, a *QueryError
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
