package extract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrShape means the page does not have the expected overall structure
	// (container missing, invalid JSON). It applies to the whole listing.
	ErrShape = errors.New("unexpected page shape")

	// ErrMissingField is wrapped by RowError when a mandatory field is absent.
	ErrMissingField = errors.New("mandatory field missing")

	// ErrNoSpec means a named row spec is not defined.
	ErrNoSpec = errors.New("no such row spec")
)

// RowError reports the mandatory fields a single row lacks. The row's markup
// is kept for diagnostics.
type RowError struct {
	Index  int
	Fields []string
	Markup string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: missing %s", e.Index, strings.Join(e.Fields, ", "))
}

func (e *RowError) Unwrap() error {
	return ErrMissingField
}
