package searchpager

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when pagination cannot be set up, e.g.
	// cursor pagination without any sort order.
	ErrConfiguration = errors.New("searchpager: configuration error")
	// ErrInvalidCursor is returned for malformed or tampered cursor tokens.
	// It is a client input error and is never downgraded to "first page".
	ErrInvalidCursor = errors.New("searchpager: invalid cursor")
	// ErrRelationHydration is returned when nested relation data does not
	// match the declared relation graph.
	ErrRelationHydration = errors.New("searchpager: relation hydration failed")
	// ErrRecursionLimit is returned when relation nesting exceeds the
	// configured depth.
	ErrRecursionLimit = errors.New("searchpager: relation recursion limit exceeded")
	// ErrMissingSortValues is returned when a boundary entity carries no
	// complete sort tuple to build a navigation cursor from.
	ErrMissingSortValues = errors.New("searchpager: entity has no sort values")
)

// RelationError names the attribute path that failed to hydrate.
type RelationError struct {
	Path string
	Err  error
}

func newRelationError(path string, format string, args ...any) *RelationError {
	return &RelationError{
		Path: path,
		Err:  fmt.Errorf("%w: "+format, append([]any{ErrRelationHydration}, args...)...),
	}
}

func (e *RelationError) Error() string { return e.Path + ": " + e.Err.Error() }
func (e *RelationError) Unwrap() error { return e.Err }
