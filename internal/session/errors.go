// internal/session/errors.go
//
// Error taxonomy for the session layer. Every operation returns a tagged
// *Error so transports can map kinds to status codes or ws error frames
// without string matching. Nothing here is ever broadcast to other
// subscribers; errors go back to the immediate caller only.

package session

import "errors"

// Kind classifies an operation failure.
type Kind string

const (
	// KindValidation: bad input shape, length, or characters. Client-caused.
	KindValidation Kind = "validation"
	// KindConflict: the request is well-formed but the session state
	// refuses it (not your turn, slot taken, game full, already joined).
	KindConflict Kind = "conflict"
	// KindNotFound: no session (or chat scope) under the given id.
	KindNotFound Kind = "not_found"
	// KindRateLimited: the caller exhausted its request window.
	KindRateLimited Kind = "rate_limited"
	// KindInternal: an invariant broke; logged at high severity, the
	// offending session is culled by the next sweep.
	KindInternal Kind = "internal"
)

// Error is the tagged result surfaced across the session boundary.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from err, defaulting to KindInternal for
// anything untagged.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func validation(err error) *Error  { return &Error{Kind: KindValidation, Err: err} }
func conflict(err error) *Error    { return &Error{Kind: KindConflict, Err: err} }
func notFound(err error) *Error    { return &Error{Kind: KindNotFound, Err: err} }
func rateLimited(err error) *Error { return &Error{Kind: KindRateLimited, Err: err} }
func internal(err error) *Error    { return &Error{Kind: KindInternal, Err: err} }
