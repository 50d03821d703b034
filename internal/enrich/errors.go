package enrich

import (
	"github.com/rotisserie/eris"
)

// Abort reasons.
var (
	ErrPersonNotFound  = eris.New("person not found")
	ErrCompanyNotFound = eris.New("company not found")
)

// AbortError reports a run that stopped before iterating. Nothing was
// written for it.
type AbortError struct {
	PersonID string
	Reason   error
}

func (e *AbortError) Error() string { return e.Reason.Error() }
func (e *AbortError) Unwrap() error { return e.Reason }
