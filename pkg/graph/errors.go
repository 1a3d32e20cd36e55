package graph

import (
	"errors"
	"fmt"
)

// ErrVersionNotFound is returned by Get for version numbers the store does
// not hold (never published, or pruned by the retention policy).
var ErrVersionNotFound = errors.New("graph: version not found")

// StaleBaseError is returned by Commit when the caller's base version is not
// the current latest. The caller must refetch Latest() and resubmit; the
// store never merges concurrent edits.
type StaleBaseError struct {
	Base   int64
	Latest int64
}

func (e *StaleBaseError) Error() string {
	return fmt.Sprintf("graph: stale base version %d (latest is %d)", e.Base, e.Latest)
}

// StructuralError aborts a commit that would break a graph invariant.
// OpIndex is the index of the offending operation, or -1 when the failure is
// only detectable after the whole batch has been applied.
type StructuralError struct {
	OpIndex int
	Reason  string
}

func (e *StructuralError) Error() string {
	if e.OpIndex < 0 {
		return fmt.Sprintf("graph: structural violation: %s", e.Reason)
	}
	return fmt.Sprintf("graph: structural violation at op %d: %s", e.OpIndex, e.Reason)
}
