package client

import (
	"fmt"
	"time"

	"github.com/rmax-ai/netlord/pkg/patch"
	"github.com/rmax-ai/netlord/pkg/rules"
)

// PatchResult is the outcome of a patch or netlist submission.
type PatchResult struct {
	// Version is the new graph version number.
	Version int64 `json:"version"`
	// Report is the validation report, nil when validation was unavailable.
	Report *rules.Report `json:"report,omitempty"`
	// Inverse is the undo batch for this submission.
	Inverse *patch.Batch `json:"inverse,omitempty"`
	// ValidationUnavailable is set when the commit landed unvalidated.
	ValidationUnavailable bool   `json:"validation_unavailable,omitempty"`
	// ValidationError describes why validation did not run.
	ValidationError string `json:"validation_error,omitempty"`
}

// StaleBaseError is returned when the daemon rejected the submission because
// the base version is no longer the latest. Latest tells the caller what to
// rebase onto.
type StaleBaseError struct {
	Base   int64 `json:"base"`
	Latest int64 `json:"latest"`
}

func (e *StaleBaseError) Error() string {
	return fmt.Sprintf("stale base version %d, latest is %d", e.Base, e.Latest)
}

// BatchRejectedError is returned for malformed or invariant-breaking batches.
// Retrying the same batch cannot succeed.
type BatchRejectedError struct {
	Code    string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (e *BatchRejectedError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("batch rejected (%s): %s", e.Code, e.Details)
	}
	return fmt.Sprintf("batch rejected (%s)", e.Code)
}

// Status represents the health check response.
type Status struct {
	// Status is the health status string (e.g. "ok").
	Status string `json:"status"`
}

// VersionInfo is one row of the daemon's version history listing.
type VersionInfo struct {
	Version     int64     `json:"version"`
	TsCommitted time.Time `json:"ts_committed"`
	Namespace   string    `json:"namespace,omitempty"`
	NodeCount   int       `json:"node_count"`
	EdgeCount   int       `json:"edge_count"`
}
