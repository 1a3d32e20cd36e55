// Package store persists the daemon's durable state in SQLite: committed
// graph versions, violation reports, registered webhooks, leases, and small
// pieces of system state such as dispatcher cursors.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// VersionRecord is an archived graph version. Payload is the version's
// canonical JSON encoding; counts are denormalized for listing without
// decoding the payload.
type VersionRecord struct {
	Version    int64           `json:"version"`
	TsCommitted time.Time      `json:"ts_committed"`
	Namespace  string          `json:"namespace,omitempty"`
	NodeCount  int             `json:"node_count"`
	EdgeCount  int             `json:"edge_count"`
	Payload    json.RawMessage `json:"payload"`
}

// ReportRecord is an archived violation report.
type ReportRecord struct {
	ID       int64           `json:"id"`
	Version  int64           `json:"version"`
	RuleSet  string          `json:"rule_set"`
	TsRun    time.Time       `json:"ts_run"`
	Valid    bool            `json:"valid"`
	Payload  json.RawMessage `json:"payload"`
}

// WebhookConfig is a registered webhook endpoint for report notifications.
type WebhookConfig struct {
	WebhookID string    `json:"webhook_id"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// Lease represents a distributed lock or leadership claim.
type Lease struct {
	Name      string    `json:"name"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Version   int64     `json:"version"` // CAS counter
}

// LeaseStore defines the interface for acquiring and renewing leases. The
// SQLite archive implements it directly; pkg/store/redis provides an
// alternative backend for multi-host deployments.
type LeaseStore interface {
	// Acquire tries to acquire the lease. Returns true if successful.
	// If the lease is already held by holderID, it renews it.
	Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error)

	// Renew updates the expiry of an existing lease held by holderID.
	// Returns an error if the lease is lost or stolen.
	Renew(ctx context.Context, name, holderID string, ttl time.Duration) error

	// Release releases the lease if held by holderID.
	Release(ctx context.Context, name, holderID string) error

	// Get returns the current lease state, or nil if none is held.
	Get(ctx context.Context, name string) (*Lease, error)
}
