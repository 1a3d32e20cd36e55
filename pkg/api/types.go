package api

import (
	"github.com/rmax-ai/netlord/pkg/netlist"
	"github.com/rmax-ai/netlord/pkg/patch"
	"github.com/rmax-ai/netlord/pkg/rules"
)

// PatchRequest matches the POST /v1/patch body schema.
type PatchRequest struct {
	Base    int64        `json:"base"`
	Batch   *patch.Batch `json:"batch"`
	RuleSet string       `json:"rule_set,omitempty"`
}

// PatchResponse matches the response for POST /v1/patch and POST /v1/netlist.
type PatchResponse struct {
	Version int64         `json:"version"`
	Report  *rules.Report `json:"report,omitempty"`
	Inverse *patch.Batch  `json:"inverse,omitempty"`

	// Set when the commit landed but validation could not run.
	ValidationUnavailable bool   `json:"validation_unavailable,omitempty"`
	ValidationError       string `json:"validation_error,omitempty"`
}

// ValidateRequest matches the POST /v1/validate body schema. Version 0 (or
// absent) re-checks the latest version.
type ValidateRequest struct {
	Version int64  `json:"version,omitempty"`
	RuleSet string `json:"rule_set,omitempty"`
}

// NetlistRequest matches the POST /v1/netlist body schema: a full netlist
// document imported as one atomic batch.
type NetlistRequest struct {
	Base    int64            `json:"base"`
	Netlist *netlist.Netlist `json:"netlist"`
	RuleSet string           `json:"rule_set,omitempty"`
}

// WebhookRegistration matches the POST /v1/webhooks body schema.
type WebhookRegistration struct {
	URL string `json:"url"`
}

// WebhookResponse matches the response for POST /v1/webhooks. The secret is
// returned exactly once, at registration.
type WebhookResponse struct {
	WebhookID string `json:"webhook_id"`
	Secret    string `json:"secret"`
}
