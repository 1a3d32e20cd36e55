// Package rules implements the deterministic ERC/DRC validation layer: the
// Rule abstraction, the built-in electrical and design rules, and the engine
// that runs named rule sets against immutable graph versions.
package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rmax-ai/netlord/pkg/graph"
	"github.com/rmax-ai/netlord/pkg/patch"
)

// Severity classifies a violation. The ordering is total: Info < Warning <
// Error < Fatal.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

var severityNames = map[Severity]string{
	SeverityInfo:    "info",
	SeverityWarning: "warning",
	SeverityError:   "error",
	SeverityFatal:   "fatal",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalJSON encodes the severity as its lowercase name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity from its lowercase name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for sev, n := range severityNames {
		if n == name {
			*s = sev
			return nil
		}
	}
	return fmt.Errorf("rules: unknown severity %q", name)
}

// SuggestedFix pairs a human-readable description with a patch batch that
// would resolve the violation.
type SuggestedFix struct {
	Description string       `json:"description"`
	Patch       *patch.Batch `json:"patch,omitempty"`
}

// Violation is one deterministic rule failure. Immutable after construction;
// it never references an id absent from the version it was produced against.
type Violation struct {
	Code          string            `json:"code"`
	Severity      Severity          `json:"severity"`
	Message       string            `json:"message"`
	Nodes         []string          `json:"nodes,omitempty"`
	Edges         []string          `json:"edges,omitempty"`
	Context       map[string]string `json:"context,omitempty"`
	SuggestedFixes []SuggestedFix   `json:"suggested_fixes,omitempty"`
}

// locationKey returns a stable key over the implicated node and edge ids.
func (v *Violation) locationKey() string {
	return strings.Join(v.Nodes, ",") + "|" + strings.Join(v.Edges, ",")
}

// Report is the merged, ordered outcome of running a rule set against one
// graph version. Violations are sorted severity descending, then code
// ascending, then location ascending — a total order independent of rule
// registration order.
type Report struct {
	Version    int64       `json:"version"`
	RuleSet    string      `json:"rule_set"`
	Checks     []string    `json:"checks_run"`
	Violations []Violation `json:"violations"`
	Valid      bool        `json:"valid"`
}

// Category separates electrical rules from design rules.
type Category string

const (
	CategoryERC Category = "erc"
	CategoryDRC Category = "drc"
)

// DomainPower tags rules belonging to the power sub-domain. Power rules carry
// a warning floor: they may raise a shared condition's severity, never lower it.
const DomainPower = "power"

// Rule is a pure function of one immutable graph version. Implementations
// must not keep hidden state or perform I/O; that is what makes validation
// deterministic and cacheable by version number.
type Rule interface {
	Code() string
	Category() Category
	Domain() string
	Floor() Severity
	Evaluate(v *graph.Version) []Violation
}

type ruleFunc struct {
	code     string
	category Category
	domain   string
	floor    Severity
	fn       func(v *graph.Version) []Violation
}

func (r *ruleFunc) Code() string                           { return r.code }
func (r *ruleFunc) Category() Category                     { return r.category }
func (r *ruleFunc) Domain() string                         { return r.domain }
func (r *ruleFunc) Floor() Severity                        { return r.floor }
func (r *ruleFunc) Evaluate(v *graph.Version) []Violation { return r.fn(v) }

// NewRule wraps an evaluation function as a Rule. Concrete rules are data,
// not control flow: register them with an Engine, no subclassing involved.
func NewRule(code string, category Category, domain string, floor Severity, fn func(v *graph.Version) []Violation) Rule {
	return &ruleFunc{code: code, category: category, domain: domain, floor: floor, fn: fn}
}

// UnknownRuleSetError reports a rule set name absent from the engine's
// registry. A configuration error, not a graph problem.
type UnknownRuleSetError struct {
	Name string
}

func (e *UnknownRuleSetError) Error() string {
	return fmt.Sprintf("rules: unknown rule set %q", e.Name)
}
