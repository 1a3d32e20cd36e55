package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rmax-ai/netlord/pkg/graph"
)

// Engine owns an ordered, code-deduplicated rule registry and the named rule
// sets built over it. Engines are immutable after construction: re-registering
// rules means building a new engine. There is deliberately no process-wide
// registry, so independently configured engines can coexist (per-project rule
// customization, tests).
type Engine struct {
	rules map[string]Rule
	order []string
	sets  map[string][]string
}

// NewEngine builds an engine from an ordered rule list and named rule sets.
// Duplicate codes keep the first registration. A set referencing an unknown
// rule code is a configuration error and fails construction.
func NewEngine(ruleList []Rule, sets map[string][]string) (*Engine, error) {
	e := &Engine{
		rules: make(map[string]Rule, len(ruleList)),
		sets:  make(map[string][]string, len(sets)),
	}
	for _, r := range ruleList {
		if _, dup := e.rules[r.Code()]; dup {
			continue
		}
		e.rules[r.Code()] = r
		e.order = append(e.order, r.Code())
	}
	for name, codes := range sets {
		resolved := make([]string, 0, len(codes))
		for _, code := range codes {
			if _, ok := e.rules[code]; !ok {
				return nil, fmt.Errorf("rules: set %q references unknown rule %q", name, code)
			}
			resolved = append(resolved, code)
		}
		e.sets[name] = resolved
	}
	return e, nil
}

// RuleSets returns the registered rule set names, sorted.
func (e *Engine) RuleSets() []string {
	names := make([]string, 0, len(e.sets))
	for name := range e.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run evaluates the named rule set against the version and returns the merged,
// sorted report. Rules are pure functions of the immutable version, so they
// run concurrently; ordering is imposed during assembly, never by execution.
func (e *Engine) Run(v *graph.Version, setName string) (*Report, error) {
	codes, ok := e.sets[setName]
	if !ok {
		return nil, &UnknownRuleSetError{Name: setName}
	}

	results := make([][]Violation, len(codes))
	var wg sync.WaitGroup
	for i, code := range codes {
		rule := e.rules[code]
		wg.Add(1)
		go func(i int, rule Rule) {
			defer wg.Done()
			out := rule.Evaluate(v)
			// Clamp to the rule's severity floor: category-specific rules may
			// raise a shared condition's severity but never lower it.
			for j := range out {
				if out[j].Severity < rule.Floor() {
					out[j].Severity = rule.Floor()
				}
			}
			results[i] = out
		}(i, rule)
	}
	wg.Wait()

	merged := mergeViolations(results)

	report := &Report{
		Version:    v.N,
		RuleSet:    setName,
		Checks:     append([]string(nil), codes...),
		Violations: merged,
		Valid:      true,
	}
	for _, viol := range merged {
		if viol.Severity >= SeverityError {
			report.Valid = false
			break
		}
	}
	return report, nil
}

// mergeViolations deduplicates and orders raw rule output. Violations with
// identical (code, location) collapse to a single entry at the maximum
// severity; exact duplicates disappear. Cross-code suppression is
// intentionally absent — every rule's findings are independent.
func mergeViolations(results [][]Violation) []Violation {
	type key struct {
		code string
		loc  string
	}
	best := make(map[key]Violation)
	for _, batch := range results {
		for _, viol := range batch {
			k := key{code: viol.Code, loc: viol.locationKey()}
			cur, seen := best[k]
			if !seen {
				best[k] = viol
				continue
			}
			if viol.Severity > cur.Severity {
				best[k] = viol
			} else if viol.Severity == cur.Severity && viol.Message < cur.Message {
				// Deterministic tie-break for same-severity disagreements.
				best[k] = viol
			}
		}
	}

	out := make([]Violation, 0, len(best))
	for _, viol := range best {
		out = append(out, viol)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].locationKey() < out[j].locationKey()
	})
	return out
}
