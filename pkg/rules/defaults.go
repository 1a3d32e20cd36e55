package rules

import (
	"encoding/json"
	"fmt"
	"os"
)

// Built-in rule set names.
const (
	SetERCDefault = "ERC-default"
	SetDRCPower   = "DRC-power"
	SetAll        = "all"
)

// BuiltinRules returns the standard rule list in registration order.
func BuiltinRules() []Rule {
	return []Rule{
		FloatingNet(),
		UnconnectedPin(),
		NoGroundNet(),
		ParallelSource(),
		VdsMargin(),
	}
}

// BuiltinRuleSets returns the standard set layout.
func BuiltinRuleSets() map[string][]string {
	return map[string][]string{
		SetERCDefault: {CodeFloatingNet, CodeUnconnectedPin, CodeNoGroundNet},
		SetDRCPower:   {CodeParallelSource, CodeVdsMargin},
		SetAll: {
			CodeFloatingNet, CodeUnconnectedPin, CodeNoGroundNet,
			CodeParallelSource, CodeVdsMargin,
		},
	}
}

// DefaultEngine builds an engine with the built-in rules and sets.
func DefaultEngine() *Engine {
	e, err := NewEngine(BuiltinRules(), BuiltinRuleSets())
	if err != nil {
		// Built-in sets only reference built-in codes; this cannot happen.
		panic(err)
	}
	return e
}

// LoadRuleSets reads a rule set layout from a JSON file mapping set names to
// rule code lists. Used by the daemon to override the built-in layout without
// recompiling. Missing file is not an error; the caller falls back to the
// built-ins.
func LoadRuleSets(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rule sets file: %w", err)
	}
	var sets map[string][]string
	if err := json.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("failed to parse rule sets file %s: %w", path, err)
	}
	return sets, nil
}
