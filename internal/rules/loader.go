package rules

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRulesFromFile loads custom rules from a YAML file.
func LoadRulesFromFile(path string) ([]*Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	return LoadRules(f)
}

// LoadRules loads custom rules from a reader.
func LoadRules(r io.Reader) ([]*Rule, error) {
	var config RulesConfig
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("parse rules YAML: %w", err)
	}

	for i, rule := range config.Rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("invalid rule at index %d: %w", i, err)
		}
	}

	return config.Rules, nil
}

// Merge combines the built-in set with custom rules. A custom rule
// whose id matches a built-in replaces that built-in's pattern and
// severity in place; built-ins cannot be disabled or removed. Custom
// rules with new ids are appended in file order, skipping disabled
// ones.
func Merge(base, custom []*Rule) []*Rule {
	merged := make([]*Rule, len(base))
	copy(merged, base)

	for _, c := range custom {
		replaced := false
		for i, b := range merged {
			if b.ID == c.ID {
				override := *c
				override.Enabled = nil
				merged[i] = &override
				replaced = true
				break
			}
		}
		if !replaced && c.IsEnabled() {
			merged = append(merged, c)
		}
	}
	return merged
}

// LoadSet builds the full rule set: built-ins merged with the custom
// rules file at path, or just the built-ins when path is empty.
func LoadSet(path string) ([]*Rule, error) {
	base := Builtin()
	if path == "" {
		return base, nil
	}

	custom, err := LoadRulesFromFile(path)
	if err != nil {
		return nil, err
	}
	return Merge(base, custom), nil
}
