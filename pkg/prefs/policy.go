package prefs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPolicy answers which providers are opted in when a recipient has no
// explicit setting row. It is the resolution input for ValueDefault.
type DefaultPolicy interface {
	// EnabledByDefault reports whether the provider delivers notifications
	// of the given alert type absent any explicit preference.
	EnabledByDefault(t AlertType, p Provider) bool
}

// StaticPolicy is an immutable in-memory default policy table mapping each
// alert type to its default-enabled providers.
type StaticPolicy map[AlertType][]Provider

// EnabledByDefault implements DefaultPolicy.
func (sp StaticPolicy) EnabledByDefault(t AlertType, p Provider) bool {
	for _, enabled := range sp[t] {
		if enabled == p {
			return true
		}
	}
	return false
}

// DefaultPolicyTable returns the built-in policy: email and slack are opted
// in for every alert type, msteams requires an explicit opt-in.
func DefaultPolicyTable() StaticPolicy {
	table := make(StaticPolicy, len(AlertTypes()))
	for _, t := range AlertTypes() {
		table[t] = []Provider{ProviderEmail, ProviderSlack}
	}
	return table
}

// ParsePolicy decodes a YAML policy document of the form:
//
//	alerts: [email, slack]
//	deploy: [email]
//
// Unknown alert types or providers are rejected so a typo in the policy file
// fails at startup instead of silently dropping notifications.
func ParsePolicy(data []byte) (StaticPolicy, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse default policy: %w", err)
	}

	known := make(map[AlertType]struct{}, len(AlertTypes()))
	for _, t := range AlertTypes() {
		known[t] = struct{}{}
	}
	catalog := make(map[Provider]struct{}, len(PersonalProviders()))
	for _, p := range PersonalProviders() {
		catalog[p] = struct{}{}
	}

	table := make(StaticPolicy, len(raw))
	for key, providers := range raw {
		t := AlertType(key)
		if _, ok := known[t]; !ok {
			return nil, fmt.Errorf("default policy references unknown alert type %q", key)
		}
		for _, name := range providers {
			p := Provider(name)
			if _, ok := catalog[p]; !ok {
				return nil, fmt.Errorf("default policy references unknown provider %q", name)
			}
			table[t] = append(table[t], p)
		}
	}
	return table, nil
}

// LoadPolicyFile reads and parses a YAML policy file.
func LoadPolicyFile(path string) (StaticPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read default policy file: %w", err)
	}
	return ParsePolicy(data)
}
