// internal/criteria/allowlist.go
package criteria

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"kothwatch/internal/token"
)

// Allowlist is the set of benign warnings that do not disqualify a
// coin. Flags are matched case-insensitively on name, description, and
// level together.
type Allowlist []token.RiskFlag

// DefaultAllowlist returns the built-in benign warnings.
func DefaultAllowlist() Allowlist {
	return Allowlist{
		{
			Name:        "Copycat token",
			Description: "This token is using a verified tokens symbol",
			Level:       "warn",
		},
		{
			Name:        "Low amount of LP Providers",
			Description: "Only a few users are providing liquidity",
			Level:       "warn",
		},
	}
}

// Permits reports whether the flag exactly matches an allow-list entry,
// ignoring case.
func (a Allowlist) Permits(flag token.RiskFlag) bool {
	for _, allowed := range a {
		if strings.EqualFold(flag.Name, allowed.Name) &&
			strings.EqualFold(flag.Description, allowed.Description) &&
			strings.EqualFold(flag.Level, allowed.Level) {
			return true
		}
	}
	return false
}

type allowlistFile struct {
	Allowed []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Level       string `yaml:"level"`
	} `yaml:"allowed_warnings"`
}

// LoadAllowlist reads an allow-list from a YAML file. An empty path
// returns the built-in defaults.
func LoadAllowlist(path string) (Allowlist, error) {
	if path == "" {
		return DefaultAllowlist(), nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read allowlist file: %w", err)
	}

	var file allowlistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse allowlist YAML: %w", err)
	}

	list := make(Allowlist, 0, len(file.Allowed))
	for _, entry := range file.Allowed {
		if entry.Name == "" || entry.Level == "" {
			continue
		}
		list = append(list, token.RiskFlag{
			Name:        entry.Name,
			Description: entry.Description,
			Level:       entry.Level,
		})
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("no valid entries in allowlist file %s", path)
	}
	return list, nil
}
