package config

import (
	"path"
	"strings"
)

// Normalize trims config patterns and removes empty values.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.ExcludeTables = normalizePatterns(c.ExcludeTables)
}

// IsTableExcluded reports whether table matches exclude patterns.
func (c *Config) IsTableExcluded(table string) bool {
	if c == nil || len(c.ExcludeTables) == 0 {
		return false
	}

	normalized := normalizePattern(table)
	if normalized == "" {
		return false
	}

	for _, pattern := range c.ExcludeTables {
		if patternMatches(pattern, normalized) {
			return true
		}
	}

	return false
}

func normalizePatterns(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, pattern := range values {
		p := normalizePattern(pattern)
		if p == "" {
			continue
		}
		normalized = append(normalized, p)
	}
	return normalized
}

func normalizePattern(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func patternMatches(pattern, value string) bool {
	normalizedPattern := normalizePattern(pattern)
	normalizedValue := normalizePattern(value)
	if normalizedPattern == "" || normalizedValue == "" {
		return false
	}

	// Invalid glob patterns are treated as exact matches.
	matched, err := path.Match(normalizedPattern, normalizedValue)
	if err == nil {
		return matched
	}
	return normalizedPattern == normalizedValue
}
