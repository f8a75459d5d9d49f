// ABOUTME: Relationship strength levels and the internal-to-external collapse table
// ABOUTME: Five internal levels map onto the three-bucket public contract
package models

import "fmt"

// Strength is the internal five-level trust classification.
type Strength string

const (
	StrengthNone     Strength = "none"
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
	StrengthTrusted  Strength = "trusted"
)

// ExternalStrength is the simplified strength surfaced to classification callers.
type ExternalStrength string

const (
	ExternalNone   ExternalStrength = "none"
	ExternalWeak   ExternalStrength = "weak"
	ExternalStrong ExternalStrength = "strong"
)

// collapseTable is the single source of truth for the public mapping.
// Moderate and Trusted both surface as Strong.
var collapseTable = map[Strength]ExternalStrength{
	StrengthNone:     ExternalNone,
	StrengthWeak:     ExternalWeak,
	StrengthModerate: ExternalStrong,
	StrengthStrong:   ExternalStrong,
	StrengthTrusted:  ExternalStrong,
}

// Collapse maps an internal strength to its external bucket.
// Unknown values collapse to None.
func Collapse(s Strength) ExternalStrength {
	if ext, ok := collapseTable[s]; ok {
		return ext
	}
	return ExternalNone
}

// ParseStrength validates a stored strength value.
func ParseStrength(s string) (Strength, error) {
	st := Strength(s)
	if _, ok := collapseTable[st]; !ok {
		return "", fmt.Errorf("unknown strength %q", s)
	}
	return st, nil
}

// Label returns a human-readable name, e.g. "Strong".
func (s Strength) Label() string {
	switch s {
	case StrengthNone:
		return "None"
	case StrengthWeak:
		return "Weak"
	case StrengthModerate:
		return "Moderate"
	case StrengthStrong:
		return "Strong"
	case StrengthTrusted:
		return "Trusted"
	}
	return string(s)
}
