package core

import (
	"fmt"
	"strings"
)

// Severity is the four-level scale shared by rules and alerts
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// DefaultSeverity is applied to rules that do not declare one
const DefaultSeverity = SeverityMedium

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// String returns the string representation
func (s Severity) String() string {
	return string(s)
}

// IsValid checks if the severity is one of the four levels
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// Rank orders severities from 1 (low) to 4 (critical). Unknown values rank 0.
func (s Severity) Rank() int {
	return severityRank[s]
}

// ParseSeverity parses a severity case-insensitively. An empty string yields DefaultSeverity.
func ParseSeverity(s string) (Severity, error) {
	if s == "" {
		return DefaultSeverity, nil
	}
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.IsValid() {
		return "", fmt.Errorf("invalid severity %q (must be one of low, medium, high, critical)", s)
	}
	return sev, nil
}

// CorrelationType identifies which pattern detector produced a correlation alert
type CorrelationType string

const (
	// CorrelationBruteForce marks repeated failed logins from one source to one host
	CorrelationBruteForce CorrelationType = "BRUTE_FORCE"
	// CorrelationPortScan marks one source probing many distinct ports
	CorrelationPortScan CorrelationType = "PORT_SCAN"
	// CorrelationLateralMovement marks one identity touching many resources
	CorrelationLateralMovement CorrelationType = "LATERAL_MOVEMENT"
)

// String returns the string representation
func (t CorrelationType) String() string {
	return string(t)
}
