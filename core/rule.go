package core

import (
	"time"

	"github.com/dlclark/regexp2"
)

// RuleKind is the evaluation strategy of a rule, resolved once when the
// catalog is loaded.
type RuleKind int

const (
	// RuleKindInert rules define neither a condition nor window+threshold and never fire
	RuleKindInert RuleKind = iota
	// RuleKindPattern rules fire when Pattern matches anywhere in the event message
	RuleKindPattern
	// RuleKindThreshold rules fire when enough events with the same hostname and tag
	// were stored inside Window. A non-nil Pattern gates the triggering event.
	RuleKindThreshold
)

// String returns the string representation
func (k RuleKind) String() string {
	switch k {
	case RuleKindPattern:
		return "pattern"
	case RuleKindThreshold:
		return "threshold"
	default:
		return "inert"
	}
}

// Rule is a resolved detection rule. Rules are built by the catalog loader
// and never mutated afterwards.
type Rule struct {
	ID          string
	Name        string
	Description string
	Severity    Severity
	Tags        []string
	Condition   string
	Window      time.Duration
	Threshold   int
	Actions     []string

	Kind    RuleKind
	Pattern *regexp2.Regexp
}

