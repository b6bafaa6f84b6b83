// Package recurrence expands recurring-schedule requests into concrete
// task instances sharing a recurrence group id.
package recurrence

import "fmt"

// Rule is a recurrence frequency.
type Rule string

const (
	None    Rule = "none"
	Daily   Rule = "daily"
	Weekly  Rule = "weekly"
	Monthly Rule = "monthly"
)

// ParseRule validates a wire-format rule string. An empty string parses
// as None.
func ParseRule(s string) (Rule, error) {
	switch Rule(s) {
	case "", None:
		return None, nil
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	}
	return "", fmt.Errorf("unknown recurrence rule: %q", s)
}

// Describe returns a human-readable description of the rule.
func (r Rule) Describe() string {
	switch r {
	case Daily:
		return "Repeats daily"
	case Weekly:
		return "Repeats weekly"
	case Monthly:
		return "Repeats monthly"
	}
	return "Does not repeat"
}
