package sim

import (
	"fmt"
	"strings"
)

// Condition is the structural grade of a bridge. A is best, D is the worst
// grade still carrying traffic, X means collapsed.
type Condition string

const (
	ConditionA Condition = "A"
	ConditionB Condition = "B"
	ConditionC Condition = "C"
	ConditionD Condition = "D"
	ConditionX Condition = "X"
)

// ParseCondition normalizes and validates a condition grade from scenario
// data.
func ParseCondition(s string) (Condition, error) {
	switch c := Condition(strings.ToUpper(strings.TrimSpace(s))); c {
	case ConditionA, ConditionB, ConditionC, ConditionD, ConditionX:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCondition, s)
	}
}

// Next returns the condition one grade down. Collapsed bridges stay
// collapsed.
func (c Condition) Next() Condition {
	switch c {
	case ConditionA:
		return ConditionB
	case ConditionB:
		return ConditionC
	case ConditionC:
		return ConditionD
	case ConditionD:
		return ConditionX
	default:
		return ConditionX
	}
}

// Collapsed reports whether the grade means the bridge is out of service.
func (c Condition) Collapsed() bool {
	return c == ConditionX
}
