package harness

import (
	"fmt"
	"slices"
)

// EvaluateAssertions checks assertions against a result and returns one
// message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertSpecies:
		if result.Species != a.Key {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%q", a.Key), Actual: fmt.Sprintf("%q", result.Species)}
		}
	case AssertRebinds:
		if result.Rebinds != int64(a.Count) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Count), Actual: fmt.Sprint(result.Rebinds)}
		}
	case AssertUnitExists:
		if !slices.Contains(result.Units, a.Name) {
			return &AssertionError{Type: a.Type, Expected: a.Name, Actual: fmt.Sprint(result.Units)}
		}
	case AssertUnitCount:
		if len(result.Units) != a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Count), Actual: fmt.Sprint(len(result.Units))}
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, actual %s", e.Type, e.Expected, e.Actual)
}
