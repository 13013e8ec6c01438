package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/speciate/internal/ir"
)

// Snapshot is the canonical form of a scenario run used for golden files.
type Snapshot struct {
	Name   string
	Target string
	Result *Result
}

// toCanonicalMap converts a snapshot to the value types ir.MarshalCanonical
// accepts. Errors and the pass flag are left out; they are asserted
// separately.
func (s *Snapshot) toCanonicalMap() map[string]any {
	events := make([]any, len(s.Result.Trace))
	for i, e := range s.Result.Trace {
		m := map[string]any{
			"seq":     e.Seq,
			"op":      e.Op,
			"type":    e.Type,
			"species": e.Species,
		}
		switch e.Op {
		case OpBind:
			m["pos"] = e.Pos
			m["value"] = e.Value
		case OpInvoke:
			args := e.Args
			if args == nil {
				args = []string{}
			}
			m["args"] = args
			if e.Result != "" {
				m["result"] = e.Result
			}
		}
		if e.Error != "" {
			m["error"] = e.Error
		}
		events[i] = m
	}

	units := s.Result.Units
	if units == nil {
		units = []string{}
	}
	return map[string]any{
		"name":    s.Name,
		"target":  s.Target,
		"events":  events,
		"type":    s.Result.Type,
		"species": s.Result.Species,
		"rebinds": s.Result.Rebinds,
		"units":   units,
	}
}

// MarshalSnapshot renders a result as canonical JSON.
func MarshalSnapshot(scenario *Scenario, result *Result) ([]byte, error) {
	s := &Snapshot{Name: scenario.Name, Target: scenario.Target, Result: result}
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden runs a scenario and compares its snapshot with
// testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	data, err := MarshalSnapshot(scenario, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result, nil
}
