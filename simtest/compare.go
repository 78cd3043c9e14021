// Package simtest provides differential-testing helpers for comparing
// two simulation runs of the same design.
package simtest

import (
	"testing"

	"github.com/Stateford/aion"
)

// CompareRuns runs the same design through two kernel configurations
// (e.g. a reference config and one under development) and fails the
// test if their signal values ever diverge at any comparison point.
// This is the same differential-testing idiom the teacher's ComparePart
// used to check two circuit implementations against identical stimulus;
// here both sides are the same SimKernel machinery under two configs
// rather than two hand-built parts, since the design itself is the
// thing under comparison, not the kernel.
func CompareRuns(t *testing.T, design *aion.Design, cfgA, cfgB aion.SimConfig, steps int) {
	t.Helper()

	ka, err := aion.NewSimKernel(design, cfgA)
	if err != nil {
		t.Fatalf("kernel A: %v", err)
	}
	kb, err := aion.NewSimKernel(design, cfgB)
	if err != nil {
		t.Fatalf("kernel B: %v", err)
	}
	if err := ka.Initialize(); err != nil {
		t.Fatalf("initialize A: %v", err)
	}
	if err := kb.Initialize(); err != nil {
		t.Fatalf("initialize B: %v", err)
	}

	compareSignals(t, 0, ka, kb)

	for i := 0; i < steps; i++ {
		moreA, err := ka.StepDelta()
		if err != nil {
			t.Fatalf("step A at iteration %d: %v", i, err)
		}
		moreB, err := kb.StepDelta()
		if err != nil {
			t.Fatalf("step B at iteration %d: %v", i, err)
		}
		compareSignals(t, i+1, ka, kb)
		if !moreA && !moreB {
			break
		}
	}
}

func compareSignals(t *testing.T, step int, ka, kb *aion.SimKernel) {
	t.Helper()
	sa, sb := ka.AllSignals(), kb.AllSignals()
	if len(sa) != len(sb) {
		t.Fatalf("step %d: signal count mismatch: %d vs %d", step, len(sa), len(sb))
	}
	for i := range sa {
		if sa[i].Name != sb[i].Name {
			t.Fatalf("step %d: signal %d name mismatch: %q vs %q", step, i, sa[i].Name, sb[i].Name)
		}
		if !sa[i].Value.Equal(sb[i].Value) {
			t.Fatalf("step %d: signal %q diverged: %s vs %s", step, sa[i].Name, sa[i].Value, sb[i].Value)
		}
	}
}
