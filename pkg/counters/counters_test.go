package counters

import (
	"testing"

	"github.com/cuemby/streamharness/pkg/workservice"
)

func TestFilterSkipsZeroValuedSum(t *testing.T) {
	out := Filter([]workservice.CounterUpdate{
		{Name: "zero", Kind: workservice.CounterSum, Int: 0},
		{Name: "nonzero", Kind: workservice.CounterSum, Int: 5},
	})
	if len(out) != 1 || out[0].Name != "nonzero" {
		t.Errorf("expected only the nonzero counter to survive, got %+v", out)
	}
}

func TestFilterSkipsMeanWithNonPositiveCount(t *testing.T) {
	out := Filter([]workservice.CounterUpdate{
		{Name: "empty-mean", Kind: workservice.CounterMean, Int: 10, Count: 0},
		{Name: "real-mean", Kind: workservice.CounterMean, Int: 10, Count: 3},
	})
	if len(out) != 1 || out[0].Name != "real-mean" {
		t.Errorf("expected only the counted mean to survive, got %+v", out)
	}
}

func TestFilterSkipsUnknownKind(t *testing.T) {
	out := Filter([]workservice.CounterUpdate{
		{Name: "mystery", Kind: workservice.CounterKind(99), Int: 1},
	})
	if len(out) != 0 {
		t.Errorf("expected unknown-kind counter to be skipped, got %+v", out)
	}
}

func TestFilterKeepsZeroFloatCheck(t *testing.T) {
	out := Filter([]workservice.CounterUpdate{
		{Name: "floatzero", Kind: workservice.CounterMax, IsFloat: true, Float: 0},
		{Name: "floatnonzero", Kind: workservice.CounterMax, IsFloat: true, Float: 1.5},
	})
	if len(out) != 1 || out[0].Name != "floatnonzero" {
		t.Errorf("expected only the nonzero float counter to survive, got %+v", out)
	}
}
