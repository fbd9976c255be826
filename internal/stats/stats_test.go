package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummaryStats(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	if got := Mean(xs); !almostEqual(got, 2.5) {
		t.Fatalf("Mean=%v", got)
	}
	if got := Median(xs); !almostEqual(got, 2.5) {
		t.Fatalf("Median=%v", got)
	}
	if got := Median([]float64{5, 1, 3}); !almostEqual(got, 3) {
		t.Fatalf("Median odd=%v", got)
	}
	if got := Variance(xs); !almostEqual(got, 1.25) {
		t.Fatalf("Variance=%v", got)
	}
	if got := Std(xs); !almostEqual(got, math.Sqrt(1.25)) {
		t.Fatalf("Std=%v", got)
	}
	empty := Summarize(nil)
	if empty != (Summary{}) {
		t.Fatalf("empty summary should be zero, got %+v", empty)
	}
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	xs := []float64{3, 1, 2}
	_ = Median(xs)
	if xs[0] != 3 || xs[1] != 1 || xs[2] != 2 {
		t.Fatalf("input reordered: %v", xs)
	}
}

func TestCleanAbnormal(t *testing.T) {
	cases := []struct {
		name string
		in   []float64
		want []float64
	}{
		{name: "drops extreme", in: []float64{1, 1, 1, 1, 1, 100}, want: []float64{1, 1, 1, 1, 1}},
		{name: "identical survive", in: []float64{1.5, 1.5, 1.5}, want: []float64{1.5, 1.5, 1.5}},
		{name: "small sample", in: []float64{1, 100}, want: []float64{1, 100}},
		{name: "three samples unchanged", in: []float64{1, 1.01, 0.5}, want: []float64{1, 1.01, 0.5}},
		{name: "three samples with spike unchanged", in: []float64{1, 1, 100}, want: []float64{1, 1, 100}},
		{name: "four samples filtered", in: []float64{1, 1, 1, 100}, want: []float64{1, 1, 1}},
		{name: "empty", in: nil, want: []float64{}},
		{name: "spread kept", in: []float64{0.9, 1.0, 1.1, 1.2}, want: []float64{0.9, 1.0, 1.1, 1.2}},
	}
	for _, c := range cases {
		got := CleanAbnormal(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%s: CleanAbnormal(%v)=%v, want %v", c.name, c.in, got, c.want)
		}
		for i := range got {
			if !almostEqual(got[i], c.want[i]) {
				t.Fatalf("%s: CleanAbnormal(%v)=%v, want %v", c.name, c.in, got, c.want)
			}
		}
	}
}
