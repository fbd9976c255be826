package main

import (
	"bytes"
	"strings"
	"testing"

	"vqlbench/internal/bench"
	"vqlbench/internal/repro"
	"vqlbench/internal/score"
)

func TestSplitIDs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "a", want: []string{"a"}},
		{in: " a, ,b ,", want: []string{"a", "b"}},
	}
	for _, tt := range tests {
		got := splitIDs(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Fatalf("splitIDs(%q)=%v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPrintComparisons(t *testing.T) {
	var buf bytes.Buffer
	printComparisons(&buf, []repro.Comparison{{
		Case:    repro.Case{Pair: bench.QueryPair{ID: "q7"}, Recorded: repro.Recorded{Failure: "timeout"}},
		Current: score.Result{ID: "q7", F1: 1, ResultsMatch: 1, Reward: 1},
	}})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "q7") || !strings.HasSuffix(lines[1], "true") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
