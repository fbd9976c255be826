package bench

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestParseDifficulty(t *testing.T) {
	cases := []struct {
		in    any
		tier  Tier
		label string
	}{
		{1, Simple, "simple"},
		{int64(2), Moderate, "moderate"},
		{3.0, Challenging, "challenging"},
		{"1", Simple, "simple"},
		{"2", Moderate, "moderate"},
		{" 3 ", Challenging, "challenging"},
		{"Simple", Simple, "simple"},
		{"MODERATE", Moderate, "moderate"},
		{"challenging", Challenging, "challenging"},
		{4, Unclassified, "4"},
		{2.5, Unclassified, "2.5"},
		{"expert", Unclassified, "expert"},
		{nil, Unclassified, "unclassified"},
		{"", Unclassified, "unclassified"},
	}
	for _, c := range cases {
		got := ParseDifficulty(c.in)
		if got.Tier != c.tier || got.Label() != c.label {
			t.Fatalf("ParseDifficulty(%#v)=%+v label=%q, want tier=%v label=%q", c.in, got, got.Label(), c.tier, c.label)
		}
	}
}

func TestValidate(t *testing.T) {
	ok := []QueryPair{{Index: 0, ID: "a"}, {Index: 1, ID: "b"}}
	if err := Validate(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cases := [][]QueryPair{
		{{Index: 0, ID: "a"}, {Index: 0, ID: "b"}},
		{{Index: 0, ID: "a"}, {Index: 1, ID: "a"}},
		{{Index: 0}},
		{{Index: -1, ID: "a"}},
	}
	for i, c := range cases {
		if err := Validate(c); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "pairs.yaml", `
- generated_vql: SELECT 1
  ground_truth_vql: SELECT 1
  difficulty: 1
  total_execution_time: 2.5
- generated_vql: SELECT 2
  ground_truth_vql: SELECT 3
  difficulty: Moderate
  id: q-2
`)
	pairs, err := Load(path, Columns{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].ID != "0" || pairs[0].Difficulty.Tier != Simple || pairs[0].Timings.Total != 2.5 {
		t.Fatalf("unexpected first pair: %+v", pairs[0])
	}
	if pairs[1].ID != "q-2" || pairs[1].Difficulty.Tier != Moderate || pairs[1].GroundTruth != "SELECT 3" {
		t.Fatalf("unexpected second pair: %+v", pairs[1])
	}
}

func TestLoadCSVCustomColumns(t *testing.T) {
	path := writeFile(t, "pairs.csv", "idx,pred,truth,level\n7,SELECT a,SELECT b,3\n9,\"SELECT c, d\",SELECT e,easy\n")
	pairs, err := Load(path, Columns{Generated: "pred", GroundTruth: "truth", Difficulty: "level", Index: "idx"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pairs) != 2 || pairs[0].Index != 7 || pairs[1].Index != 9 {
		t.Fatalf("unexpected pairs: %+v", pairs)
	}
	if pairs[1].Generated != "SELECT c, d" {
		t.Fatalf("unexpected generated text %q", pairs[1].Generated)
	}
	if pairs[0].Difficulty.Tier != Challenging || pairs[1].Difficulty.Tier != Unclassified || pairs[1].Difficulty.Label() != "easy" {
		t.Fatalf("unexpected difficulties: %+v %+v", pairs[0].Difficulty, pairs[1].Difficulty)
	}
}

func TestLoadMissingColumn(t *testing.T) {
	path := writeFile(t, "pairs.json", `[{"generated_vql": "SELECT 1"}]`)
	if _, err := Load(path, Columns{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "pairs.xlsx", "")
	if _, err := Load(path, Columns{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
