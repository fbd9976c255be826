package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vqlbench/internal/aggregate"
	"vqlbench/internal/bench"
	"vqlbench/internal/report"
	"vqlbench/internal/score"
)

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		in         string
		bucket     string
		prefix     string
		shouldFail bool
	}{
		{in: "s3://bucket", bucket: "bucket"},
		{in: "s3://bucket/runs", bucket: "bucket", prefix: "runs/"},
		{in: "s3://bucket//runs/", bucket: "bucket", prefix: "runs/"},
		{in: "s3://", shouldFail: true},
		{in: "s3:///runs", shouldFail: true},
	}
	for _, tt := range tests {
		bucket, prefix, err := parseS3URI(tt.in)
		if tt.shouldFail {
			if err == nil {
				t.Fatalf("parseS3URI(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || bucket != tt.bucket || prefix != tt.prefix {
			t.Fatalf("parseS3URI(%q)=%q,%q,%v", tt.in, bucket, prefix, err)
		}
	}
}

func writeRun(t *testing.T, rep *report.Reporter, started time.Time, f1 float64) report.Run {
	t.Helper()
	run, err := rep.NewRun(started)
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	results := []score.Result{{Index: 0, ID: "a", F1: f1, Difficulty: bench.Difficulty{Tier: bench.Simple}}}
	if err := rep.WriteResults(run, results, aggregate.Summarize(results, aggregate.Options{})); err != nil {
		t.Fatalf("write results: %v", err)
	}
	meta := report.Meta{RunID: run.ID, StartedAt: started.UTC().Format(time.RFC3339), Mode: "f1", Pairs: 1}
	if err := rep.WriteMeta(run, meta); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	return run
}

func TestLoadRunsLocal(t *testing.T) {
	root := t.TempDir()
	rep := report.New(root, []string{report.FormatJSON})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := writeRun(t, rep, base, 0.25)
	newer := writeRun(t, rep, base.Add(time.Hour), 1)
	if err := os.MkdirAll(filepath.Join(root, "not_a_run"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	broken := filepath.Join(root, "broken")
	if err := os.MkdirAll(broken, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(broken, metaFile), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	runs, err := loadRuns(context.Background(), localSource{root: root, maxBytes: 1 << 20})
	if err != nil {
		t.Fatalf("loadRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %+v", runs)
	}
	if runs[0].RunID != newer.ID || runs[1].RunID != older.ID {
		t.Fatalf("runs not ordered newest first: %s %s", runs[0].RunID, runs[1].RunID)
	}
	if runs[0].Overall == nil || runs[0].Overall.F1 != 100 {
		t.Fatalf("unexpected overall: %+v", runs[0].Overall)
	}
	if len(runs[1].Tiers) != 1 || runs[1].Tiers[0].Label != "simple" || runs[1].Tiers[0].F1 != 25 {
		t.Fatalf("unexpected tiers: %+v", runs[1].Tiers)
	}
}

func TestReadLimited(t *testing.T) {
	if _, err := readLimited(strings.NewReader("12345"), 4); err == nil {
		t.Fatalf("expected size error")
	}
	data, err := readLimited(strings.NewReader("1234"), 4)
	if err != nil || string(data) != "1234" {
		t.Fatalf("readLimited=%q,%v", data, err)
	}
}

func TestWriteHistory(t *testing.T) {
	out := filepath.Join(t.TempDir(), "site", historyFile)
	history := History{Source: "results", Runs: []RunEntry{{RunID: "r1", Pairs: 3}}}
	if err := writeHistory(out, history); err != nil {
		t.Fatalf("writeHistory: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got History
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Runs) != 1 || got.Runs[0].RunID != "r1" || got.Runs[0].Pairs != 3 {
		t.Fatalf("unexpected history: %+v", got)
	}
}
