package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"vqlbench/internal/aggregate"
	"vqlbench/internal/config"
	"vqlbench/internal/report"
	"vqlbench/internal/uploader"
	"vqlbench/internal/util"
)

const (
	metaFile    = report.MetaFile
	summaryFile = "summary.json"
	historyFile = "history.json"
)

// TierScore is one summary row of a run.
type TierScore struct {
	Label        string  `json:"difficulty"`
	Count        int     `json:"count"`
	F1           float64 `json:"f1"`
	VES          float64 `json:"ves"`
	MatchPercent float64 `json:"results_match_percent"`
	Failures     int     `json:"failures"`
}

// RunEntry is one run in the history index.
type RunEntry struct {
	Dir            string      `json:"dir"`
	RunID          string      `json:"run_id"`
	StartedAt      string      `json:"started_at"`
	Mode           string      `json:"mode"`
	Input          string      `json:"input"`
	Pairs          int         `json:"pairs"`
	Failures       int         `json:"failures"`
	Aborted        bool        `json:"aborted"`
	ConfigDigest   string      `json:"config_digest"`
	UploadLocation string      `json:"upload_location,omitempty"`
	Overall        *TierScore  `json:"overall,omitempty"`
	Tiers          []TierScore `json:"tiers,omitempty"`
}

// History is the document written to history.json.
type History struct {
	GeneratedAt string     `json:"generated_at"`
	Source      string     `json:"source"`
	Runs        []RunEntry `json:"runs"`
}

// runSource lists run directories and reads files inside them.
type runSource interface {
	runDirs(ctx context.Context) ([]string, error)
	read(ctx context.Context, dir, name string) ([]byte, error)
	display(dir string) string
}

func main() {
	input := flag.String("input", "results", "local output directory or s3://bucket/prefix")
	output := flag.String("output", ".", "directory for history.json")
	configPath := flag.String("config", "", "config file with storage.s3 settings for s3 input")
	maxBytes := flag.Int("max_bytes", 1<<20, "max bytes read per run file")
	flag.Parse()

	ctx := context.Background()
	src, err := openSource(ctx, *input, *configPath, *maxBytes)
	if err != nil {
		fail("open input: %v", err)
	}
	runs, err := loadRuns(ctx, src)
	if err != nil {
		fail("load runs: %v", err)
	}
	history := History{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Source:      *input,
		Runs:        runs,
	}
	out := filepath.Join(*output, historyFile)
	if err := writeHistory(out, history); err != nil {
		fail("write history: %v", err)
	}
	fmt.Printf("indexed %d runs into %s\n", len(runs), out)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func openSource(ctx context.Context, input, configPath string, maxBytes int) (runSource, error) {
	if !strings.HasPrefix(input, "s3://") {
		return localSource{root: input, maxBytes: maxBytes}, nil
	}
	bucket, prefix, err := parseS3URI(input)
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	if configPath != "" {
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	client, err := uploader.NewS3Client(ctx, cfg.Storage.S3)
	if err != nil {
		return nil, err
	}
	return s3Source{client: client, bucket: bucket, prefix: prefix, maxBytes: maxBytes}, nil
}

// loadRuns reads every run with a readable run.json, newest first.
// Runs whose summary is missing or unreadable are kept without scores.
func loadRuns(ctx context.Context, src runSource) ([]RunEntry, error) {
	dirs, err := src.runDirs(ctx)
	if err != nil {
		return nil, err
	}
	runs := make([]RunEntry, 0, len(dirs))
	for _, dir := range dirs {
		data, err := src.read(ctx, dir, metaFile)
		if err != nil {
			util.Warnf("skip %s: %v", src.display(dir), err)
			continue
		}
		var meta report.Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			util.Warnf("skip %s: decode %s: %v", src.display(dir), metaFile, err)
			continue
		}
		entry := entryFromMeta(src.display(dir), meta)
		if data, err := src.read(ctx, dir, summaryFile); err == nil {
			var rows []TierScore
			if err := json.Unmarshal(data, &rows); err != nil {
				util.Warnf("%s: decode %s: %v", src.display(dir), summaryFile, err)
			} else {
				entry.Overall, entry.Tiers = splitOverall(rows)
			}
		}
		runs = append(runs, entry)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt > runs[j].StartedAt
	})
	return runs, nil
}

func entryFromMeta(dir string, meta report.Meta) RunEntry {
	id := meta.RunID
	if strings.TrimSpace(id) == "" {
		id = path.Base(filepath.ToSlash(dir))
	}
	return RunEntry{
		Dir:            dir,
		RunID:          id,
		StartedAt:      meta.StartedAt,
		Mode:           meta.Mode,
		Input:          meta.Input,
		Pairs:          meta.Pairs,
		Failures:       meta.Failures,
		Aborted:        meta.Aborted,
		ConfigDigest:   meta.ConfigDigest,
		UploadLocation: meta.UploadLocation,
	}
}

func splitOverall(rows []TierScore) (*TierScore, []TierScore) {
	var overall *TierScore
	tiers := make([]TierScore, 0, len(rows))
	for i := range rows {
		if rows[i].Label == aggregate.OverallLabel {
			overall = &rows[i]
			continue
		}
		tiers = append(tiers, rows[i])
	}
	return overall, tiers
}

func writeHistory(out string, history History) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(f, "history output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(history)
}

type localSource struct {
	root     string
	maxBytes int
}

func (s localSource) runDirs(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, metaFile)); err != nil {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

func (s localSource) read(_ context.Context, dir, name string) ([]byte, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	defer util.CloseWithErr(f, "history input")
	return readLimited(f, s.maxBytes)
}

func (s localSource) display(dir string) string {
	return dir
}

type s3Source struct {
	client   *s3.Client
	bucket   string
	prefix   string
	maxBytes int
}

func (s s3Source) runDirs(ctx context.Context) ([]string, error) {
	var dirs []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/"+metaFile) {
				dirs = append(dirs, strings.TrimSuffix(key, "/"+metaFile))
			}
		}
	}
	return dirs, nil
}

func (s s3Source) read(ctx context.Context, dir, name string) ([]byte, error) {
	key := dir + "/" + name
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", key)
	}
	defer util.CloseWithErr(resp.Body, "s3 response body")
	return readLimited(resp.Body, s.maxBytes)
}

func (s s3Source) display(dir string) string {
	return "s3://" + s.bucket + "/" + dir
}

// readLimited rejects inputs larger than maxBytes.
func readLimited(r io.Reader, maxBytes int) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(maxBytes)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBytes {
		return nil, errors.Errorf("file exceeds %d bytes", maxBytes)
	}
	return data, nil
}

func parseS3URI(input string) (bucket string, prefix string, err error) {
	trimmed := strings.TrimPrefix(input, "s3://")
	if trimmed == "" {
		return "", "", errors.New("missing s3 bucket")
	}
	parts := strings.SplitN(trimmed, "/", 2)
	bucket = parts[0]
	if bucket == "" {
		return "", "", errors.New("missing s3 bucket")
	}
	if len(parts) == 2 {
		prefix = strings.TrimPrefix(parts[1], "/")
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
	}
	return bucket, prefix, nil
}
