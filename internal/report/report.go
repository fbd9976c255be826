// Package report writes evaluation results to a run directory.
package report

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"vqlbench/internal/aggregate"
	"vqlbench/internal/runinfo"
	"vqlbench/internal/score"
	"vqlbench/internal/util"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Archive naming for the compressed run directory.
const (
	RunArchiveName  = "run.tar.zst"
	RunArchiveCodec = "zstd"
)

// Reporter writes run artifacts to disk.
type Reporter struct {
	OutputDir   string
	Formats     []string
	UseUUIDPath bool
}

// Run describes a report directory.
type Run struct {
	ID  string
	Dir string
}

// MetaFile names the run metadata written by WriteMeta.
const MetaFile = "run.json"

// Meta is persisted as run.json.
type Meta struct {
	RunID          string             `json:"run_id"`
	StartedAt      string             `json:"started_at"`
	FinishedAt     string             `json:"finished_at"`
	Mode           string             `json:"mode"`
	Input          string             `json:"input"`
	Pairs          int                `json:"pairs"`
	Failures       int                `json:"failures"`
	Aborted        bool               `json:"aborted"`
	ConfigDigest   string             `json:"config_digest"`
	ArchiveName    string             `json:"archive_name,omitempty"`
	ArchiveCodec   string             `json:"archive_codec,omitempty"`
	UploadLocation string             `json:"upload_location,omitempty"`
	RunInfo        *runinfo.BasicInfo `json:"run_info,omitempty"`
}

// New creates a reporter that writes to outputDir.
func New(outputDir string, formats []string) *Reporter {
	if len(formats) == 0 {
		formats = []string{FormatJSON, FormatCSV}
	}
	return &Reporter{OutputDir: outputDir, Formats: formats}
}

// NewRun allocates a new run directory named after the start time and a
// time-ordered UUID.
func (r *Reporter) NewRun(started time.Time) (Run, error) {
	runID := uuid.New().String()
	if v7, err := uuid.NewV7(); err == nil {
		runID = v7.String()
	}
	runDir := fmt.Sprintf("run_%s_%s", started.UTC().Format("20060102T150405Z"), runID[:8])
	if r.UseUUIDPath {
		runDir = runID
	}
	dir := filepath.Join(r.OutputDir, runDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Run{}, errors.Wrap(err, "create run directory")
	}
	return Run{ID: runID, Dir: dir}, nil
}

// WriteResults writes the detail and summary records in every configured
// format.
func (r *Reporter) WriteResults(run Run, results []score.Result, summary aggregate.Report) error {
	details := DetailRecords(results)
	summaries := SummaryRecords(summary)
	for _, format := range r.Formats {
		var write func(io.Writer, []Record) error
		switch strings.ToLower(format) {
		case FormatJSON:
			write = writeRecordsJSON
		case FormatCSV:
			write = writeRecordsCSV
		default:
			return errors.Errorf("unknown report format %q", format)
		}
		ext := strings.ToLower(format)
		if err := writeFile(filepath.Join(run.Dir, "details."+ext), details, write); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(run.Dir, "summary."+ext), summaries, write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, records []Record, write func(io.Writer, []Record) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", filepath.Base(path))
	}
	defer util.CloseWithErr(f, "report output")
	return errors.Wrapf(write(f, records), "write %s", filepath.Base(path))
}

// WriteMeta writes run.json into the run directory.
func (r *Reporter) WriteMeta(run Run, meta Meta) error {
	meta.RunID = run.ID
	f, err := os.Create(filepath.Join(run.Dir, MetaFile))
	if err != nil {
		return errors.Wrap(err, "create run.json")
	}
	defer util.CloseWithErr(f, "run metadata")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(meta)
}

// WriteArchive packs every file of the run directory into a tar.zst archive
// stored next to them.
func (r *Reporter) WriteArchive(run Run) (name string, codec string, err error) {
	archivePath := filepath.Join(run.Dir, RunArchiveName)
	if removeErr := os.Remove(archivePath); removeErr != nil && !os.IsNotExist(removeErr) {
		return "", "", removeErr
	}
	defer func() {
		if err != nil {
			_ = os.Remove(archivePath)
		}
	}()
	file, err := os.Create(archivePath)
	if err != nil {
		return "", "", err
	}
	defer util.CloseWithErr(file, "archive output")

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return "", "", err
	}
	defer func() {
		if closeErr := zw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	tw := tar.NewWriter(zw)
	defer func() {
		if closeErr := tw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	walkErr := filepath.WalkDir(run.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || path == archivePath {
			return nil
		}
		rel, err := filepath.Rel(run.Dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer util.CloseWithErr(src, "archive source")
		_, err = io.Copy(tw, src)
		return err
	})
	if walkErr != nil {
		return "", "", walkErr
	}
	return RunArchiveName, RunArchiveCodec, nil
}
