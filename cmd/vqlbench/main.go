package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"vqlbench/internal/aggregate"
	"vqlbench/internal/bench"
	"vqlbench/internal/config"
	"vqlbench/internal/engine"
	"vqlbench/internal/metrics"
	"vqlbench/internal/report"
	"vqlbench/internal/runner"
	"vqlbench/internal/score"
	"vqlbench/internal/uploader"
	"vqlbench/internal/util"
)

const uploadTimeout = 5 * time.Minute

type overrides struct {
	input   string
	mode    string
	workers int
	output  string
	verbose bool
}

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	var o overrides
	flag.StringVar(&o.input, "input", "", "benchmark file, overrides input.path")
	flag.StringVar(&o.mode, "mode", "", "evaluation mode: f1, ves or combined")
	flag.IntVar(&o.workers, "workers", 0, "concurrent pairs, overrides evaluation.workers")
	flag.StringVar(&o.output, "output", "", "report directory, overrides output.dir")
	flag.BoolVar(&o.verbose, "verbose", false, "log per-query details")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := applyOverrides(&cfg, o); err != nil {
		fmt.Fprintf(os.Stderr, "invalid flags: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func applyOverrides(cfg *config.Config, o overrides) error {
	if o.input != "" {
		cfg.Input.Path = o.input
	}
	if o.mode != "" {
		cfg.Evaluation.Mode = strings.ToLower(strings.TrimSpace(o.mode))
	}
	if o.workers != 0 {
		cfg.Evaluation.Workers = o.workers
	}
	if o.output != "" {
		cfg.Output.Dir = o.output
	}
	if o.verbose {
		cfg.Logging.Verbose = true
	}
	if cfg.Input.Path == "" {
		return errors.New("no benchmark file, set input.path or -input")
	}
	return cfg.Validate()
}

func run(cfg config.Config) error {
	util.SetVerbose(cfg.Logging.Verbose)
	logFile, err := util.SetupLogFile(cfg.Logging.LogFile, util.LogFileOptions{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return errors.Wrap(err, "open log file")
	}
	defer util.CloseWithErr(logFile, "log file")

	util.Infof("starting vqlbench mode=%s driver=%s workers=%d", cfg.Evaluation.Mode, cfg.Executor.Driver, cfg.Evaluation.Workers)
	util.Highlightf("config digest %s", cfg.Digest())
	if cfg.RunInfo != nil {
		util.Infof("ci run provider=%s repository=%s commit=%s", cfg.RunInfo.Provider, cfg.RunInfo.Repository, cfg.RunInfo.Commit)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	m.Serve(ctx, cfg.Metrics.ListenAddr)

	exec, closer, err := engine.Open(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(closer, "executor")

	pairs, err := bench.Load(cfg.Input.Path, inputColumns(cfg.Input))
	if err != nil {
		return errors.Wrap(err, "load benchmark")
	}

	started := time.Now()
	r := runner.New(cfg, exec, runner.WithMetrics(m))
	results, runErr := r.Run(ctx, pairs)
	if runErr != nil && errors.Is(runErr, runner.ErrBatchAbort) {
		return runErr
	}
	summary := aggregate.Summarize(results, aggregate.Options{TimeMetric: cfg.Summary.TimeMetric})
	printSummary(os.Stdout, summary)

	// The run context may already be cancelled; reporting still completes.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uploadTimeout)
	defer cancel()
	if err := writeReport(writeCtx, cfg, started, results, summary, runErr != nil); err != nil {
		return err
	}
	return runErr
}

func inputColumns(in config.InputConfig) bench.Columns {
	return bench.Columns{
		Generated:   in.GeneratedColumn,
		GroundTruth: in.GroundTruthColumn,
		Difficulty:  in.DifficultyColumn,
		Index:       in.IndexColumn,
		ID:          in.IDColumn,
		Question:    in.QuestionColumn,
	}
}

func writeReport(ctx context.Context, cfg config.Config, started time.Time, results []score.Result, summary aggregate.Report, aborted bool) error {
	rep := report.New(cfg.Output.Dir, cfg.Output.Formats)
	run, err := rep.NewRun(started)
	if err != nil {
		return err
	}
	if err := rep.WriteResults(run, results, summary); err != nil {
		return err
	}
	meta := report.Meta{
		StartedAt:    started.UTC().Format(time.RFC3339),
		FinishedAt:   time.Now().UTC().Format(time.RFC3339),
		Mode:         cfg.Evaluation.Mode,
		Input:        cfg.Input.Path,
		Pairs:        len(results),
		Failures:     summary.Overall.Failures,
		Aborted:      aborted,
		ConfigDigest: cfg.Digest(),
		RunInfo:      cfg.RunInfo,
	}
	if err := rep.WriteMeta(run, meta); err != nil {
		return err
	}
	if cfg.Output.Archive {
		name, codec, err := rep.WriteArchive(run)
		if err != nil {
			util.Warnf("archive run %s: %v", run.ID, err)
		} else {
			meta.ArchiveName, meta.ArchiveCodec = name, codec
		}
	}
	if cfg.Storage.CloudEnabled() {
		up, err := uploader.New(ctx, cfg.Storage)
		if err != nil {
			util.Warnf("upload disabled: %v", err)
		} else if location, err := up.UploadDir(ctx, run.Dir); err != nil {
			util.Warnf("upload run %s: %v", run.ID, err)
		} else {
			meta.UploadLocation = location
		}
	}
	if err := rep.WriteMeta(run, meta); err != nil {
		return err
	}
	util.Infof("report written to %s", run.Dir)
	return nil
}

func printSummary(w io.Writer, rep aggregate.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "difficulty\tcount\tf1\tmatch%%\toverlap%%\tves\tresults_match%%\tsame_rows%%\t%s_mean\t%s_median\tfailures\t\n", rep.TimeMetric, rep.TimeMetric)
	groups := append(append([]aggregate.GroupSummary(nil), rep.Groups...), rep.Overall)
	for _, g := range groups {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.4f\t%.4f\t%d\t\n",
			g.Label, g.Count, g.F1, g.PercentMatch, g.PercentOverlap, g.VES,
			g.MatchPercent, g.RowMatchPercent, g.TimeMean, g.TimeMedian, g.Failures)
	}
	_ = tw.Flush()
}
