package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"vqlbench/internal/config"
	"vqlbench/internal/engine"
	"vqlbench/internal/repro"
	"vqlbench/internal/runner"
	"vqlbench/internal/util"
)

func main() {
	runDir := flag.String("run_dir", "", "path to a finished run directory")
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	ids := flag.String("ids", "", "comma separated pair ids to re-score")
	onlyFailed := flag.Bool("failed", false, "re-score only pairs that scored zero or failed")
	mode := flag.String("mode", "", "evaluation mode, overrides evaluation.mode")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if *runDir == "" {
		fmt.Fprintln(os.Stderr, "run_dir is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *mode != "" {
		cfg.Evaluation.Mode = strings.ToLower(*mode)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid mode: %v\n", err)
			os.Exit(1)
		}
	}
	util.SetVerbose(true)

	cases, err := repro.LoadCases(repro.Options{RunDir: *runDir, IDs: splitIDs(*ids), OnlyFailed: *onlyFailed})
	if err != nil {
		fmt.Fprintf(os.Stderr, "load cases: %v\n", err)
		os.Exit(1)
	}
	if len(cases) == 0 {
		fmt.Println("no pairs selected")
		return
	}
	ctx := context.Background()
	exec, closer, err := engine.Open(ctx, cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open executor: %v\n", err)
		os.Exit(1)
	}
	comparisons, err := repro.Run(ctx, runner.New(cfg, exec), cases)
	util.CloseWithErr(closer, "executor")
	if err != nil {
		fmt.Fprintf(os.Stderr, "repro failed: %v\n", err)
		os.Exit(1)
	}
	printComparisons(os.Stdout, comparisons)
}

func splitIDs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func printComparisons(w io.Writer, comparisons []repro.Comparison) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tf1 then\tf1 now\tmatch then\tmatch now\treward then\treward now\tfailure now\tchanged")
	for _, c := range comparisons {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%d\t%d\t%.2f\t%.2f\t%s\t%t\n",
			c.Pair.ID, c.Recorded.F1, c.Current.F1, c.Recorded.ResultsMatch, c.Current.ResultsMatch,
			c.Recorded.Reward, c.Current.Reward, c.Current.Failure, c.Changed())
	}
	_ = tw.Flush()
}
