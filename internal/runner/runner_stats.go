package runner

import (
	"strings"
	"time"

	"vqlbench/internal/util"
)

func (r *Runner) startStatsLogger() func() {
	interval := time.Duration(r.cfg.Logging.ReportIntervalSeconds) * time.Second
	if interval <= 0 {
		return func() {}
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		var lastDone int64
		for {
			select {
			case <-ticker.C:
				completed := r.completed.Load()
				total := r.total.Load()
				delta := completed - lastDone
				lastDone = completed
				rate := float64(delta) / interval.Seconds()
				util.Infof(
					"progress %d/%d (+%d, %.2f pairs/s) failures=%d timeouts=%d elapsed=%s",
					completed,
					total,
					delta,
					rate,
					r.failures.Load(),
					r.timeouts.Load(),
					time.Since(r.started).Round(time.Second),
				)
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		ticker.Stop()
	}
}

func compactSQL(sqlText string, limit int) string {
	if limit <= 0 {
		limit = 200
	}
	parts := strings.Fields(sqlText)
	if len(parts) == 0 {
		return ""
	}
	return util.Truncate(strings.Join(parts, " "), limit)
}
