package report

import (
	"strings"

	"vqlbench/internal/aggregate"
	"vqlbench/internal/score"
)

// Field is one column of a record.
type Field struct {
	Key   string
	Value any
}

// Record is an ordered set of columns. Column order is fixed per record kind
// so JSON and CSV output stay stable.
type Record []Field

// Keys returns the column names in order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for _, f := range r {
		keys = append(keys, f.Key)
	}
	return keys
}

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the record as an object in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteString("{")
	for i, f := range r {
		if i > 0 {
			b.WriteString(",")
		}
		if err := writeScalarJSON(&b, f.Key); err != nil {
			return nil, err
		}
		b.WriteString(":")
		if err := writeOrderedJSON(&b, f.Value); err != nil {
			return nil, err
		}
	}
	b.WriteString("}")
	return []byte(b.String()), nil
}

// DetailRecords renders one record per result, in result order.
func DetailRecords(results []score.Result) []Record {
	out := make([]Record, 0, len(results))
	for _, r := range results {
		var syntaxValid any
		if r.SyntaxValid != nil {
			syntaxValid = *r.SyntaxValid
		}
		out = append(out, Record{
			{"index", r.Index},
			{"id", r.ID},
			{"question", r.Question},
			{"difficulty", r.Difficulty.Label()},
			{"generated", r.Generated},
			{"ground_truth", r.GroundTruth},
			{"f1", r.F1},
			{"percent_match", r.PercentMatch},
			{"percent_overlap", r.PercentOverlap},
			{"set_precision", r.SetPrecision},
			{"results_match", r.ResultsMatch},
			{"match_verdict", r.MatchVerdict},
			{"time_ratio", r.TimeRatio},
			{"reward", r.Reward},
			{"ves", r.VES},
			{"same_row_count", r.SameRowCount},
			{"same_column_count", r.SameColumnCount},
			{"predicted_rows", r.PredictedRows},
			{"predicted_columns", r.PredictedColumns},
			{"truth_rows", r.TruthRows},
			{"truth_columns", r.TruthColumns},
			{"predicted_exec_seconds", r.PredictedExecSeconds},
			{"truth_exec_seconds", r.TruthExecSeconds},
			{"sql_execution_time", r.Timings.SQLExecution},
			{"vector_store_search_time", r.Timings.VectorStoreSearch},
			{"llm_time", r.Timings.LLM},
			{"total_execution_time", r.Timings.Total},
			{"syntax_valid", syntaxValid},
			{"generated_digest", r.GeneratedDigest},
			{"failure", string(r.Failure)},
			{"failure_detail", r.FailureDetail},
			{"all_matches", r.AllMatches},
			{"all_set_matches", r.AllSetMatches},
		})
	}
	return out
}

// SummaryRecords renders the tier groups followed by the overall bucket.
func SummaryRecords(rep aggregate.Report) []Record {
	groups := append(append([]aggregate.GroupSummary(nil), rep.Groups...), rep.Overall)
	out := make([]Record, 0, len(groups))
	for _, g := range groups {
		out = append(out, Record{
			{"difficulty", g.Label},
			{"count", g.Count},
			{"f1", g.F1},
			{"percent_match", g.PercentMatch},
			{"percent_overlap", g.PercentOverlap},
			{"set_precision", g.SetPrecision},
			{"ves", g.VES},
			{"results_match_percent", g.MatchPercent},
			{"same_row_count_percent", g.RowMatchPercent},
			{"time_metric", rep.TimeMetric},
			{"time_mean", g.TimeMean},
			{"time_median", g.TimeMedian},
			{"time_variance", g.TimeVariance},
			{"time_std", g.TimeStd},
			{"failures", g.Failures},
		})
	}
	return out
}
