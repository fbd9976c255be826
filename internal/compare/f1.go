// Package compare scores a predicted result table against a ground-truth table.
// Every function is pure: inputs are read, normalized copies are compared.
package compare

import "vqlbench/internal/table"

// RowScore is the cell-level agreement of one aligned row pair. All fractions
// are relative to the ground-truth row width.
type RowScore struct {
	Match     float64
	PredOnly  float64
	TruthOnly float64
	Matches   []string
}

// RowMatch counts predicted cells that appear anywhere in the ground-truth
// row. Position within the row is ignored.
func RowMatch(predicted, truth []string) RowScore {
	if len(truth) == 0 {
		// No width to normalize by: a non-empty predicted row is fully extra.
		if len(predicted) > 0 {
			return RowScore{PredOnly: 1}
		}
		return RowScore{}
	}
	truthSet := toSet(truth)
	predSet := toSet(predicted)
	var score RowScore
	matches, predOnly, truthOnly := 0, 0, 0
	for _, v := range predicted {
		if _, ok := truthSet[v]; ok {
			matches++
			score.Matches = append(score.Matches, v)
			continue
		}
		predOnly++
	}
	for _, v := range truth {
		if _, ok := predSet[v]; !ok {
			truthOnly++
		}
	}
	width := float64(len(truth))
	score.Match = float64(matches) / width
	score.PredOnly = float64(predOnly) / width
	score.TruthOnly = float64(truthOnly) / width
	return score
}

// F1Result holds the row-overlap scores for one pair of tables.
type F1Result struct {
	F1        float64
	Precision float64
	Recall    float64
	// PercentMatch is precision scaled to 0..100.
	PercentMatch float64
	// SetPrecision is the mean per-row set overlap, scaled to 0..100.
	SetPrecision  float64
	AllMatches    [][]string
	AllSetMatches [][]string
}

// F1 scores rows positionally after stable de-duplication. Ground-truth rows
// with no predicted counterpart count as fully missed; surplus predicted rows
// count as fully extra.
func F1(predicted, truth *table.Table) F1Result {
	predRows := dedupRows(predicted.NormalizedRows())
	truthRows := dedupRows(truth.NormalizedRows())

	var (
		tp, fp, fn float64
		res        F1Result
	)
	for i, gt := range truthRows {
		if i >= len(predRows) {
			fn++
			res.AllMatches = append(res.AllMatches, nil)
			res.AllSetMatches = append(res.AllSetMatches, nil)
			continue
		}
		row := RowMatch(predRows[i], gt)
		tp += row.Match
		fp += row.PredOnly
		fn += row.TruthOnly
		res.AllMatches = append(res.AllMatches, row.Matches)
		res.AllSetMatches = append(res.AllSetMatches, setIntersection(gt, predRows[i]))
	}
	for i := len(truthRows); i < len(predRows); i++ {
		fp++
		res.AllMatches = append(res.AllMatches, nil)
		res.AllSetMatches = append(res.AllSetMatches, nil)
	}

	if tp+fp > 0 {
		res.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		res.Recall = tp / (tp + fn)
	}
	if res.Precision+res.Recall > 0 {
		res.F1 = 2 * res.Precision * res.Recall / (res.Precision + res.Recall)
	}
	res.PercentMatch = res.Precision * 100

	// Averaged over the raw ground-truth row count, duplicates included.
	if truthLen := truth.RowCount(); truthLen > 0 {
		sum := 0.0
		for i := 0; i < len(truthRows) && i < len(predRows); i++ {
			gt := truthRows[i]
			if len(gt) == 0 {
				continue
			}
			sum += float64(len(setIntersection(gt, predRows[i]))) / float64(len(gt))
		}
		res.SetPrecision = sum / float64(truthLen) * 100
	}
	return res
}

func dedupRows(rows [][]string) [][]string {
	seen := make(map[string]struct{}, len(rows))
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		key := rowKey(row)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}

// setIntersection returns distinct values of a present in b, in a's order.
func setIntersection(a, b []string) []string {
	bSet := toSet(b)
	seen := make(map[string]struct{}, len(a))
	var out []string
	for _, v := range a {
		if _, ok := bSet[v]; !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
