package compare

import "vqlbench/internal/table"

// PercentOverlap is the share of non-null ground-truth scalars covered by the
// predicted table, counting each value at most as often as it appears in both.
// It returns 0 when the ground truth has no non-null scalars.
func PercentOverlap(truth, predicted *table.Table) float64 {
	truthCounts, truthTotal := scalarCounts(truth)
	if truthTotal == 0 {
		return 0
	}
	predCounts, _ := scalarCounts(predicted)
	matched := 0
	for v, n := range truthCounts {
		matched += min(n, predCounts[v])
	}
	return float64(matched) / float64(truthTotal) * 100
}

func scalarCounts(t *table.Table) (map[string]int, int) {
	counts := make(map[string]int)
	total := 0
	if t == nil {
		return counts, 0
	}
	for _, row := range t.Rows {
		for _, v := range row {
			if table.IsNull(v) {
				continue
			}
			counts[table.NormalizeValue(v)]++
			total++
		}
	}
	return counts, total
}
