package compare

import (
	"strconv"
	"strings"

	"vqlbench/internal/table"
)

// ExactMatch reports whether both tables hold the same set of row tuples.
// Row order and duplicates are ignored; cell order within a row is kept.
// Two tables without rows match.
func ExactMatch(predicted, truth *table.Table) bool {
	if predicted.RowCount() == 0 && truth.RowCount() == 0 {
		return true
	}
	predSet := rowSet(predicted.NormalizedRows())
	truthSet := rowSet(truth.NormalizedRows())
	if len(predSet) != len(truthSet) {
		return false
	}
	for key := range truthSet {
		if _, ok := predSet[key]; !ok {
			return false
		}
	}
	return true
}

func rowSet(rows [][]string) map[string]struct{} {
	set := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		set[rowKey(row)] = struct{}{}
	}
	return set
}

// rowKey encodes a row with length prefixes so that distinct tuples never
// collide regardless of cell contents.
func rowKey(row []string) string {
	var b strings.Builder
	for _, v := range row {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	return b.String()
}
