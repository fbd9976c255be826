// Package table holds the result tables returned by query execution and the
// value normalization shared by every comparison.
package table

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// NullValue is the normalized form of a missing or NaN cell.
const NullValue = "NA"

// ErrComparison marks tables whose shape prevents a meaningful comparison.
var ErrComparison = errors.New("comparison error")

// Table is an executed query result: ordered columns and ordered rows.
// A nil *Table behaves as an empty table.
type Table struct {
	Columns []string
	Rows    [][]any
}

// New builds a table from columns and rows.
func New(columns []string, rows ...[]any) *Table {
	return &Table{Columns: columns, Rows: rows}
}

// RowCount returns the number of rows, 0 for a nil table.
func (t *Table) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnCount returns the number of columns, 0 for a nil table.
func (t *Table) ColumnCount() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// Validate reports a comparison error when a row width differs from the
// column count.
func (t *Table) Validate() error {
	if t == nil {
		return nil
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return errors.Wrapf(ErrComparison, "row %d has %d cells, expected %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// NormalizedRows returns every row cast to strings. The table is not modified.
func (t *Table) NormalizedRows() [][]string {
	if t == nil {
		return nil
	}
	out := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, NormalizeRow(row))
	}
	return out
}

// NormalizeRow casts each cell of a row with NormalizeValue.
func NormalizeRow(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = NormalizeValue(v)
	}
	return out
}

// IsNull reports whether a cell counts as missing.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// NormalizeValue casts a cell to the string form used for equality checks.
// Integral floats drop their fraction so that 1.0 and 1 compare equal.
func NormalizeValue(v any) string {
	if IsNull(v) {
		return NullValue
	}
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64, bits int) string {
	if !math.IsInf(f, 0) && f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}
