package table

import "time"

// Outcome is the result of one query execution attempt.
type Outcome struct {
	Table   *Table
	Elapsed time.Duration
	Err     error
}

// OK reports whether the execution succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// RowCount returns the row count, or 0 when the execution failed.
func (o Outcome) RowCount() int {
	if o.Err != nil {
		return 0
	}
	return o.Table.RowCount()
}

// ColumnCount returns the column count, or 0 when the execution failed.
func (o Outcome) ColumnCount() int {
	if o.Err != nil {
		return 0
	}
	return o.Table.ColumnCount()
}

// Seconds returns the elapsed time in seconds, or 0 when the execution failed.
func (o Outcome) Seconds() float64 {
	if o.Err != nil {
		return 0
	}
	return o.Elapsed.Seconds()
}
