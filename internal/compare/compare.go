package compare

import "vqlbench/internal/table"

// Scores is the full comparison of one predicted table against ground truth.
type Scores struct {
	F1Result
	PercentOverlap float64
}

// Compare runs the F1 family and percent overlap. A ragged table yields zero
// scores and a comparison error; the caller keeps the zero result.
func Compare(predicted, truth *table.Table) (Scores, error) {
	if err := predicted.Validate(); err != nil {
		return Scores{}, err
	}
	if err := truth.Validate(); err != nil {
		return Scores{}, err
	}
	return Scores{
		F1Result:       F1(predicted, truth),
		PercentOverlap: PercentOverlap(truth, predicted),
	}, nil
}

// Shape holds the structural equality flags of two executions.
type Shape struct {
	SameRowCount    int
	SameColumnCount int
}

// Structure compares raw row and column counts. A failed execution counts as
// a table with no rows and no columns.
func Structure(predicted, truth table.Outcome) Shape {
	var s Shape
	if predicted.RowCount() == truth.RowCount() {
		s.SameRowCount = 1
	}
	if predicted.ColumnCount() == truth.ColumnCount() {
		s.SameColumnCount = 1
	}
	return s
}
