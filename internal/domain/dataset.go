package domain

import "fmt"

// FeatureWidth is the number of columns produced per record:
// [balance, len(largest_accounts), cluster_nodes].
const FeatureWidth = 3

// FeatureNames lists the dataset columns in order.
var FeatureNames = [FeatureWidth]string{"balance", "largest_accounts", "cluster_nodes"}

// FeatureVector is a fixed-width numeric summary of one record.
type FeatureVector []float64

// Dataset is an N x W feature matrix paired with N labels.
// Rows follow the order of the source records.
type Dataset struct {
	Rows      []FeatureVector
	Labels    []float64
	LabelRule string
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Width returns the number of columns, or 0 for an empty dataset.
func (d *Dataset) Width() int {
	if len(d.Rows) == 0 {
		return 0
	}
	return len(d.Rows[0])
}

// Validate checks that the matrix is rectangular and that rows and labels line up.
func (d *Dataset) Validate() error {
	if len(d.Rows) == 0 {
		return ErrEmptyInput
	}
	if len(d.Rows) != len(d.Labels) {
		return fmt.Errorf("%w: %d rows but %d labels", ErrShape, len(d.Rows), len(d.Labels))
	}
	w := len(d.Rows[0])
	if w == 0 {
		return fmt.Errorf("%w: zero-width rows", ErrShape)
	}
	for i, row := range d.Rows {
		if len(row) != w {
			return fmt.Errorf("%w: row %d has width %d, expected %d", ErrShape, i, len(row), w)
		}
	}
	return nil
}

// Matrix returns a row-major copy of the feature matrix.
// Callers may mutate the result without affecting the dataset.
func (d *Dataset) Matrix() []float64 {
	w := d.Width()
	out := make([]float64, 0, len(d.Rows)*w)
	for _, row := range d.Rows {
		out = append(out, row...)
	}
	return out
}

// LabelsCopy returns a copy of the label slice.
func (d *Dataset) LabelsCopy() []float64 {
	return append([]float64(nil), d.Labels...)
}
