package models

import "time"

// FeatureRow is one timestamped observation of an instrument after feature
// construction. Values has the width of the owning Frame's Columns.
type FeatureRow struct {
	Symbol string
	Time   time.Time
	Values []float64
	Target float64
}

// Frame is a feature table over one or more instruments. Rows of the same
// symbol are strictly increasing in time; symbols may be interleaved.
type Frame struct {
	Columns []string
	Rows    []FeatureRow
}

// Width returns the feature dimension D.
func (f *Frame) Width() int { return len(f.Columns) }

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Rows) }

// Matrix returns the feature rows, the targets and the instrument identifiers
// as parallel slices. The returned feature rows share memory with the frame.
func (f *Frame) Matrix() (x [][]float64, y [][]float64, ids []string) {
	x = make([][]float64, len(f.Rows))
	y = make([][]float64, len(f.Rows))
	ids = make([]string, len(f.Rows))
	for i, r := range f.Rows {
		x[i] = r.Values
		y[i] = []float64{r.Target}
		ids[i] = r.Symbol
	}
	return x, y, ids
}

// Subset returns a frame holding the rows at idx, in the given order.
func (f *Frame) Subset(idx []int) *Frame {
	out := &Frame{Columns: f.Columns, Rows: make([]FeatureRow, 0, len(idx))}
	for _, i := range idx {
		out.Rows = append(out.Rows, f.Rows[i])
	}
	return out
}

// Symbols returns the distinct symbols in order of first appearance.
func (f *Frame) Symbols() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range f.Rows {
		if _, ok := seen[r.Symbol]; ok {
			continue
		}
		seen[r.Symbol] = struct{}{}
		out = append(out, r.Symbol)
	}
	return out
}
