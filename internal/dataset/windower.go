// Package dataset turns per-instrument feature series into lookback windows
// and batches them for training.
package dataset

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Windows is the windowed view of a multi-instrument dataset. Window i owns
// L rows of features, the target that follows them and the L+1 targets
// ending at that target. Storage is flat and row-major.
type Windows struct {
	Lookback int
	Features int
	Outputs  int

	x       []float64 // [n, L, D]
	y       []float64 // [n, F]
	history []float64 // [n, L+1, F]
	ids     []string

	// Skipped lists instruments with no more rows than the lookback.
	Skipped []string
}

// BuildWindows groups rows by instrument (first appearance order, intra-group
// order preserved) and emits every window that fits inside a single group.
// Groups of length <= lookback yield nothing and are listed in Skipped; if
// every group is skipped the result is empty and no error is returned.
func BuildWindows(x, y [][]float64, lookback int, ids []string) (*Windows, error) {
	if lookback < 1 {
		return nil, fmt.Errorf("lookback %d: %w", lookback, ErrInvalidLookback)
	}
	n := len(x)
	if len(y) != n {
		return nil, fmt.Errorf("features have %d rows, targets %d: %w", n, len(y), ErrShapeMismatch)
	}
	if len(ids) != n {
		return nil, fmt.Errorf("features have %d rows, ids %d: %w", n, len(ids), ErrShapeMismatch)
	}

	w := &Windows{Lookback: lookback}
	if n > 0 {
		w.Features = len(x[0])
		w.Outputs = len(y[0])
	}
	for i := 0; i < n; i++ {
		if len(x[i]) != w.Features {
			return nil, fmt.Errorf("row %d has %d features, want %d: %w", i, len(x[i]), w.Features, ErrShapeMismatch)
		}
		if len(y[i]) != w.Outputs {
			return nil, fmt.Errorf("row %d has %d targets, want %d: %w", i, len(y[i]), w.Outputs, ErrShapeMismatch)
		}
	}
	if n > 0 && w.Outputs == 0 {
		return nil, fmt.Errorf("empty target rows: %w", ErrShapeMismatch)
	}

	for _, g := range groupRows(ids) {
		m := len(g.rows)
		if m <= lookback {
			w.Skipped = append(w.Skipped, g.id)
			continue
		}
		for i := lookback; i < m; i++ {
			for _, r := range g.rows[i-lookback : i] {
				w.x = append(w.x, x[r]...)
			}
			w.y = append(w.y, y[g.rows[i]]...)
			for _, r := range g.rows[i-lookback : i+1] {
				w.history = append(w.history, y[r]...)
			}
			w.ids = append(w.ids, g.id)
		}
	}
	return w, nil
}

type group struct {
	id   string
	rows []int
}

func groupRows(ids []string) []group {
	index := make(map[string]int)
	var groups []group
	for i, id := range ids {
		gi, ok := index[id]
		if !ok {
			gi = len(groups)
			index[id] = gi
			groups = append(groups, group{id: id})
		}
		groups[gi].rows = append(groups[gi].rows, i)
	}
	return groups
}

// Len returns the number of windows.
func (w *Windows) Len() int { return len(w.ids) }

// Window returns a copy of window i as L rows of D features.
func (w *Windows) Window(i int) [][]float64 {
	step := w.Lookback * w.Features
	flat := w.x[i*step : (i+1)*step]
	out := make([][]float64, w.Lookback)
	for t := range out {
		out[t] = append([]float64(nil), flat[t*w.Features:(t+1)*w.Features]...)
	}
	return out
}

// Target returns a copy of the target of window i.
func (w *Windows) Target(i int) []float64 {
	return append([]float64(nil), w.y[i*w.Outputs:(i+1)*w.Outputs]...)
}

// History returns a copy of the L+1 target history of window i, flattened.
func (w *Windows) History(i int) []float64 {
	step := (w.Lookback + 1) * w.Outputs
	return append([]float64(nil), w.history[i*step:(i+1)*step]...)
}

// Instrument returns the instrument that window i was cut from.
func (w *Windows) Instrument(i int) string { return w.ids[i] }

// Batch gathers the windows at idx into aligned tensors.
func (w *Windows) Batch(idx []int) (*Batch, error) {
	if len(idx) == 0 {
		return nil, fmt.Errorf("empty batch: %w", ErrInvalidBatchSize)
	}
	xs := w.Lookback * w.Features
	hs := (w.Lookback + 1) * w.Outputs
	b := len(idx)
	xb := make([]float64, 0, b*xs)
	yb := make([]float64, 0, b*w.Outputs)
	hb := make([]float64, 0, b*hs)
	for _, i := range idx {
		if i < 0 || i >= w.Len() {
			return nil, fmt.Errorf("window %d out of range [0,%d): %w", i, w.Len(), ErrShapeMismatch)
		}
		xb = append(xb, w.x[i*xs:(i+1)*xs]...)
		yb = append(yb, w.y[i*w.Outputs:(i+1)*w.Outputs]...)
		hb = append(hb, w.history[i*hs:(i+1)*hs]...)
	}
	return &Batch{
		Windows: tensor.New(tensor.WithShape(b, w.Lookback, w.Features), tensor.WithBacking(xb)),
		Targets: tensor.New(tensor.WithShape(b, w.Outputs), tensor.WithBacking(yb)),
		History: tensor.New(tensor.WithShape(b, w.Lookback+1, w.Outputs), tensor.WithBacking(hb)),
		Index:   append([]int(nil), idx...),
	}, nil
}

// All returns every window as a single batch in stored order.
func (w *Windows) All() (*Batch, error) {
	idx := make([]int, w.Len())
	for i := range idx {
		idx[i] = i
	}
	return w.Batch(idx)
}

// Batch is an aligned slice of windows: Windows [B,L,D], Targets [B,F] and
// History [B,L+1,F]. Index holds the source window positions.
type Batch struct {
	Windows *tensor.Dense
	Targets *tensor.Dense
	History *tensor.Dense
	Index   []int
}

// Size returns the batch size B.
func (b *Batch) Size() int { return b.Windows.Shape()[0] }

// Lookback returns L.
func (b *Batch) Lookback() int { return b.Windows.Shape()[1] }

// Outputs returns F.
func (b *Batch) Outputs() int { return b.Targets.Shape()[1] }
