package dataset_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinGAN/internal/dataset"
)

// series builds rows where feature and target values encode (instrument, t)
// so windows can be traced back to their source rows.
func series(counts map[string]int, order []string, d int) (x, y [][]float64, ids []string) {
	for gi, id := range order {
		for t := 0; t < counts[id]; t++ {
			row := make([]float64, d)
			for j := range row {
				row[j] = float64(gi*1000 + t*10 + j)
			}
			x = append(x, row)
			y = append(y, []float64{float64(gi*1000 + t)})
			ids = append(ids, id)
		}
	}
	return x, y, ids
}

func TestBuildWindows_CountsPerInstrument(t *testing.T) {
	cases := []struct {
		rows int
		want int
	}{
		{2, 0},
		{5, 2},
		{10, 7},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("rows=%d", tc.rows), func(t *testing.T) {
			x, y, ids := series(map[string]int{"A": tc.rows}, []string{"A"}, 1)
			w, err := dataset.BuildWindows(x, y, 3, ids)
			require.NoError(t, err)
			assert.Equal(t, tc.want, w.Len())
		})
	}
}

func TestBuildWindows_TotalIsSumOverGroups(t *testing.T) {
	x, y, ids := series(map[string]int{"A": 2, "B": 5, "C": 10}, []string{"A", "B", "C"}, 1)
	w, err := dataset.BuildWindows(x, y, 3, ids)
	require.NoError(t, err)
	assert.Equal(t, 9, w.Len())
	assert.Equal(t, []string{"A"}, w.Skipped)
}

func TestBuildWindows_TwoInstrumentScenario(t *testing.T) {
	x, y, ids := series(map[string]int{"A": 7, "B": 4}, []string{"A", "B"}, 2)
	w, err := dataset.BuildWindows(x, y, 3, ids)
	require.NoError(t, err)
	require.Equal(t, 5, w.Len())
	assert.Empty(t, w.Skipped)

	for i := 0; i < w.Len(); i++ {
		win := w.Window(i)
		require.Len(t, win, 3)
		for _, row := range win {
			assert.Len(t, row, 2)
		}
		assert.Len(t, w.History(i), 4)
	}

	// last window belongs to B and covers B rows 0..2, target B row 3
	last := w.Len() - 1
	assert.Equal(t, "B", w.Instrument(last))
	assert.Equal(t, []float64{1000, 1001}, w.Window(last)[0])
	assert.Equal(t, []float64{1003}, w.Target(last))
	assert.Equal(t, []float64{1000, 1001, 1002, 1003}, w.History(last))

	b, err := w.All()
	require.NoError(t, err)
	assert.Equal(t, []int{5, 3, 2}, []int(b.Windows.Shape()))
	assert.Equal(t, []int{5, 1}, []int(b.Targets.Shape()))
	assert.Equal(t, []int{5, 4, 1}, []int(b.History.Shape()))
}

func TestBuildWindows_TargetMatchesHistoryTail(t *testing.T) {
	x, y, ids := series(map[string]int{"A": 9, "B": 6}, []string{"A", "B"}, 3)
	w, err := dataset.BuildWindows(x, y, 4, ids)
	require.NoError(t, err)
	for i := 0; i < w.Len(); i++ {
		h := w.History(i)
		assert.Equal(t, w.Target(i)[0], h[len(h)-1])
		// history is contiguous in time within one instrument
		for k := 1; k < len(h); k++ {
			assert.Equal(t, h[k-1]+1, h[k])
		}
	}
}

func TestBuildWindows_Boundaries(t *testing.T) {
	x, y, ids := series(map[string]int{"A": 4, "B": 3}, []string{"A", "B"}, 1)
	w, err := dataset.BuildWindows(x, y, 3, ids)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Len())
	assert.Equal(t, "A", w.Instrument(0))
	assert.Equal(t, []string{"B"}, w.Skipped)
}

func TestBuildWindows_AllSkippedIsEmpty(t *testing.T) {
	x, y, ids := series(map[string]int{"A": 2, "B": 1}, []string{"A", "B"}, 2)
	w, err := dataset.BuildWindows(x, y, 3, ids)
	require.NoError(t, err)
	assert.Zero(t, w.Len())
	assert.Equal(t, []string{"A", "B"}, w.Skipped)
}

func TestBuildWindows_GroupedDiffersFromUngrouped(t *testing.T) {
	x, y, ids := series(map[string]int{"A": 5, "B": 5}, []string{"A", "B"}, 1)

	grouped, err := dataset.BuildWindows(x, y, 3, ids)
	require.NoError(t, err)

	single := make([]string, len(ids))
	for i := range single {
		single[i] = "ALL"
	}
	ungrouped, err := dataset.BuildWindows(x, y, 3, single)
	require.NoError(t, err)

	assert.Equal(t, 4, grouped.Len())
	assert.Equal(t, 7, ungrouped.Len())

	// grouped windows never mix instruments: targets within a history share
	// the same thousands digit
	for i := 0; i < grouped.Len(); i++ {
		h := grouped.History(i)
		for _, v := range h {
			assert.Equal(t, int(h[0])/1000, int(v)/1000)
		}
	}
	spans := 0
	for i := 0; i < ungrouped.Len(); i++ {
		h := ungrouped.History(i)
		if int(h[0])/1000 != int(h[len(h)-1])/1000 {
			spans++
		}
	}
	assert.Equal(t, 3, spans)
}

func TestBuildWindows_InterleavedRowsKeepFirstAppearanceOrder(t *testing.T) {
	x := [][]float64{{0}, {100}, {1}, {101}, {2}, {102}, {3}}
	y := [][]float64{{0}, {100}, {1}, {101}, {2}, {102}, {3}}
	ids := []string{"Z", "A", "Z", "A", "Z", "A", "Z"}

	w, err := dataset.BuildWindows(x, y, 2, ids)
	require.NoError(t, err)
	require.Equal(t, 3, w.Len())
	assert.Equal(t, "Z", w.Instrument(0))
	assert.Equal(t, "Z", w.Instrument(1))
	assert.Equal(t, "A", w.Instrument(2))
	assert.Equal(t, []float64{2}, w.Target(0))
	assert.Equal(t, []float64{3}, w.Target(1))
	assert.Equal(t, []float64{102}, w.Target(2))
}

func TestBuildWindows_Errors(t *testing.T) {
	x := [][]float64{{1, 2}, {3, 4}}
	y := [][]float64{{1}, {2}}

	_, err := dataset.BuildWindows(x, y[:1], 1, []string{"A", "A"})
	assert.ErrorIs(t, err, dataset.ErrShapeMismatch)

	_, err = dataset.BuildWindows(x, y, 1, []string{"A"})
	assert.ErrorIs(t, err, dataset.ErrShapeMismatch)

	_, err = dataset.BuildWindows([][]float64{{1, 2}, {3}}, y, 1, []string{"A", "A"})
	assert.ErrorIs(t, err, dataset.ErrShapeMismatch)

	_, err = dataset.BuildWindows(x, y, 0, []string{"A", "A"})
	assert.ErrorIs(t, err, dataset.ErrInvalidLookback)
}

func TestWindows_BatchOutOfRange(t *testing.T) {
	x, y, ids := series(map[string]int{"A": 5}, []string{"A"}, 1)
	w, err := dataset.BuildWindows(x, y, 3, ids)
	require.NoError(t, err)

	_, err = w.Batch([]int{0, 2})
	assert.ErrorIs(t, err, dataset.ErrShapeMismatch)

	_, err = w.Batch(nil)
	assert.ErrorIs(t, err, dataset.ErrInvalidBatchSize)
}
