package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinGAN/internal/dataset"
)

func TestSplitChronological_PerInstrument(t *testing.T) {
	ids := []string{"A", "B", "A", "B", "A", "B", "A", "B", "A", "B"}
	train, test, err := dataset.SplitChronological(ids, 0.8)
	require.NoError(t, err)

	// 5 rows each, first 4 of each to train
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, train)
	assert.Equal(t, []int{8, 9}, test)
}

func TestSplitChronological_FullTrain(t *testing.T) {
	train, test, err := dataset.SplitChronological([]string{"A", "A", "A"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, train)
	assert.Empty(t, test)
}

func TestSplitChronological_InvalidFraction(t *testing.T) {
	_, _, err := dataset.SplitChronological([]string{"A"}, 0)
	assert.Error(t, err)
	_, _, err = dataset.SplitChronological([]string{"A"}, 1.5)
	assert.Error(t, err)
}
