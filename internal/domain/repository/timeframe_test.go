package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTimeframe(t *testing.T) {
	cases := map[string]Timeframe{
		"":    TF1d,
		"1m":  TF1m,
		"5m":  TF5m,
		"1d":  TF1d,
		"42h": TF1d,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeTimeframe(in), "input %q", in)
	}
}

func TestTimeframes_AllValid(t *testing.T) {
	tfs := Timeframes()
	assert.Contains(t, tfs, DefaultTimeframe())
	for _, tf := range tfs {
		assert.True(t, IsValidTimeframe(tf), "timeframe %q", tf)
	}
	assert.False(t, IsValidTimeframe("1w"))
}
