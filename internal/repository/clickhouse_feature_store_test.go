package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domrepo "FinGAN/internal/domain/repository"
)

func TestTableForTF(t *testing.T) {
	got, err := tableForTF("md", domrepo.TF1d)
	require.NoError(t, err)
	assert.Equal(t, "md.candles_1d", got)

	_, err = tableForTF("md", domrepo.Timeframe("1w"))
	assert.Error(t, err)
}

func TestCandleSchema(t *testing.T) {
	stmts := CandleSchema("md")
	require.Len(t, stmts, 5)
	assert.Contains(t, stmts[0], "CREATE DATABASE IF NOT EXISTS md")
	for _, s := range stmts[1:] {
		assert.True(t, strings.Contains(s, "ORDER BY (symbol, bucket)"))
	}
}
