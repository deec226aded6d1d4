package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpochReport_Validate(t *testing.T) {
	ok := EpochReport{Epoch: 1, CriticLoss: -2, GeneratorLoss: 0.5, GradientPenalty: 0.1, MeanGradientNorm: 1}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.GradientPenalty = math.Inf(1)
	err := bad.Validate()
	require.ErrorIs(t, err, ErrNonFinite)
	assert.Contains(t, err.Error(), "gradient_penalty")
}

func TestEpochReport_MessageEncodesNonFiniteAsNull(t *testing.T) {
	r := EpochReport{Epoch: 3, CriticLoss: math.NaN(), GeneratorLoss: 0.25, Steps: 21}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	b, err := json.Marshal(r.Message("run-1", at))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Nil(t, got["critic_loss"])
	assert.Equal(t, 0.25, got["generator_loss"])
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, float64(3), got["epoch_index"])
	assert.Equal(t, float64(21), got["steps"])
}
