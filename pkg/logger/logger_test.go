package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesTypedFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf).With(String("run_id", "r1"))

	l.Info("epoch complete",
		Int("epoch", 3),
		Float64("critic_loss", -0.25),
		Duration("took", 1500*time.Millisecond),
		Strings("skipped", []string{"A", "B"}),
		Bool("cached", true),
		Error(errors.New("boom")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "epoch complete", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "r1", entry["run_id"])
	assert.Equal(t, 3.0, entry["epoch"])
	assert.Equal(t, -0.25, entry["critic_loss"])
	assert.Equal(t, 1500.0, entry["took"])
	assert.Equal(t, "A, B", entry["skipped"])
	assert.Equal(t, true, entry["cached"])
	assert.Equal(t, "boom", entry["error"])
}

func TestNew_RejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}
