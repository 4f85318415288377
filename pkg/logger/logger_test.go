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

func TestFieldsAreWritten(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug").With(String("component", "trainer"))

	l.Info("attempt completed",
		String("attempt_id", "a1"),
		Int("step", 2),
		Float64("brier", 0.16),
		Bool("correct", true),
		Duration("latency_ms", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "attempt completed", got["message"])
	assert.Equal(t, "trainer", got["component"])
	assert.Equal(t, "a1", got["attempt_id"])
	assert.Equal(t, float64(2), got["step"])
	assert.Equal(t, 0.16, got["brier"])
	assert.Equal(t, true, got["correct"])
	assert.Equal(t, float64(1500), got["latency_ms"])
	assert.Equal(t, "boom", got["error"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}
