package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologAdapterFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithLogger(zerolog.New(&buf))

	l.With(String("component", "controller")).Warn("dispatch failed",
		Int64("handle", 42),
		Bool("dispatched", false),
		Duration("delay", 1500*time.Millisecond),
		Err(errors.New("boom")),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "warn", got["level"])
	assert.Equal(t, "dispatch failed", got["message"])
	assert.Equal(t, "controller", got["component"])
	assert.Equal(t, float64(42), got["handle"])
	assert.Equal(t, false, got["dispatched"])
	assert.Equal(t, "boom", got["error"])
}

func TestZerologAdapterLevel(t *testing.T) {
	l := NewZerologAdapterWithLevel("warn")
	assert.Equal(t, zerolog.WarnLevel, l.Logger().GetLevel())

	l = NewZerologAdapterWithLevel("nonsense")
	assert.Equal(t, zerolog.InfoLevel, l.Logger().GetLevel())
}

func TestOrNoop(t *testing.T) {
	assert.NotNil(t, OrNoop(nil))

	z := NewZerologAdapter()
	assert.Same(t, z, OrNoop(z))
}
