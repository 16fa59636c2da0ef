package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pilab-dev/shadow-auth/log"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologAdapter_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewZerologAdapterWithWriter(zerolog.DebugLevel, &buf).
		With(log.Fields{"component": "test"})

	logger.Error(context.Background(), "boom", errors.New("bad"), log.Fields{"user_id": "u1"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["message"])
	assert.Equal(t, "bad", entry["error"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, "error", entry["level"])
}

func TestZerologAdapter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewZerologAdapterWithWriter(zerolog.WarnLevel, &buf)

	logger.Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	logger.Warn(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}
