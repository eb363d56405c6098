package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/briefkit/pkg/logger"
)

type ctxKey string

func TestNewDefaultsToJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))
	log.Info("occurrence claimed", slog.String("occurrence_id", "abc"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "occurrence claimed", record["msg"])
	assert.Equal(t, "abc", record["occurrence_id"])
}

func TestNewLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))

	log.Info("suppressed")
	assert.Zero(t, buf.Len())

	log.Warn("emitted")
	assert.Contains(t, buf.String(), "emitted")
}

func TestNewTextFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatText))
	log.Info("plain")

	assert.Contains(t, buf.String(), "msg=plain")
}

func TestWithFormatPanicsOnInvalid(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		logger.New(logger.WithFormat(logger.Format("yaml")))
	})
}

func TestWithProductionAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithProduction("briefd"), logger.WithOutput(&buf))
	log.Info("started")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "briefd", record["service"])
	assert.Equal(t, "production", record["env"])
}

func TestContextExtraction(t *testing.T) {
	t.Parallel()

	const key = ctxKey("tenant")

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextValue("tenant_id", key),
	)

	ctx := context.WithValue(context.Background(), key, "t-123")
	log.InfoContext(ctx, "brief generated")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "t-123", record["tenant_id"])

	// Without the value in context the attribute is absent.
	buf.Reset()
	log.InfoContext(context.Background(), "brief generated")
	var second map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &second))
	assert.NotContains(t, second, "tenant_id")
}
