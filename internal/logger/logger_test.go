package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(l) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(l, &m), string(l))
		out = append(out, m)
	}
	return out
}

func TestBuild_LevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn", Component: "ogc"}, &buf)

	zl.Info().Msg("hidden")
	zl.Warn().Msg("shown")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "shown", got[0]["msg"])
	assert.Equal(t, "ogc", got[0]["component"])
	assert.Contains(t, got[0], "timestamp")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)

	ctx := WithComponent(WithRequestID(context.Background(), "abc"), "http")
	FromContext(ctx, &zl).Info().Msg("req")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "abc", got[0]["request_id"])
	assert.Equal(t, "http", got[0]["component"])

	assert.Len(t, RequestID(WithRequestID(context.Background(), "")), 16)
	assert.NotNil(t, FromContext(context.Background(), nil))
}

func TestNewSlog(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	log := NewSlog(&zl)

	log.Debug("dropped")
	log.With("id", 7).WithGroup("view").Info("synced", "resolution", 2.5, "changed", true)
	log.Error("failed", "err", "boom")

	got := lines(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "info", got[0]["level"])
	assert.Equal(t, float64(7), got[0]["id"])
	assert.Equal(t, 2.5, got[0]["view.resolution"])
	assert.Equal(t, true, got[0]["view.changed"])
	assert.Equal(t, "error", got[1]["level"])
	assert.Equal(t, "boom", got[1]["err"])
}
