package ctxlogger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ContextHandler{Handler: slog.NewJSONHandler(&buf, nil)}).With("engine", "queue")

	base := AppendCtx(context.Background(), slog.String("request_id", "r1"))
	first := AppendCtx(base, slog.String("room_id", "a"))
	second := AppendCtx(base, slog.String("room_id", "b"))

	logger.InfoContext(first, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "r1", rec["request_id"])
	assert.Equal(t, "a", rec["room_id"])
	assert.Equal(t, "queue", rec["engine"])

	buf.Reset()
	logger.InfoContext(second, "hello")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "b", rec["room_id"], "sibling contexts must not share attributes")
}
