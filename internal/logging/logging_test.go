package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestBuildWritesJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := build(Options{Component: "kiosk-api", Level: "warn", Out: &buf})

	l.Info("dropped")
	l.Warn("kept", "tx_id", "TX1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "kiosk-api", rec["component"])
	assert.Equal(t, "TX1", rec["tx_id"])
}

func TestBuildAlsoWritesRotatedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "app.log")
	var buf bytes.Buffer
	l := build(Options{File: file, Out: &buf})
	l.Info("hello")

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestContextCarriers(t *testing.T) {
	var buf bytes.Buffer
	l := build(Options{Out: &buf})

	ctx := WithCtx(context.Background(), l)
	assert.Same(t, l, FromCtx(ctx))
	assert.NotNil(t, FromCtx(context.Background()))

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	With(c, l)
	assert.Same(t, l, From(c))
}
