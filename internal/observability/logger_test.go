package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ibeckermayer/xpilot/internal/config"
)

func TestInitialize(t *testing.T) {
	t.Run("console output is colorized", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf bytes.Buffer
		Initialize(config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "test"}, zapcore.AddSync(&buf))
		GetLogger().Info("hello operator")

		out := buf.String()
		assert.Contains(t, out, "hello operator")
		assert.Contains(t, out, colorGreen+"INFO"+colorReset)
		assert.Contains(t, out, "test.")
	})

	t.Run("json output carries fields", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf bytes.Buffer
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "jsontest"}, zapcore.AddSync(&buf))
		GetLogger().Warn("posted", zap.String("topic", "golang"))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "jsontest", entry["logger"])
		assert.Equal(t, "golang", entry["topic"])
	})

	t.Run("level filtering", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		var buf bytes.Buffer
		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, zapcore.AddSync(&buf))
		GetLogger().Info("dropped")
		assert.Empty(t, buf.String())
	})

	t.Run("file output", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		logFile := filepath.Join(t.TempDir(), "xpilot.log")
		var buf bytes.Buffer
		Initialize(config.LoggerConfig{Level: "info", Format: "console", LogFile: logFile, MaxSize: 1}, zapcore.AddSync(&buf))
		GetLogger().Info("to disk")
		Sync()

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"to disk"`)
	})
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
}
