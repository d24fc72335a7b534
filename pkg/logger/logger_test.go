package logger

import (
	"os"
	"path/filepath"
	"testing"

	"binance-market-sentry/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit_InvalidLevel(t *testing.T) {
	_, err := Init(types.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestInit_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentry.log")
	logger, err := Init(types.LogConfig{Level: "debug", FilePath: path, MaxSize: 1})
	require.NoError(t, err)
	defer zap.ReplaceGlobals(zap.NewNop())

	zap.L().Info("📝 测试日志", zap.String("symbol", "BTCUSDT"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"symbol":"BTCUSDT"`)
	assert.Contains(t, string(data), "测试日志")
}
