package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestGetLoggerIsNamed(t *testing.T) {
	l := GetLogger("pricing.engine")
	require.NotNil(t, l)
	assert.Contains(t, l.Desugar().Name(), "pricing.engine")
	assert.NotNil(t, l.With("k", "v"))
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	l := NewFromConfig(Config{Level: "info", File: path, MaxSizeMB: 1})

	l.Debugw("hidden")
	l.Infow("priced", "method", "tree")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"priced"`)
	assert.Contains(t, string(data), `"method":"tree"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() { NewNop().Infow("ignored") })
}
