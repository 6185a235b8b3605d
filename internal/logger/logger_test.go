package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestInit_WritesJSONToConfiguredFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rgpu.log")
	require.NoError(t, Init(Config{Level: "DEBUG", Format: "json", Output: path}))
	defer func() { require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: "stdout"})) }()

	Info("hello from the test suite", "key", "value")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the test suite")
	assert.Contains(t, string(data), `"key":"value"`)
}

func TestSetLevel_UnknownValueIsIgnored(t *testing.T) {
	require.NoError(t, Init(Config{Level: "WARN", Format: "text", Output: "stdout"}))
	SetLevel("not-a-real-level")
	assert.Equal(t, int32(LevelWarn), currentLevel.Load())
	SetLevel("INFO")
}

func TestSetFormat_UnknownValueIsIgnored(t *testing.T) {
	SetFormat("text")
	SetFormat("xml")
	format, _ := currentFormat.Load().(string)
	assert.Equal(t, "text", format)
}

func TestDuration_MeasuresElapsedMilliseconds(t *testing.T) {
	start := time.Now()
	ms := Duration(start)
	assert.GreaterOrEqual(t, ms, 0.0)
}
