package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InkBoard/internal/message"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inkboard.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, message.DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, message.Black, cfg.StrokeColor())
	assert.Equal(t, 9, cfg.Interest().Len())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
addr = ":9000"
mode = "batch"
chunk_size = 512.0
color = "#ff8000"
center_x = -2
subscribe_radius = 0
duration = "90s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "batch", cfg.Mode)
	assert.Equal(t, float32(512), cfg.ChunkSize)
	assert.Equal(t, message.NewRGB(255, 128, 0), cfg.StrokeColor())
	assert.Equal(t, 90*time.Second, cfg.Duration.Duration)
	assert.True(t, cfg.Interest().Equal(message.SubscriptionOf(message.Chunk(-2, 0))))
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, `colour = "#000000"`))
	assert.Error(t, err)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
mode = "batch"
width = 4.0
`)
	cfg, rest, err := Parse("draw", []string{"-config", path, "-width", "9", "ws://example/ws"})
	require.NoError(t, err)
	assert.Equal(t, "batch", cfg.Mode, "kept from file")
	assert.Equal(t, float32(9), cfg.Width, "overridden by flag")
	assert.Equal(t, []string{"ws://example/ws"}, rest)
}

func TestParseValidates(t *testing.T) {
	_, _, err := Parse("draw", []string{"-mode", "spray"})
	assert.Error(t, err)
	_, _, err = Parse("draw", []string{"-chunk-size", "0"})
	assert.Error(t, err)
	_, _, err = Parse("draw", []string{"-color", "red"})
	assert.Error(t, err)
	_, _, err = Parse("draw", []string{"-radius", "2147483647"})
	assert.Error(t, err)
	_, _, err = Parse("draw", []string{"-radius", "-1"})
	assert.Error(t, err)
}

func TestInterestAtInt32Edge(t *testing.T) {
	path := writeConfig(t, `
center_x = 2147483647
center_y = -2147483648
subscribe_radius = 1
`)
	cfg, _, err := Parse("draw", []string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Interest().Len())
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#0a0B0c")
	require.NoError(t, err)
	assert.Equal(t, message.NewRGB(10, 11, 12), c)
	_, err = ParseColor("#12345")
	assert.Error(t, err)
	_, err = ParseColor("#zzzzzz")
	assert.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	cfg.LogLevel = "nonsense"
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}
