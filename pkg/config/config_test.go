package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/rowsync"
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/store"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rowsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, rowsync.DefaultTimeout, cfg.Timeout())
	assert.Equal(t, rowsync.DefaultSaveJoinTimeout, cfg.SaveJoinTimeout())
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, FormatText, cfg.Log.Format)
	assert.Len(t, cfg.Options(), 3)
}

func TestLoadOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
timeout_ms: 1500
mailbox_size: 64
store:
  driver: file
  dir: `+dir+`
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout())
	// 文件中未出现的键保留默认值
	assert.Equal(t, rowsync.DefaultSaveJoinTimeout, cfg.SaveJoinTimeout())
	assert.Equal(t, 64, cfg.MailboxSize)
	assert.Equal(t, DriverFile, cfg.Store.Driver)
	assert.Equal(t, dir, cfg.Store.Dir)

	st, err := cfg.OpenStore()
	require.NoError(t, err)
	fs, ok := st.(*store.FileStore)
	require.True(t, ok)
	assert.Equal(t, dir, fs.Dir())

	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)
	logger.Debug("hello", "row", "a")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"row":"a"`)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigParse)

	_, err = Load(writeConfig(t, "timeout_ms: [1, 2"))
	assert.ErrorIs(t, err, ErrConfigParse)

	_, err = Load(writeConfig(t, "store:\n  driver: file\n"))
	assert.ErrorIs(t, err, ErrMissingStoreDir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero timeout", func(c *Config) { c.TimeoutMS = 0 }, ErrInvalidTimeout},
		{"negative save join", func(c *Config) { c.SaveJoinTimeoutMS = -1 }, ErrInvalidTimeout},
		{"negative mailbox", func(c *Config) { c.MailboxSize = -1 }, ErrInvalidMailboxSize},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }, ErrInvalidDriver},
		{"file without dir", func(c *Config) { c.Store.Driver = DriverFile }, ErrMissingStoreDir},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidLogLevel},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestNewLoggerLevels(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	st, err := cfg.OpenStore()
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, st)
}
