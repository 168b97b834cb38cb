package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "nope.toml"))
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, Version, cfg.Version)
	assert.True(t, cfg.Corrector.Enabled)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
version = 1

[corrector]
enabled = false
correct_short_words = false
focus_grace_ms = 500
blocked_apps = ["org.gimp.GIMP"]

[dictionaries]
latin_path = "/opt/dict/en.txt"
cyrillic_path = "/opt/dict/ru.txt"

[logging]
level = "debug"
output = "stderr"
`), 0600))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.False(t, cfg.Corrector.Enabled)
	assert.Equal(t, 500, cfg.Corrector.FocusGraceMs)
	assert.Equal(t, []string{"org.gimp.GIMP"}, cfg.Corrector.BlockedApps)
	assert.Equal(t, "/opt/dict/en.txt", cfg.Dictionaries.LatinPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unspecified sections keep their defaults.
	assert.True(t, cfg.IPC.Enabled)
	assert.Equal(t, "xkb:ru::rus", cfg.Input.CyrillicSource)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad output", func(c *Config) { c.Logging.Output = "syslog" }},
		{"file output without path", func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" }},
		{"negative grace", func(c *Config) { c.Corrector.FocusGraceMs = -1 }},
		{"zero clipboard timeout", func(c *Config) { c.Input.ClipboardTimeoutMs = 0 }},
		{"missing dictionary", func(c *Config) { c.Dictionaries.CyrillicPath = "" }},
		{"ipc without socket", func(c *Config) { c.IPC.SocketPath = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PUNTOD_LOG_LEVEL", "debug")
	t.Setenv("PUNTOD_SOCKET_PATH", "/tmp/test-punto.sock")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/test-punto.sock", cfg.IPC.SocketPath)
}

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotNil(t, cfg)
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, created, err = LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"info\"\n"), 0600))

	l := NewLoader(path)
	_, err := l.Load()
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	reloaded := make(chan *Config, 1)
	l.OnChange(func(c *Config) { reloaded <- c })
	require.NoError(t, l.Watch())

	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "debug", l.Config().Logging.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("config reload not observed")
	}
}

func TestInvalidReloadKeepsOldConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"info\"\n"), 0600))

	l := NewLoader(path)
	_, err := l.Load()
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	require.NoError(t, l.Watch())

	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"verbose\"\n"), 0600))

	select {
	case err := <-l.Errors():
		assert.Error(t, err)
		assert.Equal(t, "info", l.Config().Logging.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("reload error not observed")
	}
}
