// Package config handles configuration loading, validation, and hot reload
// for puntod.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version"`

	// Dictionaries configures the word lists backing prefix analysis.
	Dictionaries DictionariesConfig `toml:"dictionaries"`

	// Corrector configures the auto-correction behavior.
	Corrector CorrectorConfig `toml:"corrector"`

	// Input configures the platform input backends.
	Input InputConfig `toml:"input"`

	// UserDict configures the personal word and exclusion database.
	UserDict UserDictConfig `toml:"user_dict"`

	// IPC configures the control socket.
	IPC IPCConfig `toml:"ipc"`

	// Logging configures log output.
	Logging LoggingConfig `toml:"logging"`
}

// DictionariesConfig holds word-list configuration.
type DictionariesConfig struct {
	// LatinPath is the path to the Latin (English) word list, one word per line.
	LatinPath string `toml:"latin_path"`

	// CyrillicPath is the path to the Cyrillic (Russian) word list.
	CyrillicPath string `toml:"cyrillic_path"`

	// WatchForChanges reloads the lists when the files change on disk.
	WatchForChanges bool `toml:"watch_for_changes"`
}

// CorrectorConfig holds auto-correction behavior configuration.
type CorrectorConfig struct {
	// Enabled turns automatic correction on. Manual selection conversion
	// works either way.
	Enabled bool `toml:"enabled"`

	// CorrectShortWords also analyzes completed 1-2 character tokens.
	CorrectShortWords bool `toml:"correct_short_words"`

	// FocusGraceMs is how long after a focus change the secure-field flag
	// is disregarded.
	FocusGraceMs int `toml:"focus_grace_ms"`

	// BlockedApps lists application identifiers whose input is never
	// tokenized (games, canvas editors).
	BlockedApps []string `toml:"blocked_apps"`

	// CustomMappingPath optionally points to a JSON file overriding the
	// built-in QWERTY/JCUKEN character mapping.
	CustomMappingPath string `toml:"custom_mapping_path"`
}

// InputConfig holds platform input backend configuration.
type InputConfig struct {
	// LatinSource and CyrillicSource name the system layout sources to
	// activate for each layout (IBus engine names on Linux).
	LatinSource    string `toml:"latin_source"`
	CyrillicSource string `toml:"cyrillic_source"`

	// SelectionHotkey enables the convert-selection hotkey handling.
	SelectionHotkey bool `toml:"selection_hotkey"`

	// SelectionHotkeyModifier is the modifier whose isolated press-and-release
	// triggers selection conversion: "left_ctrl", "right_ctrl", "left_shift",
	// "right_shift", "left_alt" or "right_alt".
	SelectionHotkeyModifier string `toml:"selection_hotkey_modifier"`

	// ClipboardTimeoutMs bounds each clipboard operation during selection
	// conversion.
	ClipboardTimeoutMs int `toml:"clipboard_timeout_ms"`
}

// UserDictConfig holds the personal dictionary configuration.
type UserDictConfig struct {
	// Path is the SQLite database location.
	Path string `toml:"path"`
}

// IPCConfig holds control socket configuration.
type IPCConfig struct {
	// Enabled determines whether the IPC server is started.
	Enabled bool `toml:"enabled"`

	// SocketPath is the path to the Unix socket.
	SocketPath string `toml:"socket_path"`

	// TimeoutSec is the per-connection timeout.
	TimeoutSec int `toml:"timeout_sec"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format"`

	// Output is the log output: "stdout", "stderr", or "file".
	Output string `toml:"output"`

	// FilePath is the path to the log file (when Output is "file").
	FilePath string `toml:"file_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := PuntoDir()

	return &Config{
		Version: Version,
		Dictionaries: DictionariesConfig{
			LatinPath:       filepath.Join(dir, "dictionaries", "english.txt"),
			CyrillicPath:    filepath.Join(dir, "dictionaries", "russian.txt"),
			WatchForChanges: true,
		},
		Corrector: CorrectorConfig{
			Enabled:           true,
			CorrectShortWords: true,
			FocusGraceMs:      300,
			BlockedApps:       []string{},
		},
		Input: InputConfig{
			LatinSource:             "xkb:us::eng",
			CyrillicSource:          "xkb:ru::rus",
			SelectionHotkey:         true,
			SelectionHotkeyModifier: "right_ctrl",
			ClipboardTimeoutMs:      500,
		},
		UserDict: UserDictConfig{
			Path: filepath.Join(dir, "userdict.db"),
		},
		IPC: IPCConfig{
			Enabled:    true,
			SocketPath: defaultSocketPath(),
			TimeoutSec: 30,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "file",
			FilePath: filepath.Join(dir, "puntod.log"),
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PuntoDir(), "config.toml")
}

// PuntoDir returns the base data directory, honoring PUNTOD_DATA_DIR.
func PuntoDir() string {
	if envDir := os.Getenv("PUNTOD_DATA_DIR"); envDir != "" {
		return envDir
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "puntod")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "puntod")
		}
		return filepath.Join(os.Getenv("HOME"), ".local", "share", "puntod")
	}
}

func defaultSocketPath() string {
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		return filepath.Join(xdgRuntime, "puntod.sock")
	}
	return "/tmp/puntod.sock"
}

// ApplyEnvOverrides applies PUNTOD_* environment overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PUNTOD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PUNTOD_SOCKET_PATH"); v != "" {
		c.IPC.SocketPath = v
	}
	if v := os.Getenv("PUNTOD_USERDICT_PATH"); v != "" {
		c.UserDict.Path = v
	}
	if v := os.Getenv("PUNTOD_LATIN_DICT"); v != "" {
		c.Dictionaries.LatinPath = v
	}
	if v := os.Getenv("PUNTOD_CYRILLIC_DICT"); v != "" {
		c.Dictionaries.CyrillicPath = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	switch c.Logging.Output {
	case "", "stdout", "stderr", "file":
	default:
		return fmt.Errorf("logging.output: unknown output %q", c.Logging.Output)
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path required when output is \"file\"")
	}
	if c.Corrector.FocusGraceMs < 0 {
		return fmt.Errorf("corrector.focus_grace_ms must not be negative")
	}
	if c.Input.ClipboardTimeoutMs <= 0 {
		return fmt.Errorf("input.clipboard_timeout_ms must be positive")
	}
	switch c.Input.SelectionHotkeyModifier {
	case "", "left_ctrl", "right_ctrl", "left_shift", "right_shift", "left_alt", "right_alt":
	default:
		return fmt.Errorf("input.selection_hotkey_modifier: unknown modifier %q", c.Input.SelectionHotkeyModifier)
	}
	if c.Dictionaries.LatinPath == "" || c.Dictionaries.CyrillicPath == "" {
		return fmt.Errorf("dictionaries: both latin_path and cyrillic_path are required")
	}
	if c.IPC.Enabled && c.IPC.SocketPath == "" {
		return fmt.Errorf("ipc.socket_path required when ipc is enabled")
	}
	return nil
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.UserDict.Path),
		filepath.Dir(c.Logging.FilePath),
		filepath.Dir(c.IPC.SocketPath),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SaveConfig writes the configuration to the given path as TOML.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
