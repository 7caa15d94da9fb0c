// Package config loads and saves landsyncd's runtime configuration as YAML,
// following the same atomic-write/validated-load discipline the rest of the
// stack uses for its own on-disk settings.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

const (
	maxConfigFileBytes int64 = 1 << 20 // 1MB
	defaultListenAddr        = ":7777"
	defaultReplayDir         = "replays"
)

// Config is landsyncd's runtime configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	// ReplayDir holds recorded runs (Record JSON + sibling -state.jsonl
	// files) written by internal/replay.
	ReplayDir string `yaml:"replay_dir" json:"replay_dir"`
	// CatalogPath is the sqlite database internal/catalog indexes replay
	// runs into. Empty disables the catalog.
	CatalogPath string `yaml:"catalog_path,omitempty" json:"catalog_path,omitempty"`
	// DefaultRNGSeed seeds new lands when a land definition does not supply
	// its own seed. 0 means landsyncd derives one from the current time at
	// startup.
	DefaultRNGSeed int64 `yaml:"default_rng_seed" json:"default_rng_seed"`
	// UseDirtyTracking controls whether GenerateDiff takes the dirty-field
	// fast path (§4.5 step 4) for every land started by this process.
	UseDirtyTracking bool `yaml:"use_dirty_tracking" json:"use_dirty_tracking"`
	// WatchForChanges enables fsnotify-based hot reload of the config file
	// itself; see internal/watch.
	WatchForChanges bool `yaml:"watch_for_changes" json:"watch_for_changes"`
}

// DefaultConfig returns the configuration used when no file exists yet.
func DefaultConfig() Config {
	return Config{
		ListenAddr:       defaultListenAddr,
		ReplayDir:        defaultReplayDir,
		DefaultRNGSeed:   0,
		UseDirtyTracking: true,
		WatchForChanges:  false,
	}
}

// DefaultPath resolves the platform-appropriate config file location,
// preferring XDG_CONFIG_HOME, then $HOME/.config, then a temp-dir fallback
// so the process always has somewhere to read and write.
func DefaultPath() string {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Warn("config path fallback: could not resolve home directory", "error", err)
			base = os.TempDir()
		} else {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, "landsyncd", "config.yaml")
}

// Load reads the config file at path. A missing file yields DefaultConfig
// with no error, matching the "absent means defaults" convention used
// throughout this stack.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("config path required")
	}

	raw, err := readLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("failed to parse config, using defaults", "path", path, "error", err)
		return DefaultConfig(), err
	}
	return cfg, nil
}

// EnsureFile loads path, writing DefaultConfig there first if it does not
// yet exist.
func EnsureFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if _, err := Save(path, cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Save writes cfg to path using a temp-file-plus-rename so a crash mid-write
// never leaves a truncated config file behind.
func Save(path string, cfg Config) (Config, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return cfg, errors.New("config path required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return cfg, fmt.Errorf("save config: resolve path: %w", err)
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := atomicWrite(absPath, raw); err != nil {
		return cfg, err
	}
	slog.Debug("config saved", "path", absPath)
	return cfg, nil
}

func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save config: mkdir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("save config: create temp: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("failed to close temp config file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("failed to remove temp config file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if err = tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("save config: chmod temp: %w", err)
	}
	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("save config: write: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("save config: sync: %w", err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("save config: close: %w", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("save config: rename: %w", err)
	}
	return nil
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	buf := make([]byte, info.Size())
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
