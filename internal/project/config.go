package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigName is the file FindConfig looks for.
const ConfigName = "minimize.toml"

// Config is the contents of minimize.toml. Every field is optional and
// command-line flags override it.
type Config struct {
	// Entry names the function to start from instead of the crate's entry.
	Entry string `toml:"entry"`
	// StepLimit bounds execution; 0 keeps the machine's default.
	StepLimit uint64 `toml:"step_limit"`

	Trace TraceConfig `toml:"trace"`
	Cache CacheConfig `toml:"cache"`
}

// TraceConfig mirrors the --trace flags.
type TraceConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
	Format string `toml:"format"`
}

// CacheConfig controls the lowering cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// ErrUnknownKeys reports keys in minimize.toml that no setting reads.
var ErrUnknownKeys = errors.New("unknown keys")

// FindConfig walks up from startDir to locate minimize.toml.
func FindConfig(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadConfig parses the configuration file at path.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: %w: %s", path, ErrUnknownKeys, strings.Join(keys, ", "))
	}
	cfg.Entry = strings.TrimSpace(cfg.Entry)
	if meta.IsDefined("entry") && cfg.Entry == "" {
		return Config{}, fmt.Errorf("%s: entry is empty", path)
	}
	return cfg, nil
}

// LoadNearestConfig loads the closest minimize.toml above startDir. A missing
// file yields the zero Config and ok false.
func LoadNearestConfig(startDir string) (cfg Config, path string, ok bool, err error) {
	path, ok, err = FindConfig(startDir)
	if err != nil || !ok {
		return Config{}, "", ok, err
	}
	cfg, err = LoadConfig(path)
	if err != nil {
		return Config{}, path, true, err
	}
	return cfg, path, true, nil
}
