package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/vivarium/pkg/vivarium/builtins"
)

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations and falls back to
// Defaults when none exists.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(configPath, getenv)
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the
// resolved path. The path is empty when defaults were used.
func LoadWithPath(configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		cfg := Defaults()
		if wd, err := os.Getwd(); err == nil {
			cfg.BaseDir = wd
		}
		return cfg, "", nil
	}

	// Get absolute path and directory for resolving relative paths
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	baseDir := filepath.Dir(absPath)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	// Interpolate environment variables
	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Set base directory for resolving relative paths
	cfg.BaseDir = baseDir

	cfg.REPL.HistoryFile = resolve(baseDir, cfg.REPL.HistoryFile)
	cfg.Conformance.Dir = resolve(baseDir, cfg.Conformance.Dir)
	cfg.Conformance.Report = resolve(baseDir, cfg.Conformance.Report)

	// Only SQLite journal paths are relative to the config file
	if dsn := cfg.Journal.DSN; dsn != "" && !strings.Contains(dsn, "://") && dsn != ":memory:" {
		cfg.Journal.DSN = resolve(baseDir, dsn)
	}

	if err := Validate(cfg); err != nil {
		return nil, "", err
	}

	return cfg, absPath, nil
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Validate checks the configuration for errors.
func Validate(cfg *Config) error {
	var errs []string

	for _, name := range cfg.Runtime.Strip {
		if !builtins.IsBuiltin(name) {
			errs = append(errs, fmt.Sprintf("runtime.strip: unknown built-in %q (must be one of %s)", name, strings.Join(builtins.Names, ", ")))
		}
	}

	if cfg.Journal.MaxEntries < 0 {
		errs = append(errs, fmt.Sprintf("journal.max_entries: %d (must not be negative)", cfg.Journal.MaxEntries))
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// resolveConfigPath finds the config file to use. An empty result means no
// file was found and defaults apply.
// Search order: explicit path > VIVARIUM_CONFIG env > ./vivarium.yaml > ~/.config/vivarium/vivarium.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	// Try VIVARIUM_CONFIG environment variable
	if envPath := getenv("VIVARIUM_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("VIVARIUM_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	// Try ./vivarium.yaml
	if _, err := os.Stat("vivarium.yaml"); err == nil {
		return "vivarium.yaml", nil
	}

	// Try ~/.config/vivarium/vivarium.yaml
	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "vivarium", "vivarium.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", nil
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := string(parts[1])
		value := getenv(varName)

		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}

		return []byte(value)
	})
}
