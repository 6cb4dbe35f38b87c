// Package config loads the test-selector's own configuration: test/ignore
// glob predicates, the supported extension set, and the ambient toggles
// (cache, default git base ref, barrel expansion) consumed by the
// resolver, builder, and affected finder.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
)

// FileName is the project-local config file the loader looks for at the
// project root.
const FileName = ".testselectrc.json"

// Config is the typed configuration value the core receives from its
// caller. The core never loads this itself from environment or disk —
// that is this package's job, kept outside the core per the
// externally-supplied-configuration contract.
type Config struct {
	TestPatterns    []string `json:"testPatterns"`
	IgnorePatterns  []string `json:"ignorePatterns"`
	Extensions      []string `json:"extensions"`
	CacheEnabled    bool     `json:"cacheEnabled"`
	DefaultBase     string   `json:"defaultBase"`
	ExpandBarrels   bool     `json:"expandBarrels"`
	MaxAutoReindex  int      `json:"maxAutoReindexFiles"`
	CacheDir        string   `json:"cacheDir"`
	CacheFile       string   `json:"cacheFile"`
}

// Default returns the built-in configuration used when no project config
// file is present.
func Default() Config {
	return Config{
		TestPatterns: []string{
			"**/*.spec.ts", "**/*.spec.tsx", "**/*.test.ts", "**/*.test.tsx",
			"**/*.spec.js", "**/*.spec.jsx", "**/*.test.js", "**/*.test.jsx",
		},
		IgnorePatterns: []string{
			"**/node_modules/**", "**/dist/**", "**/build/**", "**/.git/**", "**/coverage/**",
		},
		Extensions:     []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"},
		CacheEnabled:   true,
		DefaultBase:    "main",
		ExpandBarrels:  true,
		MaxAutoReindex: 100,
		CacheDir:       ".testselect",
		CacheFile:      "cache.bin",
	}
}

// Load reads root/.testselectrc.json if present, otherwise returns
// Default(). .env is loaded as a side effect (optional; environment
// variables already set take precedence) so callers running in a
// dev/CI shell can override ambient values like DATABASE_URL for the
// Postgres-backed cache backend without plumbing extra flags.
func Load(root string) (Config, error) {
	_ = godotenv.Load()

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), nil
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, &ErrConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// ErrConfigError marks a project config file that exists but is not
// valid JSON. Load returns it together with a zero Config, not Default().
type ErrConfigError struct {
	Path string
	Err  error
}

func (e *ErrConfigError) Error() string {
	return "config: parsing " + e.Path + ": " + e.Err.Error()
}

func (e *ErrConfigError) Unwrap() error { return e.Err }

// IsTest glob-matches path against TestPatterns, falling back to a
// substring check for ".spec." / ".test." in the filename.
func (c Config) IsTest(path string) bool {
	for _, pattern := range c.TestPatterns {
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(path)); ok {
			return true
		}
	}
	name := filepath.Base(path)
	return strings.Contains(name, ".spec.") || strings.Contains(name, ".test.")
}

// IsIgnored glob-matches path against IgnorePatterns; any path segment
// equal to node_modules is always ignored regardless of pattern config.
func (c Config) IsIgnored(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range c.IgnorePatterns {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
	}
	return containsSegment(slashed, "node_modules")
}

// IsSupportedExtension reports whether path's extension is one of the
// configured set.
func (c Config) IsSupportedExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, supported := range c.Extensions {
		if ext == supported {
			return true
		}
	}
	return false
}

func containsSegment(path, segment string) bool {
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
