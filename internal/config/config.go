// Package config resolves bru's on-disk layout and tunable environment
// variables. Paths here mirror the stock Homebrew filesystem layout so that
// bru and a stock Homebrew installation can coexist and share state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// EnvPrefix overrides prefix detection entirely.
	EnvPrefix = "HOMEBREW_PREFIX"

	// EnvAPITimeout configures the HTTPS client timeout used by the API client,
	// downloader, and tap fetches.
	EnvAPITimeout = "BRU_API_TIMEOUT"

	// EnvCacheTTL configures the persistent metadata cache freshness window.
	EnvCacheTTL = "BRU_CACHE_TTL"

	// EnvXDGCacheHome is read for the persistent cache/download cache root,
	// per the XDG base directory spec, falling back to $HOME/.cache.
	EnvXDGCacheHome = "XDG_CACHE_HOME"

	// EnvAPIBaseURL overrides the Homebrew JSON API's base URL, for pointing
	// at a mirror or, in the functional test suite, a local httptest server
	// so scenarios never depend on formulae.brew.sh being reachable.
	EnvAPIBaseURL = "BRU_API_BASE_URL"

	// DefaultAPITimeout is the default HTTPS request timeout.
	DefaultAPITimeout = 10 * time.Second

	// DefaultCacheTTL is the default persistent index cache freshness window.
	DefaultCacheTTL = 24 * time.Hour
)

// GetAPITimeout returns the configured API timeout from BRU_API_TIMEOUT.
// If not set or invalid, returns DefaultAPITimeout. Accepts duration
// strings like "10s", "1m".
func GetAPITimeout() time.Duration {
	envValue := os.Getenv(EnvAPITimeout)
	if envValue == "" {
		return DefaultAPITimeout
	}

	duration, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n",
			EnvAPITimeout, envValue, DefaultAPITimeout)
		return DefaultAPITimeout
	}

	if duration < 1*time.Second {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%v), using minimum 1s\n",
			EnvAPITimeout, duration)
		return 1 * time.Second
	}
	if duration > 10*time.Minute {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum 10m\n",
			EnvAPITimeout, duration)
		return 10 * time.Minute
	}

	return duration
}

// GetCacheTTL returns the configured persistent cache TTL from BRU_CACHE_TTL.
// If not set or invalid, returns DefaultCacheTTL. Accepts duration strings
// like "30m", "1h", "24h", or "Xd" for days.
func GetCacheTTL() time.Duration {
	envValue := os.Getenv(EnvCacheTTL)
	if envValue == "" {
		return DefaultCacheTTL
	}

	if len(envValue) > 1 && (envValue[len(envValue)-1] == 'd' || envValue[len(envValue)-1] == 'D') {
		daysStr := envValue[:len(envValue)-1]
		if days, err := strconv.ParseFloat(daysStr, 64); err == nil {
			return clampCacheTTL(time.Duration(days * 24 * float64(time.Hour)))
		}
	}

	duration, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n",
			EnvCacheTTL, envValue, DefaultCacheTTL)
		return DefaultCacheTTL
	}

	return clampCacheTTL(duration)
}

// GetAPIBaseURL returns BRU_API_BASE_URL if set, otherwise "".
func GetAPIBaseURL() string {
	return os.Getenv(EnvAPIBaseURL)
}

// UserPrefs holds optional persisted preferences from config.toml. The spec
// doesn't require a config file, but the teacher's ambient config layer
// always has one, so bru carries a narrow optional one: a default timeout
// and a default tap list, never required for correctness.
type UserPrefs struct {
	DefaultTimeout string   `toml:"default_timeout,omitempty"`
	DefaultTaps    []string `toml:"default_taps,omitempty"`
}

// UserConfigFile returns the path to bru's optional config.toml, under
// $XDG_CONFIG_HOME/bru, falling back to $HOME/.config/bru.
func UserConfigFile() (string, error) {
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return filepath.Join(x, "bru", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "bru", "config.toml"), nil
}

// LoadUserPrefs reads config.toml if present, returning zero-value prefs
// when the file is missing. Only a parse error of an existing file is
// reported; a missing file is the common case, not a failure.
func LoadUserPrefs() (*UserPrefs, error) {
	path, err := UserConfigFile()
	if err != nil {
		return &UserPrefs{}, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &UserPrefs{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	prefs := &UserPrefs{}
	if _, err := toml.Decode(string(data), prefs); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return prefs, nil
}

func clampCacheTTL(duration time.Duration) time.Duration {
	if duration < 1*time.Minute {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%v), using minimum 1m\n", EnvCacheTTL, duration)
		return 1 * time.Minute
	}
	if duration > 30*24*time.Hour {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum 30d\n", EnvCacheTTL, duration)
		return 30 * 24 * time.Hour
	}
	return duration
}

// DefaultPrefixOverride can be set by the binary's main package (via
// ldflags) to change the default prefix for dev builds. HOMEBREW_PREFIX
// still takes precedence.
var DefaultPrefixOverride string

// Config holds the resolved on-disk layout for one bru invocation.
type Config struct {
	Prefix   string // the detected Homebrew-compatible prefix
	Cellar   string // Prefix/Cellar
	Caskroom string // Prefix/Caskroom
	OptDir   string // Prefix/opt

	LinkedDir  string // Prefix/var/homebrew/linked
	PinnedFile string // Prefix/var/homebrew/pinned_formulae
	TapsDir    string // Prefix/Library/Taps

	// Linkable is the fixed set of symlink-farm subdirectories (spec §4.9).
	Linkable []string

	CacheDir         string // metadata index cache: $XDG_CACHE_HOME/bru
	DownloadCacheDir string // $XDG_CACHE_HOME/bru/downloads
}

// DefaultConfig detects the prefix and derives every other path from it.
func DefaultConfig() (*Config, error) {
	prefix, err := DetectPrefix()
	if err != nil {
		return nil, err
	}
	return FromPrefix(prefix)
}

// DetectPrefix resolves the Homebrew-compatible prefix: an explicit
// HOMEBREW_PREFIX override first, else a dev-build override, else the
// architecture default (/opt/homebrew on arm64, /usr/local otherwise).
func DetectPrefix() (string, error) {
	if p := os.Getenv(EnvPrefix); p != "" {
		return p, nil
	}
	if DefaultPrefixOverride != "" {
		return DefaultPrefixOverride, nil
	}
	if runtime.GOARCH == "arm64" {
		return "/opt/homebrew", nil
	}
	return "/usr/local", nil
}

// FromPrefix builds a Config from an already-resolved prefix.
func FromPrefix(prefix string) (*Config, error) {
	cacheRoot, err := cacheHome()
	if err != nil {
		return nil, err
	}

	return &Config{
		Prefix:           prefix,
		Cellar:           filepath.Join(prefix, "Cellar"),
		Caskroom:         filepath.Join(prefix, "Caskroom"),
		OptDir:           filepath.Join(prefix, "opt"),
		LinkedDir:        filepath.Join(prefix, "var", "homebrew", "linked"),
		PinnedFile:       filepath.Join(prefix, "var", "homebrew", "pinned_formulae"),
		TapsDir:          filepath.Join(prefix, "Library", "Taps"),
		Linkable:         []string{"bin", "sbin", "lib", "include", "share", "etc", "Frameworks"},
		CacheDir:         filepath.Join(cacheRoot, "bru"),
		DownloadCacheDir: filepath.Join(cacheRoot, "bru", "downloads"),
	}, nil
}

// cacheHome returns $XDG_CACHE_HOME, falling back to $HOME/.cache.
func cacheHome() (string, error) {
	if x := os.Getenv(EnvXDGCacheHome); x != "" {
		return x, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".cache"), nil
}

// EnsureDirectories creates every top-level directory bru writes to: the
// Cellar, Caskroom, opt and var/homebrew/linked trees, the Taps directory,
// and both cache directories. Per-formula subdirectories are created later
// by the install path.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Cellar,
		c.Caskroom,
		c.OptDir,
		c.LinkedDir,
		c.TapsDir,
		c.CacheDir,
		c.DownloadCacheDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// CellarDir returns Cellar/<name>/<version>.
func (c *Config) CellarDir(name, version string) string {
	return filepath.Join(c.Cellar, name, version)
}

// CellarRoot returns Cellar/<name>.
func (c *Config) CellarRoot(name string) string {
	return filepath.Join(c.Cellar, name)
}

// OptLink returns opt/<name>.
func (c *Config) OptLink(name string) string {
	return filepath.Join(c.OptDir, name)
}

// LinkedLink returns var/homebrew/linked/<name>.
func (c *Config) LinkedLink(name string) string {
	return filepath.Join(c.LinkedDir, name)
}

// TapDir returns Library/Taps/<owner>/homebrew-<repo>.
func (c *Config) TapDir(owner, repo string) string {
	return filepath.Join(c.TapsDir, owner, "homebrew-"+repo)
}

// ShellDialect identifies a supported shell for `bru shellenv` output.
type ShellDialect string

const (
	ShellBash ShellDialect = "bash"
	ShellZsh  ShellDialect = "zsh"
	ShellFish ShellDialect = "fish"
)

// DetectShell returns the shell dialect to emit for shellenv, reading $SHELL
// when the caller doesn't specify one explicitly. Only bash/sh, zsh, and
// fish are recognized; anything else defaults to bash/sh syntax.
func DetectShell(explicit string) ShellDialect {
	shell := explicit
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	base := filepath.Base(shell)
	switch {
	case strings.Contains(base, "fish"):
		return ShellFish
	case strings.Contains(base, "zsh"):
		return ShellZsh
	default:
		return ShellBash
	}
}

// NoColor reports whether colorized output should be suppressed, per the
// standard NO_COLOR/CLICOLOR/CLICOLOR_FORCE conventions.
func NoColor(isTerminal bool) bool {
	if isTruthy(os.Getenv("CLICOLOR_FORCE")) {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return true
	}
	if v, ok := os.LookupEnv("CLICOLOR"); ok {
		return v == "0"
	}
	return !isTerminal
}

func isTruthy(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return false
	}
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
