// Package tap implements the tap store (C5): cloning and removing tap
// checkouts, enumerating installed taps, and parsing Ruby formula files by
// line-oriented pattern matching rather than a Ruby interpreter.
package tap

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bru-dev/bru/internal/config"
	"github.com/bru-dev/bru/internal/log"
)

// Name is a parsed "owner/repo" tap identifier.
type Name struct {
	Owner string
	Repo  string // without the synthetic "homebrew-" prefix
}

// Parse splits "owner/repo" into a Name, accepting a repo that already
// carries the "homebrew-" prefix.
func Parse(s string) (Name, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Name{}, fmt.Errorf("invalid tap name %q: expected owner/repo", s)
	}
	return Name{Owner: parts[0], Repo: strings.TrimPrefix(parts[1], "homebrew-")}, nil
}

// String renders the tap's display form, "owner/repo".
func (n Name) String() string {
	return n.Owner + "/" + n.Repo
}

// CloneURL is the tap's GitHub clone URL.
func (n Name) CloneURL() string {
	return fmt.Sprintf("https://github.com/%s/homebrew-%s.git", n.Owner, n.Repo)
}

// Tap performs a shallow clone of name into the prefix's Taps directory.
func Tap(ctx context.Context, cfg *config.Config, logger log.Logger, name Name) error {
	if logger == nil {
		logger = log.NewNoop()
	}
	dir := cfg.TapDir(name.Owner, name.Repo)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("tap %s is already installed", name)
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("failed to create tap parent directory: %w", err)
	}

	logger.Info("cloning tap", "tap", name.String(), "url", name.CloneURL())
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", name.CloneURL(), dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git clone failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Untap recursively removes a tap's checkout, and its owner directory too
// if that becomes empty.
func Untap(cfg *config.Config, name Name) error {
	dir := cfg.TapDir(name.Owner, name.Repo)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove tap directory: %w", err)
	}

	ownerDir := filepath.Dir(dir)
	entries, err := os.ReadDir(ownerDir)
	if err != nil {
		return nil
	}
	if len(entries) == 0 {
		_ = os.Remove(ownerDir)
	}
	return nil
}

// ListTaps enumerates the two-level Taps directory structure, returning
// each tap's display name with the "homebrew-" prefix stripped.
func ListTaps(cfg *config.Config) ([]Name, error) {
	owners, err := os.ReadDir(cfg.TapsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var taps []Name
	for _, owner := range owners {
		if !owner.IsDir() {
			continue
		}
		repos, err := os.ReadDir(filepath.Join(cfg.TapsDir, owner.Name()))
		if err != nil {
			continue
		}
		for _, repo := range repos {
			if !repo.IsDir() {
				continue
			}
			taps = append(taps, Name{Owner: owner.Name(), Repo: strings.TrimPrefix(repo.Name(), "homebrew-")})
		}
	}
	return taps, nil
}

// Update runs `git pull --ff-only` in the tap's checkout. unchanged
// reports whether stdout contained the literal "Already up to date" or
// "Already up-to-date" signal spec §6 calls for.
func Update(ctx context.Context, cfg *config.Config, name Name) (unchanged bool, err error) {
	dir := cfg.TapDir(name.Owner, name.Repo)
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "pull", "--ff-only")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return false, fmt.Errorf("git pull failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	text := string(out)
	return strings.Contains(text, "Already up to date") || strings.Contains(text, "Already up-to-date"), nil
}

// FormulaPath returns the path to pkg's Ruby formula file within the tap.
func FormulaPath(cfg *config.Config, name Name, pkg string) string {
	return filepath.Join(cfg.TapDir(name.Owner, name.Repo), "Formula", pkg+".rb")
}

// Info holds the three fields bru's line-oriented Ruby parser extracts.
type Info struct {
	Version  string
	Desc     string
	Homepage string
}

var (
	versionPattern  = regexp.MustCompile(`^\s*version\s+"([^"]*)"`)
	descPattern     = regexp.MustCompile(`^\s*desc\s+"([^"]*)"`)
	homepagePattern = regexp.MustCompile(`^\s*homepage\s+"([^"]*)"`)
)

// ParseFormula scans a Ruby formula file line-by-line for the three
// supported fields; this is deliberately not a Ruby interpreter (spec
// §4.4, §9: DSL execution is out of scope).
func ParseFormula(content string) Info {
	var info Info
	for _, line := range strings.Split(content, "\n") {
		if info.Version == "" {
			if m := versionPattern.FindStringSubmatch(line); m != nil {
				info.Version = m[1]
			}
		}
		if info.Desc == "" {
			if m := descPattern.FindStringSubmatch(line); m != nil {
				info.Desc = m[1]
			}
		}
		if info.Homepage == "" {
			if m := homepagePattern.FindStringSubmatch(line); m != nil {
				info.Homepage = m[1]
			}
		}
	}
	return info
}

// cacheTTL is the tap formula disk-cache freshness window (SPEC_FULL.md
// §12): far shorter than the 24h core index TTL since tap formulae change
// without any central index to signal it.
const cacheTTL = 1 * time.Hour

func cachePath(cfg *config.Config, name Name, pkg string) string {
	return filepath.Join(cfg.CacheDir, "taps", name.Owner, name.Repo, pkg+".rb")
}

// FetchFormula reads pkg's formula file from the local tap checkout,
// through a short-TTL disk cache keyed by tap+formula, and parses it.
func FetchFormula(cfg *config.Config, name Name, pkg string) (Info, error) {
	cache := cachePath(cfg, name, pkg)
	if info, ok := readFresh(cache); ok {
		return ParseFormula(info), nil
	}

	data, err := os.ReadFile(FormulaPath(cfg, name, pkg))
	if err != nil {
		return Info{}, fmt.Errorf("formula %s not found in tap %s: %w", pkg, name, err)
	}

	if err := os.MkdirAll(filepath.Dir(cache), 0o755); err != nil {
		_ = err // best-effort: caching is an optimization, not correctness-bearing
	} else {
		_ = os.WriteFile(cache, data, 0o644)
	}

	return ParseFormula(string(data)), nil
}

func readFresh(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || time.Since(info.ModTime()) >= cacheTTL {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}
