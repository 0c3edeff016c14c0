// Package prefix implements the Prefix & Cellar model (C1): enumerating
// installed formulae from directory layout and reading linked-version
// pointers, without ever hitting the network.
package prefix

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/bru-dev/bru/internal/config"
	"github.com/bru-dev/bru/internal/receipt"
)

// Entry describes one installed Cellar version directory.
type Entry struct {
	Name    string
	Version string
	Path    string
	Receipt *receipt.Receipt // nil if INSTALL_RECEIPT.json is missing or unreadable
}

// ListInstalled performs a two-level scan of the Cellar, skipping dotfiles.
// A missing Cellar directory yields an empty list, not an error.
func ListInstalled(cfg *config.Config) ([]Entry, error) {
	names, err := readDirNames(cfg.Cellar)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, name := range names {
		if strings.HasPrefix(name, ".") {
			continue
		}
		root := cfg.CellarRoot(name)
		versions, err := readDirNames(root)
		if err != nil {
			continue
		}
		for _, version := range versions {
			if strings.HasPrefix(version, ".") {
				continue
			}
			path := cfg.CellarDir(name, version)
			info, err := os.Stat(path)
			if err != nil || !info.IsDir() {
				continue
			}
			entry := Entry{Name: name, Version: version, Path: path}
			if r, err := receipt.Read(path); err == nil {
				entry.Receipt = r
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func readDirNames(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name())
	}
	return names, nil
}

// GetInstalledVersions returns every installed version of name, sorted
// newest-first by the natural-order comparator.
func GetInstalledVersions(cfg *config.Config, name string) ([]string, error) {
	versions, err := readDirNames(cfg.CellarRoot(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	filtered := versions[:0]
	for _, v := range versions {
		if !strings.HasPrefix(v, ".") {
			filtered = append(filtered, v)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return CompareVersions(filtered[i], filtered[j]) > 0
	})
	return filtered, nil
}

// LinkedVersion reads opt/<name>, returning the final path component of its
// target, or "" if the symlink is missing or unreadable.
func LinkedVersion(cfg *config.Config, name string) string {
	target, err := os.Readlink(cfg.OptLink(name))
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}

// CompareVersions implements the natural-order comparator from spec §4.1.
// It first tries a best-effort semver parse of both sides (covers the
// common case, and treats absent trailing components as zero the way
// semver defines them, so "1.2" == "1.2.0"); when either side isn't valid
// semver (bottle-revision suffixes like "1.4.0_32" aren't), it falls back
// to splitting on '.' and comparing components numerically where both
// sides parse as integers, lexicographically otherwise, again treating a
// component missing on one side as "0" rather than ending the comparison.
func CompareVersions(a, b string) int {
	semA, errA := semver.NewVersion(a)
	semB, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return semA.Compare(semB)
	}
	return compareComponents(a, b)
}

func compareComponents(a, b string) int {
	partsA := strings.Split(a, ".")
	partsB := strings.Split(b, ".")

	n := len(partsA)
	if len(partsB) > n {
		n = len(partsB)
	}
	for i := 0; i < n; i++ {
		pa, pb := "0", "0"
		if i < len(partsA) {
			pa = partsA[i]
		}
		if i < len(partsB) {
			pb = partsB[i]
		}
		if c := compareComponent(pa, pb); c != 0 {
			return c
		}
	}
	return 0
}

func compareComponent(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na - nb
	}
	return strings.Compare(a, b)
}

// StripBottleRevision removes a trailing all-digit "_N" suffix, per I4: a
// trailing component that isn't entirely digits (e.g. "_beta") is preserved.
func StripBottleRevision(version string) string {
	idx := strings.LastIndex(version, "_")
	if idx == -1 {
		return version
	}
	suffix := version[idx+1:]
	if suffix == "" {
		return version
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return version
		}
	}
	return version[:idx]
}

// VersionsEqual reports whether a and b are the same stable version,
// ignoring bottle-revision suffixes (I4).
func VersionsEqual(a, b string) bool {
	return StripBottleRevision(a) == StripBottleRevision(b)
}
