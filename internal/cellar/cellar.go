// Package cellar implements read-only dependency-graph queries and the
// pinned-formulae set, all derived from install receipts already on disk
// (spec §4.10's leaves/autoremove, and the supplemented pin/unpin/deps/uses
// operations from SPEC_FULL.md §12). None of it touches the network.
package cellar

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bru-dev/bru/internal/config"
	"github.com/bru-dev/bru/internal/depgraph"
	"github.com/bru-dev/bru/internal/prefix"
)

// dedupByMTime keeps only the most-recently-modified version directory per
// formula name, matching spec §4.10's Upgrade step 1 dedup rule.
func dedupByMTime(entries []prefix.Entry) map[string]prefix.Entry {
	latest := make(map[string]prefix.Entry, len(entries))
	mtimes := make(map[string]int64, len(entries))

	for _, e := range entries {
		info, err := os.Stat(e.Path)
		if err != nil {
			continue
		}
		mtime := info.ModTime().UnixNano()
		if _, ok := latest[e.Name]; !ok || mtime > mtimes[e.Name] {
			latest[e.Name] = e
			mtimes[e.Name] = mtime
		}
	}
	return latest
}

// Leaves returns every installed formula name that no other installed
// receipt lists as a runtime dependency.
func Leaves(cfg *config.Config) ([]string, error) {
	entries, err := prefix.ListInstalled(cfg)
	if err != nil {
		return nil, err
	}
	byName := dedupByMTime(entries)

	required := make(map[string]bool)
	for _, e := range byName {
		if e.Receipt == nil {
			continue
		}
		for _, dep := range e.Receipt.RuntimeDependencies {
			required[dep.FullName] = true
		}
	}

	var leaves []string
	for name := range byName {
		if !required[name] {
			leaves = append(leaves, name)
		}
	}
	sort.Strings(leaves)
	return leaves, nil
}

// Autoremove computes the set of installed-as-dependency formulae that are
// no longer reachable from any installed-on-request formula's transitive
// runtime-dependency closure, entirely from receipts already on disk.
func Autoremove(cfg *config.Config) ([]string, error) {
	entries, err := prefix.ListInstalled(cfg)
	if err != nil {
		return nil, err
	}
	byName := dedupByMTime(entries)

	closure := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if closure[name] {
			return
		}
		closure[name] = true
		e, ok := byName[name]
		if !ok || e.Receipt == nil {
			return
		}
		for _, dep := range e.Receipt.RuntimeDependencies {
			visit(dep.FullName)
		}
	}
	for name, e := range byName {
		if e.Receipt != nil && e.Receipt.InstalledOnRequest {
			visit(name)
		}
	}

	var removable []string
	for name, e := range byName {
		if e.Receipt == nil || !e.Receipt.InstalledAsDependency {
			continue
		}
		if !closure[name] {
			removable = append(removable, name)
		}
	}
	sort.Strings(removable)
	return removable, nil
}

// Uses returns every installed formula whose receipt lists name as a
// runtime dependency.
func Uses(cfg *config.Config, name string) ([]string, error) {
	entries, err := prefix.ListInstalled(cfg)
	if err != nil {
		return nil, err
	}
	byName := dedupByMTime(entries)

	var uses []string
	for n, e := range byName {
		if e.Receipt == nil {
			continue
		}
		for _, dep := range e.Receipt.RuntimeDependencies {
			if dep.FullName == name {
				uses = append(uses, n)
				break
			}
		}
	}
	sort.Strings(uses)
	return uses, nil
}

// Deps returns the direct runtime dependencies of name, fetched fresh via
// fetcher (typically *api.Client).
func Deps(ctx context.Context, fetcher depgraph.Fetcher, name string) ([]string, error) {
	f, err := fetcher.FetchFormula(ctx, name)
	if err != nil {
		return nil, err
	}
	deps := append([]string(nil), f.Dependencies...)
	sort.Strings(deps)
	return deps, nil
}

// PinnedSet reads the newline-separated pinned-formulae file, returning an
// empty set (not an error) when it doesn't exist yet.
func PinnedSet(cfg *config.Config) (map[string]bool, error) {
	data, err := os.ReadFile(cfg.PinnedFile)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, err
	}
	set := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			set[line] = true
		}
	}
	return set, nil
}

func writePinnedSet(cfg *config.Config, set map[string]bool) error {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	body := strings.Join(names, "\n")
	if len(names) > 0 {
		body += "\n"
	}

	if err := os.MkdirAll(filepath.Dir(cfg.PinnedFile), 0o755); err != nil {
		return err
	}
	tmp := cfg.PinnedFile + ".tmp"
	if err := os.WriteFile(tmp, []byte(body), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, cfg.PinnedFile); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Pin adds name to the pinned set. Pinning a formula that isn't installed
// is a no-op; it reports warned=true so the caller can print a warning
// without treating it as an error (spec.md §3.2, carried via
// SPEC_FULL.md §12).
func Pin(cfg *config.Config, name string) (warned bool, err error) {
	versions, err := prefix.GetInstalledVersions(cfg, name)
	if err != nil {
		return false, err
	}
	if len(versions) == 0 {
		return true, nil
	}

	set, err := PinnedSet(cfg)
	if err != nil {
		return false, err
	}
	set[name] = true
	return false, writePinnedSet(cfg, set)
}

// Unpin removes name from the pinned set; removing an absent name is a
// no-op.
func Unpin(cfg *config.Config, name string) error {
	set, err := PinnedSet(cfg)
	if err != nil {
		return err
	}
	if !set[name] {
		return nil
	}
	delete(set, name)
	return writePinnedSet(cfg, set)
}
