// Package orchestrator implements Install/Upgrade/Uninstall/Outdated (C12):
// the step-by-step pipelines spec §4.10 describes, wiring the prefix model
// (C1), platform probe (C2), API client (C4), dependency resolver (C6),
// downloader (C7), extractor (C8), relocator (C9), symlink farm (C10), and
// install receipts (C11) together in the documented order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bru-dev/bru/internal/api"
	"github.com/bru-dev/bru/internal/brerrors"
	"github.com/bru-dev/bru/internal/cellar"
	"github.com/bru-dev/bru/internal/config"
	"github.com/bru-dev/bru/internal/depgraph"
	"github.com/bru-dev/bru/internal/download"
	"github.com/bru-dev/bru/internal/extract"
	"github.com/bru-dev/bru/internal/formula"
	"github.com/bru-dev/bru/internal/log"
	"github.com/bru-dev/bru/internal/platform"
	"github.com/bru-dev/bru/internal/prefix"
	"github.com/bru-dev/bru/internal/receipt"
	"github.com/bru-dev/bru/internal/relocate"
	"github.com/bru-dev/bru/internal/symlink"
	"github.com/bru-dev/bru/internal/tap"
)

// Client is the subset of *api.Client the orchestrator depends on; narrowed
// to an interface so tests can substitute a stub instead of hitting the
// Homebrew API.
type Client interface {
	FetchFormula(ctx context.Context, name string) (*formula.Formula, error)
	FetchCask(ctx context.Context, token string) (*formula.Cask, error)
}

// BottleFetcher is the subset of *download.Downloader the orchestrator
// depends on.
type BottleFetcher interface {
	FetchAll(ctx context.Context, bottles []download.Bottle) (map[string]string, error)
}

// Orchestrator bundles every component Install/Upgrade/Uninstall needs.
type Orchestrator struct {
	cfg        *config.Config
	logger     log.Logger
	client     Client
	downloader BottleFetcher
}

// New builds an Orchestrator from its already-constructed dependencies.
func New(cfg *config.Config, logger log.Logger, client *api.Client, downloader *download.Downloader) *Orchestrator {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &Orchestrator{cfg: cfg, logger: logger, client: client, downloader: downloader}
}

// InstallOptions controls Install's behavior.
type InstallOptions struct {
	Force  bool
	DryRun bool
}

// InstallResult reports what Install did (or would do, for a dry run).
type InstallResult struct {
	Installed []string
	Skipped   []string // already installed, force=false
	Delegated []string // tap-qualified names or casks handed to stock Homebrew
}

// Install implements spec §4.10's Install algorithm.
func (o *Orchestrator) Install(ctx context.Context, names []string, opts InstallOptions) (*InstallResult, error) {
	result := &InstallResult{}
	var coreNames []string

	for _, name := range names {
		if isTapQualified(name) {
			if !opts.DryRun {
				if err := delegateToHomebrew(ctx, o.logger, "install", name); err != nil {
					return nil, err
				}
			}
			result.Delegated = append(result.Delegated, name)
			continue
		}

		if _, err := o.client.FetchFormula(ctx, name); err != nil {
			var bruErr *brerrors.Error
			if !(errors.As(err, &bruErr) && bruErr.Kind == brerrors.KindNotFound) {
				return nil, err
			}
			if _, caskErr := o.client.FetchCask(ctx, name); caskErr == nil {
				if !opts.DryRun {
					if err := delegateToHomebrew(ctx, o.logger, "install", "--cask", name); err != nil {
						return nil, err
					}
				}
				result.Delegated = append(result.Delegated, name)
				continue
			}
			return nil, err
		}
		coreNames = append(coreNames, name)
	}

	if len(coreNames) == 0 {
		return result, nil
	}

	resolution, err := depgraph.Resolve(ctx, o.client, coreNames)
	if err != nil {
		return nil, err
	}

	requested := toSet(coreNames)
	toInstall := resolution.Order
	if !opts.Force {
		var filtered []string
		for _, n := range resolution.Order {
			if versions, _ := prefix.GetInstalledVersions(o.cfg, n); len(versions) > 0 {
				result.Skipped = append(result.Skipped, n)
				continue
			}
			filtered = append(filtered, n)
		}
		toInstall = filtered
	}

	if opts.DryRun {
		result.Installed = toInstall
		return result, nil
	}

	tag, err := platform.Tag()
	if err != nil {
		return nil, err
	}

	bottles, err := buildBottles(resolution, toInstall, tag)
	if err != nil {
		return nil, err
	}

	paths, err := o.downloader.FetchAll(ctx, bottles)
	if err != nil {
		return nil, err
	}

	for _, name := range toInstall {
		f := resolution.Formulae[name]
		if err := o.installOne(ctx, f, name, paths[name], resolution, requested[name]); err != nil {
			return nil, err
		}
		result.Installed = append(result.Installed, name)
	}

	return result, nil
}

// installOne runs extract -> relocate -> link -> write receipt for one
// formula, in that exact order (spec §5's ordering guarantee), removing
// its partial version directory on any step's failure.
func (o *Orchestrator) installOne(ctx context.Context, f *formula.Formula, name, archivePath string, resolution *depgraph.Resolution, onRequest bool) error {
	versionDir, err := extract.Bottle(archivePath, o.cfg.Cellar, name, f.Versions.Stable)
	if err != nil {
		return err
	}
	actualVersion := filepath.Base(versionDir)

	if err := relocate.Run(versionDir, relocate.NewReplacements(o.cfg)); err != nil {
		os.RemoveAll(versionDir)
		return brerrors.RelocationFailed(name, versionDir, err)
	}
	if err := relocate.VerifyNoPlaceholders(versionDir); err != nil {
		os.RemoveAll(versionDir)
		return brerrors.RelocationFailed(name, versionDir, err)
	}

	if !f.KegOnly {
		if err := symlink.Link(o.cfg, o.logger, name, actualVersion); err != nil {
			os.RemoveAll(versionDir)
			return err
		}
		if err := symlink.Optlink(o.cfg, name, actualVersion); err != nil {
			os.RemoveAll(versionDir)
			return err
		}
	}

	r := receipt.New(onRequest, resolution.RuntimeDependencies(name), receipt.Source{
		Tap:      "homebrew/core",
		Versions: receipt.Versions{Stable: f.Versions.Stable},
	}, runtime.GOARCH, receipt.BuiltOn{OS: runtime.GOOS, Arch: runtime.GOARCH})
	if err := receipt.Write(versionDir, r); err != nil {
		os.RemoveAll(versionDir)
		return err
	}

	o.logger.Info("installed formula", "formula", name, "version", actualVersion)
	return nil
}

// UpgradeOptions controls Upgrade's behavior.
type UpgradeOptions struct {
	Force  bool
	DryRun bool
}

// UpgradeCandidate is one formula Upgrade will act on. Tap is non-empty for
// a formula installed from a third-party tap, whose upgrade spec §4.10 step
// 6 delegates to stock Homebrew rather than bru's own bottle pipeline.
type UpgradeCandidate struct {
	Name       string
	OldVersion string
	NewVersion string
	Tap        string
}

// UpgradeResult reports what Upgrade did.
type UpgradeResult struct {
	Upgraded []UpgradeCandidate
}

// Upgrade implements spec §4.10's Upgrade algorithm. An empty names list
// computes the outdated set itself (step 1).
func (o *Orchestrator) Upgrade(ctx context.Context, names []string, opts UpgradeOptions) (*UpgradeResult, error) {
	candidates, err := o.computeCandidates(ctx, names)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return &UpgradeResult{Upgraded: candidates}, nil
	}

	result := &UpgradeResult{}
	var coreCandidates []UpgradeCandidate
	for _, c := range candidates {
		if c.Tap == "" {
			coreCandidates = append(coreCandidates, c)
			continue
		}
		// Tap-sourced formula: bru never builds or bottles third-party tap
		// recipes itself, per spec §4.10 step 6.
		if err := delegateToHomebrew(ctx, o.logger, "upgrade", c.Name); err != nil {
			return nil, err
		}
		result.Upgraded = append(result.Upgraded, c)
	}

	if len(coreCandidates) == 0 {
		return result, nil
	}

	roots := make([]string, 0, len(coreCandidates))
	for _, c := range coreCandidates {
		roots = append(roots, c.Name)
	}
	resolution, err := depgraph.Resolve(ctx, o.client, roots)
	if err != nil {
		return nil, err
	}

	tag, err := platform.Tag()
	if err != nil {
		return nil, err
	}

	bottles, err := buildBottles(resolution, roots, tag)
	if err != nil {
		return nil, err
	}
	paths, err := o.downloader.FetchAll(ctx, bottles)
	if err != nil {
		return nil, err
	}

	for _, c := range coreCandidates {
		f := resolution.Formulae[c.Name]

		oldReceipt, _ := receipt.Read(o.cfg.CellarDir(c.Name, c.OldVersion))
		onRequest := true
		if oldReceipt != nil {
			onRequest = oldReceipt.InstalledOnRequest
		}

		if err := symlink.Unlink(o.cfg, c.Name, c.OldVersion); err != nil {
			return nil, err
		}

		if err := o.installOne(ctx, f, c.Name, paths[c.Name], resolution, onRequest); err != nil {
			return nil, err
		}
		os.RemoveAll(o.cfg.CellarDir(c.Name, c.OldVersion))

		result.Upgraded = append(result.Upgraded, c)
	}

	return result, nil
}

// computeCandidates implements Upgrade step 1/2: an explicit name list
// upgrades exactly those names; an empty list computes the outdated set.
func (o *Orchestrator) computeCandidates(ctx context.Context, names []string) ([]UpgradeCandidate, error) {
	if len(names) > 0 {
		var candidates []UpgradeCandidate
		for _, name := range names {
			c, ok, err := o.outdatedCandidate(ctx, name)
			if err != nil {
				return nil, err
			}
			if ok {
				candidates = append(candidates, c)
			}
		}
		return candidates, nil
	}
	return o.Outdated(ctx)
}

func (o *Orchestrator) outdatedCandidate(ctx context.Context, name string) (UpgradeCandidate, bool, error) {
	pinned, err := cellar.PinnedSet(o.cfg)
	if err != nil {
		return UpgradeCandidate{}, false, err
	}
	if pinned[name] {
		return UpgradeCandidate{}, false, nil
	}

	old := prefix.LinkedVersion(o.cfg, name)
	if old == "" {
		versions, err := prefix.GetInstalledVersions(o.cfg, name)
		if err != nil || len(versions) == 0 {
			return UpgradeCandidate{}, false, nil
		}
		old = versions[0]
	}

	tapSource, latest, err := o.latestVersion(ctx, name, old)
	if err != nil {
		return UpgradeCandidate{}, false, err
	}
	if latest == "" {
		return UpgradeCandidate{}, false, nil
	}

	if prefix.VersionsEqual(old, latest) {
		return UpgradeCandidate{}, false, nil
	}

	return UpgradeCandidate{Name: name, OldVersion: old, NewVersion: latest, Tap: tapSource}, true, nil
}

// latestVersion implements spec §4.10 Upgrade step 1: fetch the latest
// version from the installed receipt's tap file when the formula was
// installed from a tap, otherwise from the Homebrew API. tapSource is the
// receipt's "owner/repo" tap name, empty for homebrew/core formulae.
func (o *Orchestrator) latestVersion(ctx context.Context, name, installedVersion string) (tapSource, latest string, err error) {
	r, _ := receipt.Read(o.cfg.CellarDir(name, installedVersion))
	if r != nil && r.Source.Tap != "" && r.Source.Tap != "homebrew/core" {
		tapName, parseErr := tap.Parse(r.Source.Tap)
		if parseErr != nil {
			o.logger.Warn("malformed tap source in receipt", "formula", name, "tap", r.Source.Tap, "error", parseErr)
			return "", "", nil
		}
		info, fetchErr := tap.FetchFormula(o.cfg, tapName, name)
		if fetchErr != nil {
			o.logger.Warn("failed to read tap formula", "formula", name, "tap", r.Source.Tap, "error", fetchErr)
			return "", "", nil
		}
		return r.Source.Tap, info.Version, nil
	}

	f, err := o.client.FetchFormula(ctx, name)
	if err != nil {
		return "", "", err
	}
	return "", f.Versions.Stable, nil
}

// Outdated implements spec §4.10's Outdated: step 1 of Upgrade, without
// the side effects.
func (o *Orchestrator) Outdated(ctx context.Context) ([]UpgradeCandidate, error) {
	entries, err := prefix.ListInstalled(o.cfg)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var candidates []UpgradeCandidate
	for _, e := range entries {
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true

		c, ok, err := o.outdatedCandidate(ctx, e.Name)
		if err != nil {
			o.logger.Warn("failed to check for updates", "formula", e.Name, "error", err)
			continue
		}
		if ok {
			candidates = append(candidates, c)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	return candidates, nil
}

// Uninstall implements spec §4.10's Uninstall: remove the linked (or
// newest) version of each name, refusing when other receipts depend on it
// unless force is set.
func (o *Orchestrator) Uninstall(ctx context.Context, names []string, force bool) error {
	for _, name := range names {
		if err := o.uninstallOne(name, force); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) uninstallOne(name string, force bool) error {
	version := prefix.LinkedVersion(o.cfg, name)
	if version == "" {
		versions, err := prefix.GetInstalledVersions(o.cfg, name)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			return brerrors.FormulaNotFound(name)
		}
		version = versions[0]
	}

	if !force {
		dependents, err := cellar.Uses(o.cfg, name)
		if err != nil {
			return err
		}
		if len(dependents) > 0 {
			return brerrors.DependentsPresent(name, dependents)
		}
	}

	if err := symlink.Unlink(o.cfg, name, version); err != nil {
		return err
	}
	if err := symlink.Unoptlink(o.cfg, name); err != nil {
		return err
	}
	if err := os.RemoveAll(o.cfg.CellarDir(name, version)); err != nil {
		return err
	}

	root := o.cfg.CellarRoot(name)
	if entries, err := os.ReadDir(root); err == nil && len(entries) == 0 {
		os.Remove(root)
	}

	o.logger.Info("uninstalled formula", "formula", name, "version", version)
	return nil
}

// Autoremove uninstalls every formula cellar.Autoremove identifies as
// unreachable, per spec §4.10.
func (o *Orchestrator) Autoremove(ctx context.Context, dryRun bool) ([]string, error) {
	removable, err := cellar.Autoremove(o.cfg)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return removable, nil
	}
	for _, name := range removable {
		if err := o.uninstallOne(name, true); err != nil {
			return nil, err
		}
	}
	return removable, nil
}

func buildBottles(resolution *depgraph.Resolution, names []string, tag string) ([]download.Bottle, error) {
	bottles := make([]download.Bottle, 0, len(names))
	for _, name := range names {
		f := resolution.Formulae[name]
		available := make([]string, 0, len(f.Bottle.Stable.Files))
		for t := range f.Bottle.Stable.Files {
			available = append(available, t)
		}
		selected, err := platform.SelectBottleTag(name, available, tag)
		if err != nil {
			return nil, err
		}
		file := f.Bottle.Stable.Files[selected]
		bottles = append(bottles, download.Bottle{
			Name:    name,
			Version: f.Versions.Stable,
			Tag:     selected,
			URL:     file.URL,
			SHA256:  file.SHA256,
		})
	}
	return bottles, nil
}

func isTapQualified(name string) bool {
	return strings.Count(name, "/") >= 1
}

// delegateToHomebrew shells out to a stock `brew` binary for names outside
// bru's own core-formula/bottle pipeline (non-core taps, casks), streaming
// its output straight through.
func delegateToHomebrew(ctx context.Context, logger log.Logger, args ...string) error {
	brewPath, err := exec.LookPath("brew")
	if err != nil {
		return fmt.Errorf("delegating to stock Homebrew requires `brew` on PATH: %w", err)
	}
	logger.Info("delegating to stock Homebrew", "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, brewPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
