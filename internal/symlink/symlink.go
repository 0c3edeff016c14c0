// Package symlink implements the prefix symlink farm (C10): relative
// symlinks from each linkable subdirectory of the prefix into a formula's
// Cellar version, plus the version-agnostic opt/ and var/homebrew/linked/
// pointers.
package symlink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bru-dev/bru/internal/config"
	"github.com/bru-dev/bru/internal/log"
)

// Link walks every linkable subdirectory of versionDir and symlinks each
// file into the matching location under cfg.Prefix. Directory creation
// happens sequentially ahead of linking; link creation is parallelized
// across files, per spec §4.9/§5.
func Link(cfg *config.Config, logger log.Logger, name, version string) error {
	if logger == nil {
		logger = log.NewNoop()
	}
	versionDir := cfg.CellarDir(name, version)

	var files []string
	for _, sub := range cfg.Linkable {
		root := filepath.Join(versionDir, sub)
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		err = filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(versionDir, path)
			if err != nil {
				return err
			}
			target := filepath.Join(cfg.Prefix, rel)
			if fi.IsDir() {
				return os.MkdirAll(target, 0o755)
			}
			files = append(files, rel)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to walk %s for linking: %w", root, err)
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, rel := range files {
		rel := rel
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := linkOne(cfg, logger, name, version, rel); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// linkOne links one file: rel is the path relative to both versionDir and
// cfg.Prefix.
func linkOne(cfg *config.Config, logger log.Logger, name, version, rel string) error {
	linkPath := filepath.Join(cfg.Prefix, rel)
	relTarget := relativeTarget(name, version, rel)

	existingTarget, lstatErr := os.Readlink(linkPath)
	if lstatErr == nil {
		if existingTarget == relTarget {
			return nil
		}
		if _, statErr := os.Stat(linkPath); statErr != nil {
			// broken symlink: remove and replace
			os.Remove(linkPath)
		} else {
			// symlink with a different target: treat as stale, replace
			os.Remove(linkPath)
		}
	} else if info, statErr := os.Lstat(linkPath); statErr == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			logger.Warn("refusing to overwrite existing file", "path", linkPath, "formula", name)
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", linkPath, err)
	}
	if err := os.Symlink(relTarget, linkPath); err != nil {
		return fmt.Errorf("failed to link %s: %w", linkPath, err)
	}
	return nil
}

// relativeTarget computes the relative symlink value from the link's
// parent directory up to prefix, then down to Cellar/<name>/<version>/rel,
// e.g. "share/man/man1/foo.1" -> "../../../Cellar/foo/1.2.3/share/man/man1/foo.1".
func relativeTarget(name, version, rel string) string {
	depth := strings.Count(rel, string(filepath.Separator))
	up := strings.Repeat(".."+string(filepath.Separator), depth)
	return up + filepath.Join("Cellar", name, version, rel)
}

// Unlink walks each linkable subdirectory of the prefix and removes any
// symlink whose normalized (never filesystem-resolved) target points into
// Cellar/<name>/<version>/.
func Unlink(cfg *config.Config, name, version string) error {
	want := filepath.Join("Cellar", name, version)

	for _, sub := range cfg.Linkable {
		root := filepath.Join(cfg.Prefix, sub)
		if _, err := os.Stat(root); err != nil {
			continue
		}
		err := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.Mode()&os.ModeSymlink == 0 {
				return nil
			}
			target, err := os.Readlink(path)
			if err != nil {
				return nil
			}
			resolved := normalize(filepath.Join(filepath.Dir(path), target))
			resolvedFromPrefix, err := filepath.Rel(cfg.Prefix, resolved)
			if err != nil {
				return nil
			}
			if resolvedFromPrefix == want || strings.HasPrefix(resolvedFromPrefix, want+string(filepath.Separator)) {
				os.Remove(path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to walk %s for unlinking: %w", root, err)
		}
	}
	return nil
}

// normalize folds out "." and ".." components of an absolute-ish path
// purely lexically, without touching the filesystem: resolving through an
// intermediate symlink would misattribute which formula a link belongs to.
func normalize(path string) string {
	return filepath.Clean(path)
}

// Optlink creates opt/<name> -> ../Cellar/<name>/<version> and
// var/homebrew/linked/<name> -> ../../../Cellar/<name>/<version>,
// replacing either pointer atomically if it already exists.
func Optlink(cfg *config.Config, name, version string) error {
	cellarTarget := filepath.Join("Cellar", name, version)

	if err := atomicRelink(cfg.OptLink(name), filepath.Join("..", cellarTarget)); err != nil {
		return fmt.Errorf("failed to optlink %s: %w", name, err)
	}
	if err := atomicRelink(cfg.LinkedLink(name), filepath.Join("..", "..", "..", cellarTarget)); err != nil {
		return fmt.Errorf("failed to link %s into var/homebrew/linked: %w", name, err)
	}
	return nil
}

// Unoptlink removes both version-agnostic pointers for name.
func Unoptlink(cfg *config.Config, name string) error {
	os.Remove(cfg.OptLink(name))
	os.Remove(cfg.LinkedLink(name))
	return nil
}

func atomicRelink(linkPath, target string) error {
	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return err
	}
	tmp := linkPath + ".tmp"
	os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, linkPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
