// Package extract implements the bottle extractor (C8): stream a gzipped
// tarball into the Cellar and resolve the actual version directory the
// archive unpacked into, which may carry a bottle-revision suffix the
// formula's nominal version does not (spec §4.7).
package extract

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/bru-dev/bru/internal/brerrors"
)

// Bottle extracts the gzipped tarball at archivePath into cellarRoot
// (cfg.Cellar) and returns the extracted path: cellarRoot/name/<actual
// version>, where actual version is version or version_N for some N. The
// archive's internal layout is <name>/<version_or_suffixed>/....
func Bottle(archivePath, cellarRoot, name, version string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open bottle archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	destRoot := filepath.Join(cellarRoot, name)
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cellar directory: %w", err)
	}

	if err := extractTar(tar.NewReader(gz), destRoot); err != nil {
		return "", err
	}

	return resolveVersionDir(destRoot, version, name)
}

func extractTar(tr *tar.Reader, destRoot string) error {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read bottle tar header: %w", err)
		}

		cleanName := strings.TrimPrefix(header.Name, "./")
		if cleanName == "" {
			continue
		}
		target := filepath.Join(destRoot, cleanName)
		if !isPathWithinDirectory(target, destRoot) {
			return fmt.Errorf("bottle archive entry escapes cellar directory: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", cleanName, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create parent directory for %s: %w", cleanName, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode&0o777))
			if err != nil {
				return fmt.Errorf("failed to create file %s: %w", cleanName, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("failed to write file %s: %w", cleanName, err)
			}
			out.Close()

		case tar.TypeSymlink:
			if err := validateSymlinkTarget(header.Linkname, target, destRoot); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create parent directory for symlink %s: %w", cleanName, err)
			}
			if err := atomicSymlink(header.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink %s: %w", cleanName, err)
			}

		default:
			// Hardlinks, devices, and the rest don't occur in bottles; skip.
		}
	}
}

// resolveVersionDir finds the directory the archive actually unpacked the
// formula into: destRoot/version exactly, or the lexicographically first
// destRoot/version_N sibling (I4). A bottle always carries exactly one
// version directory, so ties are not expected in practice.
func resolveVersionDir(destRoot, version, name string) (string, error) {
	exact := filepath.Join(destRoot, version)
	if info, err := os.Stat(exact); err == nil && info.IsDir() {
		return exact, nil
	}

	entries, err := os.ReadDir(destRoot)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted cellar directory: %w", err)
	}

	prefix := version + "_"
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			return filepath.Join(destRoot, e.Name()), nil
		}
	}

	return "", brerrors.RelocationFailed(name, destRoot, fmt.Errorf("no version directory matching %q or %q*", version, prefix))
}

// isPathWithinDirectory reports whether targetPath resolves inside basePath,
// guarding against path-traversal entries in untrusted bottle tarballs.
func isPathWithinDirectory(targetPath, basePath string) bool {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(os.PathSeparator))
}

// validateSymlinkTarget rejects absolute symlinks and symlinks whose
// resolved target would escape destRoot.
func validateSymlinkTarget(linkTarget, linkLocation, destRoot string) error {
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("absolute symlink targets are not allowed: %s -> %s", linkLocation, linkTarget)
	}
	resolved := filepath.Join(filepath.Dir(linkLocation), linkTarget)
	if !isPathWithinDirectory(resolved, destRoot) {
		return fmt.Errorf("symlink target escapes cellar directory: %s -> %s", linkLocation, linkTarget)
	}
	return nil
}

// atomicSymlink creates linkPath atomically via a temp-name-then-rename,
// avoiding a window where a half-created symlink is visible.
func atomicSymlink(target, linkPath string) error {
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
