// Package relocate implements the bottle relocator (C9): rewriting the
// @@HOMEBREW_*@@ placeholders a bottle was built with into paths valid at
// this prefix, and patching the load commands of the Mach-O/ELF binaries
// that reference those paths so the extracted tree actually runs here.
package relocate

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bru-dev/bru/internal/config"
)

// Placeholders lists every @@HOMEBREW_*@@ token bru rewrites (spec §4.8).
var Placeholders = []string{
	"@@HOMEBREW_PREFIX@@",
	"@@HOMEBREW_CELLAR@@",
	"@@HOMEBREW_REPOSITORY@@",
	"@@HOMEBREW_LIBRARY@@",
	"@@HOMEBREW_PERL@@",
}

// Replacements maps each placeholder to the concrete path at this prefix.
type Replacements map[string]string

// NewReplacements derives the replacement value for every placeholder from
// cfg. Library is Prefix/Library (TapsDir's parent); Repository is Prefix
// itself, matching a single-prefix Homebrew-compatible layout. Perl falls
// back to /usr/bin/perl, the system interpreter on both macOS and Linux,
// when no perl is on PATH.
func NewReplacements(cfg *config.Config) Replacements {
	perl, err := exec.LookPath("perl")
	if err != nil {
		perl = "/usr/bin/perl"
	}
	return Replacements{
		"@@HOMEBREW_PREFIX@@":     cfg.Prefix,
		"@@HOMEBREW_CELLAR@@":     cfg.Cellar,
		"@@HOMEBREW_REPOSITORY@@": cfg.Prefix,
		"@@HOMEBREW_LIBRARY@@":    filepath.Dir(cfg.TapsDir),
		"@@HOMEBREW_PERL@@":       perl,
	}
}

// Run walks versionDir once, rewriting placeholder text in every regular
// file and patching load commands in every Mach-O/ELF binary found. An
// error editing one file aborts the whole walk; the caller (the
// orchestrator) is responsible for removing the partially-relocated
// version directory on failure, per spec §4.8's failure policy.
func Run(versionDir string, repl Replacements) error {
	return filepath.Walk(versionDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if len(content) == 0 {
			return nil
		}

		if magic := machOrELFKind(content); magic != kindNeither {
			return relocateBinary(path, magic, repl)
		}

		if !containsAnyPlaceholder(content) {
			return nil
		}
		return relocateText(path, content, info.Mode(), repl)
	})
}

func containsAnyPlaceholder(content []byte) bool {
	for _, p := range Placeholders {
		if bytes.Contains(content, []byte(p)) {
			return true
		}
	}
	return false
}

// relocateText rewrites every placeholder occurrence in content and writes
// it back, restoring write permission first since bottle files often ship
// read-only.
func relocateText(path string, content []byte, mode os.FileMode, repl Replacements) error {
	newContent := content
	for _, p := range Placeholders {
		value, ok := repl[p]
		if !ok {
			continue
		}
		newContent = bytes.ReplaceAll(newContent, []byte(p), []byte(value))
	}

	if mode&0o200 == 0 {
		if err := os.Chmod(path, mode|0o200); err != nil {
			return fmt.Errorf("failed to make %s writable: %w", path, err)
		}
	}
	if err := os.WriteFile(path, newContent, mode); err != nil {
		return fmt.Errorf("failed to write relocated %s: %w", path, err)
	}
	return nil
}

type binaryKind int

const (
	kindNeither binaryKind = iota
	kindMachO
	kindELF
)

// machOrELFKind classifies content by magic bytes: Mach-O's four byte
// orderings (0xFEEDFACE/0xFEEDFACF, both endiannesses, plus the fat-binary
// magic 0xCAFEBABE/0xBEBAFECA) or the ELF magic "\x7fELF".
func machOrELFKind(content []byte) binaryKind {
	if len(content) < 4 {
		return kindNeither
	}
	magic := content[:4]
	switch {
	case bytes.Equal(magic, []byte{0x7f, 'E', 'L', 'F'}):
		return kindELF
	case bytes.Equal(magic, []byte{0xfe, 0xed, 0xfa, 0xce}),
		bytes.Equal(magic, []byte{0xce, 0xfa, 0xed, 0xfe}),
		bytes.Equal(magic, []byte{0xfe, 0xed, 0xfa, 0xcf}),
		bytes.Equal(magic, []byte{0xcf, 0xfa, 0xed, 0xfe}),
		bytes.Equal(magic, []byte{0xca, 0xfe, 0xba, 0xbe}),
		bytes.Equal(magic, []byte{0xbe, 0xba, 0xfe, 0xca}):
		return kindMachO
	default:
		return kindNeither
	}
}

func relocateBinary(path string, kind binaryKind, repl Replacements) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	writable := info.Mode()&0o200 != 0
	if !writable {
		if err := os.Chmod(path, info.Mode()|0o200); err != nil {
			return fmt.Errorf("failed to make %s writable: %w", path, err)
		}
		defer os.Chmod(path, info.Mode())
	}

	switch kind {
	case kindMachO:
		return relocateMachO(path, repl)
	case kindELF:
		return relocateELF(path, repl)
	}
	return nil
}

func applyReplacements(s string, repl Replacements) string {
	for p, v := range repl {
		s = strings.ReplaceAll(s, p, v)
	}
	return s
}

// relocateMachO rewrites every LC_RPATH and dependent-library load command
// containing a placeholder, using install_name_tool, then strips the
// binary's signature so macOS won't refuse to load an edited binary whose
// Developer-ID signature no longer matches (spec §4.8). Missing tools are
// not an error on Linux builds, where this path is simply unreachable.
func relocateMachO(path string, repl Replacements) error {
	installNameTool, err := exec.LookPath("install_name_tool")
	if err != nil {
		return nil
	}
	otool, err := exec.LookPath("otool")
	if err != nil {
		return nil
	}

	changed := false

	for _, rpath := range machORpaths(otool, path) {
		if !containsPlaceholder(rpath) {
			continue
		}
		exec.Command(installNameTool, "-delete_rpath", rpath, path).Run()
		newRpath := applyReplacements(rpath, repl)
		if out, err := exec.Command(installNameTool, "-add_rpath", newRpath, path).CombinedOutput(); err != nil {
			if !strings.Contains(string(out), "would duplicate") {
				return fmt.Errorf("install_name_tool -add_rpath failed on %s: %s: %w", path, strings.TrimSpace(string(out)), err)
			}
		}
		changed = true
	}

	id := machOInstallID(otool, path)
	if id != "" && containsPlaceholder(id) {
		newID := applyReplacements(id, repl)
		if out, err := exec.Command(installNameTool, "-id", newID, path).CombinedOutput(); err != nil {
			return fmt.Errorf("install_name_tool -id failed on %s: %s: %w", path, strings.TrimSpace(string(out)), err)
		}
		changed = true
	}

	for _, dep := range machODependentLibs(otool, path) {
		if !containsPlaceholder(dep) {
			continue
		}
		newDep := applyReplacements(dep, repl)
		if out, err := exec.Command(installNameTool, "-change", dep, newDep, path).CombinedOutput(); err != nil {
			return fmt.Errorf("install_name_tool -change failed on %s: %s: %w", path, strings.TrimSpace(string(out)), err)
		}
		changed = true
	}

	if !changed {
		return nil
	}

	// install_name_tool invalidates any existing signature; remove it
	// rather than leave a Developer-ID signature macOS will refuse to run
	// because it no longer matches the edited binary.
	if codesign, err := exec.LookPath("codesign"); err == nil {
		exec.Command(codesign, "--remove-signature", path).Run()
		if runtime.GOARCH == "arm64" {
			// Apple Silicon requires at least an ad-hoc signature to execute.
			exec.Command(codesign, "-f", "-s", "-", path).Run()
		}
	}

	return nil
}

func containsPlaceholder(s string) bool {
	for _, p := range Placeholders {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// machORpaths returns every LC_RPATH entry parsed from `otool -l`.
func machORpaths(otool, path string) []string {
	out, err := exec.Command(otool, "-l", path).Output()
	if err != nil {
		return nil
	}
	var rpaths []string
	inRpath := false
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "cmd LC_RPATH" {
			inRpath = true
			continue
		}
		if inRpath && strings.HasPrefix(line, "path ") {
			p := strings.TrimPrefix(line, "path ")
			if idx := strings.Index(p, " (offset"); idx != -1 {
				p = p[:idx]
			}
			rpaths = append(rpaths, p)
			inRpath = false
		}
	}
	return rpaths
}

// machOInstallID returns the binary's own dylib ID from `otool -D`, or ""
// for binaries that aren't shared libraries.
func machOInstallID(otool, path string) string {
	out, err := exec.Command(otool, "-D", path).Output()
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return ""
	}
	return strings.TrimSpace(lines[1])
}

// machODependentLibs returns every dependent library path from `otool -L`,
// skipping the first line (the binary itself).
func machODependentLibs(otool, path string) []string {
	out, err := exec.Command(otool, "-L", path).Output()
	if err != nil {
		return nil
	}
	lines := strings.Split(string(out), "\n")
	if len(lines) < 2 {
		return nil
	}
	var deps []string
	for _, line := range lines[1:] {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		deps = append(deps, fields[0])
	}
	return deps
}

// relocateELF uses patchelf to replace a placeholder-bearing RPATH and ELF
// interpreter. patchelf is declared as an install-time dependency on
// Linux; its absence here means the bottle was never going to run anyway,
// so that failure surfaces as a normal exec error rather than being
// swallowed.
func relocateELF(path string, repl Replacements) error {
	patchelf, err := exec.LookPath("patchelf")
	if err != nil {
		return fmt.Errorf("patchelf not found on PATH: %w", err)
	}

	if rpath, err := exec.Command(patchelf, "--print-rpath", path).Output(); err == nil {
		current := strings.TrimSpace(string(rpath))
		if current != "" && containsPlaceholder(current) {
			newRpath := applyReplacements(current, repl)
			if out, err := exec.Command(patchelf, "--remove-rpath", path).CombinedOutput(); err != nil {
				return fmt.Errorf("patchelf --remove-rpath failed on %s: %s: %w", path, strings.TrimSpace(string(out)), err)
			}
			if out, err := exec.Command(patchelf, "--set-rpath", newRpath, path).CombinedOutput(); err != nil {
				return fmt.Errorf("patchelf --set-rpath failed on %s: %s: %w", path, strings.TrimSpace(string(out)), err)
			}
		}
	}

	if interp, err := exec.Command(patchelf, "--print-interpreter", path).Output(); err == nil {
		current := strings.TrimSpace(string(interp))
		if current != "" && containsPlaceholder(current) {
			newInterp := applyReplacements(current, repl)
			if out, err := exec.Command(patchelf, "--set-interpreter", newInterp, path).CombinedOutput(); err != nil {
				return fmt.Errorf("patchelf --set-interpreter failed on %s: %s: %w", path, strings.TrimSpace(string(out)), err)
			}
		}
	}

	return nil
}

// VerifyNoPlaceholders scans every regular text file under versionDir for
// leftover @@HOMEBREW_*@@ substrings, enforcing I5. Binaries are not
// scanned: a placeholder surviving inside a Mach-O/ELF load command would
// already have caused relocateBinary to fail or was never referenced by a
// load command bru edits (e.g. embedded debug info), which this invariant
// does not cover.
func VerifyNoPlaceholders(versionDir string) error {
	return filepath.Walk(versionDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if machOrELFKind(content) != kindNeither {
			return nil
		}
		if containsAnyPlaceholder(content) {
			return fmt.Errorf("%s still contains a Homebrew placeholder after relocation", path)
		}
		return nil
	})
}
