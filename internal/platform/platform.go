// Package platform implements the bottle-tag probe (C2): mapping the
// running OS and architecture to the exact Homebrew platform tag used to
// select a bottle from a formula's manifest.
package platform

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/bru-dev/bru/internal/brerrors"
)

// macOSCodenames maps a macOS major version to its Homebrew bottle codename.
var macOSCodenames = map[int]string{
	15: "sequoia",
	14: "sonoma",
	13: "ventura",
	12: "monterey",
	11: "big_sur",
}

// Tag is the current platform's exact bottle tag, e.g. "arm64_sonoma",
// "sonoma", "x86_64_linux", or "arm64_linux". Unlike a fallback chain, spec
// §4.2 requires exact-tag-only selection: no silent substitution across
// macOS versions.
func Tag() (string, error) {
	if runtime.GOOS == "linux" {
		if runtime.GOARCH == "arm64" {
			return "arm64_linux", nil
		}
		return "x86_64_linux", nil
	}

	if runtime.GOOS == "darwin" {
		major, err := macOSMajorVersion()
		if err != nil {
			return "", err
		}
		codename, ok := macOSCodenames[major]
		if !ok {
			return "", fmt.Errorf("unsupported macOS major version %d: bru supports macOS 11 (Big Sur) through 15 (Sequoia)", major)
		}
		if runtime.GOARCH == "arm64" {
			return "arm64_" + codename, nil
		}
		return codename, nil
	}

	return "", fmt.Errorf("unsupported platform: %s/%s", runtime.GOOS, runtime.GOARCH)
}

// macOSMajorVersion shells out to sw_vers, the same subprocess-as-authority
// approach bru uses for git and the relocation tools: macOS version
// detection has no portable Go API, so the system's own tool is queried.
func macOSMajorVersion() (int, error) {
	out, err := exec.Command("sw_vers", "-productVersion").Output()
	if err != nil {
		return 0, fmt.Errorf("failed to determine macOS version: %w", err)
	}

	version := strings.TrimSpace(string(out))
	major := version
	if idx := strings.Index(version, "."); idx != -1 {
		major = version[:idx]
	}

	n, err := strconv.Atoi(major)
	if err != nil {
		return 0, fmt.Errorf("failed to parse macOS version %q: %w", version, err)
	}
	return n, nil
}

// SelectBottleTag picks the exact match for tag from the set of tags a
// formula's manifest declares bottles for. Per spec §4.2, there is no
// cross-version fallback: a miss returns a diagnostic naming every tag the
// formula does offer, so the caller can report precisely why no bottle is
// available.
func SelectBottleTag(formula string, available []string, tag string) (string, error) {
	for _, a := range available {
		if a == tag {
			return a, nil
		}
	}
	err := brerrors.NoBottleForPlatform(formula, tag)
	if len(available) > 0 {
		err.Message += fmt.Sprintf(" (available: %s)", strings.Join(available, ", "))
	}
	return "", err
}
