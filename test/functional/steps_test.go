package functional

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

func aCleanBruEnvironment(ctx context.Context) (context.Context, error) {
	return ctx, nil
}

func theRegistryHasFormula(ctx context.Context, name, version string) error {
	state := getState(ctx)
	state.registry.addFormula(name, version, nil, map[string]string{
		"bin/" + name: "#!/bin/sh\necho " + name + " " + version + "\n",
	})
	return nil
}

func theRegistryHasFormulaWithDep(ctx context.Context, name, version, dep string) error {
	state := getState(ctx)
	state.registry.addFormula(name, version, []string{dep}, map[string]string{
		"bin/" + name: "#!/bin/sh\necho " + name + " " + version + "\n",
	})
	return nil
}

// installedLayout writes a Cellar entry directly to disk, bypassing the
// CLI, so scenarios can start from "already installed" without a network
// round trip.
func installedLayout(state *testState, name, version string, onRequest, deps []string) error {
	versionDir := filepath.Join(state.prefixDir, "Cellar", name, version)
	if err := os.MkdirAll(filepath.Join(versionDir, "bin"), 0o755); err != nil {
		return err
	}
	binPath := filepath.Join(versionDir, "bin", name)
	if err := os.WriteFile(binPath, []byte("#!/bin/sh\necho "+name+" "+version+"\n"), 0o755); err != nil {
		return err
	}

	var rd []map[string]any
	for _, d := range deps {
		rd = append(rd, map[string]any{"full_name": d})
	}
	receipt := map[string]any{
		"installed_on_request":    len(onRequest) > 0,
		"installed_as_dependency": len(onRequest) == 0,
		"runtime_dependencies":    rd,
	}
	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(versionDir, "INSTALL_RECEIPT.json"), data, 0o644)
}

func alreadyInstalled(ctx context.Context, name, version string) error {
	state := getState(ctx)
	return installedLayout(state, name, version, []string{"x"}, nil)
}

func alreadyInstalledAsDependency(ctx context.Context, name, version string) error {
	state := getState(ctx)
	return installedLayout(state, name, version, nil, nil)
}

func alreadyInstalledAndLinked(ctx context.Context, name, version string) error {
	state := getState(ctx)
	if err := installedLayout(state, name, version, []string{"x"}, nil); err != nil {
		return err
	}
	linkedDir := filepath.Join(state.prefixDir, "var", "homebrew", "linked")
	if err := os.MkdirAll(linkedDir, 0o755); err != nil {
		return err
	}
	target := filepath.Join("..", "..", "..", "Cellar", name, version)
	return os.Symlink(target, filepath.Join(linkedDir, name))
}

// iRun executes a command string, substituting "bru" at argv[0] with the
// built test binary, against the scenario's isolated prefix and fake API.
func iRun(ctx context.Context, command string) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}

	args := strings.Fields(command)
	if len(args) > 0 && args[0] == "bru" {
		args[0] = state.binPath
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(),
		"HOMEBREW_PREFIX="+state.prefixDir,
		"XDG_CACHE_HOME="+state.cacheDir,
		"BRU_API_BASE_URL="+state.registry.server.URL,
		"BRU_QUIET=0",
	)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	state.stdout = stdout.String()
	state.stderr = stderr.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			state.exitCode = exitErr.ExitCode()
		} else {
			return ctx, fmt.Errorf("command execution failed: %w", err)
		}
	} else {
		state.exitCode = 0
	}

	return ctx, nil
}

func theExitCodeIs(ctx context.Context, expected int) error {
	state := getState(ctx)
	if state.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nstdout: %s\nstderr: %s",
			expected, state.exitCode, state.stdout, state.stderr)
	}
	return nil
}

func theOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theOutputDoesNotContain(ctx context.Context, text string) error {
	state := getState(ctx)
	if strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout not to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theCellarDirExists(ctx context.Context, rel string) error {
	state := getState(ctx)
	full := filepath.Join(state.prefixDir, "Cellar", rel)
	if _, err := os.Stat(full); err != nil {
		return fmt.Errorf("expected %q to exist: %w", full, err)
	}
	return nil
}

func theCellarDirDoesNotExist(ctx context.Context, rel string) error {
	state := getState(ctx)
	full := filepath.Join(state.prefixDir, "Cellar", rel)
	if _, err := os.Stat(full); err == nil {
		return fmt.Errorf("expected %q not to exist", full)
	}
	return nil
}

func theSymlinkExists(ctx context.Context, rel string) error {
	state := getState(ctx)
	full := filepath.Join(state.prefixDir, rel)
	if _, err := os.Lstat(full); err != nil {
		return fmt.Errorf("expected symlink %q to exist: %w", full, err)
	}
	return nil
}

func theReceiptHasInstalledOnRequest(ctx context.Context, name, version, expected string) error {
	state := getState(ctx)
	path := filepath.Join(state.prefixDir, "Cellar", name, version, "INSTALL_RECEIPT.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var receipt struct {
		InstalledOnRequest bool `json:"installed_on_request"`
	}
	if err := json.Unmarshal(data, &receipt); err != nil {
		return err
	}

	want, err := strconv.ParseBool(expected)
	if err != nil {
		return err
	}
	if receipt.InstalledOnRequest != want {
		return fmt.Errorf("expected installed_on_request=%v for %s %s, got %v", want, name, version, receipt.InstalledOnRequest)
	}
	return nil
}
