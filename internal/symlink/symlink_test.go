package symlink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bru-dev/bru/internal/config"
	"github.com/bru-dev/bru/internal/log"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.FromPrefix(t.TempDir())
	require.NoError(t, err)
	return cfg
}

func seedVersion(t *testing.T, cfg *config.Config, name, version string, files map[string]string) {
	t.Helper()
	versionDir := cfg.CellarDir(name, version)
	for rel, content := range files {
		path := filepath.Join(versionDir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestLink_CreatesRelativeSymlinks(t *testing.T) {
	cfg := testConfig(t)
	seedVersion(t, cfg, "wget", "1.21.4", map[string]string{
		"bin/wget": "binary",
		"share/man/man1/wget.1": "manpage",
	})

	require.NoError(t, Link(cfg, log.NewNoop(), "wget", "1.21.4"))

	target, err := os.Readlink(filepath.Join(cfg.Prefix, "bin", "wget"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "Cellar", "wget", "1.21.4", "bin", "wget"), target)

	target, err = os.Readlink(filepath.Join(cfg.Prefix, "share", "man", "man1", "wget.1"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "..", "..", "Cellar", "wget", "1.21.4", "share", "man", "man1", "wget.1"), target)
}

func TestLink_SameTargetIsNoop(t *testing.T) {
	cfg := testConfig(t)
	seedVersion(t, cfg, "jq", "1.7", map[string]string{"bin/jq": "v1"})

	require.NoError(t, Link(cfg, log.NewNoop(), "jq", "1.7"))
	linkPath := filepath.Join(cfg.Prefix, "bin", "jq")
	before, err := os.Lstat(linkPath)
	require.NoError(t, err)

	require.NoError(t, Link(cfg, log.NewNoop(), "jq", "1.7"))
	after, err := os.Lstat(linkPath)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestLink_ReplacesDifferentSymlinkTarget(t *testing.T) {
	cfg := testConfig(t)
	seedVersion(t, cfg, "jq", "1.6", map[string]string{"bin/jq": "v1.6"})
	seedVersion(t, cfg, "jq", "1.7", map[string]string{"bin/jq": "v1.7"})

	require.NoError(t, Link(cfg, log.NewNoop(), "jq", "1.6"))
	require.NoError(t, Link(cfg, log.NewNoop(), "jq", "1.7"))

	target, err := os.Readlink(filepath.Join(cfg.Prefix, "bin", "jq"))
	require.NoError(t, err)
	assert.Contains(t, target, "1.7")
}

func TestLink_SkipsRealFile(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Prefix, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Prefix, "bin", "jq"), []byte("user file"), 0o755))

	seedVersion(t, cfg, "jq", "1.7", map[string]string{"bin/jq": "bottle binary"})
	require.NoError(t, Link(cfg, log.NewNoop(), "jq", "1.7"))

	got, err := os.ReadFile(filepath.Join(cfg.Prefix, "bin", "jq"))
	require.NoError(t, err)
	assert.Equal(t, "user file", string(got))
}

func TestLink_ReplacesBrokenSymlink(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Prefix, "bin"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join("..", "Cellar", "jq", "9.9.9", "bin", "jq"), filepath.Join(cfg.Prefix, "bin", "jq")))

	seedVersion(t, cfg, "jq", "1.7", map[string]string{"bin/jq": "bottle binary"})
	require.NoError(t, Link(cfg, log.NewNoop(), "jq", "1.7"))

	target, err := os.Readlink(filepath.Join(cfg.Prefix, "bin", "jq"))
	require.NoError(t, err)
	assert.Contains(t, target, "1.7")
}

func TestUnlink_RemovesOnlyMatchingVersion(t *testing.T) {
	cfg := testConfig(t)
	seedVersion(t, cfg, "jq", "1.7", map[string]string{"bin/jq": "v1.7"})
	require.NoError(t, Link(cfg, log.NewNoop(), "jq", "1.7"))

	require.NoError(t, Unlink(cfg, "jq", "1.7"))

	_, err := os.Lstat(filepath.Join(cfg.Prefix, "bin", "jq"))
	assert.True(t, os.IsNotExist(err))
}

func TestUnlink_LeavesOtherVersionAlone(t *testing.T) {
	cfg := testConfig(t)
	seedVersion(t, cfg, "jq", "1.6", map[string]string{"bin/jq": "v1.6"})
	require.NoError(t, Link(cfg, log.NewNoop(), "jq", "1.6"))

	require.NoError(t, Unlink(cfg, "jq", "1.7"))

	_, err := os.Lstat(filepath.Join(cfg.Prefix, "bin", "jq"))
	assert.NoError(t, err)
}

func TestOptlink_CreatesBothPointers(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, Optlink(cfg, "wget", "1.21.4"))

	target, err := os.Readlink(cfg.OptLink("wget"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "Cellar", "wget", "1.21.4"), target)

	target, err = os.Readlink(cfg.LinkedLink("wget"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "..", "..", "Cellar", "wget", "1.21.4"), target)
}

func TestOptlink_ReplacesExisting(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, Optlink(cfg, "wget", "1.21.3"))
	require.NoError(t, Optlink(cfg, "wget", "1.21.4"))

	target, err := os.Readlink(cfg.OptLink("wget"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "Cellar", "wget", "1.21.4"), target)
}

func TestUnoptlink_RemovesBothPointers(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, Optlink(cfg, "wget", "1.21.4"))
	require.NoError(t, Unoptlink(cfg, "wget"))

	_, err := os.Lstat(cfg.OptLink("wget"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Lstat(cfg.LinkedLink("wget"))
	assert.True(t, os.IsNotExist(err))
}
