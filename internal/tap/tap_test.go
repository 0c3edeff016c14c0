package tap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bru-dev/bru/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.FromPrefix(t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestParse(t *testing.T) {
	n, err := Parse("hashicorp/tap")
	require.NoError(t, err)
	assert.Equal(t, "hashicorp", n.Owner)
	assert.Equal(t, "tap", n.Repo)
	assert.Equal(t, "hashicorp/tap", n.String())
}

func TestParse_StripsHomebrewPrefix(t *testing.T) {
	n, err := Parse("user/homebrew-stuff")
	require.NoError(t, err)
	assert.Equal(t, "stuff", n.Repo)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("not-a-tap")
	assert.Error(t, err)
}

func TestCloneURL(t *testing.T) {
	n := Name{Owner: "hashicorp", Repo: "tap"}
	assert.Equal(t, "https://github.com/hashicorp/homebrew-tap.git", n.CloneURL())
}

func TestUntap_RemovesEmptyOwnerDir(t *testing.T) {
	cfg := testConfig(t)
	n := Name{Owner: "hashicorp", Repo: "tap"}
	require.NoError(t, os.MkdirAll(cfg.TapDir(n.Owner, n.Repo), 0o755))

	require.NoError(t, Untap(cfg, n))

	_, err := os.Stat(filepath.Join(cfg.TapsDir, "hashicorp"))
	assert.True(t, os.IsNotExist(err))
}

func TestUntap_KeepsOwnerDirWithSiblings(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.TapDir("hashicorp", "tap"), 0o755))
	require.NoError(t, os.MkdirAll(cfg.TapDir("hashicorp", "other"), 0o755))

	require.NoError(t, Untap(cfg, Name{Owner: "hashicorp", Repo: "tap"}))

	_, err := os.Stat(filepath.Join(cfg.TapsDir, "hashicorp"))
	assert.NoError(t, err)
}

func TestListTaps(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.TapDir("hashicorp", "tap"), 0o755))
	require.NoError(t, os.MkdirAll(cfg.TapDir("user", "stuff"), 0o755))

	taps, err := ListTaps(cfg)
	require.NoError(t, err)
	assert.Len(t, taps, 2)
}

func TestListTaps_MissingDir(t *testing.T) {
	cfg := testConfig(t)
	taps, err := ListTaps(cfg)
	require.NoError(t, err)
	assert.Nil(t, taps)
}

func TestParseFormula(t *testing.T) {
	content := `class Terraform < Formula
  desc "Tool to build infrastructure safely and predictably"
  homepage "https://www.terraform.io"
  version "1.7.0"
end
`
	info := ParseFormula(content)
	assert.Equal(t, "1.7.0", info.Version)
	assert.Equal(t, "Tool to build infrastructure safely and predictably", info.Desc)
	assert.Equal(t, "https://www.terraform.io", info.Homepage)
}

func TestParseFormula_MissingFields(t *testing.T) {
	info := ParseFormula("class Foo < Formula\nend\n")
	assert.Empty(t, info.Version)
	assert.Empty(t, info.Desc)
	assert.Empty(t, info.Homepage)
}

func TestFetchFormula_ReadsFromTapCheckout(t *testing.T) {
	cfg := testConfig(t)
	n := Name{Owner: "hashicorp", Repo: "tap"}
	formulaDir := filepath.Join(cfg.TapDir(n.Owner, n.Repo), "Formula")
	require.NoError(t, os.MkdirAll(formulaDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(formulaDir, "terraform.rb"), []byte(`
  desc "Tool"
  homepage "https://example.com"
  version "1.0.0"
`), 0o644))

	info, err := FetchFormula(cfg, n, "terraform")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", info.Version)
}

func TestFetchFormula_UsesFreshCacheOverMissingSource(t *testing.T) {
	cfg := testConfig(t)
	n := Name{Owner: "hashicorp", Repo: "tap"}
	cache := cachePath(cfg, n, "terraform")
	require.NoError(t, os.MkdirAll(filepath.Dir(cache), 0o755))
	require.NoError(t, os.WriteFile(cache, []byte(`version "2.0.0"`), 0o644))

	info, err := FetchFormula(cfg, n, "terraform")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", info.Version)
}

func TestReadFresh_ExpiredCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stale.rb")
	require.NoError(t, os.WriteFile(path, []byte("version \"1.0.0\""), 0o644))
	oldTime := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, oldTime, oldTime))

	_, ok := readFresh(path)
	assert.False(t, ok)
}
