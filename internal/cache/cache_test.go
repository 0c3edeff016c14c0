package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bru-dev/bru/internal/config"
	"github.com/bru-dev/bru/internal/formula"
	"github.com/bru-dev/bru/internal/log"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	cfg, err := config.FromPrefix(t.TempDir())
	require.NoError(t, err)
	c, err := New(cfg, log.NewNoop())
	require.NoError(t, err)
	return c
}

func TestWriteReadFormulaeIndex_RoundTrip(t *testing.T) {
	c := testCache(t)
	body := []byte(`[{"name":"wget","desc":"file retriever"}]`)
	c.WriteFormulaeIndex(body)

	items, ok := c.ReadFormulaeIndex()
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "wget", items[0].Name)
}

func TestReadFormulaeIndex_Missing(t *testing.T) {
	c := testCache(t)
	_, ok := c.ReadFormulaeIndex()
	assert.False(t, ok)
}

func TestReadFormulaeIndex_Corrupt(t *testing.T) {
	c := testCache(t)
	require.NoError(t, os.MkdirAll(c.dir, 0o755))
	require.NoError(t, os.WriteFile(c.formulaeIndexPath(), []byte("not json"), 0o644))

	_, ok := c.ReadFormulaeIndex()
	assert.False(t, ok)
}

func TestFreshIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "formulae.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	assert.True(t, FreshIndex(path, 24*time.Hour))
	assert.False(t, FreshIndex(path, 0))
	assert.False(t, FreshIndex(filepath.Join(dir, "missing.json"), 24*time.Hour))
}

func TestFormulaLRU_RoundTrip(t *testing.T) {
	c := testCache(t)
	_, ok := c.GetFormula("jq")
	assert.False(t, ok)

	c.PutFormula(&formula.Formula{Name: "jq", Desc: "json processor"})
	got, ok := c.GetFormula("jq")
	require.True(t, ok)
	assert.Equal(t, "json processor", got.Desc)
}

func TestCaskLRU_RoundTrip(t *testing.T) {
	c := testCache(t)
	c.PutCask(&formula.Cask{Token: "firefox", Name: []string{"Firefox"}})

	got, ok := c.GetCask("firefox")
	require.True(t, ok)
	assert.Equal(t, []string{"Firefox"}, got.Name)
}

func TestClear_RemovesJSONOnly(t *testing.T) {
	c := testCache(t)
	require.NoError(t, os.MkdirAll(c.dir, 0o755))
	c.WriteFormulaeIndex([]byte("[]"))
	c.WriteCasksIndex([]byte("[]"))
	other := filepath.Join(c.dir, "downloads")
	require.NoError(t, os.MkdirAll(other, 0o755))

	require.NoError(t, c.Clear())

	_, err := os.Stat(c.formulaeIndexPath())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(c.casksIndexPath())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(other)
	assert.NoError(t, err)
}

func TestClear_MissingDir(t *testing.T) {
	c := testCache(t)
	assert.NoError(t, c.Clear())
}
