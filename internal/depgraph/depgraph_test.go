package depgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bru-dev/bru/internal/brerrors"
	"github.com/bru-dev/bru/internal/formula"
)

type stubFetcher struct {
	formulae map[string]*formula.Formula
}

func (s stubFetcher) FetchFormula(ctx context.Context, name string) (*formula.Formula, error) {
	f, ok := s.formulae[name]
	if !ok {
		return nil, brerrors.FormulaNotFound(name)
	}
	return f, nil
}

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestResolve_LinearChain(t *testing.T) {
	fetcher := stubFetcher{formulae: map[string]*formula.Formula{
		"wget":    {Name: "wget", Dependencies: []string{"openssl"}},
		"openssl": {Name: "openssl", Dependencies: []string{"ca-certificates"}},
		"ca-certificates": {Name: "ca-certificates"},
	}}

	res, err := Resolve(context.Background(), fetcher, []string{"wget"})
	require.NoError(t, err)
	require.Len(t, res.Order, 3)

	assert.Less(t, indexOf(res.Order, "ca-certificates"), indexOf(res.Order, "openssl"))
	assert.Less(t, indexOf(res.Order, "openssl"), indexOf(res.Order, "wget"))
}

func TestResolve_DeclaredDirectlyFlag(t *testing.T) {
	fetcher := stubFetcher{formulae: map[string]*formula.Formula{
		"a": {Name: "a", Dependencies: []string{"b"}},
		"b": {Name: "b", Dependencies: []string{"c"}},
		"c": {Name: "c"},
	}}

	res, err := Resolve(context.Background(), fetcher, []string{"a"})
	require.NoError(t, err)

	deps := res.RuntimeDependencies("a")
	require.Len(t, deps, 1)
	assert.True(t, deps[0].DeclaredDirectly)
	assert.Equal(t, "b", deps[0].FullName)
}

func TestResolve_DiamondDependency(t *testing.T) {
	fetcher := stubFetcher{formulae: map[string]*formula.Formula{
		"app":  {Name: "app", Dependencies: []string{"libx", "liby"}},
		"libx": {Name: "libx", Dependencies: []string{"libz"}},
		"liby": {Name: "liby", Dependencies: []string{"libz"}},
		"libz": {Name: "libz"},
	}}

	res, err := Resolve(context.Background(), fetcher, []string{"app"})
	require.NoError(t, err)
	require.Len(t, res.Order, 4)
	assert.Less(t, indexOf(res.Order, "libz"), indexOf(res.Order, "libx"))
	assert.Less(t, indexOf(res.Order, "libz"), indexOf(res.Order, "liby"))
	assert.Less(t, indexOf(res.Order, "libx"), indexOf(res.Order, "app"))
}

func TestResolve_CircularDependency(t *testing.T) {
	fetcher := stubFetcher{formulae: map[string]*formula.Formula{
		"a": {Name: "a", Dependencies: []string{"b"}},
		"b": {Name: "b", Dependencies: []string{"a"}},
	}}

	_, err := Resolve(context.Background(), fetcher, []string{"a"})
	require.Error(t, err)

	var bruErr *brerrors.Error
	require.ErrorAs(t, err, &bruErr)
	assert.Equal(t, brerrors.KindCircularDependency, bruErr.Kind)
}

func TestResolve_MissingFormula(t *testing.T) {
	fetcher := stubFetcher{formulae: map[string]*formula.Formula{}}
	_, err := Resolve(context.Background(), fetcher, []string{"missing"})
	require.Error(t, err)
}
