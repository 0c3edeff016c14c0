// Package depgraph implements the dependency resolver (C6): transitive
// closure of runtime dependencies starting from a set of root formulae,
// topologically ordered via Kahn's algorithm, with cycle detection.
package depgraph

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bru-dev/bru/internal/brerrors"
	"github.com/bru-dev/bru/internal/formula"
	"github.com/bru-dev/bru/internal/receipt"
)

// Fetcher resolves a formula by name; satisfied by *api.Client in
// production and a stub in tests.
type Fetcher interface {
	FetchFormula(ctx context.Context, name string) (*formula.Formula, error)
}

// Resolution is the output of Resolve: every formula in the transitive
// closure, in install order, plus the per-root declared-directly flags
// needed to build receipt.RuntimeDependency records.
type Resolution struct {
	// Order lists every formula name in topological order: dependencies
	// always precede their dependents.
	Order []string

	// Formulae maps every resolved name to its fetched Formula.
	Formulae map[string]*formula.Formula

	// DeclaredDirectly records, for each name, whether it was a direct
	// dependency of at least one root in the original request.
	DeclaredDirectly map[string]bool
}

// Resolve computes the transitive runtime-dependency closure of roots.
// It fetches level-by-level in parallel (each level's formulae depend only
// on names already enqueued from shallower levels), builds a dependency
// graph, and topologically sorts it with Kahn's algorithm.
func Resolve(ctx context.Context, fetcher Fetcher, roots []string) (*Resolution, error) {
	formulae := make(map[string]*formula.Formula)
	declaredDirectly := make(map[string]bool)
	var mu sync.Mutex

	frontier := append([]string(nil), roots...)
	seen := make(map[string]bool)
	for _, r := range roots {
		seen[r] = true
	}

	for len(frontier) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		results := make([]*formula.Formula, len(frontier))

		for i, name := range frontier {
			i, name := i, name
			g.Go(func() error {
				f, err := fetcher.FetchFormula(gctx, name)
				if err != nil {
					return err
				}
				results[i] = f
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var next []string
		for i, name := range frontier {
			f := results[i]
			mu.Lock()
			formulae[name] = f
			mu.Unlock()

			for _, dep := range f.Dependencies {
				if isRootDependency(roots, name) {
					declaredDirectly[dep] = true
				}
				if !seen[dep] {
					seen[dep] = true
					next = append(next, dep)
				}
			}
		}
		frontier = next
	}

	order, err := topoSort(formulae)
	if err != nil {
		return nil, err
	}

	return &Resolution{Order: order, Formulae: formulae, DeclaredDirectly: declaredDirectly}, nil
}

func isRootDependency(roots []string, name string) bool {
	for _, r := range roots {
		if r == name {
			return true
		}
	}
	return false
}

// topoSort runs Kahn's algorithm over the dependency-to-dependent edges
// implied by each formula's Dependencies list.
func topoSort(formulae map[string]*formula.Formula) ([]string, error) {
	inDegree := make(map[string]int, len(formulae))
	dependents := make(map[string][]string)

	for name := range formulae {
		if _, ok := inDegree[name]; !ok {
			inDegree[name] = 0
		}
	}
	for name, f := range formulae {
		for _, dep := range f.Dependencies {
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	var order []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		for _, dependent := range dependents[n] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) < len(formulae) {
		var cycle []string
		for name, deg := range inDegree {
			if deg > 0 {
				cycle = append(cycle, name)
			}
		}
		return nil, brerrors.CircularDependency(cycle)
	}

	return order, nil
}

// RuntimeDependencies builds receipt.RuntimeDependency records for name's
// resolved dependencies, for C11's install receipt.
func (r *Resolution) RuntimeDependencies(name string) []receipt.RuntimeDependency {
	f, ok := r.Formulae[name]
	if !ok {
		return nil
	}

	deps := make([]receipt.RuntimeDependency, 0, len(f.Dependencies))
	for _, dep := range f.Dependencies {
		depFormula, ok := r.Formulae[dep]
		version := ""
		if ok {
			version = depFormula.Versions.Stable
		}
		deps = append(deps, receipt.RuntimeDependency{
			FullName:         dep,
			Version:          version,
			PkgVersion:       version,
			DeclaredDirectly: r.DeclaredDirectly[dep],
		})
	}
	return deps
}
