// Package lsq is a small nonlinear least-squares toolkit. Callers describe a
// problem as residual factors over variables keyed by symbols, provide an
// initial value map, and get back the value map that locally minimizes the
// sum of squared residuals.
package lsq

import (
	"fmt"

	"github.com/pkg/errors"
)

// Symbol identifies a variable in a problem, a single-character tag plus an
// index, e.g. p0 for the first point.
type Symbol struct {
	tag   byte
	index uint64
}

// NewSymbol creates a symbol from a tag character and an index.
func NewSymbol(tag byte, index uint64) Symbol {
	return Symbol{tag: tag, index: index}
}

func (s Symbol) String() string {
	return fmt.Sprintf("%c%d", s.tag, s.index)
}

// Values maps symbols to the current estimate of each variable.
type Values map[Symbol][]float64

// Copy returns a deep copy of the value map.
func (v Values) Copy() Values {
	out := make(Values, len(v))
	for k, val := range v {
		c := make([]float64, len(val))
		copy(c, val)
		out[k] = c
	}
	return out
}

// Residual is one error term of a least-squares problem. Evaluate returns the
// residual vector at the given values; its length must equal Dim.
type Residual interface {
	Evaluate(values Values) ([]float64, error)
	Dim() int
	Keys() []Symbol
}

// Graph is an ordered collection of residuals making up one problem.
type Graph struct {
	residuals []Residual
}

// NewGraph returns an empty problem.
func NewGraph() *Graph {
	return &Graph{}
}

// Add appends a residual to the problem.
func (g *Graph) Add(r Residual) {
	g.residuals = append(g.residuals, r)
}

// Residuals returns the residuals in insertion order.
func (g *Graph) Residuals() []Residual {
	return g.residuals
}

// Dim returns the total dimension of the stacked residual vector.
func (g *Graph) Dim() int {
	dim := 0
	for _, r := range g.residuals {
		dim += r.Dim()
	}
	return dim
}

// Keys returns the unique symbols referenced by the problem, in first-seen
// order.
func (g *Graph) Keys() []Symbol {
	seen := map[Symbol]bool{}
	var keys []Symbol
	for _, r := range g.residuals {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Evaluate stacks all residual vectors at the given values.
func (g *Graph) Evaluate(values Values) ([]float64, error) {
	out := make([]float64, 0, g.Dim())
	for i, r := range g.residuals {
		v, err := r.Evaluate(values)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating residual %d", i)
		}
		if len(v) != r.Dim() {
			return nil, errors.Errorf("residual %d returned %d values, want %d", i, len(v), r.Dim())
		}
		out = append(out, v...)
	}
	return out, nil
}

// Solver finds values minimizing the sum of squared residuals of a graph,
// starting from the initial estimate. Implementations must never return
// values with a larger cost than the initial ones.
type Solver interface {
	Solve(g *Graph, initial Values) (Values, error)
}
