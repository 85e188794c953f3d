//go:build !windows && !no_cgo

package lsq

import (
	"github.com/edaniels/golog"
	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const (
	nloptMaxEval = 4001
	nloptEpsilon = 1e-14
)

// nloptSolver minimizes the sum of squared residuals with SLSQP and numeric
// gradients.
type nloptSolver struct {
	logger golog.Logger
	jump   float64
}

// NewNloptSolver creates an nlopt-backed Solver. Only available on platforms
// where cgo and the nlopt library are supported.
func NewNloptSolver(logger golog.Logger) (Solver, error) {
	return &nloptSolver{logger: logger, jump: defaultJump}, nil
}

// Solve runs the optimization and returns the best values found.
func (s *nloptSolver) Solve(g *Graph, initial Values) (Values, error) {
	keys := g.Keys()
	offsets := make(map[Symbol]int, len(keys))
	n := 0
	for _, k := range keys {
		v, ok := initial[k]
		if !ok {
			return nil, errors.Errorf("no initial value for %s", k)
		}
		offsets[k] = n
		n += len(v)
	}
	if n == 0 {
		return initial.Copy(), nil
	}

	current := initial.Copy()
	costAt := func(x []float64) (float64, error) {
		for _, k := range keys {
			off := offsets[k]
			copy(current[k], x[off:off+len(current[k])])
		}
		r, err := g.Evaluate(current)
		if err != nil {
			return 0, err
		}
		return sumSquares(r), nil
	}

	x0 := make([]float64, 0, n)
	for _, k := range keys {
		x0 = append(x0, initial[k]...)
	}
	seedCost, err := costAt(x0)
	if err != nil {
		return nil, multierr.Combine(errNoSolve, err)
	}

	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(n))
	if err != nil {
		return nil, errors.Wrap(err, "nlopt creation error")
	}
	defer opt.Destroy()

	var evalErr error
	objective := func(x, gradient []float64) float64 {
		cost, err := costAt(x)
		if err != nil {
			evalErr = err
			if stopErr := opt.ForceStop(); stopErr != nil {
				s.logger.Debugw("forcestop error", "error", stopErr)
			}
			return 0
		}
		if len(gradient) > 0 {
			xp := make([]float64, len(x))
			for j := range x {
				copy(xp, x)
				xp[j] = x[j] + s.jump
				costP, err := costAt(xp)
				if err != nil {
					xp[j] = x[j] - s.jump
					if costP, err = costAt(xp); err != nil {
						evalErr = err
						if stopErr := opt.ForceStop(); stopErr != nil {
							s.logger.Debugw("forcestop error", "error", stopErr)
						}
						return 0
					}
					gradient[j] = (cost - costP) / s.jump
					continue
				}
				gradient[j] = (costP - cost) / s.jump
			}
		}
		return cost
	}

	err = multierr.Combine(
		opt.SetFtolRel(nloptEpsilon),
		opt.SetFtolAbs(nloptEpsilon),
		opt.SetXtolRel(nloptEpsilon),
		opt.SetMinObjective(objective),
		opt.SetMaxEval(nloptMaxEval),
	)
	if err != nil {
		return nil, err
	}

	solution, score, optErr := opt.Optimize(x0)
	if evalErr != nil {
		// an evaluation failure away from the seed is not fatal, keep the seed
		s.logger.Debugw("optimization stopped on evaluation failure", "error", evalErr)
		return initial.Copy(), nil
	}
	if optErr != nil && solution == nil {
		return nil, errors.Wrap(optErr, "nlopt optimize error")
	}
	if solution == nil || score >= seedCost {
		return initial.Copy(), nil
	}
	for _, k := range keys {
		off := offsets[k]
		copy(current[k], solution[off:off+len(current[k])])
	}
	return current, nil
}
