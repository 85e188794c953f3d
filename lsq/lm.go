package lsq

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

var errNoSolve = errors.New("least-squares solver could not evaluate the problem")

const (
	defaultLMIterations = 100
	defaultLambda       = 1e-3
	defaultLambdaFactor = 10.0
	defaultFtol         = 1e-15
	defaultXtol         = 1e-12
	defaultJump         = 1e-8
	maxLambda           = 1e12
)

// LevenbergMarquardt solves least-squares problems by damped Gauss-Newton
// steps with numeric Jacobians. Steps are only accepted when they decrease
// the cost, so the returned values are never worse than the seed.
type LevenbergMarquardt struct {
	maxIterations int
	lambda        float64
	lambdaFactor  float64
	ftol          float64
	xtol          float64
	jump          float64
	logger        golog.Logger
}

// NewLevenbergMarquardt creates a solver with the given iteration cap. An
// iteration count less than 1 selects the default of 100.
func NewLevenbergMarquardt(logger golog.Logger, iterations int) *LevenbergMarquardt {
	if iterations < 1 {
		iterations = defaultLMIterations
	}
	return &LevenbergMarquardt{
		maxIterations: iterations,
		lambda:        defaultLambda,
		lambdaFactor:  defaultLambdaFactor,
		ftol:          defaultFtol,
		xtol:          defaultXtol,
		jump:          defaultJump,
		logger:        logger,
	}
}

// Solve runs the optimization and returns the best values found.
func (lm *LevenbergMarquardt) Solve(g *Graph, initial Values) (Values, error) {
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
	x := lm.flatten(current, keys)

	resAt := func(x []float64) ([]float64, error) {
		lm.unflatten(x, keys, offsets, current)
		return g.Evaluate(current)
	}

	r, err := resAt(x)
	if err != nil {
		return nil, multierr.Combine(errNoSolve, err)
	}
	cost := sumSquares(r)
	m := len(r)
	lambda := lm.lambda

	for iter := 0; iter < lm.maxIterations; iter++ {
		if cost <= lm.ftol {
			break
		}
		jac, err := lm.numericJacobian(resAt, x, r, m, n)
		if err != nil {
			// keep the best point found so far rather than failing the solve
			lm.logger.Debugw("stopping on jacobian evaluation failure", "iter", iter, "error", err)
			break
		}
		rVec := mat.NewVecDense(m, append([]float64(nil), r...))
		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var jtr mat.VecDense
		jtr.MulVec(jac.T(), rVec)

		accepted := false
		for ; lambda <= maxLambda; lambda *= lm.lambdaFactor {
			damped := mat.DenseCopyOf(&jtj)
			for i := 0; i < n; i++ {
				damped.Set(i, i, damped.At(i, i)+lambda)
			}
			var delta mat.VecDense
			if err := delta.SolveVec(damped, &jtr); err != nil {
				continue
			}
			xNew := make([]float64, n)
			for i := range xNew {
				xNew[i] = x[i] - delta.AtVec(i)
			}
			rNew, err := resAt(xNew)
			if err != nil {
				continue
			}
			costNew := sumSquares(rNew)
			if costNew < cost {
				stepNorm := mat.Norm(&delta, 2)
				improvement := cost - costNew
				x, r, cost = xNew, rNew, costNew
				lambda = math.Max(lambda/lm.lambdaFactor, 1e-12)
				accepted = true
				lm.logger.Debugw("step accepted", "iter", iter, "cost", cost, "lambda", lambda)
				if improvement <= lm.ftol*(1+cost) || stepNorm <= lm.xtol {
					iter = lm.maxIterations
				}
				break
			}
		}
		if !accepted {
			break
		}
	}

	lm.unflatten(x, keys, offsets, current)
	return current, nil
}

// numericJacobian computes the m x n Jacobian by forward differences,
// falling back to a backward step when the forward evaluation fails.
func (lm *LevenbergMarquardt) numericJacobian(
	resAt func([]float64) ([]float64, error),
	x, r []float64,
	m, n int,
) (*mat.Dense, error) {
	jac := mat.NewDense(m, n, nil)
	xp := make([]float64, n)
	for j := 0; j < n; j++ {
		copy(xp, x)
		step := lm.jump
		xp[j] = x[j] + step
		rp, err := resAt(xp)
		if err != nil {
			step = -lm.jump
			xp[j] = x[j] + step
			if rp, err = resAt(xp); err != nil {
				return nil, errors.Wrapf(err, "perturbing variable %d", j)
			}
		}
		for i := 0; i < m; i++ {
			jac.Set(i, j, (rp[i]-r[i])/step)
		}
	}
	return jac, nil
}

func (lm *LevenbergMarquardt) flatten(values Values, keys []Symbol) []float64 {
	var x []float64
	for _, k := range keys {
		x = append(x, values[k]...)
	}
	return x
}

func (lm *LevenbergMarquardt) unflatten(x []float64, keys []Symbol, offsets map[Symbol]int, into Values) {
	for _, k := range keys {
		off := offsets[k]
		copy(into[k], x[off:off+len(into[k])])
	}
}

func sumSquares(r []float64) float64 {
	total := 0.0
	for _, v := range r {
		total += v * v
	}
	return total
}
