package triangulation

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// rankRcond is the base relative cutoff deciding when a singular value is
// effectively zero; RankTolerance multiplies it. A well-posed two-view system
// keeps three singular values far above cutoff*largest, while collinear or
// identical viewing rays drop a second one to machine noise.
const rankRcond = 1e-12

// TriangulateDLT recovers a 3D point from two or more views by the direct
// linear transform (Hartley and Zisserman, 2nd Ed., page 312). Each
// measurement (u, v) and its 3x4 projection matrix rows (p1, p2, p3)
// contribute the rows u*p3-p1 and v*p3-p2 of a homogeneous system solved by
// SVD. Returns ErrUnderconstrained when the system's effective rank is below
// three.
func TriangulateDLT(projectionMatrices []*mat.Dense, measurements []r2.Point, rankTol float64) (r3.Vector, error) {
	if len(projectionMatrices) != len(measurements) {
		return r3.Vector{}, errors.Wrapf(ErrDimensionMismatch,
			"%d projection matrices, %d measurements", len(projectionMatrices), len(measurements))
	}
	n := len(projectionMatrices)
	if n == 0 {
		return r3.Vector{}, errors.Wrap(ErrUnderconstrained, "no views")
	}
	a := mat.NewDense(2*n, 4, nil)
	for i, p := range projectionMatrices {
		u, v := measurements[i].X, measurements[i].Y
		for j := 0; j < 4; j++ {
			a.Set(2*i, j, u*p.At(2, j)-p.At(0, j))
			a.Set(2*i+1, j, v*p.At(2, j)-p.At(1, j))
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return r3.Vector{}, errors.Wrap(ErrUnderconstrained, "failed to factorize A")
	}
	vals := svd.Values(nil)
	if vals[0] == 0 {
		return r3.Vector{}, errors.Wrap(ErrUnderconstrained, "zero rank system")
	}
	cutoff := rankTol * rankRcond * vals[0]
	rank := 0
	for _, s := range vals {
		if s > cutoff {
			rank++
		}
	}
	if rank < 3 {
		return r3.Vector{}, errors.Wrapf(ErrUnderconstrained, "effective rank %d", rank)
	}

	// the solution is the right singular vector of the smallest singular value
	var v mat.Dense
	svd.VTo(&v)
	h := v.ColView(3)
	w := h.AtVec(3)
	if w == 0 {
		return r3.Vector{}, errors.Wrap(ErrUnderconstrained, "point at infinity")
	}
	return r3.Vector{X: h.AtVec(0) / w, Y: h.AtVec(1) / w, Z: h.AtVec(2) / w}, nil
}
