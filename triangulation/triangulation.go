// Package triangulation recovers 3D landmark positions from 2D measurements
// in two or more calibrated cameras with known poses. TriangulatePoint is the
// low-level entry point returning typed errors; TriangulateSafe layers policy
// checks on top and classifies the outcome as a tri-state Result.
package triangulation

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/multiview/camera"
	"go.viam.com/multiview/lsq"
	"go.viam.com/multiview/spatialmath"
)

var (
	// ErrUnderconstrained means fewer than two views were supplied, or the
	// linear system's effective rank is below three (rotation-only or
	// parallel camera configurations).
	ErrUnderconstrained = errors.New("triangulation is underconstrained")
	// ErrBehindCamera means the triangulated landmark has non-positive depth
	// in one or more of the contributing cameras.
	ErrBehindCamera = errors.New("triangulated point is behind one or more cameras")
	// ErrDimensionMismatch is a caller contract violation: the measurement
	// and camera sequences differ in length.
	ErrDimensionMismatch = errors.New("number of measurements does not match number of cameras")
)

// TriangulateOptions controls a single TriangulatePoint call.
type TriangulateOptions struct {
	// RankTolerance scales the DLT singular value cutoff.
	RankTolerance float64
	// Refine runs nonlinear reprojection-error minimization seeded with the
	// linear estimate.
	Refine bool
	// CheckCheirality verifies the point lies in front of every camera.
	CheckCheirality bool
	// Solver performs the refinement. Nil selects a Levenberg-Marquardt
	// solver with default settings.
	Solver lsq.Solver
}

// DefaultTriangulateOptions returns options matching the plain DLT pipeline:
// default rank tolerance, no refinement, no cheirality check.
func DefaultTriangulateOptions() TriangulateOptions {
	return TriangulateOptions{RankTolerance: 1.0}
}

// ProjectionMatrices builds the 3x4 projection matrix of every camera.
func ProjectionMatrices(cameras []*camera.Camera) []*mat.Dense {
	out := make([]*mat.Dense, 0, len(cameras))
	for _, cam := range cameras {
		out = append(out, cam.ProjectionMatrix())
	}
	return out
}

// PosesToCameras pairs each pose with one shared calibration, for rigs where
// every view comes from the same physical camera.
func PosesToCameras(poses []*spatialmath.Pose, shared *camera.Intrinsics) ([]*camera.Camera, error) {
	cameras := make([]*camera.Camera, 0, len(poses))
	for _, pose := range poses {
		cam, err := camera.NewCamera(pose, shared)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, cam)
	}
	return cameras, nil
}

// TriangulatePoint triangulates a landmark seen by the given cameras. It runs
// the DLT solver on the camera projection matrices, optionally refines the
// estimate, and optionally verifies the point lies in front of every camera.
// Failures are reported as wrapped ErrUnderconstrained, ErrBehindCamera or
// ErrDimensionMismatch.
func TriangulatePoint(cameras []*camera.Camera, measurements []r2.Point, opts TriangulateOptions) (r3.Vector, error) {
	if len(cameras) != len(measurements) {
		return r3.Vector{}, errors.Wrapf(ErrDimensionMismatch,
			"%d cameras, %d measurements", len(cameras), len(measurements))
	}
	if len(cameras) < 2 {
		return r3.Vector{}, errors.Wrapf(ErrUnderconstrained, "%d cameras", len(cameras))
	}

	point, err := TriangulateDLT(ProjectionMatrices(cameras), measurements, opts.RankTolerance)
	if err != nil {
		return r3.Vector{}, err
	}

	if opts.Refine {
		solver := opts.Solver
		if solver == nil {
			solver = lsq.NewLevenbergMarquardt(golog.Global(), 0)
		}
		point, err = TriangulateNonlinear(cameras, measurements, point, solver)
		if err != nil {
			return r3.Vector{}, err
		}
	}

	if opts.CheckCheirality {
		for i, cam := range cameras {
			if local := cam.Pose().TransformTo(point); local.Z <= 0 {
				return r3.Vector{}, errors.Wrapf(ErrBehindCamera, "camera %d, depth %f", i, local.Z)
			}
		}
	}
	return point, nil
}

// TriangulateSafe triangulates with extensive checking of the outcome,
// classifying geometric failures as a Result instead of an error. The
// returned error is non-nil only for caller contract violations (invalid
// parameters, ErrDimensionMismatch); every geometric condition, including a
// refinement that fails to converge, maps to a Result state.
func TriangulateSafe(cameras []*camera.Camera, measurements []r2.Point, params Parameters) (Result, error) {
	return triangulateSafe(cameras, measurements, params, nil)
}

func triangulateSafe(cameras []*camera.Camera, measurements []r2.Point, params Parameters, solver lsq.Solver) (Result, error) {
	if err := params.Validate(); err != nil {
		return Result{}, err
	}
	// a single view is uninformative
	if len(cameras) < 2 {
		return DegenerateResult(), nil
	}

	opts := TriangulateOptions{
		RankTolerance:   params.RankTolerance,
		Refine:          params.EnableEPI,
		CheckCheirality: true,
		Solver:          solver,
	}
	point, err := TriangulatePoint(cameras, measurements, opts)
	switch {
	case err == nil:
	case errors.Is(err, ErrDimensionMismatch):
		return Result{}, err
	case errors.Is(err, ErrBehindCamera), errors.Is(err, camera.ErrPointBehindCamera):
		return BehindCameraResult(), nil
	default:
		// rank deficiency, and refinement failures by policy
		return DegenerateResult(), nil
	}

	// check landmark distance and reprojection errors to avoid outliers;
	// distance violations short-circuit in camera input order
	reprojErrors := make([]float64, 0, len(cameras))
	for i, cam := range cameras {
		if params.LandmarkDistanceThreshold > 0 &&
			cam.Pose().Translation().Distance(point) > params.LandmarkDistanceThreshold {
			return DegenerateResult(), nil
		}
		if params.DynamicOutlierRejectionThreshold > 0 {
			projected, err := cam.Project(point)
			if err != nil {
				// cheirality was already enforced above; a projection failure
				// here still means the point is unusable for this camera
				return BehindCameraResult(), nil
			}
			reprojErrors = append(reprojErrors, projected.Sub(measurements[i]).Norm())
		}
	}
	if params.DynamicOutlierRejectionThreshold > 0 {
		meanErr, err := stats.Mean(reprojErrors)
		if err != nil || meanErr > params.DynamicOutlierRejectionThreshold {
			return DegenerateResult(), nil
		}
	}
	return ValidResult(point), nil
}
