package triangulation

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/multiview/camera"
	"go.viam.com/multiview/spatialmath"
)

// poseAt returns an identity-rotation pose at the given position.
func poseAt(v r3.Vector) *spatialmath.Pose {
	return spatialmath.NewPoseFromAxisAngle(r3.Vector{Z: 1}, 0, v)
}

// newTestCamera builds a camera with identity calibration.
func newTestCamera(t *testing.T, pose *spatialmath.Pose) *camera.Camera {
	t.Helper()
	cam, err := camera.NewCamera(pose, &camera.Intrinsics{Fx: 1, Fy: 1})
	test.That(t, err, test.ShouldBeNil)
	return cam
}

// projectAll measures a world point in every camera.
func projectAll(t *testing.T, cameras []*camera.Camera, pt r3.Vector) []r2.Point {
	t.Helper()
	measurements := make([]r2.Point, 0, len(cameras))
	for _, cam := range cameras {
		m, err := cam.Project(pt)
		test.That(t, err, test.ShouldBeNil)
		measurements = append(measurements, m)
	}
	return measurements
}

func TestDLTTwoViewScenario(t *testing.T) {
	// two cameras looking down +Z at (0,0,0) and (2,0,0), identity
	// calibration, observing (1,0,5); exact measurements from perspective
	// division are (0.2,0) and (-0.2,0)
	cameras := []*camera.Camera{
		newTestCamera(t, poseAt(r3.Vector{})),
		newTestCamera(t, poseAt(r3.Vector{X: 2})),
	}
	measurements := []r2.Point{{X: 0.2, Y: 0}, {X: -0.2, Y: 0}}

	pt, err := TriangulateDLT(ProjectionMatrices(cameras), measurements, 1.0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pt.X, test.ShouldAlmostEqual, 1, 1e-6)
	test.That(t, pt.Y, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, pt.Z, test.ShouldAlmostEqual, 5, 1e-6)
}

func TestDLTExactRecoveryAnySubset(t *testing.T) {
	target := r3.Vector{X: 1, Y: 0.5, Z: 5}
	rig := []*camera.Camera{
		newTestCamera(t, poseAt(r3.Vector{})),
		newTestCamera(t, poseAt(r3.Vector{X: 2})),
		newTestCamera(t, poseAt(r3.Vector{Y: 2})),
		newTestCamera(t, poseAt(r3.Vector{X: 1, Y: 1, Z: -1})),
	}
	measurements := projectAll(t, rig, target)

	subsets := [][]int{{0, 1}, {1, 2}, {0, 3}, {0, 1, 2}, {0, 1, 2, 3}}
	for _, subset := range subsets {
		var cams []*camera.Camera
		var ms []r2.Point
		for _, i := range subset {
			cams = append(cams, rig[i])
			ms = append(ms, measurements[i])
		}
		pt, err := TriangulateDLT(ProjectionMatrices(cams), ms, 1.0)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, pt.Distance(target), test.ShouldAlmostEqual, 0, 1e-6)
	}
}

func TestDLTRoundTrip(t *testing.T) {
	target := r3.Vector{X: -0.4, Y: 1.2, Z: 7}
	cameras := []*camera.Camera{
		newTestCamera(t, poseAt(r3.Vector{X: -1})),
		newTestCamera(t, poseAt(r3.Vector{X: 1, Y: 0.5})),
		newTestCamera(t, spatialmath.NewPoseFromAxisAngle(r3.Vector{Y: 1}, 0.1, r3.Vector{X: 3})),
	}
	measurements := projectAll(t, cameras, target)

	pt, err := TriangulateDLT(ProjectionMatrices(cameras), measurements, 1.0)
	test.That(t, err, test.ShouldBeNil)
	for i, cam := range cameras {
		reprojected, err := cam.Project(pt)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, reprojected.Sub(measurements[i]).Norm(), test.ShouldAlmostEqual, 0, 1e-9)
	}
}

func TestDLTRankDeficient(t *testing.T) {
	// camera centers and landmark collinear on the Z axis: both views see the
	// landmark along the identical ray, leaving its depth unconstrained
	cameras := []*camera.Camera{
		newTestCamera(t, poseAt(r3.Vector{})),
		newTestCamera(t, poseAt(r3.Vector{Z: -2})),
	}
	measurements := []r2.Point{{}, {}}

	_, err := TriangulateDLT(ProjectionMatrices(cameras), measurements, 1.0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrUnderconstrained), test.ShouldBeTrue)
}

func TestDLTNoViews(t *testing.T) {
	_, err := TriangulateDLT(nil, nil, 1.0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrUnderconstrained), test.ShouldBeTrue)
}

func TestDLTDimensionMismatch(t *testing.T) {
	cameras := []*camera.Camera{
		newTestCamera(t, poseAt(r3.Vector{})),
		newTestCamera(t, poseAt(r3.Vector{X: 2})),
	}
	_, err := TriangulateDLT(ProjectionMatrices(cameras), []r2.Point{{X: 0.2}}, 1.0)
	test.That(t, errors.Is(err, ErrDimensionMismatch), test.ShouldBeTrue)
}
