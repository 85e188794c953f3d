package camera

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/multiview/spatialmath"
)

var testIntrinsics = &Intrinsics{
	Width:  1024,
	Height: 768,
	Fx:     821.32642889,
	Fy:     821.68607359,
	Ppx:    494.95941428,
	Ppy:    370.70529534,
}

func TestIntrinsicsCheckValid(t *testing.T) {
	test.That(t, testIntrinsics.CheckValid(), test.ShouldBeNil)

	bad := &Intrinsics{Fx: -1, Fy: 1}
	err := bad.CheckValid()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	var nilParams *Intrinsics
	test.That(t, nilParams.CheckValid(), test.ShouldNotBeNil)
}

func TestIntrinsicsJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(testIntrinsics)
	test.That(t, err, test.ShouldBeNil)

	jsonPath := filepath.Join(t.TempDir(), "intrinsics.json")
	test.That(t, os.WriteFile(jsonPath, b, 0o600), test.ShouldBeNil)

	loaded, err := NewIntrinsicsFromJSONFile(jsonPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded, test.ShouldResemble, testIntrinsics)

	_, err = NewIntrinsicsFromJSONFile(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestKMatrix(t *testing.T) {
	k := testIntrinsics.K()
	test.That(t, k.At(0, 0), test.ShouldEqual, testIntrinsics.Fx)
	test.That(t, k.At(1, 1), test.ShouldEqual, testIntrinsics.Fy)
	test.That(t, k.At(0, 2), test.ShouldEqual, testIntrinsics.Ppx)
	test.That(t, k.At(1, 2), test.ShouldEqual, testIntrinsics.Ppy)
	test.That(t, k.At(2, 2), test.ShouldEqual, 1.0)
	test.That(t, k.At(1, 0), test.ShouldEqual, 0.0)
}

func TestProject(t *testing.T) {
	cam, err := NewCamera(nil, testIntrinsics)
	test.That(t, err, test.ShouldBeNil)

	// point on the optical axis lands on the principal point
	m, err := cam.Project(r3.Vector{Z: 10})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.X, test.ShouldAlmostEqual, testIntrinsics.Ppx, 1e-12)
	test.That(t, m.Y, test.ShouldAlmostEqual, testIntrinsics.Ppy, 1e-12)

	_, err = cam.Project(r3.Vector{Z: -1})
	test.That(t, errors.Is(err, ErrPointBehindCamera), test.ShouldBeTrue)
	_, err = cam.Project(r3.Vector{})
	test.That(t, errors.Is(err, ErrPointBehindCamera), test.ShouldBeTrue)
}

func TestProjectionMatrixAgreesWithProject(t *testing.T) {
	pose := spatialmath.NewPoseFromAxisAngle(r3.Vector{Y: 1}, 0.2, r3.Vector{X: 1, Y: -1, Z: 0})
	cam, err := NewCamera(pose, testIntrinsics)
	test.That(t, err, test.ShouldBeNil)

	pt := r3.Vector{X: 0.5, Y: 0.2, Z: 8}
	m, err := cam.Project(pt)
	test.That(t, err, test.ShouldBeNil)

	p := cam.ProjectionMatrix()
	h := []float64{0, 0, 0}
	for i := 0; i < 3; i++ {
		h[i] = p.At(i, 0)*pt.X + p.At(i, 1)*pt.Y + p.At(i, 2)*pt.Z + p.At(i, 3)
	}
	test.That(t, h[0]/h[2], test.ShouldAlmostEqual, m.X, 1e-9)
	test.That(t, h[1]/h[2], test.ShouldAlmostEqual, m.Y, 1e-9)
}

func TestNewCameraRejectsBadIntrinsics(t *testing.T) {
	_, err := NewCamera(nil, &Intrinsics{})
	test.That(t, err, test.ShouldNotBeNil)
}
