package camera

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/multiview/spatialmath"
)

// ErrPointBehindCamera is when a point to be projected has non-positive depth
// in the camera frame, so it has no image on the sensor.
var ErrPointBehindCamera = errors.New("point is behind the camera image plane")

// Camera is a calibrated pinhole camera with a known pose. The pose maps the
// camera frame (Z forward) into the world frame. Cameras are read-only once
// constructed.
type Camera struct {
	pose       *spatialmath.Pose
	intrinsics *Intrinsics
}

// NewCamera creates a camera from a pose and intrinsics. A nil pose means the
// camera sits at the world origin looking down +Z.
func NewCamera(pose *spatialmath.Pose, intrinsics *Intrinsics) (*Camera, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if pose == nil {
		pose = spatialmath.NewZeroPose()
	}
	return &Camera{pose: pose, intrinsics: intrinsics}, nil
}

// Pose returns the camera-to-world pose.
func (c *Camera) Pose() *spatialmath.Pose {
	return c.pose
}

// Intrinsics returns the camera's intrinsic parameters.
func (c *Camera) Intrinsics() *Intrinsics {
	return c.intrinsics
}

// Project maps a world-frame 3D point to a 2D measurement on the image plane.
// Returns ErrPointBehindCamera if the point has non-positive depth.
func (c *Camera) Project(pt r3.Vector) (r2.Point, error) {
	local := c.pose.TransformTo(pt)
	if local.Z <= 0 {
		return r2.Point{}, errors.Wrapf(ErrPointBehindCamera, "depth %f", local.Z)
	}
	u, v := c.intrinsics.PointToPixel(local.X, local.Y, local.Z)
	return r2.Point{X: u, Y: v}, nil
}

// ProjectionMatrix returns the 3x4 matrix K * inverse(pose) mapping
// homogeneous world points to homogeneous image coordinates.
func (c *Camera) ProjectionMatrix() *mat.Dense {
	inv := c.pose.Inverse().Matrix().Slice(0, 3, 0, 4)
	p := mat.NewDense(3, 4, nil)
	p.Mul(c.intrinsics.K(), inv)
	return p
}
