// Package spatialmath defines rigid transforms in 3D space and the operations
// on them needed to move points between world and camera frames.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Pose is a rigid transform, a rotation followed by a translation. A camera
// pose maps the camera's local frame into the world frame. Poses are never
// mutated after construction.
type Pose struct {
	rotation    *mat.Dense // 3x3 orthonormal
	translation r3.Vector
}

// NewZeroPose returns the identity transform.
func NewZeroPose() *Pose {
	return &Pose{rotation: identity3(), translation: r3.Vector{}}
}

// NewPose creates a pose from a 3x3 rotation matrix and a translation. The
// rotation matrix is copied.
func NewPose(rotation *mat.Dense, translation r3.Vector) (*Pose, error) {
	r, c := rotation.Dims()
	if r != 3 || c != 3 {
		return nil, errors.Errorf("rotation matrix must be 3x3, got %dx%d", r, c)
	}
	return &Pose{rotation: mat.DenseCopyOf(rotation), translation: translation}, nil
}

// NewPoseFromAxisAngle creates a pose whose rotation is theta radians about
// the given axis, via the Rodrigues formula.
func NewPoseFromAxisAngle(axis r3.Vector, theta float64, translation r3.Vector) *Pose {
	u := axis.Normalize()
	k := crossProductMatrix(u)
	var k2 mat.Dense
	k2.Mul(k, k)
	rot := identity3()
	var sk, ck mat.Dense
	sk.Scale(math.Sin(theta), k)
	ck.Scale(1-math.Cos(theta), &k2)
	rot.Add(rot, &sk)
	rot.Add(rot, &ck)
	return &Pose{rotation: rot, translation: translation}
}

// NewPoseFromEulerAngles creates a pose from roll, pitch and yaw (radians,
// x-y-z convention) and a translation.
func NewPoseFromEulerAngles(roll, pitch, yaw float64, translation r3.Vector) *Pose {
	sr, cr := math.Sincos(roll)
	sp, cp := math.Sincos(pitch)
	sy, cy := math.Sincos(yaw)
	rot := mat.NewDense(3, 3, []float64{
		cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr,
		sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr,
		-sp, cp * sr, cp * cr,
	})
	return &Pose{rotation: rot, translation: translation}
}

// NewPoseFromMatrix creates a pose from a 4x4 homogeneous transform matrix.
func NewPoseFromMatrix(m *mat.Dense) (*Pose, error) {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return nil, errors.Errorf("homogeneous transform must be 4x4, got %dx%d", r, c)
	}
	rot := mat.DenseCopyOf(m.Slice(0, 3, 0, 3))
	t := r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}
	return &Pose{rotation: rot, translation: t}, nil
}

// Rotation returns a copy of the 3x3 rotation matrix.
func (p *Pose) Rotation() *mat.Dense {
	return mat.DenseCopyOf(p.rotation)
}

// Translation returns the translation component.
func (p *Pose) Translation() r3.Vector {
	return p.translation
}

// Matrix returns the pose as a 4x4 homogeneous transform matrix.
func (p *Pose) Matrix() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, p.rotation.At(i, j))
		}
	}
	m.Set(0, 3, p.translation.X)
	m.Set(1, 3, p.translation.Y)
	m.Set(2, 3, p.translation.Z)
	m.Set(3, 3, 1)
	return m
}

// Inverse returns the pose mapping in the opposite direction, R^T and -R^T*t.
func (p *Pose) Inverse() *Pose {
	var rt mat.Dense
	rt.CloneFrom(p.rotation.T())
	t := applyRotation(&rt, p.translation).Mul(-1)
	return &Pose{rotation: &rt, translation: t}
}

// Compose returns the pose equivalent to applying q first, then p.
func (p *Pose) Compose(q *Pose) *Pose {
	var rot mat.Dense
	rot.Mul(p.rotation, q.rotation)
	t := applyRotation(p.rotation, q.translation).Add(p.translation)
	return &Pose{rotation: &rot, translation: t}
}

// Transform maps a point in the pose's local frame into the world frame.
func (p *Pose) Transform(pt r3.Vector) r3.Vector {
	return applyRotation(p.rotation, pt).Add(p.translation)
}

// TransformTo maps a world-frame point into the pose's local frame. For a
// camera pose the Z coordinate of the result is the point's depth.
func (p *Pose) TransformTo(pt r3.Vector) r3.Vector {
	var rt mat.Dense
	rt.CloneFrom(p.rotation.T())
	return applyRotation(&rt, pt.Sub(p.translation))
}

// AlmostEqual reports whether two poses agree entrywise within tol.
func (p *Pose) AlmostEqual(q *Pose, tol float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(p.rotation.At(i, j)-q.rotation.At(i, j)) > tol {
				return false
			}
		}
	}
	return p.translation.Sub(q.translation).Norm() <= tol
}

func applyRotation(rot *mat.Dense, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rot.At(0, 0)*v.X + rot.At(0, 1)*v.Y + rot.At(0, 2)*v.Z,
		Y: rot.At(1, 0)*v.X + rot.At(1, 1)*v.Y + rot.At(1, 2)*v.Z,
		Z: rot.At(2, 0)*v.X + rot.At(2, 1)*v.Y + rot.At(2, 2)*v.Z,
	}
}

// crossProductMatrix returns the skew-symmetric matrix k such that k*w = v x w.
func crossProductMatrix(v r3.Vector) *mat.Dense {
	k := mat.NewDense(3, 3, nil)
	k.Set(0, 1, -v.Z)
	k.Set(0, 2, v.Y)
	k.Set(1, 0, v.Z)
	k.Set(1, 2, -v.X)
	k.Set(2, 0, -v.Y)
	k.Set(2, 1, v.X)
	return k
}

func identity3() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	m.Set(0, 0, 1)
	m.Set(1, 1, 1)
	m.Set(2, 2, 1)
	return m
}
