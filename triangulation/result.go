package triangulation

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Status classifies the outcome of a safe triangulation attempt.
type Status int

const (
	// StatusDegenerate means the views did not constrain the point: too few
	// cameras, insufficient rank, too-distant landmark, or outlier
	// measurements.
	StatusDegenerate Status = iota
	// StatusBehindCamera means the triangulated point has non-positive depth
	// in at least one camera.
	StatusBehindCamera
	// StatusValid means the point passed every configured check.
	StatusValid
)

func (s Status) String() string {
	switch s {
	case StatusDegenerate:
		return "degenerate"
	case StatusBehindCamera:
		return "behind camera"
	case StatusValid:
		return "valid"
	default:
		return fmt.Sprintf("unknown status %d", int(s))
	}
}

// Result is the outcome of TriangulateSafe: either a valid point, or one of
// the two failure classifications. A point payload exists exactly when the
// status is valid.
type Result struct {
	status Status
	point  r3.Vector
}

// ValidResult wraps a successfully triangulated point.
func ValidResult(pt r3.Vector) Result {
	return Result{status: StatusValid, point: pt}
}

// DegenerateResult classifies an attempt whose views did not constrain the
// point.
func DegenerateResult() Result {
	return Result{status: StatusDegenerate}
}

// BehindCameraResult classifies an attempt whose point fell behind a camera.
func BehindCameraResult() Result {
	return Result{status: StatusBehindCamera}
}

// Status returns the classification.
func (r Result) Status() Status {
	return r.status
}

// Point returns the triangulated point and whether one exists.
func (r Result) Point() (r3.Vector, bool) {
	if r.status != StatusValid {
		return r3.Vector{}, false
	}
	return r.point, true
}

// Valid reports whether the result carries a usable point.
func (r Result) Valid() bool {
	return r.status == StatusValid
}

// Degenerate reports whether the views failed to constrain the point.
func (r Result) Degenerate() bool {
	return r.status == StatusDegenerate
}

// BehindCamera reports whether the point fell behind a camera.
func (r Result) BehindCamera() bool {
	return r.status == StatusBehindCamera
}

func (r Result) String() string {
	if r.status == StatusValid {
		return fmt.Sprintf("point = %v", r.point)
	}
	return fmt.Sprintf("no point, status = %v", r.status)
}
