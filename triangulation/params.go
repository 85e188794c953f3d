package triangulation

import "github.com/pkg/errors"

// Parameters configures TriangulateSafe. Thresholds that are zero or negative
// disable their check. Parameters are plain values, fixed at construction.
type Parameters struct {
	// RankTolerance scales the singular value cutoff used to decide whether
	// the linear system has full geometric rank.
	RankTolerance float64 `json:"rank_tolerance"`
	// EnableEPI refines the linear estimate by minimizing reprojection error.
	EnableEPI bool `json:"enable_epi"`
	// LandmarkDistanceThreshold flags the result as degenerate when the point
	// is triangulated farther than this from any camera.
	LandmarkDistanceThreshold float64 `json:"landmark_distance_threshold"`
	// DynamicOutlierRejectionThreshold flags the result as degenerate when
	// the average reprojection error across cameras exceeds it.
	DynamicOutlierRejectionThreshold float64 `json:"dynamic_outlier_rejection_threshold"`
}

// DefaultParameters returns the standard configuration: rank checking only,
// no refinement, distance and outlier gates disabled.
func DefaultParameters() Parameters {
	return Parameters{
		RankTolerance:                    1.0,
		EnableEPI:                        false,
		LandmarkDistanceThreshold:        -1,
		DynamicOutlierRejectionThreshold: -1,
	}
}

// Validate checks that the parameters are usable.
func (p Parameters) Validate() error {
	if p.RankTolerance <= 0 {
		return errors.Errorf("rank tolerance must be positive, got %f", p.RankTolerance)
	}
	return nil
}
