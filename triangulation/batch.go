package triangulation

import (
	"sync"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/multiview/camera"
)

// TriangulateLandmarks classifies many landmarks seen by the same camera rig,
// one measurement set per landmark. Landmarks are independent, so they are
// triangulated concurrently. The returned slice has one Result per
// measurement set, in order; the error combines any contract violations.
func TriangulateLandmarks(
	cameras []*camera.Camera,
	measurementSets [][]r2.Point,
	params Parameters,
	logger golog.Logger,
) ([]Result, error) {
	results := make([]Result, len(measurementSets))
	errs := make([]error, len(measurementSets))
	var wg sync.WaitGroup
	for i, measurements := range measurementSets {
		i, measurements := i, measurements
		wg.Add(1)
		utils.PanicCapturingGo(func() {
			defer wg.Done()
			results[i], errs[i] = TriangulateSafe(cameras, measurements, params)
			if !results[i].Valid() {
				logger.Debugw("landmark rejected", "index", i, "status", results[i].Status().String())
			}
		})
	}
	wg.Wait()
	return results, multierr.Combine(errs...)
}
