package triangulation

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/multiview/camera"
	"go.viam.com/multiview/lsq"
)

// landmarkKey names the single unknown of the refinement problem.
var landmarkKey = lsq.NewSymbol('p', 0)

// reprojectionResidual is the 2D difference between the projection of the
// candidate landmark through one camera and that camera's measurement.
type reprojectionResidual struct {
	cam      *camera.Camera
	measured r2.Point
}

func (rr *reprojectionResidual) Keys() []lsq.Symbol { return []lsq.Symbol{landmarkKey} }

func (rr *reprojectionResidual) Dim() int { return 2 }

func (rr *reprojectionResidual) Evaluate(values lsq.Values) ([]float64, error) {
	v, ok := values[landmarkKey]
	if !ok || len(v) != 3 {
		return nil, errors.Errorf("missing landmark value %s", landmarkKey)
	}
	projected, err := rr.cam.Project(r3.Vector{X: v[0], Y: v[1], Z: v[2]})
	if err != nil {
		return nil, err
	}
	return []float64{projected.X - rr.measured.X, projected.Y - rr.measured.Y}, nil
}

// TriangulateNonlinear refines an initial 3D estimate by minimizing the sum
// of squared reprojection errors over the given cameras, with unit
// measurement noise. The problem is seeded with the initial estimate, so the
// refined point never reprojects worse than it.
func TriangulateNonlinear(
	cameras []*camera.Camera,
	measurements []r2.Point,
	initial r3.Vector,
	solver lsq.Solver,
) (r3.Vector, error) {
	if len(cameras) != len(measurements) {
		return r3.Vector{}, errors.Wrapf(ErrDimensionMismatch,
			"%d cameras, %d measurements", len(cameras), len(measurements))
	}
	graph := lsq.NewGraph()
	for i, cam := range cameras {
		graph.Add(&reprojectionResidual{cam: cam, measured: measurements[i]})
	}
	values := lsq.Values{landmarkKey: {initial.X, initial.Y, initial.Z}}
	solved, err := solver.Solve(graph, values)
	if err != nil {
		return r3.Vector{}, errors.Wrap(err, "refining triangulated point")
	}
	v := solved[landmarkKey]
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}
