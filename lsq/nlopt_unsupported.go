//go:build windows || no_cgo

package lsq

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// NewNloptSolver is not supported on this platform; use the
// LevenbergMarquardt solver instead.
func NewNloptSolver(logger golog.Logger) (Solver, error) {
	return nil, errors.New("nlopt is not supported on this platform")
}
