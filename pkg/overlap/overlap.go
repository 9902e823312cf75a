// Package overlap measures how much two distance distributions share, using kernel
// density estimates over the unit interval.
package overlap

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
)

const (
	DefaultBandwidth  = 0.02
	DefaultGridPoints = 512

	// rounding slack accepted before a value counts as out of range
	tolerance = 1e-9
)

var (
	// ErrEmptyDistribution is returned when either side has no observations
	ErrEmptyDistribution = errors.New("empty distribution")
	// ErrDegenerate is returned when a side has a single observation; its density is not
	// computable
	ErrDegenerate = errors.New("distribution too small for a density estimate")
	// ErrEstimator is returned for an unusable bandwidth/grid combination
	ErrEstimator = errors.New("invalid density estimator")
)

// Estimator computes overlap coefficients with a fixed-bandwidth Epanechnikov kernel
// evaluated on a uniform grid over [0,1]. The compact kernel makes distributions further
// than two bandwidths apart overlap by exactly zero.
type Estimator struct {
	Bandwidth  float64
	GridPoints int

	grid []float64
}

// NewEstimator validates the parameters and precomputes the evaluation grid
func NewEstimator(bandwidth float64, gridPoints int) (*Estimator, error) {
	if gridPoints < 2 {
		return nil, fmt.Errorf("%d grid points: %w", gridPoints, ErrEstimator)
	}
	step := 1 / float64(gridPoints-1)
	// every sample must reach at least one grid point
	if !(bandwidth > step) || bandwidth > 1 {
		return nil, fmt.Errorf("bandwidth %v must lie in (%v, 1]: %w", bandwidth, step, ErrEstimator)
	}

	grid := make([]float64, gridPoints)
	for i := range grid {
		grid[i] = float64(i) * step
	}
	grid[gridPoints-1] = 1

	return &Estimator{Bandwidth: bandwidth, GridPoints: gridPoints, grid: grid}, nil
}

// Default returns the estimator with the default bandwidth and grid
func Default() *Estimator {
	e, _ := NewEstimator(DefaultBandwidth, DefaultGridPoints)
	return e
}

// Density returns the estimated density on the grid, renormalised to integrate to 1
// over [0,1]. At least two samples are required.
func (e *Estimator) Density(samples []float64) ([]float64, error) {
	switch len(samples) {
	case 0:
		return nil, ErrEmptyDistribution
	case 1:
		return nil, ErrDegenerate
	}

	h := e.Bandwidth
	f := make([]float64, len(e.grid))
	for _, s := range samples {
		if math.IsNaN(s) {
			return nil, fmt.Errorf("NaN sample: %w", genotype.ErrInvariant)
		}
		for i, x := range e.grid {
			u := (x - s) / h
			if u > -1 && u < 1 {
				f[i] += 0.75 * (1 - u*u)
			}
		}
	}

	area := integrate.Trapezoidal(e.grid, f)
	if !(area > 0) {
		return nil, fmt.Errorf("density has no mass on [0,1]: %w", genotype.ErrInvariant)
	}
	for i := range f {
		f[i] /= area
	}
	return f, nil
}

// Overlap returns the integral of the pointwise minimum of the two estimated densities.
// Empty input yields ErrEmptyDistribution, a single observation ErrDegenerate; a result
// outside [0,1] is an invariant violation.
func (e *Estimator) Overlap(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyDistribution
	}
	fa, err := e.Density(a)
	if err != nil {
		return 0, err
	}
	fb, err := e.Density(b)
	if err != nil {
		return 0, err
	}

	m := make([]float64, len(fa))
	for i := range fa {
		m[i] = math.Min(fa[i], fb[i])
	}
	v := integrate.Trapezoidal(e.grid, m)

	switch {
	case v > 1 && v <= 1+tolerance:
		v = 1
	case v < 0 && v >= -tolerance:
		v = 0
	}
	if err := genotype.CheckUnit("overlap", v); err != nil {
		return 0, err
	}
	return v, nil
}
