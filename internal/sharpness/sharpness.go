// Package sharpness estimates a correction vector that replaces the averaged
// task output x0 when fused predictions are systematically over- or
// under-confident relative to the bias model.
package sharpness

import (
	"errors"
	"fmt"
	"math"

	"cmaeval/internal/fusion"
)

// ErrNoExamples is returned when the development batches are empty.
var ErrNoExamples = errors.New("sharpness: no development examples")

// DefaultEpsilon keeps log terms finite for zero probabilities.
const DefaultEpsilon = 1e-8

// Corrector computes a corrected x0 from development-split bias probabilities
// and the corresponding fused probabilities. Both batches cover the same
// examples in the same order.
type Corrector interface {
	Correct(biasDev, fusedDev []fusion.Vector) (fusion.Vector, error)
}

// CorrectorFunc adapts a function to Corrector.
type CorrectorFunc func(biasDev, fusedDev []fusion.Vector) (fusion.Vector, error)

// Correct calls f.
func (f CorrectorFunc) Correct(biasDev, fusedDev []fusion.Vector) (fusion.Vector, error) {
	return f(biasDev, fusedDev)
}

// LogRatio matches the per-class geometric mean of the fused distribution to
// that of the bias distribution:
//
//	c_k ∝ exp(mean_i log(b_ik + eps) - mean_i log(f_ik + eps))
//
// The result is normalised to sum to 1.
type LogRatio struct {
	Epsilon float64
}

// Correct implements Corrector.
func (l LogRatio) Correct(biasDev, fusedDev []fusion.Vector) (fusion.Vector, error) {
	if len(biasDev) == 0 {
		return nil, ErrNoExamples
	}
	if len(biasDev) != len(fusedDev) {
		return nil, fmt.Errorf("%w: %d bias rows vs %d fused rows", fusion.ErrDimensionMismatch, len(biasDev), len(fusedDev))
	}
	eps := l.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	classes := len(biasDev[0])
	diff := make(fusion.Vector, classes)
	for i := range biasDev {
		b, f := biasDev[i], fusedDev[i]
		if len(b) != classes || len(f) != classes {
			return nil, fmt.Errorf("%w: row %d has %d bias and %d fused classes, want %d",
				fusion.ErrDimensionMismatch, i, len(b), len(f), classes)
		}
		for k := 0; k < classes; k++ {
			diff[k] += math.Log(b[k]+eps) - math.Log(f[k]+eps)
		}
	}

	n := float64(len(biasDev))
	maxv := math.Inf(-1)
	for k := range diff {
		diff[k] /= n
		maxv = math.Max(maxv, diff[k])
	}
	for k := range diff {
		diff[k] = math.Exp(diff[k] - maxv)
	}
	return diff.Normalize(), nil
}
