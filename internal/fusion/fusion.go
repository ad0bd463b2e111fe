// Package fusion combines a bias-branch probability vector with a task-branch
// probability vector into one decision vector.
//
// Every fusion Func is pure and operates on a single pair of vectors; Batch
// lifts a Func to whole prediction tables and handles broadcasting a single
// averaged vector against every row of the other side.
package fusion

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrDimensionMismatch is returned when two vectors that must share a class
// cardinality do not.
var ErrDimensionMismatch = errors.New("fusion: dimension mismatch")

// productEpsilon is added to every product term before renormalising so that
// two confident but disagreeing inputs never produce an all-zero vector.
const productEpsilon = 1e-12

// Vector is a probability-like vector indexed by class.
type Vector []float64

// Func fuses a bias vector with a model vector of the same length.
type Func func(bias, model Vector) (Vector, error)

// Sum fuses by elementwise addition. The result is not renormalised.
func Sum(bias, model Vector) (Vector, error) {
	if err := sameLen(bias, model); err != nil {
		return nil, err
	}
	out := make(Vector, len(bias))
	for i := range bias {
		out[i] = bias[i] + model[i]
	}
	return out, nil
}

// NormalizedSum fuses by elementwise addition and rescales the result to sum to 1.
func NormalizedSum(bias, model Vector) (Vector, error) {
	out, err := Sum(bias, model)
	if err != nil {
		return nil, err
	}
	return out.Normalize(), nil
}

// Product fuses by elementwise multiplication followed by renormalisation.
func Product(bias, model Vector) (Vector, error) {
	if err := sameLen(bias, model); err != nil {
		return nil, err
	}
	out := make(Vector, len(bias))
	for i := range bias {
		out[i] = bias[i]*model[i] + productEpsilon
	}
	return out.Normalize(), nil
}

var registry = map[string]Func{
	"sum":      Sum,
	"sum_norm": NormalizedSum,
	"mult":     Product,
}

// Lookup returns the fusion function registered under name.
func Lookup(name string) (Func, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown fusion %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names returns the registered fusion names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Batch applies f row by row. When one side holds a single row it is
// broadcast against every row of the other side; otherwise both sides must
// have the same number of rows.
func Batch(f Func, bias, model []Vector) ([]Vector, error) {
	n := len(bias)
	switch {
	case len(bias) == 1:
		n = len(model)
	case len(model) == 1:
		n = len(bias)
	case len(bias) != len(model):
		return nil, fmt.Errorf("%w: %d bias rows vs %d model rows", ErrDimensionMismatch, len(bias), len(model))
	}

	out := make([]Vector, n)
	for i := 0; i < n; i++ {
		b := bias[0]
		if len(bias) > 1 {
			b = bias[i]
		}
		m := model[0]
		if len(model) > 1 {
			m = model[i]
		}
		fused, err := f(b, m)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = fused
	}
	return out, nil
}

func sameLen(a, b Vector) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d vs %d classes", ErrDimensionMismatch, len(a), len(b))
	}
	return nil
}
