package fusion

import (
	"errors"
	"fmt"
	"math"
)

// Sub returns v - o elementwise.
func (v Vector) Sub(o Vector) (Vector, error) {
	if err := sameLen(v, o); err != nil {
		return nil, err
	}
	out := make(Vector, len(v))
	for i := range v {
		out[i] = v[i] - o[i]
	}
	return out, nil
}

// Argmax returns the index of the largest component; ties go to the lowest
// index. It returns -1 for an empty vector.
func (v Vector) Argmax() int {
	best := -1
	for i, x := range v {
		if best < 0 || x > v[best] {
			best = i
		}
	}
	return best
}

// Normalize returns a copy of v rescaled to sum to 1. A vector whose sum is
// zero is returned unchanged.
func (v Vector) Normalize() Vector {
	total := 0.0
	for _, x := range v {
		total += x
	}
	out := make(Vector, len(v))
	copy(out, v)
	if total == 0 {
		return out
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Mean returns the columnwise arithmetic mean of rows.
func Mean(rows []Vector) (Vector, error) {
	if len(rows) == 0 {
		return nil, errors.New("fusion: mean of zero rows")
	}
	out := make(Vector, len(rows[0]))
	for i, r := range rows {
		if len(r) != len(out) {
			return nil, fmt.Errorf("%w: row %d has %d classes, want %d", ErrDimensionMismatch, i, len(r), len(out))
		}
		for j, x := range r {
			out[j] += x
		}
	}
	for j := range out {
		out[j] /= float64(len(rows))
	}
	return out, nil
}

// Softmax converts logits to probabilities after dividing them by
// temperature. A non-positive temperature is treated as 1.
func Softmax(logits Vector, temperature float64) Vector {
	if temperature <= 0 {
		temperature = 1
	}
	if len(logits) == 0 {
		return Vector{}
	}
	maxv := math.Inf(-1)
	for _, x := range logits {
		if x/temperature > maxv {
			maxv = x / temperature
		}
	}
	out := make(Vector, len(logits))
	total := 0.0
	for i, x := range logits {
		out[i] = math.Exp(x/temperature - maxv)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}
