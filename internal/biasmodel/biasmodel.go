// Package biasmodel produces the reference bias probability vector a0: the
// output of the bias-only classifier when the input carries no bias signal.
package biasmodel

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"cmaeval/internal/fusion"
)

// DefaultFeatures is the neutral feature row of the lexical-overlap bias
// model: no overlap, no negation, mean length ratio.
var DefaultFeatures = []float64{0, 0, 0.41997876976119086}

// ErrInvalidModel is returned for coefficients that cannot score a feature row.
var ErrInvalidModel = errors.New("biasmodel: invalid model")

// Predictor maps one feature row to a class-probability vector.
type Predictor interface {
	PredictProba(features []float64) (fusion.Vector, error)
}

// Multi-class strategies for Logistic.
const (
	Multinomial = "multinomial"
	OneVsRest   = "ovr"
)

// Logistic is a fitted logistic-regression classifier.
//
// Coef holds one weight row per class, or a single row for a binary model,
// in which case the row scores the positive (index 1) class.
type Logistic struct {
	Coef       [][]float64 `yaml:"coef" json:"coef"`
	Intercept  []float64   `yaml:"intercept" json:"intercept"`
	MultiClass string      `yaml:"multi_class,omitempty" json:"multi_class,omitempty"`
}

// PredictProba returns class probabilities for features.
func (m *Logistic) PredictProba(features []float64) (fusion.Vector, error) {
	if len(m.Coef) == 0 || len(m.Coef) != len(m.Intercept) {
		return nil, fmt.Errorf("%w: %d coefficient rows, %d intercepts", ErrInvalidModel, len(m.Coef), len(m.Intercept))
	}
	scores := make(fusion.Vector, len(m.Coef))
	for k, row := range m.Coef {
		if len(row) != len(features) {
			return nil, fmt.Errorf("%w: row %d has %d weights for %d features", fusion.ErrDimensionMismatch, k, len(row), len(features))
		}
		z := m.Intercept[k]
		for j, w := range row {
			z += w * features[j]
		}
		scores[k] = z
	}

	if len(scores) == 1 {
		p := sigmoid(scores[0])
		return fusion.Vector{1 - p, p}, nil
	}
	switch m.MultiClass {
	case "", Multinomial:
		return fusion.Softmax(scores, 1), nil
	case OneVsRest:
		for k, z := range scores {
			scores[k] = sigmoid(z)
		}
		return scores.Normalize(), nil
	default:
		return nil, fmt.Errorf("%w: multi_class %q", ErrInvalidModel, m.MultiClass)
	}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Fixed always returns the same probability vector.
type Fixed fusion.Vector

// PredictProba returns a copy of the fixed vector.
func (f Fixed) PredictProba([]float64) (fusion.Vector, error) {
	if len(f) == 0 {
		return nil, fmt.Errorf("%w: empty fixed vector", ErrInvalidModel)
	}
	return fusion.Vector(f).Clone(), nil
}

// LoadFile reads a Logistic model from a YAML or JSON file.
func LoadFile(path string) (*Logistic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bias model: %w", err)
	}
	var m Logistic
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse bias model %s: %w", path, err)
	}
	if len(m.Coef) == 0 || len(m.Coef) != len(m.Intercept) {
		return nil, fmt.Errorf("bias model %s: %w: %d coefficient rows, %d intercepts", path, ErrInvalidModel, len(m.Coef), len(m.Intercept))
	}
	return &m, nil
}

// Reference returns p's prediction for DefaultFeatures.
func Reference(p Predictor) (fusion.Vector, error) {
	return p.PredictProba(DefaultFeatures)
}
