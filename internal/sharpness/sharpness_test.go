package sharpness

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"cmaeval/internal/fusion"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestLogRatio_IdenticalBatchesGiveUniform(t *testing.T) {
	rows := []fusion.Vector{{0.7, 0.2, 0.1}, {0.1, 0.1, 0.8}}
	got, err := LogRatio{}.Correct(rows, rows)
	if err != nil {
		t.Fatal(err)
	}
	want := fusion.Vector{1.0 / 3, 1.0 / 3, 1.0 / 3}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("correction mismatch (-want +got):\n%s", diff)
	}
}

func TestLogRatio_CounteractsOverconfidentClass(t *testing.T) {
	bias := []fusion.Vector{{0.5, 0.5}, {0.5, 0.5}}
	fused := []fusion.Vector{{0.8, 0.2}, {0.8, 0.2}}
	got, err := LogRatio{Epsilon: 1e-12}.Correct(bias, fused)
	if err != nil {
		t.Fatal(err)
	}
	// c ∝ (0.5/0.8, 0.5/0.2) = (0.625, 2.5)
	want := fusion.Vector{0.2, 0.8}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("correction mismatch (-want +got):\n%s", diff)
	}
}

func TestLogRatio_Errors(t *testing.T) {
	if _, err := (LogRatio{}).Correct(nil, nil); !errors.Is(err, ErrNoExamples) {
		t.Errorf("empty err = %v", err)
	}
	one := []fusion.Vector{{0.5, 0.5}}
	if _, err := (LogRatio{}).Correct(one, append(one, one[0])); !errors.Is(err, fusion.ErrDimensionMismatch) {
		t.Errorf("row count err = %v", err)
	}
	if _, err := (LogRatio{}).Correct(one, []fusion.Vector{{1, 0, 0}}); !errors.Is(err, fusion.ErrDimensionMismatch) {
		t.Errorf("class count err = %v", err)
	}
}

func TestCorrectorFunc(t *testing.T) {
	var c Corrector = CorrectorFunc(func(b, _ []fusion.Vector) (fusion.Vector, error) {
		return b[0], nil
	})
	got, err := c.Correct([]fusion.Vector{{0.3, 0.7}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(fusion.Vector{0.3, 0.7}, got); diff != "" {
		t.Errorf("mismatch:\n%s", diff)
	}
}
