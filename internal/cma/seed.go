package cma

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"cmaeval/internal/answer"
	"cmaeval/internal/fusion"
	"cmaeval/internal/heuristics"
	"cmaeval/internal/predictions"
)

var (
	// ErrNoSeeds is returned when the model directory holds no seed directories.
	ErrNoSeeds = errors.New("cma: no seed directories")

	// ErrNoGroundTruth is returned when a seed has no labeled example to
	// compute an accuracy over.
	ErrNoGroundTruth = errors.New("cma: no labeled examples")

	// ErrAllSeedsFailed is returned when no seed produced a result.
	ErrAllSeedsFailed = errors.New("cma: every seed failed")
)

// Seed is one trained model instance.
type Seed struct {
	Name string
	Dir  string
}

// DiscoverSeeds lists the subdirectories of root in name order.
func DiscoverSeeds(root string) ([]Seed, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", predictions.ErrMissingFile, root)
		}
		return nil, fmt.Errorf("read model dir: %w", err)
	}
	var seeds []Seed
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		seeds = append(seeds, Seed{Name: e.Name(), Dir: filepath.Join(root, e.Name())})
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSeeds, root)
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i].Name < seeds[j].Name })
	return seeds, nil
}

// SeedResult holds the per-seed scores keyed by metric name.
type SeedResult struct {
	Seed     string             `json:"seed"`
	Examples int                `json:"examples"`
	Labeled  int                `json:"labeled"`
	Metrics  map[string]float64 `json:"metrics"`
	X0       fusion.Vector      `json:"x0"`

	// Heuristics holds the scorer output for factual and combined predictions.
	Heuristics map[string]*heuristics.Result `json:"heuristics,omitempty"`
	// Warnings lists metrics that were omitted or computed over a subset.
	Warnings []string `json:"warnings,omitempty"`
}

// seedInput is everything one seed evaluation needs besides its own files.
type seedInput struct {
	bias      *predictions.Table
	a0        fusion.Vector
	fuse      fusion.Func
	task      string
	threshold float64
	class     int
	gold      *heuristics.GoldSet
}

// evaluate scores one seed given its aligned examples and x0.
func evaluate(in seedInput, seed string, pairs []predictions.Pair, x0 fusion.Vector) (*SeedResult, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: seed %s has no examples", ErrNoGroundTruth, seed)
	}
	if in.class >= len(x0) {
		return nil, fmt.Errorf("%w: effect class %d for %d classes", answer.ErrClassIndex, in.class, len(x0))
	}

	var (
		labeled                                       int
		factualOK, tieOK, nieOK, intmedOK, combinedOK int
		te, nde, tie, nie, intmed                     []float64
	)
	factualLabels := make([]string, len(pairs))
	combinedLabels := make([]string, len(pairs))
	for i, p := range pairs {
		a1, x1 := p.Bias.Probs, p.Model.Probs
		e, err := Decompose(in.fuse, a1, x1, in.a0, x0)
		if err != nil {
			return nil, fmt.Errorf("example %s: %w", p.ID, err)
		}

		factual, err := answer.LabelFor(x1.Argmax(), in.task)
		if err != nil {
			return nil, err
		}
		tieLabel, err := answer.LabelFor(e.TIE.Argmax(), in.task)
		if err != nil {
			return nil, err
		}
		nieLabel, err := answer.LabelFor(e.NIE.Argmax(), in.task)
		if err != nil {
			return nil, err
		}
		intmedLabel, err := answer.LabelFor(e.INTmed.Argmax(), in.task)
		if err != nil {
			return nil, err
		}
		combined := factual
		if useCounterfactual(e, in.class, in.threshold) {
			diff, err := x1.Sub(a1)
			if err != nil {
				return nil, fmt.Errorf("example %s: %w", p.ID, err)
			}
			if combined, err = answer.LabelFor(diff.Argmax(), in.task); err != nil {
				return nil, err
			}
		}
		factualLabels[i], combinedLabels[i] = factual, combined

		te = append(te, e.TE[in.class])
		nde = append(nde, e.NDE[in.class])
		tie = append(tie, e.TIE[in.class])
		nie = append(nie, e.NIE[in.class])
		intmed = append(intmed, e.INTmed[in.class])

		if !p.Bias.Labeled() {
			continue
		}
		labeled++
		gold := p.Bias.Gold
		factualOK += hit(factual, gold)
		tieOK += hit(tieLabel, gold)
		nieOK += hit(nieLabel, gold)
		intmedOK += hit(intmedLabel, gold)
		combinedOK += hit(combined, gold)
	}
	if labeled == 0 {
		return nil, fmt.Errorf("%w: seed %s, %d examples all lack a gold label", ErrNoGroundTruth, seed, len(pairs))
	}

	acc := func(n int) float64 { return float64(n) / float64(labeled) }
	res := &SeedResult{
		Seed:     seed,
		Examples: len(pairs),
		Labeled:  labeled,
		X0:       x0,
		Metrics: map[string]float64{
			MetricFactualAcc:  acc(factualOK),
			MetricTE:          mean(te),
			MetricNDE:         mean(nde),
			MetricTIE:         mean(tie),
			MetricTIEStd:      popStd(tie),
			MetricTIEAcc:      acc(tieOK),
			MetricNIE:         mean(nie),
			MetricNIEStd:      popStd(nie),
			MetricNIEAcc:      acc(nieOK),
			MetricINTmed:      mean(intmed),
			MetricINTmedStd:   popStd(intmed),
			MetricINTmedAcc:   acc(intmedOK),
			MetricCombinedAcc: acc(combinedOK),
		},
	}

	if in.gold != nil {
		res.Heuristics = make(map[string]*heuristics.Result, 2)
		for _, h := range []struct {
			metric string
			labels []string
		}{
			{MetricHeuristicFactual, factualLabels},
			{MetricHeuristicCombined, combinedLabels},
		} {
			hr, err := scoreHeuristics(in.gold, pairs, h.labels)
			if err != nil {
				return nil, fmt.Errorf("score heuristics: %w", err)
			}
			res.Heuristics[h.metric] = hr
			if !math.IsNaN(hr.Average) {
				res.Metrics[h.metric] = hr.Average
			}
			if err := hr.Err(); err != nil {
				if math.IsNaN(hr.Average) {
					res.Warnings = append(res.Warnings, fmt.Sprintf("%s omitted: %v", h.metric, err))
				} else {
					res.Warnings = append(res.Warnings, fmt.Sprintf("%s averages the non-empty buckets only: %v", h.metric, err))
				}
			}
		}
	}
	return res, nil
}

// scoreHeuristics scores labels against the gold set, keyed by example id
// when the ids match the gold pair ids and by position otherwise.
func scoreHeuristics(gold *heuristics.GoldSet, pairs []predictions.Pair, labels []string) (*heuristics.Result, error) {
	ids := make([]string, len(pairs))
	for i, p := range pairs {
		ids[i] = p.ID
	}
	guesses, err := heuristics.Guesses(gold, ids, labels)
	if err != nil {
		return nil, err
	}
	return heuristics.Score(gold, guesses)
}

func hit(guess, gold string) int {
	if guess == gold {
		return 1
	}
	return 0
}
