// Package cma runs causal mediation analysis over a debiasing setup: it fuses
// bias-model and task-model predictions under factual and counterfactual
// regimes, decomposes the effect of the bias signal, and scores predictions
// derived from each effect across every trained seed.
package cma

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cmaeval/internal/biasmodel"
	"cmaeval/internal/fusion"
	"cmaeval/internal/heuristics"
	"cmaeval/internal/layout"
	"cmaeval/internal/logging"
	"cmaeval/internal/predictions"
	"cmaeval/internal/sharpness"
)

// Option configures an Engine.
type Option func(*Engine)

// WithBiasModel sets the predictor that produces a0 when Config.A0 is empty.
func WithBiasModel(p biasmodel.Predictor) Option {
	return func(e *Engine) { e.biasModel = p }
}

// WithCorrector replaces the default sharpness corrector.
func WithCorrector(c sharpness.Corrector) Option {
	return func(e *Engine) { e.corrector = c }
}

// WithGoldSet scores heuristics against an already loaded evaluation set.
func WithGoldSet(g *heuristics.GoldSet) Option {
	return func(e *Engine) { e.gold = g }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine evaluates one test set over every seed of a model directory.
type Engine struct {
	cfg       Config
	entry     layout.Entry
	fuse      fusion.Func
	biasModel biasmodel.Predictor
	corrector sharpness.Corrector
	gold      *heuristics.GoldSet
	logger    *slog.Logger
}

// New validates cfg and resolves its test set, fusion and a0 source.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Layout == nil {
		cfg.Layout = layout.Default()
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	entry, err := cfg.Layout.Lookup(cfg.TestSet)
	if err != nil {
		return nil, err
	}
	if cfg.IDKey != "" {
		entry.IDKey = cfg.IDKey
	}
	if cfg.ResultIDKey != "" {
		entry.ResultIDKey = cfg.ResultIDKey
	}
	fuse, err := fusion.Lookup(cfg.Fusion)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		entry:     entry,
		fuse:      fuse,
		corrector: sharpness.LogRatio{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.New("cma")
	}

	if len(cfg.A0) == 0 && e.biasModel == nil {
		if cfg.BiasModelPath == "" {
			return nil, fmt.Errorf("config: a0 or a bias model is required")
		}
		m, err := biasmodel.LoadFile(cfg.BiasModelPath)
		if err != nil {
			return nil, err
		}
		e.biasModel = m
	}
	if e.gold == nil && cfg.GoldPath != "" {
		g, err := heuristics.LoadGoldSet(cfg.GoldPath)
		if err != nil {
			return nil, fmt.Errorf("load gold set: %w", err)
		}
		e.gold = g
	}
	return e, nil
}

// Run evaluates every seed and aggregates the results. Seeds that fail are
// listed in Report.Failures; Run fails only when no seed succeeds.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	a0, err := e.referenceBias()
	if err != nil {
		return nil, err
	}

	bias, err := predictions.Load(e.entry.BiasPath(e.cfg.DataDir), predictions.Options{
		ProbsKey: e.cfg.BiasProbsKey,
		GoldKey:  e.cfg.GroundTruthKey,
		IDKey:    e.entry.IDKey,
	})
	if err != nil {
		return nil, fmt.Errorf("load bias file: %w", err)
	}
	if len(a0) != bias.Classes && len(bias.Records) > 0 {
		return nil, fmt.Errorf("a0: %w: %d classes, bias file has %d", fusion.ErrDimensionMismatch, len(a0), bias.Classes)
	}

	seeds, err := DiscoverSeeds(filepath.Join(e.cfg.ModelDir, e.cfg.Task))
	if err != nil {
		return nil, err
	}
	e.logger.Info("evaluating seeds", "test_set", e.cfg.TestSet, "seeds", len(seeds),
		"examples", len(bias.Records), "fusion", e.cfg.Fusion, "workers", e.cfg.Parallel)

	in := seedInput{
		bias:      bias,
		a0:        a0,
		fuse:      e.fuse,
		task:      e.entry.Task,
		threshold: e.cfg.TIERatioThreshold,
		class:     e.cfg.EffectClass,
		gold:      e.gold,
	}

	var warnings []string
	if e.entry.IDKey == "" || e.entry.ResultIDKey == "" {
		warnings = append(warnings, "result rows are joined to bias rows by position; set an id key to join by example id")
		e.logger.Warn("joining result rows by position", "test_set", e.cfg.TestSet)
	}

	results := make([]*SeedResult, len(seeds))
	errs := make([]error, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallel)
	for i, seed := range seeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = e.runSeed(in, seed)
			return nil
		})
	}
	_ = g.Wait() // errors captured per seed
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:    uuid.NewString(),
		Task:     e.cfg.Task,
		TestSet:  e.cfg.TestSet,
		Fusion:   e.cfg.Fusion,
		A0:       a0,
		Warnings: warnings,
	}
	var ok []*SeedResult
	for i, seed := range seeds {
		if errs[i] != nil {
			e.logger.Error("seed failed", "seed", seed.Name, "error", errs[i])
			report.Failures = append(report.Failures, SeedFailure{Seed: seed.Name, Error: errs[i].Error()})
			continue
		}
		ok = append(ok, results[i])
		report.Seeds = append(report.Seeds, seed.Name)
		for _, w := range results[i].Warnings {
			report.Warnings = append(report.Warnings, seed.Name+": "+w)
		}
	}
	if len(ok) == 0 {
		return report, fmt.Errorf("%w: %d seeds", ErrAllSeedsFailed, len(seeds))
	}
	report.PerSeed = ok
	report.Metrics = aggregate(ok)
	return report, nil
}

func (e *Engine) referenceBias() (fusion.Vector, error) {
	if len(e.cfg.A0) > 0 {
		return fusion.Vector(e.cfg.A0).Clone(), nil
	}
	a0, err := biasmodel.Reference(e.biasModel)
	if err != nil {
		return nil, fmt.Errorf("compute a0: %w", err)
	}
	return a0, nil
}

func (e *Engine) runSeed(in seedInput, seed Seed) (*SeedResult, error) {
	logger := e.logger.With("seed", seed.Name)
	logger.Debug("seed started", "dir", seed.Dir)

	model, err := predictions.Load(e.entry.ResultPath(seed.Dir), e.modelOptions(e.entry.ResultIDKey))
	if err != nil {
		return nil, fmt.Errorf("load result file: %w", err)
	}
	pairs, err := predictions.Align(in.bias, model)
	if err != nil {
		return nil, err
	}

	x0, err := fusion.Mean(model.Probs())
	if err != nil {
		return nil, fmt.Errorf("average x1: %w", err)
	}
	if e.cfg.Correction {
		if x0, err = e.correctedX0(seed, x0); err != nil {
			return nil, fmt.Errorf("sharpness correction: %w", err)
		}
	}

	res, err := evaluate(in, seed.Name, pairs, x0)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		logger.Warn("incomplete metric", "warning", w)
	}
	logger.Info("seed finished", "examples", res.Examples, "labeled", res.Labeled,
		MetricFactualAcc, res.Metrics[MetricFactualAcc], MetricCombinedAcc, res.Metrics[MetricCombinedAcc])
	return res, nil
}

// correctedX0 estimates x0 on the development split of the task family:
// the dev task-model output is fused with the dev bias fused with x0, and
// the corrector compares the result with the dev bias output.
func (e *Engine) correctedX0(seed Seed, x0 fusion.Vector) (fusion.Vector, error) {
	dev, ok := e.cfg.Layout.DevFor(e.cfg.TestSet)
	if !ok {
		return nil, fmt.Errorf("no development files for %s", layout.Family(e.cfg.TestSet))
	}
	biasDev, err := predictions.Load(filepath.Join(e.cfg.DataDir, dev.BiasFile), predictions.Options{ProbsKey: e.cfg.BiasProbsKey})
	if err != nil {
		return nil, fmt.Errorf("load dev bias file: %w", err)
	}
	modelDev, err := predictions.Load(filepath.Join(seed.Dir, dev.ResultFile), e.modelOptions(""))
	if err != nil {
		return nil, fmt.Errorf("load dev result file: %w", err)
	}
	pairs, err := predictions.Align(biasDev, modelDev)
	if err != nil {
		return nil, fmt.Errorf("dev: %w", err)
	}

	biasRows := make([]fusion.Vector, len(pairs))
	modelRows := make([]fusion.Vector, len(pairs))
	for i, p := range pairs {
		biasRows[i], modelRows[i] = p.Bias.Probs, p.Model.Probs
	}
	ya1x0, err := fusion.Batch(e.fuse, biasRows, []fusion.Vector{x0})
	if err != nil {
		return nil, err
	}
	ya1x1, err := fusion.Batch(e.fuse, modelRows, ya1x0)
	if err != nil {
		return nil, err
	}
	return e.corrector.Correct(biasRows, ya1x1)
}

func (e *Engine) modelOptions(idKey string) predictions.Options {
	return predictions.Options{
		ProbsKey:    e.cfg.ProbsKey,
		LogitsKey:   e.cfg.LogitsKey,
		Temperature: e.cfg.Temperature,
		IDKey:       idKey,
	}
}
