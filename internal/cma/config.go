package cma

import (
	"errors"
	"fmt"
	"runtime"

	"cmaeval/internal/fusion"
	"cmaeval/internal/layout"
)

// DefaultTIERatioThreshold sends every example with a realistic TIE/TE ratio
// to the x1 - a1 prediction, so the factual fallback practically never fires.
const DefaultTIERatioThreshold = 9999

// Config carries every knob of one report run.
type Config struct {
	// ModelDir/Task/<seed>/ holds one result directory per random seed.
	ModelDir string `json:"model_dir" yaml:"model_dir"`
	Task     string `json:"task" yaml:"task"`
	// DataDir is the root that layout bias files are resolved against.
	DataDir string `json:"data_dir" yaml:"data_dir"`
	TestSet string `json:"test_set" yaml:"test_set"`
	Fusion  string `json:"fusion" yaml:"fusion"`

	// A0 is the reference bias vector. When empty it is computed by the bias
	// model given through BiasModelPath or WithBiasModel.
	A0            []float64 `json:"a0,omitempty" yaml:"a0,omitempty"`
	BiasModelPath string    `json:"bias_model_path,omitempty" yaml:"bias_model_path,omitempty"`

	// Correction replaces x0 with a sharpness-corrected vector estimated on
	// the task family's development split.
	Correction bool `json:"correction" yaml:"correction"`

	BiasProbsKey   string  `json:"bias_probs_key" yaml:"bias_probs_key"`
	GroundTruthKey string  `json:"ground_truth_key" yaml:"ground_truth_key"`
	ProbsKey       string  `json:"probs_key" yaml:"probs_key"`
	LogitsKey      string  `json:"logits_key,omitempty" yaml:"logits_key,omitempty"`
	Temperature    float64 `json:"temperature" yaml:"temperature"`

	TIERatioThreshold float64 `json:"tie_ratio_threshold" yaml:"tie_ratio_threshold"`
	// EffectClass selects the effect-vector component reported as the effect
	// magnitude and used for the TIE/TE ratio.
	EffectClass int `json:"effect_class" yaml:"effect_class"`
	Parallel    int `json:"parallel" yaml:"parallel"`

	// IDKey and ResultIDKey, when set, override the layout's example id
	// fields of the bias and result files. With both set, rows are joined by
	// id instead of by position.
	IDKey       string `json:"id_key,omitempty" yaml:"id_key,omitempty"`
	ResultIDKey string `json:"result_id_key,omitempty" yaml:"result_id_key,omitempty"`

	// GoldPath, when set, names a heuristic evaluation set scored per seed.
	GoldPath string `json:"gold_path,omitempty" yaml:"gold_path,omitempty"`

	Layout *layout.Table `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with the standard field names and knobs.
func DefaultConfig() Config {
	return Config{
		Task:              "nli",
		TestSet:           "mnli_hans",
		Fusion:            "sum",
		BiasProbsKey:      "bias_probs",
		GroundTruthKey:    "gold_label",
		ProbsKey:          "probs",
		Temperature:       1,
		TIERatioThreshold: DefaultTIERatioThreshold,
		Parallel:          runtime.NumCPU(),
		Layout:            layout.Default(),
	}
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	switch {
	case c.ModelDir == "":
		return errors.New("model dir is required")
	case c.DataDir == "":
		return errors.New("data dir is required")
	case c.TestSet == "":
		return errors.New("test set is required")
	case c.BiasProbsKey == "":
		return errors.New("bias probs key is required")
	case c.ProbsKey == "" && c.LogitsKey == "":
		return errors.New("probs key or logits key is required")
	case c.EffectClass < 0:
		return fmt.Errorf("effect class must be non-negative, got %d", c.EffectClass)
	}
	if _, err := fusion.Lookup(c.Fusion); err != nil {
		return err
	}
	return nil
}
