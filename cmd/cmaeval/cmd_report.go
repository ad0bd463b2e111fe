package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cmaeval/internal/cma"
	"cmaeval/internal/format"
	"cmaeval/internal/layout"
	"cmaeval/internal/logging"
)

var reportFlags struct {
	configPath        string
	modelDir          string
	dataDir           string
	task              string
	testSet           string
	fusion            string
	a0                []float64
	biasModel         string
	correction        bool
	biasProbsKey      string
	groundTruthKey    string
	probsKey          string
	logitsKey         string
	temperature       float64
	tieRatioThreshold float64
	effectClass       int
	parallel          int
	idKey             string
	resultIDKey       string
	layoutPath        string
	gold              string
	format            string
	jsonOut           string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run causal mediation analysis over every seed and print the report",
	Long: `Loads the bias file of the test set and each seed's result file, fuses them
with the chosen fusion function, and reports TE, NDE, TIE, NIE and INTmed with
the factual, counterfactual and combined accuracies as mean and standard
deviation across seeds.

Seeds that fail are listed in the report; the command fails only when no seed
produced a result.`,
	RunE: runReport,
}

func init() {
	d := cma.DefaultConfig()
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.configPath, "config", "", "YAML file with report settings; flags override it")
	f.StringVar(&reportFlags.modelDir, "model-dir", "", "Root holding <task>/<seed>/ result directories")
	f.StringVar(&reportFlags.dataDir, "data-dir", "", "Root that bias files are resolved against")
	f.StringVar(&reportFlags.task, "task", d.Task, "Model family directory under --model-dir")
	f.StringVar(&reportFlags.testSet, "test-set", d.TestSet, "Test set identifier (see 'cmaeval testsets')")
	f.StringVar(&reportFlags.fusion, "fusion", d.Fusion, "Fusion function: sum, sum_norm, mult")
	f.Float64SliceVar(&reportFlags.a0, "a0", nil, "Reference bias probability vector, comma separated")
	f.StringVar(&reportFlags.biasModel, "bias-model", "", "Logistic-regression bias model (YAML) used when --a0 is not given")
	f.BoolVar(&reportFlags.correction, "correction", false, "Replace x0 with the sharpness-corrected dev estimate")
	f.StringVar(&reportFlags.biasProbsKey, "bias-probs-key", d.BiasProbsKey, "Probability field of bias files")
	f.StringVar(&reportFlags.groundTruthKey, "ground-truth-key", d.GroundTruthKey, "Gold label field of bias files")
	f.StringVar(&reportFlags.probsKey, "probs-key", d.ProbsKey, "Probability field of result files")
	f.StringVar(&reportFlags.logitsKey, "logits-key", "", "Logit field of result files, read instead of --probs-key")
	f.Float64Var(&reportFlags.temperature, "temperature", d.Temperature, "Softmax temperature applied to logits")
	f.Float64Var(&reportFlags.tieRatioThreshold, "tie-ratio-threshold", d.TIERatioThreshold, "TIE/TE ratio below which x1 - a1 is predicted")
	f.IntVar(&reportFlags.effectClass, "effect-class", d.EffectClass, "Effect vector component reported as magnitude")
	f.IntVar(&reportFlags.parallel, "parallel", d.Parallel, "Seeds evaluated concurrently")
	f.StringVar(&reportFlags.idKey, "id-key", "", "Example id field of the bias file; overrides the layout")
	f.StringVar(&reportFlags.resultIDKey, "result-id-key", "", "Example id field of the result files; with --id-key rows are joined by id")
	f.StringVar(&reportFlags.layoutPath, "layout", "", "YAML layout merged over the default file table")
	f.StringVar(&reportFlags.gold, "gold", "", "Heuristic evaluation set scored for every seed")
	f.StringVar(&reportFlags.format, "format", "ascii", "Output format: ascii, markdown, json")
	f.StringVar(&reportFlags.jsonOut, "json-out", "", "Also write the JSON report to this file")
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := reportConfig(cmd)
	if err != nil {
		return err
	}

	engine, err := cma.New(cfg, cma.WithLogger(logging.New("report")))
	if err != nil {
		return err
	}
	report, err := engine.Run(cmd.Context())
	if err != nil {
		return err
	}

	if reportFlags.jsonOut != "" {
		if err := writeJSONFile(reportFlags.jsonOut, report); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if reportFlags.format == "json" {
		return report.WriteJSON(out)
	}
	mode, err := format.ParseMode(reportFlags.format)
	if err != nil {
		return err
	}
	fmt.Fprint(out, cma.FormatReport(report, mode))
	return nil
}

// reportConfig builds the run configuration: defaults, then the --config
// file, then every flag set on the command line.
func reportConfig(cmd *cobra.Command) (cma.Config, error) {
	cfg := cma.DefaultConfig()
	if reportFlags.configPath != "" {
		data, err := os.ReadFile(reportFlags.configPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", reportFlags.configPath, err)
		}
	}

	set := cmd.Flags().Changed
	fromFile := reportFlags.configPath != ""
	str := func(name string, dst *string, v string) {
		if set(name) || !fromFile {
			*dst = v
		}
	}
	str("model-dir", &cfg.ModelDir, reportFlags.modelDir)
	str("data-dir", &cfg.DataDir, reportFlags.dataDir)
	str("task", &cfg.Task, reportFlags.task)
	str("test-set", &cfg.TestSet, reportFlags.testSet)
	str("fusion", &cfg.Fusion, reportFlags.fusion)
	str("bias-model", &cfg.BiasModelPath, reportFlags.biasModel)
	str("bias-probs-key", &cfg.BiasProbsKey, reportFlags.biasProbsKey)
	str("ground-truth-key", &cfg.GroundTruthKey, reportFlags.groundTruthKey)
	str("probs-key", &cfg.ProbsKey, reportFlags.probsKey)
	str("logits-key", &cfg.LogitsKey, reportFlags.logitsKey)
	str("gold", &cfg.GoldPath, reportFlags.gold)
	str("id-key", &cfg.IDKey, reportFlags.idKey)
	str("result-id-key", &cfg.ResultIDKey, reportFlags.resultIDKey)
	if set("a0") || !fromFile {
		cfg.A0 = reportFlags.a0
	}
	if set("correction") || !fromFile {
		cfg.Correction = reportFlags.correction
	}
	if set("temperature") || !fromFile {
		cfg.Temperature = reportFlags.temperature
	}
	if set("tie-ratio-threshold") || !fromFile {
		cfg.TIERatioThreshold = reportFlags.tieRatioThreshold
	}
	if set("effect-class") || !fromFile {
		cfg.EffectClass = reportFlags.effectClass
	}
	if set("parallel") || !fromFile {
		cfg.Parallel = reportFlags.parallel
	}

	if reportFlags.layoutPath != "" {
		tbl, err := layout.LoadFile(reportFlags.layoutPath)
		if err != nil {
			return cfg, err
		}
		cfg.Layout = tbl
	}
	return cfg, nil
}

func writeJSONFile(path string, report *cma.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := report.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
