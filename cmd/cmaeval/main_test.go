package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cmaeval/internal/cma"
	"cmaeval/internal/layout"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestTestSets_Markdown(t *testing.T) {
	out, err := execute(t, "testsets", "--format", "markdown")
	if err != nil {
		t.Fatalf("testsets: %v", err)
	}
	for _, want := range []string{"HANS (mnli_hans)", "normal/hans_result.jsonl", "| Test set"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReport_JSON(t *testing.T) {
	root := t.TempDir()
	dataDir, modelDir := filepath.Join(root, "data"), filepath.Join(root, "models")
	entry, _ := layout.Default().Lookup("mnli_dev_mm")
	writeFile(t, entry.BiasPath(dataDir),
		`{"bias_probs": [0.6, 0.2, 0.2], "gold_label": "entailment"}`+"\n"+
			`{"bias_probs": [0.2, 0.6, 0.2], "gold_label": "contradiction"}`+"\n")
	for _, seed := range []string{"seed1", "seed2"} {
		writeFile(t, entry.ResultPath(filepath.Join(modelDir, "nli", seed)),
			`{"probs": [0.7, 0.2, 0.1]}`+"\n"+`{"probs": [0.1, 0.8, 0.1]}`+"\n")
	}
	jsonOut := filepath.Join(root, "report.json")

	out, err := execute(t, "report",
		"--model-dir", modelDir,
		"--data-dir", dataDir,
		"--test-set", "mnli_dev_mm",
		"--a0", "0.25,0.25,0.5",
		"--parallel", "2",
		"--format", "json",
		"--json-out", jsonOut,
		"--log-level", "error",
	)
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	var report struct {
		Seeds   []string            `json:"seeds"`
		Metrics []cma.MetricSummary `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if len(report.Seeds) != 2 {
		t.Errorf("seeds = %v, want 2", report.Seeds)
	}
	var found bool
	for _, m := range report.Metrics {
		if m.Name == cma.MetricFactualAcc {
			found = true
			if m.Mean != 1.0 || m.Std != 0 {
				t.Errorf("factual_acc mean=%v std=%v, want 1 and 0", m.Mean, m.Std)
			}
		}
	}
	if !found {
		t.Error("factual_acc missing")
	}
	if _, err := os.Stat(jsonOut); err != nil {
		t.Errorf("json-out not written: %v", err)
	}
}

func TestReport_IDKeyFlags(t *testing.T) {
	root := t.TempDir()
	dataDir, modelDir := filepath.Join(root, "data"), filepath.Join(root, "models")
	entry, _ := layout.Default().Lookup("mnli_dev_mm")
	writeFile(t, entry.BiasPath(dataDir),
		`{"pairID": "a", "bias_probs": [0.6, 0.2, 0.2], "gold_label": "entailment"}`+"\n"+
			`{"pairID": "b", "bias_probs": [0.2, 0.6, 0.2], "gold_label": "contradiction"}`+"\n")
	writeFile(t, entry.ResultPath(filepath.Join(modelDir, "nli", "seed1")),
		`{"id": "b", "probs": [0.1, 0.8, 0.1]}`+"\n"+`{"id": "a", "probs": [0.7, 0.2, 0.1]}`+"\n")

	out, err := execute(t, "report",
		"--model-dir", modelDir,
		"--data-dir", dataDir,
		"--test-set", "mnli_dev_mm",
		"--a0", "0.25,0.25,0.5",
		"--id-key", "pairID",
		"--result-id-key", "id",
		"--format", "json",
		"--json-out", "",
		"--log-level", "error",
	)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	var report struct {
		Metrics  []cma.MetricSummary `json:"metrics"`
		Warnings []string            `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	for _, m := range report.Metrics {
		if m.Name == cma.MetricFactualAcc && m.Mean != 1.0 {
			t.Errorf("factual_acc = %v, want 1.0 after id join", m.Mean)
		}
	}
	if len(report.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", report.Warnings)
	}
}

func TestHeuristics_ASCII(t *testing.T) {
	dir := t.TempDir()
	gold := filepath.Join(dir, "heuristics_evaluation_set.txt")
	preds := filepath.Join(dir, "hans_result.jsonl")
	writeFile(t, gold, "gold_label\tpairID\theuristic\tsubcase\ttemplate\n"+
		"entailment\tex0\tlexical_overlap\tln_subject\ttemp1\n"+
		"non-entailment\tex1\tlexical_overlap\tln_subject\ttemp1\n")
	writeFile(t, preds, `{"probs": [0.9, 0.1]}`+"\n"+`{"probs": [0.2, 0.8]}`+"\n")

	out, err := execute(t, "heuristics", "--gold", gold, "--predictions", preds, "--format", "ascii")
	if err != nil {
		t.Fatalf("heuristics: %v", err)
	}
	for _, want := range []string{"Lexical Overlap", "ln_subject", "temp1", "Average: 100.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRoot_BadLogLevel(t *testing.T) {
	_, err := execute(t, "testsets", "--log-level", "verbose")
	if err == nil {
		t.Fatal("expected error for unknown log level")
	}
	rootFlags.logLevel = "info"
}
