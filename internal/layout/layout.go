// Package layout maps test-set identifiers to the files that hold their
// bias-model and task-model predictions.
//
// Bias files are resolved against the data directory; result files are
// resolved against one seed directory under the model-output root.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"cmaeval/internal/answer"
)

// ErrUnknownTestSet is returned for a test-set identifier absent from the table.
var ErrUnknownTestSet = errors.New("layout: unknown test set")

// Entry locates the prediction files of one test set.
type Entry struct {
	BiasFile   string `yaml:"bias_file" json:"bias_file"`
	ResultFile string `yaml:"result_file" json:"result_file"`
	// Task selects the answer-mapping scheme used to label predictions.
	Task string `yaml:"task" json:"task"`
	// IDKey names the example-id field in the bias file, empty for positional.
	IDKey string `yaml:"id_key,omitempty" json:"id_key,omitempty"`
	// ResultIDKey names the example-id field in the result file.
	ResultIDKey string `yaml:"result_id_key,omitempty" json:"result_id_key,omitempty"`
}

// DevEntry locates the held-out development files used by sharpness correction.
type DevEntry struct {
	BiasFile   string `yaml:"bias_file" json:"bias_file"`
	ResultFile string `yaml:"result_file" json:"result_file"`
}

// Table is the full file layout consumed by one report run.
type Table struct {
	TestSets map[string]Entry `yaml:"test_sets" json:"test_sets"`
	// Dev is keyed by task family: the test-set prefix before the first "_".
	Dev map[string]DevEntry `yaml:"dev" json:"dev"`
}

// Default returns the file layout produced by the upstream training and
// evaluation pipelines.
func Default() *Table {
	return &Table{
		TestSets: map[string]Entry{
			"mnli_train":  {BiasFile: "nli/train_prob_korn_lr_overlapping_sample_weight_3class.jsonl", ResultFile: "raw_train.jsonl", Task: answer.TaskMNLITest},
			"mnli_dev_mm": {BiasFile: "nli/test_prob_korn_lr_overlapping_sample_weight_3class.jsonl", ResultFile: "raw_mm.jsonl", Task: answer.TaskMNLITest},
			"mnli_hans":   {BiasFile: "nli/hans_prob_korn_lr_overlapping_sample_weight_3class.jsonl", ResultFile: "normal/hans_result.jsonl", Task: answer.TaskMNLIHans},
			"fever_train": {BiasFile: "fact_verification/fever.train.jsonl", ResultFile: "raw_fever.train.jsonl", Task: answer.TaskFever},
			"fever_dev":   {BiasFile: "fact_verification/fever.dev.jsonl", ResultFile: "raw_fever.dev.jsonl", Task: answer.TaskFever},
			"fever_sym1":  {BiasFile: "fact_verification/fever_symmetric_v0.1.test.jsonl", ResultFile: "raw_fever_symmetric_v0.1.test.jsonl", Task: answer.TaskFever},
			"fever_sym2":  {BiasFile: "fact_verification/fever_symmetric_v0.2.test.jsonl", ResultFile: "raw_fever_symmetric_v0.2.test.jsonl", Task: answer.TaskFever},
			"qqp_train":   {BiasFile: "paraphrase_identification/qqp.train.jsonl", ResultFile: "raw_qqp.train.jsonl", Task: answer.TaskQQP},
			"qqp_dev":     {BiasFile: "paraphrase_identification/qqp.dev.jsonl", ResultFile: "raw_qqp.dev.jsonl", Task: answer.TaskQQP},
			"qqp_paws":    {BiasFile: "paraphrase_identification/paws.dev_and_test.jsonl", ResultFile: "raw_paws.dev_and_test.jsonl", Task: answer.TaskQQP},
		},
		Dev: map[string]DevEntry{
			"mnli": {BiasFile: "nli/dev_prob_korn_lr_overlapping_sample_weight_3class.jsonl", ResultFile: "raw_m.jsonl"},
		},
	}
}

// Lookup returns the entry for testSet.
func (t *Table) Lookup(testSet string) (Entry, error) {
	e, ok := t.TestSets[testSet]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownTestSet, testSet, t.Names())
	}
	return e, nil
}

// DevFor returns the development files of the task family testSet belongs to.
func (t *Table) DevFor(testSet string) (DevEntry, bool) {
	d, ok := t.Dev[Family(testSet)]
	return d, ok
}

// Names returns the test-set identifiers in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.TestSets))
	for k := range t.TestSets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Family returns the task family of a test-set identifier: "fever_sym1" -> "fever".
func Family(testSet string) string {
	for i := 0; i < len(testSet); i++ {
		if testSet[i] == '_' {
			return testSet[:i]
		}
	}
	return testSet
}

// Merge overlays other onto t. Entries in other replace entries of the same
// name; empty fields of an override keep the base value.
func (t *Table) Merge(other *Table) {
	if t.TestSets == nil {
		t.TestSets = make(map[string]Entry)
	}
	if t.Dev == nil {
		t.Dev = make(map[string]DevEntry)
	}
	for name, e := range other.TestSets {
		base := t.TestSets[name]
		t.TestSets[name] = Entry{
			BiasFile:    pick(e.BiasFile, base.BiasFile),
			ResultFile:  pick(e.ResultFile, base.ResultFile),
			Task:        pick(e.Task, base.Task),
			IDKey:       pick(e.IDKey, base.IDKey),
			ResultIDKey: pick(e.ResultIDKey, base.ResultIDKey),
		}
	}
	for name, d := range other.Dev {
		base := t.Dev[name]
		t.Dev[name] = DevEntry{
			BiasFile:   pick(d.BiasFile, base.BiasFile),
			ResultFile: pick(d.ResultFile, base.ResultFile),
		}
	}
}

// Validate checks that every entry names both files and a supported task.
func (t *Table) Validate() error {
	for _, name := range t.Names() {
		e := t.TestSets[name]
		if e.BiasFile == "" || e.ResultFile == "" {
			return fmt.Errorf("test set %s: bias_file and result_file are required", name)
		}
		if !answer.Supported(e.Task) {
			return fmt.Errorf("test set %s: %w: %q", name, answer.ErrUnsupportedTask, e.Task)
		}
	}
	return nil
}

// LoadFile reads a YAML (or JSON) layout file and merges it over Default.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	var override Table
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}
	t := Default()
	t.Merge(&override)
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return t, nil
}

// BiasPath resolves the bias file of e against dataDir.
func (e Entry) BiasPath(dataDir string) string {
	return filepath.Join(dataDir, e.BiasFile)
}

// ResultPath resolves the result file of e against one seed directory.
func (e Entry) ResultPath(seedDir string) string {
	return filepath.Join(seedDir, e.ResultFile)
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
