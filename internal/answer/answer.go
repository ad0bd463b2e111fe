// Package answer maps a predicted class index to the canonical label string
// of a task.
package answer

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedTask is returned for a task identifier with no label scheme.
	ErrUnsupportedTask = errors.New("answer: unsupported task")

	// ErrClassIndex is returned when an index has no label in a task's scheme.
	ErrClassIndex = errors.New("answer: class index out of range")
)

// Task identifiers with a label scheme.
const (
	TaskMNLIHans = "mnli_hans" // binary: entailment / non-entailment
	TaskMNLITest = "mnli_test" // 3-way: entailment / contradiction / neutral
	TaskFever    = "fever"     // binary: contradiction / non-contradiction
	TaskQQP      = "qqp"       // binary: paraphrase / non-paraphrase
)

// Canonical labels.
const (
	Entailment       = "entailment"
	NonEntailment    = "non-entailment"
	Contradiction    = "contradiction"
	NonContradiction = "non-contradiction"
	Neutral          = "neutral"
	Paraphrase       = "paraphrase"
	NonParaphrase    = "non-paraphrase"
)

var mnliThreeWay = []string{Entailment, Contradiction, Neutral}

// LabelFor returns the label for class index idx under task.
//
// The fever and qqp indices follow the label vocabularies of the dataset
// readers that produced the result files: fever puts contradiction at index 2
// and qqp puts paraphrase at index 1.
func LabelFor(idx int, task string) (string, error) {
	if idx < 0 {
		return "", fmt.Errorf("%w: %d", ErrClassIndex, idx)
	}
	switch task {
	case TaskMNLIHans:
		if idx == 0 {
			return Entailment, nil
		}
		return NonEntailment, nil
	case TaskMNLITest:
		if idx >= len(mnliThreeWay) {
			return "", fmt.Errorf("%w: %d for task %s", ErrClassIndex, idx, task)
		}
		return mnliThreeWay[idx], nil
	case TaskFever:
		if idx == 2 {
			return Contradiction, nil
		}
		return NonContradiction, nil
	case TaskQQP:
		if idx == 1 {
			return Paraphrase, nil
		}
		return NonParaphrase, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTask, task)
	}
}

// Supported reports whether task has a label scheme.
func Supported(task string) bool {
	_, err := LabelFor(0, task)
	return !errors.Is(err, ErrUnsupportedTask)
}

// Tasks lists every supported task identifier.
func Tasks() []string {
	return []string{TaskFever, TaskMNLIHans, TaskMNLITest, TaskQQP}
}

// BinaryNLI collapses an NLI gold label onto entailment / non-entailment.
func BinaryNLI(label string) string {
	if label == Entailment {
		return Entailment
	}
	return NonEntailment
}
