// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output and markdown reports.
// Keep raw codes for JSON fields, map keys, and equality comparisons.
package display

import "strings"

// --- Metrics ---

var metrics = map[string]string{
	"factual_acc":            "Factual Accuracy",
	"te":                     "Total Effect",
	"nde":                    "Natural Direct Effect",
	"tie":                    "Total Indirect Effect",
	"tie_std":                "TIE Std (within seed)",
	"tie_acc":                "TIE Accuracy",
	"nie":                    "Natural Indirect Effect",
	"nie_std":                "NIE Std (within seed)",
	"nie_acc":                "NIE Accuracy",
	"intmed":                 "Mediated Interaction",
	"intmed_std":             "INTmed Std (within seed)",
	"intmed_acc":             "INTmed Accuracy",
	"combined_acc":           "Counterfactual Accuracy",
	"heuristic_avg_factual":  "Heuristic Avg (factual)",
	"heuristic_avg_combined": "Heuristic Avg (counterfactual)",
}

// Metric returns the human-readable name for a metric code.
// "tie_acc" -> "TIE Accuracy".
func Metric(code string) string {
	if name, ok := metrics[code]; ok {
		return name
	}
	return code
}

// MetricWithCode returns "TIE Accuracy (tie_acc)" format.
func MetricWithCode(code string) string {
	if name, ok := metrics[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

// --- Test sets ---

var testSets = map[string]string{
	"mnli_train":  "MNLI Train",
	"mnli_dev_mm": "MNLI Dev Mismatched",
	"mnli_hans":   "HANS",
	"fever_train": "FEVER Train",
	"fever_dev":   "FEVER Dev",
	"fever_sym1":  "FEVER Symmetric v0.1",
	"fever_sym2":  "FEVER Symmetric v0.2",
	"qqp_train":   "QQP Train",
	"qqp_dev":     "QQP Dev",
	"qqp_paws":    "PAWS",
}

// TestSet returns the human-readable name for a test-set identifier.
// Unknown identifiers are returned as-is.
func TestSet(code string) string {
	if name, ok := testSets[code]; ok {
		return name
	}
	return code
}

// TestSetWithCode returns "HANS (mnli_hans)" format.
func TestSetWithCode(code string) string {
	if name, ok := testSets[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

// --- Heuristics ---

// Heuristic humanizes a snake_case heuristic, subcase or template tag.
// "lexical_overlap" -> "Lexical Overlap".
func Heuristic(tag string) string {
	parts := strings.Split(tag, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// --- Fusion ---

var fusions = map[string]string{
	"sum":      "Sum",
	"sum_norm": "Normalized Sum",
	"mult":     "Product",
}

// Fusion returns the human-readable name for a fusion code.
func Fusion(code string) string {
	if name, ok := fusions[code]; ok {
		return name
	}
	return code
}
