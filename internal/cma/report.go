package cma

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cmaeval/internal/display"
	"cmaeval/internal/format"
	"cmaeval/internal/fusion"
)

// SeedFailure records a seed whose evaluation failed.
type SeedFailure struct {
	Seed  string `json:"seed"`
	Error string `json:"error"`
}

// Report is the cross-seed outcome of one run.
type Report struct {
	RunID    string          `json:"run_id"`
	Task     string          `json:"task"`
	TestSet  string          `json:"test_set"`
	Fusion   string          `json:"fusion"`
	A0       fusion.Vector   `json:"a0"`
	Seeds    []string        `json:"seeds"`
	Metrics  []MetricSummary `json:"metrics"`
	PerSeed  []*SeedResult   `json:"per_seed,omitempty"`
	Failures []SeedFailure   `json:"failures,omitempty"`
	// Warnings names metrics that were omitted or computed over a subset,
	// and an alignment that fell back to row position.
	Warnings []string `json:"warnings,omitempty"`
}

// Metric returns the summary named name.
func (r *Report) Metric(name string) (MetricSummary, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return MetricSummary{}, false
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// maxErrorWidth bounds a failure message in the text report; JSON keeps it whole.
const maxErrorWidth = 160

// FormatReport renders the report as a metric table in the given mode.
func FormatReport(r *Report, mode format.Mode) string {
	var b strings.Builder

	if mode == format.Markdown {
		fmt.Fprintf(&b, "## CMA report: %s\n\n", display.TestSet(r.TestSet))
	} else {
		b.WriteString("=== CMA Report ===\n")
	}
	fmt.Fprintf(&b, "Run:      %s\n", r.RunID)
	fmt.Fprintf(&b, "Test set: %s\n", display.TestSetWithCode(r.TestSet))
	fmt.Fprintf(&b, "Fusion:   %s\n", r.Fusion)
	fmt.Fprintf(&b, "a0:       %s\n", format.Vector(r.A0))
	fmt.Fprintf(&b, "Seeds:    %d (%s)\n\n", len(r.Seeds), strings.Join(r.Seeds, ", "))

	tb := format.NewTable(mode)
	header := []string{"Metric"}
	header = append(header, r.Seeds...)
	header = append(header, "Mean", "Std")
	tb.Header(header...)
	for _, m := range r.Metrics {
		byseed := make(map[string]float64, len(m.Seeds))
		for i, s := range m.Seeds {
			byseed[s] = m.PerSeed[i]
		}
		row := []any{display.Metric(m.Name)}
		for _, s := range r.Seeds {
			if v, ok := byseed[s]; ok {
				row = append(row, format.Float(v))
			} else {
				row = append(row, "-")
			}
		}
		row = append(row, format.Float(m.Mean), format.Float(m.Std))
		tb.Row(row...)
	}
	if len(r.PerSeed) > 0 {
		labeled := make(map[string]string, len(r.PerSeed))
		for _, s := range r.PerSeed {
			labeled[s.Seed] = fmt.Sprintf("%d/%d", s.Labeled, s.Examples)
		}
		footer := []any{"Labeled/examples"}
		for _, s := range r.Seeds {
			footer = append(footer, labeled[s])
		}
		tb.Footer(append(footer, "", "")...)
	}
	cols := make([]format.ColumnConfig, 0, len(r.Seeds)+2)
	for i := 2; i <= len(r.Seeds)+3; i++ {
		cols = append(cols, format.ColumnConfig{Number: i, Align: format.AlignRight})
	}
	tb.Columns(cols...)
	b.WriteString(tb.String())
	b.WriteString("\n")

	if len(r.Failures) > 0 {
		b.WriteString("\nFailed seeds:\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "  %s: %s\n", f.Seed, format.Truncate(f.Error, maxErrorWidth))
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  %s\n", w)
		}
	}
	return b.String()
}
