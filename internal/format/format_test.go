package format_test

import (
	"math"
	"strings"
	"testing"

	"cmaeval/internal/format"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Metric", "seed1", "Mean")
	tb.Row("Factual Accuracy", "0.9500", "0.9500")
	tb.Row("TIE Accuracy", "0.8800", "0.8800")
	out := tb.String()

	for _, want := range []string{"Factual Accuracy", "0.8800"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	// StyleLight draws box characters
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
}

func TestMarkdown_BasicTable(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Metric", "Mean")
	tb.Row("Total Effect", "0.1200")
	out := tb.String()

	if !strings.Contains(out, "| Metric") {
		t.Errorf("expected markdown header with '| Metric':\n%s", out)
	}
	if !strings.Contains(out, "---") {
		t.Errorf("expected markdown separator '---':\n%s", out)
	}
}

func TestTitle_ASCIIOnly(t *testing.T) {
	build := func(m format.Mode) string {
		tb := format.NewTable(m)
		tb.Title("HANS")
		tb.Header("A")
		tb.Row("x")
		return tb.String()
	}
	if out := build(format.ASCII); !strings.Contains(out, "HANS") {
		t.Errorf("expected title in ASCII output:\n%s", out)
	}
	if out := build(format.Markdown); strings.Contains(out, "HANS") {
		t.Errorf("title should not appear in Markdown output:\n%s", out)
	}
}

func TestTitle_WiderThanTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Title("Heuristic accuracy by template")
	tb.Header("A")
	tb.Row("x")
	out := tb.String()
	if first := strings.SplitN(out, "\n", 2)[0]; first != "Heuristic accuracy by template" {
		t.Errorf("first line = %q, want the full title:\n%s", first, out)
	}
}

func TestMarkdown_WithFooter(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Seed", "Accuracy")
	tb.Row("seed1", "0.5000")
	tb.Footer("MEAN", "0.5000")
	out := tb.String()
	if !strings.Contains(out, "MEAN") {
		t.Errorf("expected footer in output:\n%s", out)
	}
}

func TestColumns_RightAlign(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Name", "Value")
	tb.Row("te", "0.0123")
	tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
	if out := tb.String(); !strings.Contains(out, "0.0123") {
		t.Errorf("expected value in output:\n%s", out)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    format.Mode
		wantErr bool
	}{
		{"", format.ASCII, false},
		{"ascii", format.ASCII, false},
		{"Markdown", format.Markdown, false},
		{"md", format.Markdown, false},
		{"html", format.ASCII, true},
	}
	for _, tt := range tests {
		got, err := format.ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if format.Markdown.String() != "markdown" {
		t.Errorf("Markdown.String() = %q", format.Markdown.String())
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.5, "0.5000"},
		{-0.012345, "-0.0123"},
		{math.NaN(), "n/a"},
	}
	for _, tt := range tests {
		if got := format.Float(tt.in); got != tt.want {
			t.Errorf("Float(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := format.Percent(0.875); got != "87.5%" {
		t.Errorf("Percent(0.875) = %q", got)
	}
	if got := format.Percent(math.NaN()); got != "n/a" {
		t.Errorf("Percent(NaN) = %q", got)
	}
}

func TestVector(t *testing.T) {
	if got := format.Vector([]float64{0.2, 0.3, 0.5}); got != "[0.2000 0.3000 0.5000]" {
		t.Errorf("Vector = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := format.Truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
