package predictions

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"cmaeval/internal/fusion"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_BiasFile(t *testing.T) {
	path := writeFile(t, "bias.jsonl", `{"pairID": "ex1", "bias_probs": [0.2, 0.3, 0.5], "gold_label": "entailment"}
{"pairID": "ex2", "bias_probs": [0.6, 0.3, 0.1], "gold_label": "-"}

{"pairID": 7, "bias_probs": [[0.1, 0.1, 0.8]], "gold_label": "neutral"}
`)
	tbl, err := Load(path, Options{ProbsKey: "bias_probs", GoldKey: "gold_label", IDKey: "pairID"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []Record{
		{ID: "ex1", Probs: fusion.Vector{0.2, 0.3, 0.5}, Gold: "entailment"},
		{ID: "ex2", Probs: fusion.Vector{0.6, 0.3, 0.1}, Gold: "-"},
		{ID: "7", Probs: fusion.Vector{0.1, 0.1, 0.8}, Gold: "neutral"},
	}
	if diff := cmp.Diff(want, tbl.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if !tbl.Keyed || tbl.Classes != 3 || tbl.Path != path {
		t.Errorf("table meta = keyed:%v classes:%d path:%s", tbl.Keyed, tbl.Classes, tbl.Path)
	}
	if tbl.Records[1].Labeled() {
		t.Error("placeholder gold should not count as labeled")
	}
}

func TestLoad_PositionalIDs(t *testing.T) {
	path := writeFile(t, "raw.jsonl", `{"probs": [0.9, 0.1]}
{"probs": [0.4, 0.6]}
`)
	tbl, err := Load(path, Options{ProbsKey: "probs"})
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Keyed {
		t.Error("table without id key should not be keyed")
	}
	if got := []string{tbl.Records[0].ID, tbl.Records[1].ID}; !cmp.Equal(got, []string{"0", "1"}) {
		t.Errorf("positional ids = %v", got)
	}
}

func TestLoad_Logits(t *testing.T) {
	path := writeFile(t, "raw.jsonl", `{"logits": [2.0, 0.0]}`+"\n")
	tbl, err := Load(path, Options{ProbsKey: "probs", LogitsKey: "logits", Temperature: 4})
	if err != nil {
		t.Fatal(err)
	}
	want := 1 / (1 + math.Exp(-0.5))
	if got := tbl.Records[0].Probs[0]; math.Abs(got-want) > 1e-12 {
		t.Errorf("probs[0] = %f, want %f", got, want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jsonl"), Options{ProbsKey: "probs"})
	if !errors.Is(err, ErrMissingFile) {
		t.Fatalf("err = %v, want ErrMissingFile", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  Options
	}{
		{"missing probs", `{"gold_label": "x"}`, Options{ProbsKey: "probs"}},
		{"missing gold", `{"probs": [1, 0]}`, Options{ProbsKey: "probs", GoldKey: "gold_label"}},
		{"missing id", `{"probs": [1, 0]}`, Options{ProbsKey: "probs", IDKey: "id"}},
		{"null id", `{"id": null, "probs": [1, 0]}`, Options{ProbsKey: "probs", IDKey: "id"}},
		{"probs not array", `{"probs": "high"}`, Options{ProbsKey: "probs"}},
		{"empty probs", `{"probs": []}`, Options{ProbsKey: "probs"}},
		{"two rows", `{"probs": [[1, 0], [0, 1]]}`, Options{ProbsKey: "probs"}},
		{"bad json", `{"probs": [1, 0]`, Options{ProbsKey: "probs"}},
		{"ragged", "{\"probs\": [1, 0]}\n{\"probs\": [0.2, 0.3, 0.5]}", Options{ProbsKey: "probs"}},
		{"duplicate id", "{\"id\": 1, \"probs\": [1, 0]}\n{\"id\": 1, \"probs\": [0, 1]}", Options{ProbsKey: "probs", IDKey: "id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input), tt.opts)
			if !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("err = %v, want ErrMalformedRecord", err)
			}
		})
	}
}

func TestDecode_NoProbabilityField(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{}`), Options{}); err == nil {
		t.Fatal("expected error without probability field")
	}
}

func TestAlign_Keyed(t *testing.T) {
	bias := &Table{Keyed: true, Classes: 2, Records: []Record{
		{ID: "a", Probs: fusion.Vector{0.9, 0.1}, Gold: "x"},
		{ID: "b", Probs: fusion.Vector{0.2, 0.8}, Gold: "y"},
	}}
	model := &Table{Keyed: true, Classes: 2, Records: []Record{
		{ID: "b", Probs: fusion.Vector{0.3, 0.7}},
		{ID: "a", Probs: fusion.Vector{0.6, 0.4}},
	}}
	pairs, err := Align(bias, model)
	if err != nil {
		t.Fatal(err)
	}
	want := []Pair{
		{ID: "a", Bias: bias.Records[0], Model: model.Records[1]},
		{ID: "b", Bias: bias.Records[1], Model: model.Records[0]},
	}
	if diff := cmp.Diff(want, pairs); diff != "" {
		t.Errorf("pairs mismatch:\n%s", diff)
	}
}

func TestAlign_Positional(t *testing.T) {
	bias := &Table{Keyed: true, Classes: 2, Records: []Record{
		{ID: "p1", Probs: fusion.Vector{0.9, 0.1}},
		{ID: "p2", Probs: fusion.Vector{0.2, 0.8}},
	}}
	model := &Table{Classes: 2, Records: []Record{
		{ID: "0", Probs: fusion.Vector{0.3, 0.7}},
		{ID: "1", Probs: fusion.Vector{0.6, 0.4}},
	}}
	pairs, err := Align(bias, model)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{pairs[0].ID, pairs[1].ID}
	if diff := cmp.Diff([]string{"p1", "p2"}, got); diff != "" {
		t.Errorf("ids mismatch:\n%s", diff)
	}
	if diff := cmp.Diff(fusion.Vector{0.6, 0.4}, pairs[1].Model.Probs, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("second model row mismatch:\n%s", diff)
	}
}

func TestAlign_Errors(t *testing.T) {
	two := func(keyed bool, classes int, ids ...string) *Table {
		tbl := &Table{Keyed: keyed, Classes: classes}
		for _, id := range ids {
			tbl.Records = append(tbl.Records, Record{ID: id, Probs: make(fusion.Vector, classes)})
		}
		return tbl
	}

	if _, err := Align(two(true, 2, "a", "b"), two(true, 3, "a", "b")); !errors.Is(err, fusion.ErrDimensionMismatch) {
		t.Errorf("class mismatch err = %v, want ErrDimensionMismatch", err)
	}
	if _, err := Align(two(true, 2, "a", "b"), two(false, 2, "0")); !errors.Is(err, ErrMisaligned) {
		t.Errorf("length mismatch err = %v, want ErrMisaligned", err)
	}
	if _, err := Align(two(true, 2, "a", "b"), two(true, 2, "a", "c")); !errors.Is(err, ErrMisaligned) {
		t.Errorf("id mismatch err = %v, want ErrMisaligned", err)
	}
}
