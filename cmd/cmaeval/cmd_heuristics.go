package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cmaeval/internal/answer"
	"cmaeval/internal/display"
	"cmaeval/internal/format"
	"cmaeval/internal/heuristics"
	"cmaeval/internal/logging"
	"cmaeval/internal/predictions"
)

var heuristicsFlags struct {
	gold        string
	predictions string
	probsKey    string
	idKey       string
	task        string
	strict      bool
	format      string
}

var heuristicsCmd = &cobra.Command{
	Use:   "heuristics",
	Short: "Score a prediction file against a heuristic evaluation set",
	Long: `Reads a tab-separated heuristic evaluation set (pairID, heuristic, subcase,
template, gold_label) and a JSON Lines prediction file, and prints the accuracy
for every heuristic and gold polarity, then per subcase and per template.

Predictions are joined by --id-key when it is given and every gold pairID is
present, by position otherwise.`,
	RunE: runHeuristics,
}

func init() {
	f := heuristicsCmd.Flags()
	f.StringVar(&heuristicsFlags.gold, "gold", "", "Heuristic evaluation set, tab separated (required)")
	f.StringVar(&heuristicsFlags.predictions, "predictions", "", "JSON Lines prediction file (required)")
	f.StringVar(&heuristicsFlags.probsKey, "probs-key", "probs", "Probability field of the prediction file")
	f.StringVar(&heuristicsFlags.idKey, "id-key", "", "Example id field of the prediction file")
	f.StringVar(&heuristicsFlags.task, "task", answer.TaskMNLIHans, "Answer scheme used to label predictions")
	f.BoolVar(&heuristicsFlags.strict, "strict", true, "Fail when a heuristic/polarity bucket is empty; --strict=false averages the rest")
	f.StringVar(&heuristicsFlags.format, "format", "ascii", "Output format: ascii, markdown, json")

	_ = heuristicsCmd.MarkFlagRequired("gold")
	_ = heuristicsCmd.MarkFlagRequired("predictions")
}

func runHeuristics(cmd *cobra.Command, _ []string) error {
	res, err := heuristics.ScoreFile(heuristicsFlags.gold, heuristicsFlags.predictions, predictions.Options{
		ProbsKey: heuristicsFlags.probsKey,
		IDKey:    heuristicsFlags.idKey,
	}, heuristicsFlags.task)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		if heuristicsFlags.strict {
			return err
		}
		logging.New("heuristics").Warn("empty buckets excluded from the average", "buckets", res.Empty)
	}

	out := cmd.OutOrStdout()
	if heuristicsFlags.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	mode, err := format.ParseMode(heuristicsFlags.format)
	if err != nil {
		return err
	}
	writeHeuristics(out, res, mode)
	return nil
}

func writeHeuristics(w io.Writer, res *heuristics.Result, mode format.Mode) {
	tb := format.NewTable(mode)
	tb.Title("Heuristics")
	tb.Header("Heuristic", "Gold", "Correct", "Incorrect", "Accuracy")
	for _, b := range res.Heuristics {
		tb.Row(display.Heuristic(b.Name), b.Polarity, b.Correct, b.Incorrect, format.Percent(b.Accuracy()))
	}
	fmt.Fprintln(w, tb.String())

	for _, s := range []struct {
		title   string
		buckets []heuristics.Bucket
	}{
		{"Subcases", res.Subcases},
		{"Templates", res.Templates},
	} {
		tb := format.NewTable(mode)
		tb.Title(s.title)
		tb.Header("Name", "Correct", "Incorrect", "Accuracy")
		for _, b := range s.buckets {
			tb.Row(b.Name, b.Correct, b.Incorrect, format.Percent(b.Accuracy()))
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, tb.String())
	}
	fmt.Fprintf(w, "\nAverage: %s\n", format.Percent(res.Average))
}
