package heuristics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"cmaeval/internal/answer"
	"cmaeval/internal/predictions"
)

// Required header columns of a heuristic evaluation set.
const (
	ColPairID    = "pairID"
	ColHeuristic = "heuristic"
	ColSubcase   = "subcase"
	ColTemplate  = "template"
	ColGold      = "gold_label"
)

var requiredColumns = []string{ColPairID, ColHeuristic, ColSubcase, ColTemplate, ColGold}

// Example is one tagged row of the evaluation set.
type Example struct {
	PairID    string `json:"pair_id"`
	Heuristic string `json:"heuristic"`
	Subcase   string `json:"subcase"`
	Template  string `json:"template"`
	// Gold is entailment or non-entailment.
	Gold string `json:"gold_label"`
}

// GoldSet holds the evaluation set keyed by pair id, plus file order.
type GoldSet struct {
	Examples map[string]Example
	Order    []string
}

// Len returns the number of examples.
func (g *GoldSet) Len() int { return len(g.Order) }

// LoadGoldSet reads a tab-separated evaluation set with a header row.
func LoadGoldSet(path string) (*GoldSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", predictions.ErrMissingFile, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	g, err := ReadGoldSet(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ReadGoldSet parses an evaluation set from r. A row whose column count
// differs from the header rejects the whole file.
func ReadGoldSet(r io.Reader) (*GoldSet, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", predictions.ErrMalformedRecord)
		}
		return nil, fmt.Errorf("%w: header: %v", predictions.ErrMalformedRecord, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: header lacks column %q", predictions.ErrMalformedRecord, name)
		}
	}
	cr.FieldsPerRecord = len(header)

	g := &GoldSet{Examples: make(map[string]Example)}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", predictions.ErrMalformedRecord, err)
		}
		ex := Example{
			PairID:    row[col[ColPairID]],
			Heuristic: row[col[ColHeuristic]],
			Subcase:   row[col[ColSubcase]],
			Template:  row[col[ColTemplate]],
			Gold:      answer.BinaryNLI(row[col[ColGold]]),
		}
		if _, dup := g.Examples[ex.PairID]; dup {
			return nil, fmt.Errorf("%w: duplicate pairID %q", predictions.ErrMalformedRecord, ex.PairID)
		}
		g.Examples[ex.PairID] = ex
		g.Order = append(g.Order, ex.PairID)
	}
	return g, nil
}

// GuessesByPosition keys labels by the pair id at the same position in the
// evaluation set. Result files without ids are written in evaluation-set order.
func GuessesByPosition(g *GoldSet, labels []string) (map[string]string, error) {
	if len(labels) != g.Len() {
		return nil, fmt.Errorf("%w: %d guesses for %d gold examples", predictions.ErrMisaligned, len(labels), g.Len())
	}
	guesses := make(map[string]string, len(labels))
	for i, id := range g.Order {
		guesses[id] = labels[i]
	}
	return guesses, nil
}

// Guesses keys labels by ids when every gold pair id is among them, and by
// position otherwise.
func Guesses(g *GoldSet, ids, labels []string) (map[string]string, error) {
	if len(ids) != len(labels) {
		return nil, fmt.Errorf("%w: %d ids for %d labels", predictions.ErrMisaligned, len(ids), len(labels))
	}
	byID := make(map[string]string, len(ids))
	for i, id := range ids {
		byID[id] = labels[i]
	}
	for _, id := range g.Order {
		if _, ok := byID[id]; !ok {
			return GuessesByPosition(g, labels)
		}
	}
	return byID, nil
}

// LabelsFromTable maps every record's argmax class to its label under task.
func LabelsFromTable(tbl *predictions.Table, task string) (ids, labels []string, err error) {
	ids = make([]string, len(tbl.Records))
	labels = make([]string, len(tbl.Records))
	for i, r := range tbl.Records {
		ids[i] = r.ID
		if labels[i], err = answer.LabelFor(r.Probs.Argmax(), task); err != nil {
			return nil, nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
	}
	return ids, labels, nil
}

// ScoreFile labels every record of a prediction file under task and scores
// the labels against the evaluation set at goldPath.
func ScoreFile(goldPath, predPath string, opts predictions.Options, task string) (*Result, error) {
	gold, err := LoadGoldSet(goldPath)
	if err != nil {
		return nil, fmt.Errorf("load gold set: %w", err)
	}
	return ScorePredictions(gold, predPath, opts, task)
}

// ScorePredictions scores a prediction file against a loaded evaluation set.
func ScorePredictions(gold *GoldSet, predPath string, opts predictions.Options, task string) (*Result, error) {
	tbl, err := predictions.Load(predPath, opts)
	if err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}
	ids, labels, err := LabelsFromTable(tbl, task)
	if err != nil {
		return nil, err
	}
	guesses, err := Guesses(gold, ids, labels)
	if err != nil {
		return nil, err
	}
	return Score(gold, guesses)
}
