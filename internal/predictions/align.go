package predictions

import (
	"errors"
	"fmt"

	"cmaeval/internal/fusion"
)

// ErrMisaligned is returned when two tables do not describe the same examples.
var ErrMisaligned = errors.New("predictions: tables describe different examples")

// Pair joins the bias-model and task-model records of one example.
type Pair struct {
	ID    string
	Bias  Record
	Model Record
}

// Align joins bias and model records example by example, in bias-table order.
//
// When both tables are keyed the join is on example ID and both tables must
// hold exactly the same IDs. Otherwise the tables are joined by position and
// must have the same length; the ID of a keyed side is kept.
func Align(bias, model *Table) ([]Pair, error) {
	if bias.Classes != model.Classes && len(bias.Records) > 0 && len(model.Records) > 0 {
		return nil, fmt.Errorf("%w: bias has %d classes, model has %d", fusion.ErrDimensionMismatch, bias.Classes, model.Classes)
	}
	if len(bias.Records) != len(model.Records) {
		return nil, fmt.Errorf("%w: %d bias records vs %d model records", ErrMisaligned, len(bias.Records), len(model.Records))
	}

	pairs := make([]Pair, len(bias.Records))
	if bias.Keyed && model.Keyed {
		byID := make(map[string]Record, len(model.Records))
		for _, r := range model.Records {
			byID[r.ID] = r
		}
		for i, b := range bias.Records {
			m, ok := byID[b.ID]
			if !ok {
				return nil, fmt.Errorf("%w: id %q has no model record", ErrMisaligned, b.ID)
			}
			pairs[i] = Pair{ID: b.ID, Bias: b, Model: m}
		}
		return pairs, nil
	}

	for i := range bias.Records {
		id := bias.Records[i].ID
		if model.Keyed {
			id = model.Records[i].ID
		}
		pairs[i] = Pair{ID: id, Bias: bias.Records[i], Model: model.Records[i]}
	}
	return pairs, nil
}
