// Package heuristics scores entailment predictions on a challenge set whose
// examples are tagged with the shallow heuristic they target, and reports
// accuracy per heuristic and gold polarity.
package heuristics

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"cmaeval/internal/answer"
)

var (
	// ErrEmptyBucket is reported when a heuristic/polarity bucket has no examples.
	ErrEmptyBucket = errors.New("heuristics: empty accuracy bucket")

	// ErrMissingGuess is returned when a gold example has no guess.
	ErrMissingGuess = errors.New("heuristics: missing guess")
)

// Bucket counts correct and incorrect guesses for one group of examples.
type Bucket struct {
	Name string `json:"name"`
	// Polarity is the gold label of the bucket, empty for subcase and
	// template buckets that mix both.
	Polarity  string `json:"polarity,omitempty"`
	Correct   int    `json:"correct"`
	Incorrect int    `json:"incorrect"`
}

// Total returns the number of examples in the bucket.
func (b Bucket) Total() int { return b.Correct + b.Incorrect }

// Accuracy returns Correct/Total, or NaN for an empty bucket.
func (b Bucket) Accuracy() float64 {
	if b.Total() == 0 {
		return math.NaN()
	}
	return float64(b.Correct) / float64(b.Total())
}

// Key returns "name/polarity", or the name alone without a polarity.
func (b Bucket) Key() string {
	if b.Polarity == "" {
		return b.Name
	}
	return b.Name + "/" + b.Polarity
}

// MarshalJSON writes accuracy as null for an empty bucket.
func (b Bucket) MarshalJSON() ([]byte, error) {
	type plain Bucket
	out := struct {
		plain
		Accuracy *float64 `json:"accuracy"`
	}{plain: plain(b)}
	if acc := b.Accuracy(); !math.IsNaN(acc) {
		out.Accuracy = &acc
	}
	return json.Marshal(out)
}

// Result is the structured outcome of Score.
type Result struct {
	// Labels is the gold label of every example in evaluation-set order.
	Labels []string `json:"-"`
	// Heuristics lists entailment buckets for every heuristic in first-seen
	// order, followed by the non-entailment buckets in the same order.
	Heuristics []Bucket `json:"heuristics"`
	Subcases   []Bucket `json:"subcases"`
	Templates  []Bucket `json:"templates"`
	// Average is the unweighted mean accuracy over non-empty heuristic
	// buckets, NaN when every bucket is empty.
	Average float64 `json:"-"`
	// Empty names the heuristic buckets without examples.
	Empty []string `json:"empty,omitempty"`
}

// MarshalJSON writes Average as null when it is undefined.
func (r *Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		*plain
		Average *float64 `json:"average"`
	}{plain: (*plain)(r)}
	if !math.IsNaN(r.Average) {
		avg := r.Average
		out.Average = &avg
	}
	return json.Marshal(out)
}

// Err returns an ErrEmptyBucket error naming the empty buckets, or nil.
func (r *Result) Err() error {
	if len(r.Empty) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrEmptyBucket, strings.Join(r.Empty, ", "))
}

// Score compares guesses, keyed by pair id, with the gold set. Empty buckets
// do not fail the call; they are reported through Result.Err.
func Score(gold *GoldSet, guesses map[string]string) (*Result, error) {
	ent := newCounter()
	nonEnt := newCounter()
	subcases := newCounter()
	templates := newCounter()
	for _, id := range gold.Order {
		ex := gold.Examples[id]
		ent.touch(ex.Heuristic)
		nonEnt.touch(ex.Heuristic)
		subcases.touch(ex.Subcase)
		templates.touch(ex.Template)
	}

	res := &Result{Labels: make([]string, 0, gold.Len())}
	for _, id := range gold.Order {
		ex := gold.Examples[id]
		guess, ok := guesses[id]
		if !ok {
			return nil, fmt.Errorf("%w: pairID %q", ErrMissingGuess, id)
		}
		res.Labels = append(res.Labels, ex.Gold)

		correct := guess == ex.Gold
		if ex.Gold == answer.Entailment {
			ent.add(ex.Heuristic, correct)
		} else {
			nonEnt.add(ex.Heuristic, correct)
		}
		subcases.add(ex.Subcase, correct)
		templates.add(ex.Template, correct)
	}

	res.Heuristics = append(ent.buckets(answer.Entailment), nonEnt.buckets(answer.NonEntailment)...)
	res.Subcases = subcases.buckets("")
	res.Templates = templates.buckets("")

	sum, n := 0.0, 0
	for _, b := range res.Heuristics {
		if b.Total() == 0 {
			res.Empty = append(res.Empty, b.Key())
			continue
		}
		sum += b.Accuracy()
		n++
	}
	res.Average = math.NaN()
	if n > 0 {
		res.Average = sum / float64(n)
	}
	return res, nil
}

// counter keeps per-name tallies in first-seen order.
type counter struct {
	order  []string
	counts map[string]*Bucket
}

func newCounter() *counter {
	return &counter{counts: make(map[string]*Bucket)}
}

func (c *counter) touch(name string) {
	if _, ok := c.counts[name]; !ok {
		c.counts[name] = &Bucket{Name: name}
		c.order = append(c.order, name)
	}
}

func (c *counter) add(name string, correct bool) {
	c.touch(name)
	if correct {
		c.counts[name].Correct++
	} else {
		c.counts[name].Incorrect++
	}
}

func (c *counter) buckets(polarity string) []Bucket {
	out := make([]Bucket, len(c.order))
	for i, name := range c.order {
		out[i] = *c.counts[name]
		out[i].Polarity = polarity
	}
	return out
}
