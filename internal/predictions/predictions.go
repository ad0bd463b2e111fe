// Package predictions loads per-example class-probability vectors from JSON
// Lines files and aligns a bias-model table with a task-model table.
package predictions

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"cmaeval/internal/fusion"
)

var (
	// ErrMissingFile is returned when a required input file does not exist.
	ErrMissingFile = errors.New("predictions: missing file")

	// ErrMalformedRecord is returned when a record lacks a required field or
	// cannot be decoded. The whole file is rejected.
	ErrMalformedRecord = errors.New("predictions: malformed record")
)

// NoGroundTruth is the gold-label placeholder for examples without a label.
const NoGroundTruth = "-"

// maxLineBytes bounds a single JSON line; result files can carry long token lists.
const maxLineBytes = 16 << 20

// Options selects the fields read from each JSON line.
type Options struct {
	// ProbsKey names the array-valued probability field.
	ProbsKey string
	// LogitsKey, when set, is read instead of ProbsKey and converted with
	// Softmax(logits, Temperature).
	LogitsKey   string
	Temperature float64
	// GoldKey names the gold-label field; empty means the file carries no labels.
	GoldKey string
	// IDKey names the example-id field; empty means examples are identified by
	// their zero-based line position.
	IDKey string
}

// Record is one evaluation example.
type Record struct {
	ID    string
	Probs fusion.Vector
	Gold  string
}

// Labeled reports whether the record carries a usable ground-truth label.
func (r Record) Labeled() bool {
	return r.Gold != "" && r.Gold != NoGroundTruth
}

// Table is the content of one prediction file.
type Table struct {
	Path    string
	Records []Record
	// Keyed is true when record IDs come from the file rather than line positions.
	Keyed   bool
	Classes int
}

// Probs returns the probability rows in file order.
func (t *Table) Probs() []fusion.Vector {
	rows := make([]fusion.Vector, len(t.Records))
	for i, r := range t.Records {
		rows[i] = r.Probs
	}
	return rows
}

// Load reads the JSON Lines file at path.
func Load(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := Decode(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Path = path
	return t, nil
}

// Decode reads JSON Lines records from r.
func Decode(r io.Reader, opts Options) (*Table, error) {
	if opts.ProbsKey == "" && opts.LogitsKey == "" {
		return nil, errors.New("predictions: no probability field configured")
	}

	t := &Table{Keyed: opts.IDKey != ""}
	seen := make(map[string]int)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		rec, err := decodeRecord(raw, opts)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !t.Keyed {
			rec.ID = strconv.Itoa(len(t.Records))
		}
		if prev, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate id %q (first on record %d)", ErrMalformedRecord, line, rec.ID, prev)
		}
		seen[rec.ID] = len(t.Records)

		if len(t.Records) == 0 {
			t.Classes = len(rec.Probs)
		} else if len(rec.Probs) != t.Classes {
			return nil, fmt.Errorf("%w: line %d: %d classes, want %d", ErrMalformedRecord, line, len(rec.Probs), t.Classes)
		}
		t.Records = append(t.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", line+1, err)
	}
	return t, nil
}

func decodeRecord(raw []byte, opts Options) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	var rec Record
	key := opts.ProbsKey
	if opts.LogitsKey != "" {
		key = opts.LogitsKey
	}
	vec, err := decodeVector(fields, key)
	if err != nil {
		return Record{}, err
	}
	if opts.LogitsKey != "" {
		vec = fusion.Softmax(vec, opts.Temperature)
	}
	rec.Probs = vec

	if opts.GoldKey != "" {
		gold, err := decodeScalar(fields, opts.GoldKey)
		if err != nil {
			return Record{}, err
		}
		rec.Gold = gold
	}
	if opts.IDKey != "" {
		id, err := decodeScalar(fields, opts.IDKey)
		if err != nil {
			return Record{}, err
		}
		if id == "" {
			return Record{}, fmt.Errorf("%w: empty %q", ErrMalformedRecord, opts.IDKey)
		}
		rec.ID = id
	}
	return rec, nil
}

// decodeVector accepts either a flat array or a single-row nested array,
// which is how batched model outputs are serialized one example at a time.
func decodeVector(fields map[string]json.RawMessage, key string) (fusion.Vector, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing field %q", ErrMalformedRecord, key)
	}
	var flat fusion.Vector
	if err := json.Unmarshal(raw, &flat); err == nil {
		if len(flat) == 0 {
			return nil, fmt.Errorf("%w: field %q is empty", ErrMalformedRecord, key)
		}
		return flat, nil
	}
	var nested []fusion.Vector
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, fmt.Errorf("%w: field %q is not a number array", ErrMalformedRecord, key)
	}
	if len(nested) != 1 || len(nested[0]) == 0 {
		return nil, fmt.Errorf("%w: field %q has %d rows, want 1", ErrMalformedRecord, key, len(nested))
	}
	return nested[0], nil
}

func decodeScalar(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: missing field %q", ErrMalformedRecord, key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: field %q is not a string or number", ErrMalformedRecord, key)
}
