// Package mcp exposes CMA reports and heuristic scoring as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"cmaeval/internal/answer"
	"cmaeval/internal/cma"
	"cmaeval/internal/display"
	"cmaeval/internal/format"
	"cmaeval/internal/heuristics"
	"cmaeval/internal/layout"
	"cmaeval/internal/logging"
	"cmaeval/internal/predictions"
)

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server

	mu       sync.Mutex
	goldSets map[string]cachedGoldSet
}

// cachedGoldSet is an evaluation set loaded by an earlier tool call, valid
// while the file's modification time is unchanged.
type cachedGoldSet struct {
	modTime time.Time
	set     *heuristics.GoldSet
}

// NewServer creates an MCP server with the evaluation tools registered.
func NewServer(version string) *Server {
	s := &Server{goldSets: make(map[string]cachedGoldSet)}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "cmaeval", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_test_sets",
		Description: "List the test sets of the file layout with their bias and result file names.",
	}, s.handleListTestSets)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "report_cma",
		Description: "Run causal mediation analysis over every seed of a model directory and return the cross-seed report.",
	}, s.handleReportCMA)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "score_heuristics",
		Description: "Score a prediction file against a heuristic evaluation set, per heuristic and gold polarity.",
	}, s.handleScoreHeuristics)
}

// --- Tool input/output types ---

type listTestSetsInput struct {
	LayoutPath string `json:"layout_path,omitempty" jsonschema:"YAML layout overriding the default file table"`
}

type testSetInfo struct {
	Name       string `json:"name"`
	Display    string `json:"display"`
	Task       string `json:"task"`
	BiasFile   string `json:"bias_file"`
	ResultFile string `json:"result_file"`
}

type listTestSetsOutput struct {
	TestSets []testSetInfo `json:"test_sets"`
}

type reportCMAInput struct {
	ModelDir          string    `json:"model_dir" jsonschema:"root holding <task>/<seed>/ result directories"`
	DataDir           string    `json:"data_dir" jsonschema:"root that bias files are resolved against"`
	Task              string    `json:"task,omitempty" jsonschema:"model family directory under model_dir (default nli)"`
	TestSet           string    `json:"test_set,omitempty" jsonschema:"test set identifier (default mnli_hans)"`
	Fusion            string    `json:"fusion,omitempty" jsonschema:"fusion function: sum, sum_norm or mult (default sum)"`
	A0                []float64 `json:"a0,omitempty" jsonschema:"reference bias probability vector"`
	BiasModelPath     string    `json:"bias_model_path,omitempty" jsonschema:"logistic-regression bias model used when a0 is empty"`
	Correction        bool      `json:"correction,omitempty" jsonschema:"apply sharpness correction to x0"`
	TIERatioThreshold *float64  `json:"tie_ratio_threshold,omitempty" jsonschema:"TIE/TE ratio below which x1-a1 is predicted"`
	EffectClass       int       `json:"effect_class,omitempty" jsonschema:"effect vector component reported as magnitude"`
	IDKey             string    `json:"id_key,omitempty" jsonschema:"example id field of the bias file"`
	ResultIDKey       string    `json:"result_id_key,omitempty" jsonschema:"example id field of the result files; with id_key rows are joined by id"`
	GoldPath          string    `json:"gold_path,omitempty" jsonschema:"heuristic evaluation set scored per seed"`
	LayoutPath        string    `json:"layout_path,omitempty" jsonschema:"YAML layout overriding the default file table"`
}

type reportCMAOutput struct {
	RunID    string              `json:"run_id"`
	TestSet  string              `json:"test_set"`
	Seeds    []string            `json:"seeds"`
	Metrics  []cma.MetricSummary `json:"metrics"`
	Failures []cma.SeedFailure   `json:"failures,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	Text     string              `json:"text"`
}

type scoreHeuristicsInput struct {
	GoldPath        string `json:"gold_path" jsonschema:"tab-separated heuristic evaluation set"`
	PredictionsPath string `json:"predictions_path" jsonschema:"JSON Lines prediction file"`
	ProbsKey        string `json:"probs_key,omitempty" jsonschema:"probability field (default probs)"`
	IDKey           string `json:"id_key,omitempty" jsonschema:"example id field; empty joins by position"`
	Task            string `json:"task,omitempty" jsonschema:"answer scheme (default mnli_hans)"`
}

type bucketOutput struct {
	Name      string   `json:"name"`
	Polarity  string   `json:"polarity,omitempty"`
	Correct   int      `json:"correct"`
	Incorrect int      `json:"incorrect"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

type scoreHeuristicsOutput struct {
	Average    *float64       `json:"average,omitempty"`
	Heuristics []bucketOutput `json:"heuristics"`
	Subcases   []bucketOutput `json:"subcases"`
	Templates  []bucketOutput `json:"templates"`
	Empty      []string       `json:"empty,omitempty"`
}

// --- Tool handlers ---

func (s *Server) handleListTestSets(_ context.Context, _ *sdkmcp.CallToolRequest, input listTestSetsInput) (*sdkmcp.CallToolResult, listTestSetsOutput, error) {
	tbl, err := loadLayout(input.LayoutPath)
	if err != nil {
		return nil, listTestSetsOutput{}, err
	}
	var out listTestSetsOutput
	for _, name := range tbl.Names() {
		e := tbl.TestSets[name]
		out.TestSets = append(out.TestSets, testSetInfo{
			Name:       name,
			Display:    display.TestSet(name),
			Task:       e.Task,
			BiasFile:   e.BiasFile,
			ResultFile: e.ResultFile,
		})
	}
	return nil, out, nil
}

func (s *Server) handleReportCMA(ctx context.Context, _ *sdkmcp.CallToolRequest, input reportCMAInput) (*sdkmcp.CallToolResult, reportCMAOutput, error) {
	tbl, err := loadLayout(input.LayoutPath)
	if err != nil {
		return nil, reportCMAOutput{}, err
	}
	cfg := cma.DefaultConfig()
	cfg.ModelDir = input.ModelDir
	cfg.DataDir = input.DataDir
	cfg.Task = pick(input.Task, cfg.Task)
	cfg.TestSet = pick(input.TestSet, cfg.TestSet)
	cfg.Fusion = pick(input.Fusion, cfg.Fusion)
	cfg.A0 = input.A0
	cfg.BiasModelPath = input.BiasModelPath
	cfg.Correction = input.Correction
	cfg.EffectClass = input.EffectClass
	cfg.IDKey = input.IDKey
	cfg.ResultIDKey = input.ResultIDKey
	cfg.Layout = tbl
	if input.TIERatioThreshold != nil {
		cfg.TIERatioThreshold = *input.TIERatioThreshold
	}

	opts := []cma.Option{cma.WithLogger(logging.New("mcp-report"))}
	if input.GoldPath != "" {
		gold, err := s.goldSet(input.GoldPath)
		if err != nil {
			return nil, reportCMAOutput{}, err
		}
		opts = append(opts, cma.WithGoldSet(gold))
	}
	engine, err := cma.New(cfg, opts...)
	if err != nil {
		return nil, reportCMAOutput{}, err
	}
	report, err := engine.Run(ctx)
	if err != nil {
		return nil, reportCMAOutput{}, fmt.Errorf("report %s: %w", cfg.TestSet, err)
	}
	return nil, reportCMAOutput{
		RunID:    report.RunID,
		TestSet:  report.TestSet,
		Seeds:    report.Seeds,
		Metrics:  report.Metrics,
		Failures: report.Failures,
		Warnings: report.Warnings,
		Text:     cma.FormatReport(report, format.Markdown),
	}, nil
}

func (s *Server) handleScoreHeuristics(_ context.Context, _ *sdkmcp.CallToolRequest, input scoreHeuristicsInput) (*sdkmcp.CallToolResult, scoreHeuristicsOutput, error) {
	gold, err := s.goldSet(input.GoldPath)
	if err != nil {
		return nil, scoreHeuristicsOutput{}, err
	}
	res, err := heuristics.ScorePredictions(gold, input.PredictionsPath, predictions.Options{
		ProbsKey: pick(input.ProbsKey, "probs"),
		IDKey:    input.IDKey,
	}, pick(input.Task, answer.TaskMNLIHans))
	if err != nil {
		return nil, scoreHeuristicsOutput{}, err
	}
	out := scoreHeuristicsOutput{
		Heuristics: buckets(res.Heuristics),
		Subcases:   buckets(res.Subcases),
		Templates:  buckets(res.Templates),
		Empty:      res.Empty,
	}
	if !math.IsNaN(res.Average) {
		avg := res.Average
		out.Average = &avg
	}
	return nil, out, nil
}

func buckets(in []heuristics.Bucket) []bucketOutput {
	out := make([]bucketOutput, len(in))
	for i, b := range in {
		out[i] = bucketOutput{Name: b.Name, Polarity: b.Polarity, Correct: b.Correct, Incorrect: b.Incorrect}
		if acc := b.Accuracy(); !math.IsNaN(acc) {
			out[i].Accuracy = &acc
		}
	}
	return out
}

// goldSet returns the evaluation set at path, reusing the copy loaded by an
// earlier call while the file is unchanged.
func (s *Server) goldSet(path string) (*heuristics.GoldSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("load gold set: %w: %s", predictions.ErrMissingFile, path)
		}
		return nil, fmt.Errorf("load gold set: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.goldSets[path]; ok && c.modTime.Equal(info.ModTime()) {
		return c.set, nil
	}
	g, err := heuristics.LoadGoldSet(path)
	if err != nil {
		return nil, fmt.Errorf("load gold set: %w", err)
	}
	s.goldSets[path] = cachedGoldSet{modTime: info.ModTime(), set: g}
	return g, nil
}

func loadLayout(path string) (*layout.Table, error) {
	if path == "" {
		return layout.Default(), nil
	}
	return layout.LoadFile(path)
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
