// ABOUTME: Runner indexes a suite's documents and plays its scenarios against the engine
// ABOUTME: Results are summarised into a Report that can be exported as JSON

package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/harper/finrag/internal/models"
	"github.com/harper/finrag/internal/rag"
)

// Engine is the part of rag.Service the runner drives
type Engine interface {
	Upload(ctx context.Context, inputs []models.ChunkInput, source string) (int, error)
	IngestFile(ctx context.Context, path string) (*rag.UploadResult, error)
	Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error)
}

// Runner executes evaluation suites
type Runner struct {
	engine Engine
	logger *slog.Logger
	out    io.Writer // progress output; nil is quiet
}

// NewRunner creates a runner; out receives human-readable progress when non-nil
func NewRunner(engine Engine, logger *slog.Logger, out io.Writer) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{engine: engine, logger: logger, out: out}
}

// Report summarises a suite run
type Report struct {
	Suite     string    `json:"suite"`
	Timestamp time.Time `json:"timestamp"`
	Total     int       `json:"total_tests"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	HitRate   float64   `json:"hit_rate"`
	Results   []Result  `json:"results"`
}

// Load indexes the suite's documents
func (r *Runner) Load(ctx context.Context, suite *Suite) error {
	for _, d := range suite.Documents {
		if d.Path != "" {
			res, err := r.engine.IngestFile(ctx, suite.resolve(d.Path))
			if err != nil {
				return fmt.Errorf("loading %s: %w", d.Path, err)
			}
			r.printf("✓ Indexed %s (%d chunks)\n", res.Filename, res.ChunksCreated)
			continue
		}
		inputs := make([]models.ChunkInput, len(d.Chunks))
		for i, text := range d.Chunks {
			inputs[i] = models.ChunkInput{Text: text}
		}
		n, err := r.engine.Upload(ctx, inputs, d.Source)
		if err != nil {
			return fmt.Errorf("loading %s: %w", d.Source, err)
		}
		r.printf("✓ Indexed %s (%d chunks)\n", d.Source, n)
	}
	return nil
}

// Run loads the suite and evaluates every scenario
func (r *Runner) Run(ctx context.Context, suite *Suite) (*Report, error) {
	if err := r.Load(ctx, suite); err != nil {
		return nil, err
	}

	report := &Report{Suite: suite.Name, Timestamp: time.Now()}
	hits := 0.0
	for _, sc := range suite.Scenarios {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := r.RunScenario(ctx, sc)
		report.Results = append(report.Results, res)
		hits += res.HitRate
		if res.Status == StatusPass {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	report.Total = len(report.Results)
	if report.Total > 0 {
		report.HitRate = hits / float64(report.Total)
	}
	return report, nil
}

// RunScenario plays the scenario turns in one conversation and scores the last
func (r *Runner) RunScenario(ctx context.Context, sc Scenario) Result {
	r.printf("\n=== %s: %s ===\n", sc.ID, sc.Name)

	var (
		convID string
		last   *models.QueryResponse
	)
	for i, turn := range sc.Turns {
		r.printf("[Turn %d] User: %s\n", i+1, turn.Query)
		resp, err := r.engine.Query(ctx, models.QueryRequest{
			Query:          turn.Query,
			ConversationID: convID,
			TopK:           turn.TopK,
		})
		if err != nil {
			r.logger.Error("scenario turn failed", "scenario", sc.ID, "turn", i+1, "error", err)
			return Result{
				ScenarioID:   sc.ID,
				ScenarioName: sc.Name,
				Status:       StatusFail,
				ErrorMessage: fmt.Sprintf("turn %d: %v", i+1, err),
			}
		}
		convID = resp.ConversationID
		last = resp
		r.printf("[Turn %d] Assistant: %s\n", i+1, preview(resp.Answer, 150))
	}

	retrieved := make([]string, len(last.Sources))
	cited := make([]string, len(last.Sources))
	for i, s := range last.Sources {
		retrieved[i] = s.Preview
		cited[i] = s.Source
	}

	res := Evaluate(sc, last.Answer, retrieved, cited)
	r.printf("Faithfulness: %.2f  Context recall: %.2f  Hit rate: %.2f  %s\n",
		res.FaithfulnessScore, res.ContextRecallScore, res.HitRate, res.Status)
	return res
}

// Export writes the report as indented JSON
func Export(report *Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (r *Runner) printf(format string, args ...any) {
	if r.out != nil {
		fmt.Fprintf(r.out, format, args...)
	}
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
