package pipeline

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"stock-analyzer/models"
	"stock-analyzer/observability"

	"github.com/google/uuid"
)

// SymbolAnalyzer analyzes a single symbol
type SymbolAnalyzer interface {
	Analyze(ctx context.Context, symbol string) (*models.StockAnalysis, error)
}

// Result is the outcome for one symbol of a batch run
type Result struct {
	Symbol   string                `json:"symbol"`
	Analysis *models.StockAnalysis `json:"analysis,omitempty"`
	Error    string                `json:"error,omitempty"`
	err      error
}

// Err returns the failure for this symbol, if any
func (r Result) Err() error {
	return r.err
}

// RunSummary describes one batch run
type RunSummary struct {
	ID         uuid.UUID `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
}

// Succeeded counts symbols analyzed without error
func (s RunSummary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Error == "" {
			n++
		}
	}
	return n
}

// Failed returns the results that carry an error
func (s RunSummary) Failed() []Result {
	var failed []Result
	for _, r := range s.Results {
		if r.Error != "" {
			failed = append(failed, r)
		}
	}
	return failed
}

// RankedByUpside returns the results ordered by DCF upside, highest first.
// Results without a valuation follow, then failures; ties keep run order.
func (s RunSummary) RankedByUpside() []Result {
	ranked := append([]Result(nil), s.Results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankKey(ranked[i]) > rankKey(ranked[j])
	})
	return ranked
}

func rankKey(r Result) float64 {
	switch {
	case r.Error != "" || r.Analysis == nil:
		return math.Inf(-1)
	case !r.Analysis.DCF.UpsidePercentage.Valid:
		return -math.MaxFloat64
	default:
		return r.Analysis.DCF.UpsidePercentage.Float64
	}
}

// Runner analyzes a list of symbols with bounded concurrency under an overall deadline.
type Runner struct {
	analyzer      SymbolAnalyzer
	maxConcurrent int
	timeout       time.Duration
}

// NewRunner creates a new Runner
func NewRunner(analyzer SymbolAnalyzer, maxConcurrent int, timeout time.Duration) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Runner{analyzer: analyzer, maxConcurrent: maxConcurrent, timeout: timeout}
}

// Run analyzes every symbol, at most maxConcurrent at a time. A failing symbol
// is recorded in its Result and does not stop the others. Results keep the
// order of the normalized symbol list.
func (r *Runner) Run(ctx context.Context, symbols []string) RunSummary {
	symbols = NormalizeSymbols(symbols)
	summary := RunSummary{ID: uuid.New(), StartedAt: time.Now()}

	observability.Info("analysis run started", "run_id", summary.ID, "symbols", len(symbols), "max_concurrent", r.maxConcurrent)

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	results := make([]Result, len(symbols))
	sem := make(chan struct{}, r.maxConcurrent)
	var wg sync.WaitGroup

	for i, symbol := range symbols {
		wg.Add(1)
		go func(idx int, symbol string) {
			defer wg.Done()

			// Acquire semaphore
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-runCtx.Done():
				results[idx] = failedResult(symbol, runCtx.Err())
				return
			}

			analysis, err := r.analyzer.Analyze(runCtx, symbol)
			if err != nil {
				observability.Warn("analysis failed for symbol", "symbol", symbol, "error", err)
				results[idx] = failedResult(symbol, err)
				return
			}
			results[idx] = Result{Symbol: symbol, Analysis: analysis}
		}(i, symbol)
	}

	wg.Wait()

	summary.Results = results
	summary.FinishedAt = time.Now()
	observability.Info("analysis run completed",
		"run_id", summary.ID,
		"succeeded", summary.Succeeded(),
		"failed", len(summary.Failed()),
		"duration", summary.FinishedAt.Sub(summary.StartedAt))
	return summary
}

func failedResult(symbol string, err error) Result {
	return Result{Symbol: symbol, Error: err.Error(), err: err}
}

// NormalizeSymbols upper-cases, trims and de-duplicates symbols, dropping blanks.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
