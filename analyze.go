package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"stock-analyzer/models"
	"stock-analyzer/pipeline"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [SYMBOLS...]",
	Short: "Analyze one or more stocks",
	Long:  `Runs the full pipeline for each symbol. Without arguments the symbols in PIPELINE_SYMBOLS are used.`,
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full results as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	symbols := args
	if len(symbols) == 0 {
		symbols = cfg.Pipeline.Symbols
	}
	if len(pipeline.NormalizeSymbols(symbols)) == 0 {
		return fmt.Errorf("no symbols given and PIPELINE_SYMBOLS is empty")
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	summary := a.Analyze(cmd.Context(), symbols)

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		printSummary(os.Stdout, summary)
	}

	if summary.Succeeded() == 0 {
		return fmt.Errorf("all %d analyses failed", len(summary.Results))
	}
	return nil
}

func printSummary(w io.Writer, summary pipeline.RunSummary) {
	p := message.NewPrinter(language.English)
	for _, r := range summary.RankedByUpside() {
		if r.Error != "" {
			fmt.Fprintf(w, "%s: FAILED: %s\n", r.Symbol, r.Error)
			continue
		}
		printAnalysis(w, p, r.Analysis)
	}
	fmt.Fprintf(w, "\n%d of %d succeeded in %s\n", summary.Succeeded(), len(summary.Results),
		summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
}

func printAnalysis(w io.Writer, p *message.Printer, a *models.StockAnalysis) {
	fmt.Fprintf(w, "%s\n", strings.Repeat("=", 60))
	fmt.Fprintf(w, "%s (%s)\n", a.Symbol, a.AnalysisDate.Format("2006-01-02"))

	if a.CurrentPrice.Valid {
		fmt.Fprintf(w, "  Price:           %s\n", a.CurrentPrice.Decimal.StringFixed(2))
	}
	if a.DCF.Computed() {
		p.Fprintf(w, "  Intrinsic value: %.2f", a.DCF.IntrinsicValue.Float64)
		if a.DCF.UpsidePercentage.Valid {
			p.Fprintf(w, " (%+.1f%%)", a.DCF.UpsidePercentage.Float64)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "  Intrinsic value: N/A")
	}
	fmt.Fprintf(w, "  Revenue source:  %s\n", a.Metrics.Snapshot.QRevenueSource)

	if a.Thesis.Decision != "" {
		fmt.Fprintf(w, "  Decision:        %s (%s, confidence %s)\n", a.Thesis.Decision, a.Thesis.StrategyType, a.Thesis.Confidence)
	}
	for _, warning := range a.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warning)
	}
}
