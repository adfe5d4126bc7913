package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"stock-analyzer/models"
	"stock-analyzer/observability"

	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5"
)

const defaultHistoryLimit = 20

// Columns that precede and follow the per-metric columns
var (
	analysisLeadColumns = []string{
		"id", "stock_id", "analysis_date", "current_price", "intrinsic_value",
	}
	analysisTailColumns = []string{
		"free_cash_flow_trend", "retained_earnings_trend",
		"dcf_intrinsic_value", "dcf_upside_percentage", "dcf_assumptions",
		"business_summary", "economic_moat_summary", "industry_trends_summary",
		"management_assessment_summary", "risk_factors_summary",
		"investment_thesis_full", "investment_decision", "reasoning", "strategy_type", "confidence_level",
		"competitor_analysis", "key_metrics_snapshot", "qualitative_sources_summary", "data_quality_warnings",
	}
	analysisColumns = append(append(append([]string{}, analysisLeadColumns...), models.MetricNames...), analysisTailColumns...)
)

func analysisSelect() string {
	cols := make([]string, len(analysisColumns))
	for i, c := range analysisColumns {
		cols[i] = "a." + c
	}
	return "SELECT " + strings.Join(cols, ", ") + ", s.ticker FROM stock_analyses a JOIN stocks s ON s.id = a.stock_id"
}

// CreateStockAnalysis stores one analysis run and stamps the stock's
// last_analysis_date in the same transaction.
func (r *Repository) CreateStockAnalysis(ctx context.Context, a *models.StockAnalysis) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "stock_analyses")

	args, err := analysisArgs(a)
	if err != nil {
		return err
	}

	placeholders := make([]string, len(analysisColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insert := "INSERT INTO stock_analyses (" + strings.Join(analysisColumns, ", ") +
		") VALUES (" + strings.Join(placeholders, ", ") + ")"

	return r.inTx(ctx, func(tx DBTX) error {
		if _, err := tx.Exec(ctx, insert, args...); err != nil {
			metrics.RecordDBError("insert", "stock_analyses")
			return fmt.Errorf("failed to insert analysis for %s: %w", a.Symbol, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE stocks SET last_analysis_date = $2, updated_at = NOW() WHERE id = $1`,
			a.StockID, a.AnalysisDate); err != nil {
			metrics.RecordDBError("update", "stocks")
			return fmt.Errorf("failed to update last analysis date for %s: %w", a.Symbol, err)
		}
		return nil
	})
}

// analysisArgs flattens an analysis into insert arguments in analysisColumns order.
func analysisArgs(a *models.StockAnalysis) ([]any, error) {
	assumptions, err := json.Marshal(a.DCF.Assumptions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal DCF assumptions: %w", err)
	}
	snapshot, err := json.Marshal(a.Metrics.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key metrics snapshot: %w", err)
	}
	sources, err := json.Marshal(a.Qualitative.Sources)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal qualitative sources: %w", err)
	}
	var competitors []byte
	if a.Competitors.Summary != "" || len(a.Competitors.Peers) > 0 {
		if competitors, err = json.Marshal(a.Competitors); err != nil {
			return nil, fmt.Errorf("failed to marshal competitor analysis: %w", err)
		}
	}
	warnings := a.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal warnings: %w", err)
	}

	args := make([]any, 0, len(analysisColumns))
	args = append(args, a.ID, a.StockID, a.AnalysisDate, a.CurrentPrice, a.IntrinsicValue)
	for _, name := range models.MetricNames {
		args = append(args, a.Metrics.Get(name))
	}
	args = append(args,
		string(a.Metrics.FreeCashFlowTrend), string(a.Metrics.RetainedEarningsTrend),
		a.DCF.IntrinsicValue, a.DCF.UpsidePercentage, assumptions,
		nullText(a.Qualitative.BusinessSummary), nullText(a.Qualitative.EconomicMoatSummary),
		nullText(a.Qualitative.IndustryTrendsSummary), nullText(a.Qualitative.ManagementAssessmentSummary),
		nullText(a.Qualitative.RiskFactorsSummary),
		nullText(a.Thesis.InvestmentThesis), nullText(a.Thesis.Decision), nullText(a.Thesis.Reasoning),
		nullText(a.Thesis.StrategyType), nullText(a.Thesis.Confidence),
		competitors, snapshot, sources, warningsJSON,
	)
	return args, nil
}

func nullText(s string) null.String {
	return null.NewString(s, s != "")
}

// GetLatestAnalysis returns the most recent analysis for a ticker or ErrNotFound.
func (r *Repository) GetLatestAnalysis(ctx context.Context, ticker string) (*models.StockAnalysis, error) {
	history, err := r.GetAnalysisHistory(ctx, ticker, 1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("analysis for %s: %w", ticker, ErrNotFound)
	}
	return &history[0], nil
}

// GetAnalysisHistory returns up to limit analyses for a ticker, newest first.
func (r *Repository) GetAnalysisHistory(ctx context.Context, ticker string, limit int) ([]models.StockAnalysis, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "stock_analyses")

	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := r.db.Query(ctx, analysisSelect()+`
		WHERE s.ticker = $1
		ORDER BY a.analysis_date DESC
		LIMIT $2
	`, strings.ToUpper(ticker), limit)
	if err != nil {
		metrics.RecordDBError("select", "stock_analyses")
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var analyses []models.StockAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			metrics.RecordDBError("select", "stock_analyses")
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, *a)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordDBError("select", "stock_analyses")
		return nil, fmt.Errorf("failed to read analyses: %w", err)
	}
	return analyses, nil
}

// scanAnalysis scans a row produced by analysisSelect
func scanAnalysis(row pgx.Row) (*models.StockAnalysis, error) {
	a := models.StockAnalysis{Metrics: models.NewMetricSet()}
	metricValues := make([]null.Float, len(models.MetricNames))

	var (
		fcfTrend, reTrend                                     null.String
		assumptions, competitors, snapshot, sources, warnings []byte
		business, moat, industry, mda, risks                  null.String
		thesis, decision, reasoning, strategy, cl             null.String
	)

	dest := []any{&a.ID, &a.StockID, &a.AnalysisDate, &a.CurrentPrice, &a.IntrinsicValue}
	for i := range metricValues {
		dest = append(dest, &metricValues[i])
	}
	dest = append(dest,
		&fcfTrend, &reTrend,
		&a.DCF.IntrinsicValue, &a.DCF.UpsidePercentage, &assumptions,
		&business, &moat, &industry, &mda, &risks,
		&thesis, &decision, &reasoning, &strategy, &cl,
		&competitors, &snapshot, &sources, &warnings,
		&a.Symbol,
	)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	for i, name := range models.MetricNames {
		a.Metrics.Set(name, metricValues[i])
	}
	if fcfTrend.Valid {
		a.Metrics.FreeCashFlowTrend = models.Trend(fcfTrend.String)
	}
	if reTrend.Valid {
		a.Metrics.RetainedEarningsTrend = models.Trend(reTrend.String)
	}

	a.Qualitative = models.QualitativeSummaries{
		BusinessSummary:             business.String,
		EconomicMoatSummary:         moat.String,
		IndustryTrendsSummary:       industry.String,
		ManagementAssessmentSummary: mda.String,
		RiskFactorsSummary:          risks.String,
	}
	a.Thesis = models.Thesis{
		InvestmentThesis: thesis.String,
		Decision:         decision.String,
		Reasoning:        reasoning.String,
		StrategyType:     strategy.String,
		Confidence:       cl.String,
	}

	// Malformed JSON leaves the corresponding field empty
	if err := unmarshalIfPresent(assumptions, &a.DCF.Assumptions); err != nil {
		observability.Warn("failed to decode dcf_assumptions", "analysis_id", a.ID, "error", err)
	}
	if err := unmarshalIfPresent(competitors, &a.Competitors); err != nil {
		observability.Warn("failed to decode competitor_analysis", "analysis_id", a.ID, "error", err)
	}
	if err := unmarshalIfPresent(snapshot, &a.Metrics.Snapshot); err != nil {
		observability.Warn("failed to decode key_metrics_snapshot", "analysis_id", a.ID, "error", err)
	}
	if err := unmarshalIfPresent(sources, &a.Qualitative.Sources); err != nil {
		observability.Warn("failed to decode qualitative_sources_summary", "analysis_id", a.ID, "error", err)
	}
	if err := unmarshalIfPresent(warnings, &a.Warnings); err != nil {
		observability.Warn("failed to decode data_quality_warnings", "analysis_id", a.ID, "error", err)
	}
	if a.Warnings == nil {
		a.Warnings = []string{}
	}

	return &a, nil
}

func unmarshalIfPresent(data []byte, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Join(errors.New("invalid JSON column"), err)
	}
	return nil
}
