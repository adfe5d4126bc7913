package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stock-analyzer/models"
	"stock-analyzer/observability"

	"github.com/jackc/pgx/v5"
)

// UpsertStock inserts the stock or refreshes its descriptive fields when the
// ticker already exists. Empty incoming fields never overwrite stored ones.
// The stored ID and timestamps are written back into stock.
func (r *Repository) UpsertStock(ctx context.Context, stock *models.Stock) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "stocks")

	stock.Ticker = strings.ToUpper(strings.TrimSpace(stock.Ticker))

	err := r.db.QueryRow(ctx, `
		INSERT INTO stocks (id, ticker, company_name, industry, sector, cik, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NOW(), NOW())
		ON CONFLICT (ticker) DO UPDATE SET
			company_name = COALESCE(NULLIF(EXCLUDED.company_name, ''), stocks.company_name),
			industry     = COALESCE(EXCLUDED.industry, stocks.industry),
			sector       = COALESCE(EXCLUDED.sector, stocks.sector),
			cik          = COALESCE(EXCLUDED.cik, stocks.cik),
			updated_at   = NOW()
		RETURNING id, company_name, COALESCE(industry, ''), COALESCE(sector, ''), COALESCE(cik, ''),
			last_analysis_date, created_at, updated_at
	`, stock.ID, stock.Ticker, stock.CompanyName, stock.Industry, stock.Sector, stock.CIK).Scan(
		&stock.ID, &stock.CompanyName, &stock.Industry, &stock.Sector, &stock.CIK,
		&stock.LastAnalysisDate, &stock.CreatedAt, &stock.UpdatedAt)

	if err != nil {
		metrics.RecordDBError("upsert", "stocks")
		return fmt.Errorf("failed to upsert stock %s: %w", stock.Ticker, err)
	}
	return nil
}

// GetStockByTicker returns the stock with the given ticker or ErrNotFound.
func (r *Repository) GetStockByTicker(ctx context.Context, ticker string) (*models.Stock, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "stocks")

	var s models.Stock
	err := r.db.QueryRow(ctx, `
		SELECT id, ticker, company_name, COALESCE(industry, ''), COALESCE(sector, ''), COALESCE(cik, ''),
			last_analysis_date, created_at, updated_at
		FROM stocks WHERE ticker = $1
	`, strings.ToUpper(ticker)).Scan(
		&s.ID, &s.Ticker, &s.CompanyName, &s.Industry, &s.Sector, &s.CIK,
		&s.LastAnalysisDate, &s.CreatedAt, &s.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("stock %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		metrics.RecordDBError("select", "stocks")
		return nil, fmt.Errorf("failed to get stock %s: %w", ticker, err)
	}
	return &s, nil
}

// ListStocks returns every tracked stock ordered by ticker.
func (r *Repository) ListStocks(ctx context.Context) ([]models.Stock, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "stocks")

	rows, err := r.db.Query(ctx, `
		SELECT id, ticker, company_name, COALESCE(industry, ''), COALESCE(sector, ''), COALESCE(cik, ''),
			last_analysis_date, created_at, updated_at
		FROM stocks ORDER BY ticker
	`)
	if err != nil {
		metrics.RecordDBError("select", "stocks")
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []models.Stock
	for rows.Next() {
		var s models.Stock
		if err := rows.Scan(&s.ID, &s.Ticker, &s.CompanyName, &s.Industry, &s.Sector, &s.CIK,
			&s.LastAnalysisDate, &s.CreatedAt, &s.UpdatedAt); err != nil {
			metrics.RecordDBError("select", "stocks")
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}
