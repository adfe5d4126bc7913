package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
)

func TestNewStock(t *testing.T) {
	stock := NewStock(CompanyProfile{Symbol: "ACME", Industry: "Aerospace", CIK: "0000000042"})

	if stock.ID == uuid.Nil {
		t.Error("ID should be generated")
	}
	if stock.CompanyName != "ACME" {
		t.Errorf("CompanyName = %q, want ticker fallback", stock.CompanyName)
	}
	if stock.Industry != "Aerospace" || stock.CIK != "0000000042" {
		t.Errorf("profile fields not copied: %+v", stock)
	}
	if stock.LastAnalysisDate != nil {
		t.Error("LastAnalysisDate should be unset")
	}
}

func TestUsable(t *testing.T) {
	tests := []struct {
		summary string
		want    bool
	}{
		{"", false},
		{SectionNotFound, false},
		{MoatInsufficientInput, false},
		{IndustryInsufficientInput, false},
		{"AI analysis failed: timeout", false},
		{AIError, false},
		{CompetitorsNoPeers, false},
		{CompetitorsNoDistinct, false},
		{CompetitorsNoData, false},
		{CompetitorsAIFailed, false},
		{"Acme builds rockets.", true},
	}

	for _, tt := range tests {
		if got := Usable(tt.summary); got != tt.want {
			t.Errorf("Usable(%q) = %v, want %v", tt.summary, got, tt.want)
		}
	}
}

func TestNewStockAnalysis(t *testing.T) {
	stock := NewStock(CompanyProfile{Symbol: "ACME", CompanyName: "Acme Corp"})
	profile := CompanyProfile{Symbol: "ACME", Price: null.FloatFrom(50)}
	dcf := DCFResult{IntrinsicValue: null.FloatFrom(61.234567)}
	warnings := DataQualityWarnings{}
	warnings.Add(SeverityCritical, "test")

	a := NewStockAnalysis(stock, profile, NewMetricSet(), dcf, warnings)

	if a.StockID != stock.ID || a.Symbol != "ACME" {
		t.Errorf("stock linkage wrong: %+v", a)
	}
	if !a.CurrentPrice.Valid || a.CurrentPrice.Decimal.String() != "50" {
		t.Errorf("CurrentPrice = %v", a.CurrentPrice)
	}
	if !a.IntrinsicValue.Valid || a.IntrinsicValue.Decimal.String() != "61.2346" {
		t.Errorf("IntrinsicValue = %v", a.IntrinsicValue)
	}
	if len(a.Warnings) != 1 || a.Warnings[0] != "CRITICAL: test" {
		t.Errorf("Warnings = %v", a.Warnings)
	}
}

func TestNewStockAnalysis_NoValuation(t *testing.T) {
	stock := NewStock(CompanyProfile{Symbol: "ACME"})
	a := NewStockAnalysis(stock, CompanyProfile{}, NewMetricSet(), DCFResult{}, nil)

	if a.CurrentPrice.Valid || a.IntrinsicValue.Valid {
		t.Error("price and intrinsic value should be null")
	}
	if a.Warnings == nil {
		t.Error("Warnings should be an empty list, not nil")
	}
}
