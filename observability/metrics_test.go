package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}

	// Verify all metrics are initialized
	if m.AnalysisRequestsTotal == nil {
		t.Error("AnalysisRequestsTotal is nil")
	}
	if m.AnalysisDuration == nil {
		t.Error("AnalysisDuration is nil")
	}
	if m.AnalysisErrorsTotal == nil {
		t.Error("AnalysisErrorsTotal is nil")
	}
	if m.DataQualityWarnings == nil {
		t.Error("DataQualityWarnings is nil")
	}
	if m.DCFOutcomesTotal == nil {
		t.Error("DCFOutcomesTotal is nil")
	}
	if m.StageDuration == nil {
		t.Error("StageDuration is nil")
	}
	if m.StageErrorsTotal == nil {
		t.Error("StageErrorsTotal is nil")
	}
	if m.ExternalAPIRequestsTotal == nil {
		t.Error("ExternalAPIRequestsTotal is nil")
	}
	if m.ExternalAPIErrorsTotal == nil {
		t.Error("ExternalAPIErrorsTotal is nil")
	}
	if m.ExternalAPIDuration == nil {
		t.Error("ExternalAPIDuration is nil")
	}
	if m.CacheLookupsTotal == nil {
		t.Error("CacheLookupsTotal is nil")
	}
	if m.DBQueryDuration == nil {
		t.Error("DBQueryDuration is nil")
	}
	if m.DBQueryTotal == nil {
		t.Error("DBQueryTotal is nil")
	}
	if m.DBErrorsTotal == nil {
		t.Error("DBErrorsTotal is nil")
	}
	if m.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal is nil")
	}
	if m.HTTPRequestDuration == nil {
		t.Error("HTTPRequestDuration is nil")
	}
	if m.CircuitBreakerState == nil {
		t.Error("CircuitBreakerState is nil")
	}
	if m.CircuitBreakerTrips == nil {
		t.Error("CircuitBreakerTrips is nil")
	}
}

func TestRecordAnalysisRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordAnalysisRequest("AAPL")
	m.RecordAnalysisRequest("AAPL")
	m.RecordAnalysisRequest("MSFT")

	aaplCount := testutil.ToFloat64(m.AnalysisRequestsTotal.WithLabelValues("AAPL"))
	if aaplCount != 2 {
		t.Errorf("Expected AAPL count to be 2, got %f", aaplCount)
	}

	msftCount := testutil.ToFloat64(m.AnalysisRequestsTotal.WithLabelValues("MSFT"))
	if msftCount != 1 {
		t.Errorf("Expected MSFT count to be 1, got %f", msftCount)
	}
}

func TestRecordAnalysisError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordAnalysisError("AAPL", "fetch")
	m.RecordAnalysisError("AAPL", "fetch")
	m.RecordAnalysisError("AAPL", "persist")

	fetchErrors := testutil.ToFloat64(m.AnalysisErrorsTotal.WithLabelValues("AAPL", "fetch"))
	if fetchErrors != 2 {
		t.Errorf("Expected fetch error count to be 2, got %f", fetchErrors)
	}
}

func TestRecordDataQualityWarning(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordDataQualityWarning("CRITICAL")
	m.RecordDataQualityWarning("DATA QUALITY WARNING")
	m.RecordDataQualityWarning("DATA QUALITY WARNING")

	dq := testutil.ToFloat64(m.DataQualityWarnings.WithLabelValues("DATA QUALITY WARNING"))
	if dq != 2 {
		t.Errorf("Expected data quality warning count to be 2, got %f", dq)
	}
}

func TestRecordDCFOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordDCFOutcome("computed")
	m.RecordDCFOutcome("skipped")
	m.RecordDCFOutcome("computed")
	m.RecordDCFUpside(0.25)

	computed := testutil.ToFloat64(m.DCFOutcomesTotal.WithLabelValues("computed"))
	if computed != 2 {
		t.Errorf("Expected computed count to be 2, got %f", computed)
	}
	if n := testutil.CollectAndCount(m.DCFUpside); n != 1 {
		t.Errorf("Expected one upside histogram, got %d", n)
	}
}

func TestRecordStageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordStageDuration("fetch", 1500*time.Millisecond)
	m.RecordStageError("thesis", "llm")

	thesisErrors := testutil.ToFloat64(m.StageErrorsTotal.WithLabelValues("thesis", "llm"))
	if thesisErrors != 1 {
		t.Errorf("Expected thesis error count to be 1, got %f", thesisErrors)
	}
}

func TestRecordExternalAPIRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordExternalAPIRequest("fmp", "income-statement")
	m.RecordExternalAPIRequest("fmp", "income-statement")
	m.RecordExternalAPIRequest("finnhub", "profile2")

	fmpIncome := testutil.ToFloat64(m.ExternalAPIRequestsTotal.WithLabelValues("fmp", "income-statement"))
	if fmpIncome != 2 {
		t.Errorf("Expected fmp income-statement count to be 2, got %f", fmpIncome)
	}

	finnhubProfile := testutil.ToFloat64(m.ExternalAPIRequestsTotal.WithLabelValues("finnhub", "profile2"))
	if finnhubProfile != 1 {
		t.Errorf("Expected finnhub profile2 count to be 1, got %f", finnhubProfile)
	}
}

func TestRecordExternalAPIError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordExternalAPIError("gemini", "generate", "timeout")
	m.RecordExternalAPIError("alphavantage", "OVERVIEW", "rate_limit")

	geminiTimeout := testutil.ToFloat64(m.ExternalAPIErrorsTotal.WithLabelValues("gemini", "generate", "timeout"))
	if geminiTimeout != 1 {
		t.Errorf("Expected gemini timeout count to be 1, got %f", geminiTimeout)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordCacheLookup("fmp_income_annual", true)
	m.RecordCacheLookup("fmp_income_annual", false)
	m.RecordCacheLookup("fmp_income_annual", true)

	hits := testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("fmp_income_annual", "hit"))
	if hits != 2 {
		t.Errorf("Expected 2 cache hits, got %f", hits)
	}
	misses := testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("fmp_income_annual", "miss"))
	if misses != 1 {
		t.Errorf("Expected 1 cache miss, got %f", misses)
	}
}

func TestRecordDBQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordDBQuery("select", "stock_analyses", 10*time.Millisecond)
	m.RecordDBQuery("insert", "stock_analyses", 5*time.Millisecond)
	m.RecordDBQuery("select", "stocks", 8*time.Millisecond)

	selectAnalyses := testutil.ToFloat64(m.DBQueryTotal.WithLabelValues("select", "stock_analyses"))
	if selectAnalyses != 1 {
		t.Errorf("Expected select stock_analyses count to be 1, got %f", selectAnalyses)
	}
}

func TestRecordDBError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordDBError("select", "stock_analyses")
	m.RecordDBError("upsert", "stocks")

	selectError := testutil.ToFloat64(m.DBErrorsTotal.WithLabelValues("select", "stock_analyses"))
	if selectError != 1 {
		t.Errorf("Expected select error count to be 1, got %f", selectError)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordHTTPRequest("GET", "/api/health", "200", 10*time.Millisecond, 256)
	m.RecordHTTPRequest("POST", "/api/analyze", "202", 2*time.Second, 4096)
	m.RecordHTTPRequest("GET", "/api/stocks/{symbol}/analyses/latest", "404", 50*time.Millisecond, 128)

	healthOK := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/health", "200"))
	if healthOK != 1 {
		t.Errorf("Expected GET /api/health 200 count to be 1, got %f", healthOK)
	}

	notFound := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/stocks/{symbol}/analyses/latest", "404"))
	if notFound != 1 {
		t.Errorf("Expected latest analysis 404 count to be 1, got %f", notFound)
	}
}

func TestCircuitBreakerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SetCircuitBreakerState("fmp", 0)     // closed
	m.SetCircuitBreakerState("finnhub", 2) // open

	fmpState := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("fmp"))
	if fmpState != 0 {
		t.Errorf("Expected fmp state to be 0 (closed), got %f", fmpState)
	}

	finnhubState := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("finnhub"))
	if finnhubState != 2 {
		t.Errorf("Expected finnhub state to be 2 (open), got %f", finnhubState)
	}

	m.RecordCircuitBreakerTrip("fmp")
	m.RecordCircuitBreakerTrip("fmp")

	fmpTrips := testutil.ToFloat64(m.CircuitBreakerTrips.WithLabelValues("fmp"))
	if fmpTrips != 2 {
		t.Errorf("Expected fmp trips to be 2, got %f", fmpTrips)
	}
}

func TestTimer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	timer := m.NewTimer()
	if timer == nil {
		t.Fatal("NewTimer returned nil")
	}

	time.Sleep(10 * time.Millisecond)

	duration := timer.Duration()
	if duration < 10*time.Millisecond {
		t.Errorf("Expected duration to be at least 10ms, got %v", duration)
	}

	timer.ObserveAnalysis("AAPL", "success")

	timer2 := m.NewTimer()
	timer2.ObserveStage("qualitative")

	timer3 := m.NewTimer()
	timer3.ObserveExternalAPI("sec_edgar", "submissions")

	timer4 := m.NewTimer()
	timer4.ObserveDB("select", "stock_analyses")

	if n := testutil.CollectAndCount(m.StageDuration); n != 1 {
		t.Errorf("Expected one stage duration series, got %d", n)
	}
}

func TestGetMetrics_Singleton(t *testing.T) {
	original := globalMetrics
	defer func() { globalMetrics = original }()

	reg := prometheus.NewRegistry()
	testMetrics := NewMetrics(reg)
	globalMetrics = testMetrics

	m1 := GetMetrics()
	if m1 == nil {
		t.Fatal("GetMetrics returned nil")
	}

	m2 := GetMetrics()
	if m1 != m2 {
		t.Error("GetMetrics should return the same instance")
	}
}
