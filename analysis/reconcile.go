package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/guregu/null/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"stock-analyzer/models"
	"stock-analyzer/observability"
)

// ErrNoReports is returned by a feed read when the provider returned no rows.
var ErrNoReports = errors.New("no quarterly reports")

// FinnhubRevenueConcepts are the XBRL concepts and labels accepted as revenue.
var FinnhubRevenueConcepts = []string{
	"Revenues",
	"RevenueFromContractWithCustomerExcludingAssessedTax",
	"TotalRevenues",
	"NetSales",
}

// RevenueAccessor reads quarterly revenue at offset from a provider's rows.
type RevenueAccessor func(reports models.Records, offset int) null.Float

// QuarterlyFeed is one provider's quarterly income statements, newest first.
type QuarterlyFeed struct {
	Source  string
	Label   string
	Reports models.Records
	Err     error
	Revenue RevenueAccessor
}

// FMPQuarterlyFeed wraps FMP quarterly income statements.
func FMPQuarterlyFeed(reports models.Records, err error) QuarterlyFeed {
	return QuarterlyFeed{
		Source:  SourceFMPQuarterly,
		Label:   "FMP",
		Reports: reports,
		Err:     err,
		Revenue: fieldAccessor("revenue"),
	}
}

// AlphaVantageQuarterlyFeed wraps Alpha Vantage quarterlyReports.
func AlphaVantageQuarterlyFeed(reports models.Records, err error) QuarterlyFeed {
	return QuarterlyFeed{
		Source:  SourceAlphaVantageQuarterly,
		Label:   "AlphaVantage",
		Reports: reports,
		Err:     err,
		Revenue: fieldAccessor("totalRevenue"),
	}
}

// FinnhubQuarterlyFeed wraps Finnhub financials-reported data.
func FinnhubQuarterlyFeed(reports models.Records, err error) QuarterlyFeed {
	return QuarterlyFeed{
		Source:  SourceFinnhubQuarterly,
		Label:   "Finnhub",
		Reports: reports,
		Err:     err,
		Revenue: func(reports models.Records, offset int) null.Float {
			return FinnhubConcept(reports, "ic", FinnhubRevenueConcepts, offset)
		},
	}
}

func fieldAccessor(field string) RevenueAccessor {
	return func(reports models.Records, offset int) null.Float {
		return FieldAt(reports, field, offset)
	}
}

// FeedResult is the outcome of reading one feed.
type FeedResult struct {
	Latest   null.Float
	Previous null.Float
	History  []float64
	Err      error
}

// OK reports whether the read produced a latest value.
func (p FeedResult) OK() bool {
	return p.Err == nil && p.Latest.Valid
}

// Read returns the latest and previous quarter plus up to depth history points.
func (f QuarterlyFeed) Read(depth int) FeedResult {
	if f.Err != nil {
		return FeedResult{Err: f.Err}
	}
	if len(f.Reports) == 0 {
		return FeedResult{Err: ErrNoReports}
	}
	if f.Revenue == nil {
		return FeedResult{Err: fmt.Errorf("no revenue accessor for %s", f.Source)}
	}

	res := FeedResult{
		Latest:   f.Revenue(f.Reports, 0),
		Previous: f.Revenue(f.Reports, 1),
	}
	n := min(len(f.Reports), depth)
	for i := 0; i < n; i++ {
		if v := f.Revenue(f.Reports, i); v.Valid {
			res.History = append(res.History, v.Float64)
		}
	}
	return res
}

// RevenueReconciliation is the reconciled quarterly revenue picture.
type RevenueReconciliation struct {
	Latest            null.Float
	Previous          null.Float
	Source            null.String
	HistoricalAverage null.Float
}

// RevenueReconciler picks quarterly revenue from the first provider in
// priority order that has it and sanity-checks it against that provider's history.
type RevenueReconciler struct {
	priority  []string
	threshold float64
	depth     int
	printer   *message.Printer
}

// NewRevenueReconciler creates a reconciler from engine parameters.
func NewRevenueReconciler(p Params) *RevenueReconciler {
	depth := p.RevenueHistory
	if depth <= 0 {
		depth = 5
	}
	return &RevenueReconciler{
		priority:  p.RevenuePriority,
		threshold: p.DeviationThreshold,
		depth:     depth,
		printer:   message.NewPrinter(language.English),
	}
}

// Reconcile walks the feeds in priority order. Failed or empty feeds are logged
// and skipped. Warnings are appended to warnings.
func (r *RevenueReconciler) Reconcile(symbol string, feeds []QuarterlyFeed, warnings *models.DataQualityWarnings) RevenueReconciliation {
	bySource := make(map[string]QuarterlyFeed, len(feeds))
	for _, f := range feeds {
		bySource[f.Source] = f
	}

	var out RevenueReconciliation
	var history []float64
	for _, key := range r.priority {
		feed, ok := bySource[key]
		if !ok {
			continue
		}
		reading := feed.Read(r.depth)
		if reading.Err != nil {
			if !errors.Is(reading.Err, ErrNoReports) {
				observability.Warn("quarterly revenue read failed", "symbol", symbol, "source", key, "error", reading.Err)
			}
			continue
		}
		if !reading.Latest.Valid {
			continue
		}
		out.Latest = reading.Latest
		out.Previous = reading.Previous
		out.Source = null.StringFrom(feed.Label)
		history = reading.History
		break
	}

	if !out.Latest.Valid {
		observability.Error("could not determine latest quarterly revenue", "symbol", symbol)
		warnings.Add(models.SeverityCritical, "Latest quarterly revenue could not be determined.")
		return out
	}

	out.HistoricalAverage = r.checkDeviation(symbol, out, history, warnings)
	observability.Info("reconciled quarterly revenue", "symbol", symbol, "source", out.Source.String, "revenue", out.Latest.Float64)
	return out
}

func (r *RevenueReconciler) checkDeviation(symbol string, rec RevenueReconciliation, history []float64, warnings *models.DataQualityWarnings) null.Float {
	points := make([]float64, 0, len(history))
	for _, h := range history {
		if h > 0 {
			points = append(points, h)
		}
	}
	if len(points) > 1 && points[0] == rec.Latest.Float64 {
		points = points[1:]
	}
	if len(points) < 2 {
		observability.Debug("not enough quarterly revenue history for sanity check", "symbol", symbol, "points", len(points))
		return null.Float{}
	}

	var sum float64
	for _, p := range points {
		sum += p
	}
	avg := sum / float64(len(points))

	deviation := math.Abs(rec.Latest.Float64-avg) / avg
	if deviation > r.threshold {
		msg := fmt.Sprintf("Latest quarterly revenue (%s from %s) deviates by %.2f%% from avg of recent historical quarters (%s). Review data accuracy.",
			r.printer.Sprintf("%.0f", rec.Latest.Float64), rec.Source.String, deviation*100, r.printer.Sprintf("%.0f", avg))
		observability.Warn("quarterly revenue deviates from history", "symbol", symbol, "deviation", deviation)
		warnings.Add(models.SeverityDataQuality, msg)
	}
	return null.FloatFrom(avg)
}
