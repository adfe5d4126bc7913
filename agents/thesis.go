package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"stock-analyzer/models"
	"stock-analyzer/observability"

	"github.com/guregu/null/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const thesisSystemPrompt = `You are a senior equity analyst writing an investment thesis.
Weigh valuation, financial health, growth, competitive position and risks.
Treat every data quality warning as a limit on how confident you can be.`

const thesisInstructions = `Instructions for AI: Based on ALL the above information (quantitative, qualitative, DCF, and data quality warnings), provide a detailed financial analysis and investment thesis. Structure your response *EXACTLY* as follows, using these specific headings on separate lines:

Investment Thesis:
[Comprehensive thesis (2-4 paragraphs) synthesizing all data. Discuss positives, negatives, outlook. If revenue growth is stagnant/negative but EPS growth is positive, explain the drivers (e.g., buybacks, margin expansion) and sustainability. Address any points on margin pressures or changes in segment profitability.]

Investment Decision:
[Choose ONE: Strong Buy, Buy, Hold, Monitor, Reduce, Sell, Avoid. Base this on the overall analysis.]

Strategy Type:
[Choose ONE that best fits: Value, GARP (Growth At a Reasonable Price), Growth, Income, Speculative, Special Situation, Turnaround.]

Confidence Level:
[Choose ONE: High, Medium, Low. This reflects confidence in YOUR analysis and decision, considering data quality and completeness.]

Key Reasoning Points:
[3-7 bullet points. Each point should be a concise summary of a key factor supporting your decision. Cover: Valuation, Financial Health & Profitability, Growth Prospects (Revenue & EPS), Economic Moat, Key Risks (including data quality issues if significant), Management & Strategy (if inferable).]
`

// Defaults for thesis fields the response did not supply
const (
	defaultThesisText    = "AI response not fully processed or 'Investment Thesis:' section missing."
	defaultDecision      = "Review AI Output"
	defaultNotSpecified  = "Not Specified by AI"
	defaultReasoningText = "AI response not fully processed or 'Key Reasoning Points:' section missing."
)

// Summaries longer than this are truncated in the thesis prompt
const qualitativePromptLimit = 500

var amountPrinter = message.NewPrinter(language.English)

// ThesisInput is everything the thesis prompt draws on.
type ThesisInput struct {
	Profile     models.CompanyProfile
	Metrics     models.MetricSet
	DCF         models.DCFResult
	Qualitative models.QualitativeSummaries
	Competitors models.CompetitorAnalysis
	Warnings    models.DataQualityWarnings
}

// ThesisAnalyst synthesizes an investment thesis from the quantitative and qualitative results.
type ThesisAnalyst struct {
	llm LLMService
}

// NewThesisAnalyst creates a new ThesisAnalyst
func NewThesisAnalyst(llm LLMService) *ThesisAnalyst {
	return &ThesisAnalyst{llm: llm}
}

// Analyze prompts the model, parses the structured response and downgrades
// the stated confidence when the data is known to be unreliable. Model
// failures are reported through the thesis fields, never as an error.
func (a *ThesisAnalyst) Analyze(ctx context.Context, in ThesisInput) models.Thesis {
	log := observability.WithSymbol(in.Profile.Symbol)

	response, err := a.llm.InvokeWithPrompt(ctx, thesisSystemPrompt, BuildThesisPrompt(in))
	var thesis models.Thesis
	if err != nil {
		log.Error("thesis generation failed", "error", err)
		thesis = errorThesis("Error: " + err.Error())
	} else {
		thesis = ParseThesis(response)
	}

	if adjusted := AdjustConfidence(thesis.Confidence, in.Warnings); adjusted != thesis.Confidence {
		log.Warn("downgrading confidence due to data quality warnings", "from", thesis.Confidence, "to", adjusted)
		thesis.Confidence = adjusted
	}

	log.Info("generated thesis",
		"decision", thesis.Decision,
		"strategy", thesis.StrategyType,
		"confidence", thesis.Confidence)
	return thesis
}

type promptMetric struct {
	label string
	value null.Float
	kind  metricFormat
}

type metricFormat int

const (
	formatRatio metricFormat = iota
	formatPercent
	formatAmount
)

// BuildThesisPrompt renders the company, metrics, DCF, summaries and numbered
// warnings into the thesis prompt.
func BuildThesisPrompt(in ThesisInput) string {
	m := in.Metrics
	var b strings.Builder

	name := in.Profile.CompanyName
	if name == "" {
		name = in.Profile.Symbol
	}
	fmt.Fprintf(&b, "Company: %s (%s)\nIndustry: %s, Sector: %s\n\n", name, in.Profile.Symbol,
		orNA(in.Profile.Industry), orNA(in.Profile.Sector))

	b.WriteString("Key Financial Metrics & Data:\n")
	metrics := []promptMetric{
		{"P/E Ratio", m.Get(models.MetricPERatio), formatRatio},
		{"P/B Ratio", m.Get(models.MetricPBRatio), formatRatio},
		{"P/S Ratio", m.Get(models.MetricPSRatio), formatRatio},
		{"Dividend Yield", m.Get(models.MetricDividendYield), formatPercent},
		{"ROE", m.Get(models.MetricROE), formatPercent},
		{"ROIC", m.Get(models.MetricROIC), formatPercent},
		{"Debt-to-Equity", m.Get(models.MetricDebtToEquity), formatRatio},
		{"Debt-to-EBITDA", m.Get(models.MetricDebtToEBITDA), formatRatio},
		{"Revenue Growth YoY", m.Get(models.MetricRevenueGrowthYoY), formatPercent},
		{"Revenue Growth QoQ", m.Get(models.MetricRevenueGrowthQoQ), formatPercent},
		{fmt.Sprintf("Latest Quarterly Revenue (Source: %s)", m.Snapshot.QRevenueSource), m.Snapshot.LatestQRevenue, formatAmount},
		{"EPS Growth YoY", m.Get(models.MetricEPSGrowthYoY), formatPercent},
		{"Net Profit Margin", m.Get(models.MetricNetProfitMargin), formatPercent},
		{"Operating Profit Margin", m.Get(models.MetricOperatingProfitMargin), formatPercent},
		{"Free Cash Flow Yield", m.Get(models.MetricFCFYield), formatPercent},
	}
	for _, pm := range metrics {
		if !pm.value.Valid {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", pm.label, formatMetric(pm.value.Float64, pm.kind))
	}
	fmt.Fprintf(&b, "- FCF Trend (3yr): %s\n", m.FreeCashFlowTrend)
	fmt.Fprintf(&b, "- Retained Earnings Trend (3yr): %s\n", m.RetainedEarningsTrend)

	if in.Profile.Price.Valid {
		fmt.Fprintf(&b, "- Current Stock Price: %.2f\n", in.Profile.Price.Float64)
	}
	if in.DCF.IntrinsicValue.Valid {
		fmt.Fprintf(&b, "- DCF Intrinsic Value/Share (Base Case): %.2f\n", in.DCF.IntrinsicValue.Float64)
	}
	if in.DCF.UpsidePercentage.Valid {
		fmt.Fprintf(&b, "- DCF Upside/Downside (Base Case): %s\n", formatMetric(in.DCF.UpsidePercentage.Float64, formatPercent))
	}
	if sens := in.DCF.Assumptions.SensitivityAnalysis; len(sens) > 0 {
		b.WriteString("- DCF Sensitivity Highlights:\n")
		for i, s := range sens {
			if i == 2 {
				break
			}
			upside := "N/A"
			if s.Upside.Valid {
				upside = formatMetric(s.Upside.Float64, formatPercent)
			}
			fmt.Fprintf(&b, "  - %s: IV %.2f (Upside: %s)\n", s.Scenario, s.IntrinsicValue, upside)
		}
	}

	b.WriteString("\nQualitative Summaries (from 10-K & AI analysis):\n")
	q := in.Qualitative
	summaries := []struct{ label, text string }{
		{"Business Model", q.BusinessSummary},
		{"Economic Moat", q.EconomicMoatSummary},
		{"Industry Trends & Positioning", q.IndustryTrendsSummary},
		{"Competitive Landscape", in.Competitors.Summary},
		{"Management Discussion Highlights (MD&A)", q.ManagementAssessmentSummary},
		{"Key Risk Factors (from 10-K)", q.RiskFactorsSummary},
	}
	for _, s := range summaries {
		switch {
		case models.Usable(s.text):
			fmt.Fprintf(&b, "- %s:\n%s...\n\n", s.label, truncateSummary(s.text))
		case s.text != "":
			fmt.Fprintf(&b, "- %s: %s\n\n", s.label, s.text)
		}
	}

	if len(in.Warnings) > 0 {
		b.WriteString("IMPORTANT DATA QUALITY CONSIDERATIONS:\n")
		for i, w := range in.Warnings {
			fmt.Fprintf(&b, "- WARNING %d: %s\n", i+1, w.String())
		}
		b.WriteString("Acknowledge these warnings in your risk assessment or confidence level.\n\n")
	}

	b.WriteString(thesisInstructions)
	return b.String()
}

func formatMetric(v float64, kind metricFormat) string {
	switch kind {
	case formatPercent:
		return fmt.Sprintf("%.2f%%", v*100)
	case formatAmount:
		return amountPrinter.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func truncateSummary(s string) string {
	runes := []rune(s)
	if len(runes) > qualitativePromptLimit {
		runes = runes[:qualitativePromptLimit]
	}
	return strings.TrimSpace(strings.ReplaceAll(string(runes), "...", ""))
}

var thesisHeaders = []struct {
	name  string
	field func(*models.Thesis) *string
	multi bool
}{
	{"Investment Thesis", func(t *models.Thesis) *string { return &t.InvestmentThesis }, true},
	{"Investment Decision", func(t *models.Thesis) *string { return &t.Decision }, false},
	{"Strategy Type", func(t *models.Thesis) *string { return &t.StrategyType }, false},
	{"Confidence Level", func(t *models.Thesis) *string { return &t.Confidence }, false},
	{"Key Reasoning Points", func(t *models.Thesis) *string { return &t.Reasoning }, true},
}

var reThesisHeader = regexp.MustCompile(`(?im)^[ \t]*(Investment Thesis|Investment Decision|Strategy Type|Confidence Level|Key Reasoning Points)[ \t]*:`)

// ParseThesis extracts the five headed sections from a model response.
// Headers are matched case-insensitively at the start of a line; decision,
// strategy and confidence keep only their first line. A response with no
// recognizable header is kept whole as the thesis.
func ParseThesis(response string) models.Thesis {
	text := strings.TrimSpace(strings.ReplaceAll(response, "\r\n", "\n"))
	if text == "" || strings.HasPrefix(text, "Error:") {
		if text == "" {
			text = "Error: Empty response from AI for thesis."
		}
		return errorThesis(text)
	}

	thesis := models.Thesis{
		InvestmentThesis: defaultThesisText,
		Decision:         defaultDecision,
		StrategyType:     defaultNotSpecified,
		Confidence:       defaultNotSpecified,
		Reasoning:        defaultReasoningText,
	}

	locs := reThesisHeader.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		observability.Warn("could not parse thesis sections, keeping full response")
		thesis.InvestmentThesis = text
		return thesis
	}

	seen := make(map[string]bool)
	for i, loc := range locs {
		header := strings.ToLower(text[loc[2]:loc[3]])
		if seen[header] {
			continue
		}
		seen[header] = true

		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		content := strings.TrimSpace(text[loc[1]:end])

		for _, h := range thesisHeaders {
			if strings.ToLower(h.name) != header {
				continue
			}
			field := h.field(&thesis)
			switch {
			case content == "":
				*field = fmt.Sprintf("'%s:' section found but content empty.", h.name)
			case h.multi:
				*field = content
			default:
				*field = strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
			}
		}
	}
	return thesis
}

func errorThesis(message string) models.Thesis {
	return models.Thesis{
		InvestmentThesis: message,
		Decision:         models.AIError,
		StrategyType:     models.AIError,
		Confidence:       models.AIError,
		Reasoning:        message,
	}
}

// AdjustConfidence lowers High to Medium and Medium to Low when a CRITICAL
// warning or a revenue data quality warning was raised. Other values pass
// through unchanged.
func AdjustConfidence(confidence string, warnings models.DataQualityWarnings) string {
	if !warnings.HasCritical() && !warnings.HasRevenueWarning() {
		return confidence
	}
	switch strings.ToLower(strings.TrimSpace(confidence)) {
	case "high":
		return models.ConfidenceMedium
	case "medium":
		return models.ConfidenceLow
	default:
		return confidence
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
