package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"stock-analyzer/filings"
	"stock-analyzer/models"
	"stock-analyzer/observability"
)

// Chunking limits for section summarization, in characters
const (
	SummaryChunkSize     = 80000
	SummaryChunkOverlap  = 5000
	SummaryMaxConcatSize = 100000
)

const summarizerSystemPrompt = `You are a financial analyst reading SEC filings.
Summarize only what the supplied text states. Do not speculate and do not add
information that is not in the text.`

const qualitativeSystemPrompt = `You are an equity research analyst. Use only the
summaries you are given, be specific, and keep the analysis concise.`

// ErrNoFiling is returned when no 10-K could be located for a company.
var ErrNoFiling = errors.New("no 10-K filing found")

// FilingSource locates and downloads SEC filings
type FilingSource interface {
	LookupCIK(ctx context.Context, ticker string) (string, error)
	LatestFiling(ctx context.Context, cik string, forms ...string) (*Filing, error)
	FetchFilingText(ctx context.Context, filingURL string) (string, error)
}

type sectionSpec struct {
	key         string
	sourceKey   string
	name        string
	instruction string
}

var tenKSummaries = []sectionSpec{
	{
		key:       filings.SectionBusiness,
		sourceKey: "business",
		name:      "Business (Item 1)",
		instruction: "Summarize the company's core business operations, primary products/services, revenue generation model, " +
			"key customer segments, and primary markets. Highlight any recent strategic shifts mentioned.",
	},
	{
		key:       filings.SectionRiskFactors,
		sourceKey: "risk_factors",
		name:      "Risk Factors (Item 1A)",
		instruction: "Identify and summarize the 3-5 most significant and company-specific risk factors disclosed. " +
			"Focus on operational and strategic risks rather than generic market risks. Briefly explain the potential impact of each.",
	},
	{
		key:       filings.SectionMDA,
		sourceKey: "management_assessment",
		name:      "Management's Discussion and Analysis (Item 7)",
		instruction: "Summarize key insights into financial performance drivers (revenue, costs, profitability), financial condition " +
			"(liquidity, capital resources), and management's outlook or significant focus areas. " +
			"Note any discussion on margin pressures or segment performance changes.",
	},
}

// QualitativeAnalyst summarizes the latest 10-K and derives moat and industry views from it.
type QualitativeAnalyst struct {
	llm     LLMService
	filings FilingSource
}

// NewQualitativeAnalyst creates a new QualitativeAnalyst
func NewQualitativeAnalyst(llm LLMService, filings FilingSource) *QualitativeAnalyst {
	return &QualitativeAnalyst{llm: llm, filings: filings}
}

// Analyze fetches the newest 10-K (falling back to 10-K/A) for the company and
// summarizes it. A missing CIK or filing returns ErrNoFiling with empty summaries;
// individual LLM failures are recorded in the summaries rather than returned.
func (a *QualitativeAnalyst) Analyze(ctx context.Context, profile models.CompanyProfile) (models.QualitativeSummaries, error) {
	log := observability.WithSymbol(profile.Symbol)
	result := models.QualitativeSummaries{Sources: map[string]any{}}

	cik := profile.CIK
	if cik == "" {
		found, err := a.filings.LookupCIK(ctx, profile.Symbol)
		if err != nil {
			return result, fmt.Errorf("%w: CIK lookup for %s: %v", ErrNoFiling, profile.Symbol, err)
		}
		cik = found
	}

	filing, err := a.filings.LatestFiling(ctx, cik, "10-K", "10-K/A")
	if err != nil {
		return result, fmt.Errorf("%w for %s (CIK %s): %v", ErrNoFiling, profile.Symbol, cik, err)
	}
	result.Sources["10k_filing_url_used"] = filing.URL

	text, err := a.filings.FetchFilingText(ctx, filing.URL)
	if err != nil {
		return result, fmt.Errorf("failed to fetch 10-K text: %w", err)
	}
	log.Info("fetched 10-K", "form", filing.Form, "filing_date", filing.FilingDate, "length", len(text))

	sections := filings.ExtractSections(text, filings.TenKSections)
	company := companyLabel(profile)

	summaries := make([]string, len(tenKSummaries))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for i, spec := range tenKSummaries {
		section, ok := sections[spec.key]
		if !ok {
			log.Warn("10-K section not found", "section", spec.name)
			summaries[i] = models.SectionNotFound
			mu.Lock()
			result.Sources[spec.sourceKey+"_10k_source_length"] = 0
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(idx int, spec sectionSpec, section string) {
			defer wg.Done()
			summary, length := a.summarizeChunked(ctx, section, spec.name, spec.instruction, company)
			summaries[idx] = summary
			mu.Lock()
			result.Sources[spec.sourceKey+"_10k_source_length"] = length
			mu.Unlock()
		}(i, spec, section)
	}
	wg.Wait()

	result.BusinessSummary = summaries[0]
	result.RiskFactorsSummary = summaries[1]
	result.ManagementAssessmentSummary = summaries[2]

	business := usableOrEmpty(result.BusinessSummary)
	risks := usableOrEmpty(result.RiskFactorsSummary)
	mda := usableOrEmpty(result.ManagementAssessmentSummary)

	result.EconomicMoatSummary = a.analyzeMoat(ctx, company, business, risks)
	result.IndustryTrendsSummary = a.analyzeIndustry(ctx, company, profile, business, mda)

	log.Info("10-K qualitative summaries generated")
	return result, nil
}

func (a *QualitativeAnalyst) analyzeMoat(ctx context.Context, company, business, risks string) string {
	if business == "" && risks == "" {
		return models.MoatInsufficientInput
	}

	prompt := fmt.Sprintf(`Analyze the primary economic moats (e.g., brand strength, network effects, switching costs, intangible assets like patents/IP, cost advantages from scale/process) for %s, based on the following summaries from its 10-K:

Business Summary:
%s

Risk Factors Summary:
%s

Provide a concise analysis of its key economic moats. For each identified moat, briefly explain the evidence from the text and assess its perceived strength (e.g., Very Strong, Strong, Moderate, Weak). If certain moats are not strongly evident, state that.`,
		company, business, risks)

	response, err := a.llm.InvokeWithPrompt(ctx, qualitativeSystemPrompt, prompt)
	if err != nil || strings.TrimSpace(response) == "" {
		observability.Warn("economic moat analysis failed", "company", company, "error", err)
		return "AI analysis for economic moat failed or no input."
	}
	return response
}

func (a *QualitativeAnalyst) analyzeIndustry(ctx context.Context, company string, profile models.CompanyProfile, business, mda string) string {
	if business == "" {
		return models.IndustryInsufficientInput
	}

	prompt := fmt.Sprintf(`Based on the provided information for %s:

Company: %s
Industry: %s
Sector: %s

Business Summary (from 10-K):
%s

MD&A Highlights (from 10-K):
%s

Analyze key industry trends relevant to this company. Discuss significant opportunities and challenges within this industry context. How does the company appear to be positioned to capitalize on opportunities and mitigate challenges, based on its business summary and MD&A highlights? Be specific and use information from the text.`,
		company, company, orNotSpecified(profile.Industry), orNotSpecified(profile.Sector), business, mda)

	response, err := a.llm.InvokeWithPrompt(ctx, qualitativeSystemPrompt, prompt)
	if err != nil || strings.TrimSpace(response) == "" {
		observability.Warn("industry trends analysis failed", "company", company, "error", err)
		return "AI analysis for industry trends failed or no input."
	}
	return response
}

// summarizeChunked summarizes text directly when it fits in one request,
// otherwise summarizes overlapping chunks and, if their concatenation is still
// too long, summarizes the summaries. It returns the summary and the source
// length in characters.
func (a *QualitativeAnalyst) summarizeChunked(ctx context.Context, text, sectionName, instruction, company string) (string, int) {
	runes := []rune(text)
	length := len(runes)
	if strings.TrimSpace(text) == "" {
		return "No text provided for summarization.", 0
	}

	if length < SummaryMaxConcatSize {
		summary, err := a.summarize(ctx, text, fmt.Sprintf("%s for %s.", sectionName, company), instruction)
		if err != nil {
			observability.Warn("section summary failed", "section", sectionName, "error", err)
			return fmt.Sprintf("AI summary error or no content for '%s'.", sectionName), length
		}
		return summary, length
	}

	chunks := ChunkText(runes, SummaryChunkSize, SummaryChunkOverlap)
	observability.Info("summarizing section in chunks", "section", sectionName, "length", length, "chunks", len(chunks))

	chunkSummaries := make([]string, 0, len(chunks))
	failed := 0
	for i, chunk := range chunks {
		summary, err := a.summarize(ctx, chunk,
			fmt.Sprintf("This is chunk %d of %d from the '%s' section for %s.", i+1, len(chunks), sectionName, company),
			"Summarize this chunk. Focus on key facts and figures relevant to: "+instruction)
		if err != nil {
			failed++
			observability.Warn("chunk summary failed", "section", sectionName, "chunk", i+1, "error", err)
			summary = fmt.Sprintf("[AI error or no content for chunk %d of '%s']", i+1, sectionName)
		}
		chunkSummaries = append(chunkSummaries, summary)
	}
	if failed == len(chunks) {
		return fmt.Sprintf("Failed to generate summaries for any chunk of '%s'.", sectionName), length
	}

	joined := strings.Join(chunkSummaries, "\n\n---\n\n")
	if len([]rune(joined)) <= SummaryMaxConcatSize {
		return joined, length
	}

	final, err := a.summarize(ctx, joined,
		fmt.Sprintf("The following are collated summaries from different parts of the '%s' section for %s.", sectionName, company),
		fmt.Sprintf("Synthesize these individual chunk summaries into a single, cohesive overview of the '%s', maintaining factual accuracy and addressing the original goal: %s.", sectionName, instruction))
	if err != nil {
		observability.Warn("final summary pass failed", "section", sectionName, "error", err)
		return fmt.Sprintf("AI error in final summary pass for '%s'.", sectionName), length
	}
	return final, length
}

func (a *QualitativeAnalyst) summarize(ctx context.Context, text, framing, instruction string) (string, error) {
	prompt := fmt.Sprintf("Context: %s\n\nText to Analyze:\n\"\"\"\n%s\n\"\"\"\n\nInstructions: %s\n\n"+
		"Provide a concise and factual summary based on the text and guided by the context and instructions.",
		framing, text, instruction)

	response, err := a.llm.InvokeWithPrompt(ctx, summarizerSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(response) == "" {
		return "", errors.New("empty summary")
	}
	return response, nil
}

// ChunkText splits runes into chunks of at most size, each starting overlap
// characters before the previous chunk ended.
func ChunkText(runes []rune, size, overlap int) []string {
	if size <= 0 {
		return []string{string(runes)}
	}
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end >= len(runes) || overlap >= size {
			start = end
		} else {
			start = end - overlap
		}
	}
	return chunks
}

func companyLabel(p models.CompanyProfile) string {
	name := p.CompanyName
	if name == "" {
		name = p.Symbol
	}
	return fmt.Sprintf("%s (%s)", name, p.Symbol)
}

func usableOrEmpty(summary string) string {
	if !models.Usable(summary) {
		return ""
	}
	return summary
}

func orNotSpecified(s string) string {
	if s == "" {
		return "Not Specified"
	}
	return s
}
