// Package filings turns SEC filing documents into plain text and splits
// 10-K text into its narrative sections.
package filings

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// Section keys
const (
	SectionBusiness            = "business"
	SectionRiskFactors         = "risk_factors"
	SectionMDA                 = "mda"
	SectionFinancialStatements = "financial_statements"
)

// SectionHeader describes how a section is announced in a filing: an
// "Item N." heading, usually followed by the section title.
type SectionHeader struct {
	Key   string
	Item  string
	Title string
}

// TenKSections are the 10-K items the qualitative analysis reads.
var TenKSections = []SectionHeader{
	{Key: SectionBusiness, Item: "1", Title: "Business"},
	{Key: SectionRiskFactors, Item: "1A", Title: "Risk Factors"},
	{Key: SectionMDA, Item: "7", Title: "Management's Discussion and Analysis of Financial Condition and Results of Operations"},
	{Key: SectionFinancialStatements, Item: "8", Title: "Financial Statements and Supplementary Data"},
}

var (
	blockElements  = "p, div, br, tr, li, h1, h2, h3, h4, h5, h6, table, section, article"
	hiddenElements = "script, style, head, title, meta, link, noscript, ix\\:header, [style*='display:none'], [style*='display: none']"

	reInlineSpace = regexp.MustCompile(`[ \t\f\r\v]+`)
	reLineBreaks  = regexp.MustCompile(`\s*\n\s*`)
	reTOCLine     = regexp.MustCompile(`(?im)\btable\s+of\s+contents\b.*$`)
	rePageLine    = regexp.MustCompile(`(?im)^\s*(?:page\s+\d+|\d+|part\s+[ivxlcdm]+)\s*$`)
	reBlankRuns   = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText converts an HTML or plain-text filing into text with one
// block per line. Scripts, styles, the document head and hidden inline-XBRL
// headers are dropped.
func NormalizeText(document string) string {
	text := document
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(document)); err == nil {
		doc.Find(hiddenElements).Remove()
		doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
			s.AfterHtml("\n")
		})
		doc.Find("td, th").Each(func(_ int, s *goquery.Selection) {
			s.AfterHtml(" ")
		})
		text = doc.Text()
	}

	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)
	text = reInlineSpace.ReplaceAllString(text, " ")
	text = reLineBreaks.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

type headerMatch struct {
	key         string
	start       int
	endOfHeader int
}

// ExtractSections finds each header in the normalized text of document and
// returns the text between it and the next header of a different section.
// A section announced several times (table of contents, cross references)
// keeps its longest span. Sections that cannot be found are absent from the
// result.
func ExtractSections(document string, headers []SectionHeader) map[string]string {
	text := NormalizeText(document)
	sections := make(map[string]string)
	if text == "" || len(headers) == 0 {
		return sections
	}

	var matches []headerMatch
	for _, h := range headers {
		for _, re := range headerPatterns(h) {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				matches = append(matches, headerMatch{key: h.Key, start: loc[0], endOfHeader: loc[1]})
			}
		}
	}
	if len(matches) == 0 {
		return sections
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	for i, m := range matches {
		end := len(text)
		for _, next := range matches[i+1:] {
			if next.key != m.key {
				end = next.start
				break
			}
		}
		if end <= m.endOfHeader {
			continue
		}

		body := cleanSection(text[m.endOfHeader:end])
		if body == "" {
			continue
		}
		if len(body) > len(sections[m.key]) {
			sections[m.key] = body
		}
	}
	return sections
}

// headerPatterns builds the "Item N. Title" pattern and, when the header has
// a title, a pattern for the title alone on its own line.
func headerPatterns(h SectionHeader) []*regexp.Regexp {
	item := `(?i)item\s*` + regexp.QuoteMeta(h.Item) + `\.?\s*:?\s*`
	if h.Title == "" {
		return []*regexp.Regexp{regexp.MustCompile(item)}
	}
	title := titlePattern(h.Title)
	return []*regexp.Regexp{
		regexp.MustCompile(item + title),
		regexp.MustCompile(`(?im)^[ \t]*` + title + `[ \t]*$`),
	}
}

// titlePattern tolerates curly apostrophes and reflowed whitespace
func titlePattern(title string) string {
	p := regexp.QuoteMeta(title)
	p = strings.ReplaceAll(p, "'", `['’]`)
	return strings.Join(strings.Fields(p), `\s+`)
}

func cleanSection(s string) string {
	s = reTOCLine.ReplaceAllString(s, "")
	s = rePageLine.ReplaceAllString(s, "")
	s = reBlankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
