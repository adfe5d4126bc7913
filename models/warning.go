package models

import "strings"

// WarningSeverity is the prefix that tells downstream consumers how serious a warning is.
type WarningSeverity string

const (
	SeverityCritical    WarningSeverity = "CRITICAL"
	SeverityDataQuality WarningSeverity = "DATA QUALITY WARNING"
)

// DataQualityWarning is a single anomaly observed during one analysis run.
type DataQualityWarning struct {
	Severity WarningSeverity `json:"severity"`
	Message  string          `json:"message"`
}

// String renders the warning the way it is persisted and shown to the LLM.
func (w DataQualityWarning) String() string {
	return string(w.Severity) + ": " + w.Message
}

// DataQualityWarnings is an append-only, run-scoped list.
type DataQualityWarnings []DataQualityWarning

// Add appends a warning.
func (ws *DataQualityWarnings) Add(severity WarningSeverity, message string) {
	*ws = append(*ws, DataQualityWarning{Severity: severity, Message: message})
}

// HasCritical reports whether any CRITICAL warning was recorded.
func (ws DataQualityWarnings) HasCritical() bool {
	for _, w := range ws {
		if w.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// HasRevenueWarning reports whether a data quality warning concerns revenue.
func (ws DataQualityWarnings) HasRevenueWarning() bool {
	for _, w := range ws {
		if w.Severity == SeverityDataQuality && strings.Contains(strings.ToLower(w.Message), "revenue") {
			return true
		}
	}
	return false
}

// Strings returns the rendered warnings in order.
func (ws DataQualityWarnings) Strings() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.String())
	}
	return out
}
