package analysis

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/guregu/null/v6"

	"stock-analyzer/models"
)

// Float returns the numeric value of field in rec, or absent when the field is
// missing, null, one of the provider "missing" sentinels, or not numeric.
func Float(rec models.Record, field string) null.Float {
	if rec == nil {
		return null.Float{}
	}
	return toFloat(rec[field])
}

// FloatOr is Float with a caller-supplied default for absent values.
func FloatOr(rec models.Record, field string, def float64) float64 {
	if v := Float(rec, field); v.Valid {
		return v.Float64
	}
	return def
}

// FieldAt reads field from the record at offset (0 is the newest period).
func FieldAt(records models.Records, field string, offset int) null.Float {
	if offset < 0 || len(records) <= offset {
		return null.Float{}
	}
	return Float(records[offset], field)
}

// FinnhubConcept scans the line items of reports[offset].report[section] and
// returns the value of the first item whose concept or label is accepted.
func FinnhubConcept(reports models.Records, section string, concepts []string, offset int) null.Float {
	if offset < 0 || len(reports) <= offset {
		return null.Float{}
	}
	report, ok := reports[offset]["report"].(map[string]any)
	if !ok {
		return null.Float{}
	}
	items, ok := report[section].([]any)
	if !ok {
		return null.Float{}
	}
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		concept, _ := item["concept"].(string)
		label, _ := item["label"].(string)
		if containsString(concepts, concept) || containsString(concepts, label) {
			return toFloat(item["value"])
		}
	}
	return null.Float{}
}

// toFloat converts a provider value to a float. NaN and infinities are absent.
func toFloat(v any) null.Float {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return null.Float{}
		}
		f = parsed
	case string:
		s := strings.TrimSpace(val)
		switch strings.ToLower(s) {
		case "", "none", "n/a", "-":
			return null.Float{}
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return null.Float{}
		}
		f = parsed
	default:
		return null.Float{}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return null.Float{}
	}
	return null.FloatFrom(f)
}

func containsString(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
