package analysis

import "stock-analyzer/models"

// Output is everything one analysis run produces for a symbol.
type Output struct {
	Metrics  models.MetricSet
	DCF      models.DCFResult
	Warnings models.DataQualityWarnings
}

// Engine ties the calculator and DCF engine together. It performs no I/O and
// is deterministic for identical inputs and parameters.
type Engine struct {
	calculator *Calculator
	dcf        *DCFEngine
}

// NewEngine creates an Engine.
func NewEngine(p Params) *Engine {
	return &Engine{calculator: NewCalculator(p), dcf: NewDCFEngine(p)}
}

// Analyze computes the metric set, then the DCF valuation that depends on it.
func (e *Engine) Analyze(in Inputs) Output {
	warnings := models.DataQualityWarnings{}
	metrics := e.calculator.Calculate(in, &warnings)
	dcf := e.dcf.Value(in.Symbol, in.CashFlowAnnual, in.Profile, metrics, &warnings)
	return Output{Metrics: metrics, DCF: dcf, Warnings: warnings}
}
