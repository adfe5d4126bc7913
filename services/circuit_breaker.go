package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"stock-analyzer/observability"
)

// ErrServiceUnavailable is returned while a provider's breaker rejects calls
var ErrServiceUnavailable = errors.New("service unavailable")

// Circuit breaker names, one per upstream
const (
	BreakerFMP          = "fmp"
	BreakerAlphaVantage = "alphavantage"
	BreakerFinnhub      = "finnhub"
	BreakerEDGAR        = "sec_edgar"
	BreakerOpenAI       = "openai"
	BreakerBedrock      = "bedrock"
	BreakerGemini       = "gemini"
)

// CircuitBreakerConfig controls when a breaker opens and how it recovers
type CircuitBreakerConfig struct {
	MaxRequests  uint32        // trial requests allowed while half-open
	Interval     time.Duration // closed-state window after which counts reset
	Timeout      time.Duration // time spent open before probing again
	MinRequests  uint32        // requests in the window before the ratio is considered
	FailureRatio float64       // failure share that opens the breaker
}

// DefaultCircuitBreakerConfig applies to the market data providers and EDGAR
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests:  5,
	Interval:     1 * time.Minute,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.5,
}

// LLMCircuitBreakerConfig applies to the text synthesis backends. Calls are
// few and slow, so the breaker trips on fewer samples and stays open longer.
var LLMCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests:  1,
	Interval:     5 * time.Minute,
	Timeout:      2 * time.Minute,
	MinRequests:  3,
	FailureRatio: 0.6,
}

// CircuitBreakerRegistry owns one breaker per upstream, created on first use
type CircuitBreakerRegistry struct {
	mu        sync.RWMutex
	breakers  map[string]*gobreaker.CircuitBreaker[any]
	defaults  CircuitBreakerConfig
	overrides map[string]CircuitBreakerConfig
}

// NewCircuitBreakerRegistry creates a registry whose breakers use config unless overridden
func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers:  make(map[string]*gobreaker.CircuitBreaker[any]),
		defaults:  config,
		overrides: make(map[string]CircuitBreakerConfig),
	}
}

// Configure sets the config for one breaker. It has no effect once that breaker exists.
func (r *CircuitBreakerRegistry) Configure(name string, config CircuitBreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[name] = config
}

// GetBreaker returns (or creates) the breaker for name
func (r *CircuitBreakerRegistry) GetBreaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[name]; ok {
		return cb
	}

	config, ok := r.overrides[name]
	if !ok {
		config = r.defaults
	}
	cb = gobreaker.NewCircuitBreaker[any](breakerSettings(name, config))
	r.breakers[name] = cb
	return cb
}

func breakerSettings(name string, config CircuitBreakerConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())

			metrics := observability.GetMetrics()
			metrics.SetCircuitBreakerState(name, stateToInt(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}
		},
	}
}

// countsAsFailure reports whether err says something about the upstream's
// health. An uncovered symbol or a batch deadline cancelling the call does not.
func countsAsFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}

// Execute runs fn through the named breaker, translating rejections into ErrServiceUnavailable
func (r *CircuitBreakerRegistry) Execute(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	result, err := r.GetBreaker(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		observability.Warn("circuit breaker open, rejecting request", "breaker", name)
		return nil, fmt.Errorf("%w: %s circuit breaker open", ErrServiceUnavailable, name)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.Warn("circuit breaker half-open, rejecting request", "breaker", name)
		return nil, fmt.Errorf("%w: %s is recovering, too many requests", ErrServiceUnavailable, name)
	}
	return result, err
}

// CircuitBreakerStatus is the health view of one breaker
type CircuitBreakerStatus struct {
	Name                 string `json:"name"`
	State                string `json:"state"`
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

// Status returns the state of every breaker created so far
func (r *CircuitBreakerRegistry) Status() map[string]CircuitBreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]CircuitBreakerStatus, len(r.breakers))
	for name, cb := range r.breakers {
		counts := cb.Counts()
		status[name] = CircuitBreakerStatus{
			Name:                 name,
			State:                cb.State().String(),
			Requests:             counts.Requests,
			TotalSuccesses:       counts.TotalSuccesses,
			TotalFailures:        counts.TotalFailures,
			ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
			ConsecutiveFailures:  counts.ConsecutiveFailures,
		}
	}
	return status
}

// OpenBreakers returns the sorted names of breakers currently rejecting calls
func (r *CircuitBreakerRegistry) OpenBreakers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []string
	for name, cb := range r.breakers {
		if cb.State() == gobreaker.StateOpen {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

var (
	globalRegistry *CircuitBreakerRegistry
	registryOnce   sync.Once
)

// GetGlobalRegistry returns the process-wide registry, with the LLM backends
// on LLMCircuitBreakerConfig.
func GetGlobalRegistry() *CircuitBreakerRegistry {
	registryOnce.Do(func() {
		if globalRegistry == nil {
			globalRegistry = newProviderRegistry()
		}
	})
	return globalRegistry
}

func newProviderRegistry() *CircuitBreakerRegistry {
	r := NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
	for _, name := range []string{BreakerOpenAI, BreakerBedrock, BreakerGemini} {
		r.Configure(name, LLMCircuitBreakerConfig)
	}
	return r
}

// SetGlobalRegistry replaces the process-wide registry. Tests only.
func SetGlobalRegistry(r *CircuitBreakerRegistry) {
	registryOnce.Do(func() {})
	globalRegistry = r
}

// WithCircuitBreaker runs fn through the named breaker of the global registry
func WithCircuitBreaker[T any](ctx context.Context, name string, fn func() (T, error)) (T, error) {
	result, err := GetGlobalRegistry().Execute(ctx, name, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// stateToInt maps a breaker state to the gauge value: 0 closed, 1 half-open, 2 open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
