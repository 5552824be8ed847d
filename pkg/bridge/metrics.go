package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

// MetricsCollector interface for collecting HTTP metrics
type MetricsCollector interface {
	IncRequestCounter(method, path string, status int)
	ObserveLatency(method, path string, duration time.Duration)
	IncActiveConnections()
	DecActiveConnections()
}

// DefaultMetricsCollector provides a simple metrics implementation
type DefaultMetricsCollector struct {
	requestCounter    map[string]int64
	latencyHistogram  map[string][]time.Duration
	activeConnections int64
	mu                sync.RWMutex
}

// NewDefaultMetricsCollector creates a new default metrics collector
func NewDefaultMetricsCollector() *DefaultMetricsCollector {
	return &DefaultMetricsCollector{
		requestCounter:   make(map[string]int64),
		latencyHistogram: make(map[string][]time.Duration),
	}
}

// IncRequestCounter increments the request counter
func (m *DefaultMetricsCollector) IncRequestCounter(method, path string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s_%s_%d", method, path, status)
	m.requestCounter[key]++
}

// ObserveLatency records request latency
func (m *DefaultMetricsCollector) ObserveLatency(method, path string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s_%s", method, path)
	m.latencyHistogram[key] = append(m.latencyHistogram[key], duration)
}

// IncActiveConnections increments active connection count
func (m *DefaultMetricsCollector) IncActiveConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeConnections++
}

// DecActiveConnections decrements active connection count
func (m *DefaultMetricsCollector) DecActiveConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeConnections--
}

// GetMetrics returns current metrics (for debugging/monitoring)
func (m *DefaultMetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.requestCounter))
	for k, v := range m.requestCounter {
		counters[k] = v
	}

	return map[string]interface{}{
		"request_counter":    counters,
		"active_connections": m.activeConnections,
		"latency_count":      len(m.latencyHistogram),
	}
}

// Metrics middleware collects HTTP request metrics
func Metrics(collector MetricsCollector) MiddlewareFunc {
	if collector == nil {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return next
		}
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()

			collector.IncActiveConnections()
			defer collector.DecActiveConnections()

			next(ctx)

			duration := time.Since(start)
			method := string(ctx.Method())
			path := string(ctx.Path())
			status := ctx.Response.StatusCode()

			collector.IncRequestCounter(method, path, status)
			collector.ObserveLatency(method, path, duration)
		}
	}
}
