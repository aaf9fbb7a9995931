package outbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector defines the interface for collecting outbox metrics
type MetricsCollector interface {
	RecordEventProcessed(eventType string, success bool, duration time.Duration)
	RecordBatchProcessed(count int, duration time.Duration)
	RecordOutboxLag(lag int)
	RecordPublishAttempt(eventType string, attempt int, success bool)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordEventProcessed(eventType string, success bool, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordBatchProcessed(count int, duration time.Duration)                    {}
func (n *NoOpMetricsCollector) RecordOutboxLag(lag int)                                                   {}
func (n *NoOpMetricsCollector) RecordPublishAttempt(eventType string, attempt int, success bool)          {}

// CounterMetrics keeps in-process counters that the Prometheus exporter renders.
type CounterMetrics struct {
	published    atomic.Uint64
	failed       atomic.Uint64
	retries      atomic.Uint64
	batches      atomic.Uint64
	lag          atomic.Int64
	publishNanos atomic.Int64

	mu     sync.Mutex
	byType map[string]uint64
}

func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{byType: make(map[string]uint64)}
}

func (m *CounterMetrics) RecordEventProcessed(eventType string, success bool, duration time.Duration) {
	m.publishNanos.Add(int64(duration))
	if !success {
		m.failed.Add(1)
		return
	}
	m.published.Add(1)
	m.mu.Lock()
	m.byType[eventType]++
	m.mu.Unlock()
}

func (m *CounterMetrics) RecordBatchProcessed(count int, duration time.Duration) {
	m.batches.Add(1)
}

func (m *CounterMetrics) RecordOutboxLag(lag int) {
	m.lag.Store(int64(lag))
}

func (m *CounterMetrics) RecordPublishAttempt(eventType string, attempt int, success bool) {
	if attempt > 1 {
		m.retries.Add(1)
	}
}

// MetricsSnapshot is a point-in-time copy of CounterMetrics.
type MetricsSnapshot struct {
	Published       uint64
	Failed          uint64
	Retries         uint64
	Batches         uint64
	Lag             int64
	PublishDuration time.Duration
	PublishedByType map[string]uint64
}

func (m *CounterMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	byType := make(map[string]uint64, len(m.byType))
	for k, v := range m.byType {
		byType[k] = v
	}
	m.mu.Unlock()

	return MetricsSnapshot{
		Published:       m.published.Load(),
		Failed:          m.failed.Load(),
		Retries:         m.retries.Load(),
		Batches:         m.batches.Load(),
		Lag:             m.lag.Load(),
		PublishDuration: time.Duration(m.publishNanos.Load()),
		PublishedByType: byType,
	}
}

// MetricPublisher wraps a Publisher with metrics collection
type MetricPublisher struct {
	publisher Publisher
	metrics   MetricsCollector
}

func NewMetricPublisher(publisher Publisher, metrics MetricsCollector) *MetricPublisher {
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, event Event) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, event)

	p.metrics.RecordEventProcessed(event.EventType, err == nil, time.Since(start))
	return err
}
