package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// GatewayMetrics instruments REST calls against the backend.
type GatewayMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewGatewayMetrics builds instruments from the global meter provider.
func NewGatewayMetrics() *GatewayMetrics {
	meter := otel.Meter("gateway")
	m := new(GatewayMetrics)
	m.requests, _ = meter.Int64Counter(MetricGatewayRequests,
		metric.WithDescription("Number of REST requests issued to the backend"),
		metric.WithUnit("{request}"))
	m.duration, _ = meter.Float64Histogram(MetricGatewayRequestDuration,
		metric.WithDescription("Latency of REST requests issued to the backend"),
		metric.WithUnit("ms"))
	return m
}

// Record registers one request outcome. errorType is empty on success.
func (m *GatewayMetrics) Record(ctx context.Context, operation, errorType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := OperationResultAttributes(operation, ResultSuccess)
	if errorType != "" {
		attrs = ErrorAttributes(operation, errorType)
	}
	if m.requests != nil {
		m.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attrs...))
	}
}

// RealtimeMetrics instruments the realtime order channel.
type RealtimeMetrics struct {
	received    metric.Int64Counter
	dropped     metric.Int64Counter
	reconnects  metric.Int64Counter
	subscribers metric.Int64UpDownCounter
}

// NewRealtimeMetrics builds instruments from the global meter provider.
func NewRealtimeMetrics() *RealtimeMetrics {
	meter := otel.Meter("realtime")
	m := new(RealtimeMetrics)
	m.received, _ = meter.Int64Counter(MetricRealtimeEventsReceived,
		metric.WithDescription("Number of order events received from the socket"),
		metric.WithUnit("{event}"))
	m.dropped, _ = meter.Int64Counter(MetricRealtimeEventsDropped,
		metric.WithDescription("Number of order events dropped due to subscriber backpressure"),
		metric.WithUnit("{event}"))
	m.reconnects, _ = meter.Int64Counter(MetricRealtimeReconnects,
		metric.WithDescription("Number of socket connection attempts after the first"),
		metric.WithUnit("{attempt}"))
	m.subscribers, _ = meter.Int64UpDownCounter(MetricRealtimeSubscribers,
		metric.WithDescription("Number of active order event subscribers"),
		metric.WithUnit("{subscriber}"))
	return m
}

// Received counts a decoded event.
func (m *RealtimeMetrics) Received(ctx context.Context, eventType string) {
	if m == nil || m.received == nil {
		return
	}
	m.received.Add(ctx, 1, metric.WithAttributes(AttrEnvironment.String(Environment()), AttrEventType.String(eventType)))
}

// Dropped counts an event a subscriber could not take.
func (m *RealtimeMetrics) Dropped(ctx context.Context, eventType string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Add(ctx, 1, metric.WithAttributes(AttrEnvironment.String(Environment()), AttrEventType.String(eventType)))
}

// Reconnect counts a reconnection attempt.
func (m *RealtimeMetrics) Reconnect(ctx context.Context, state string) {
	if m == nil || m.reconnects == nil {
		return
	}
	m.reconnects.Add(ctx, 1, metric.WithAttributes(AttrEnvironment.String(Environment()), AttrConnectionState.String(state)))
}

// Subscribers adjusts the active subscriber gauge.
func (m *RealtimeMetrics) Subscribers(ctx context.Context, delta int64) {
	if m == nil || m.subscribers == nil {
		return
	}
	m.subscribers.Add(ctx, delta, metric.WithAttributes(AttrEnvironment.String(Environment())))
}

// DashboardMetrics instruments dashboard recomputation.
type DashboardMetrics struct {
	duration metric.Float64Histogram
}

// NewDashboardMetrics builds instruments from the global meter provider.
func NewDashboardMetrics() *DashboardMetrics {
	meter := otel.Meter("dashboard")
	m := new(DashboardMetrics)
	m.duration, _ = meter.Float64Histogram(MetricDashboardAggregateDuration,
		metric.WithDescription("Time spent recomputing dashboard aggregates"),
		metric.WithUnit("ms"))
	return m
}

// Aggregated records one recomputation for period.
func (m *DashboardMetrics) Aggregated(ctx context.Context, period string, elapsed time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000,
		metric.WithAttributes(AttrEnvironment.String(Environment()), AttrPeriod.String(period)))
}
