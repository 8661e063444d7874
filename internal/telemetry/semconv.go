package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys shared by client metrics.
const (
	AttrEnvironment     = attribute.Key("environment")
	AttrOperation       = attribute.Key("operation")
	AttrResult          = attribute.Key("result")
	AttrErrorType       = attribute.Key("error.type")
	AttrEventType       = attribute.Key("event.type")
	AttrOrderStatus     = attribute.Key("order.status")
	AttrConnectionState = attribute.Key("connection.state")
	AttrPeriod          = attribute.Key("dashboard.period")
)

// Result values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metric names.
const (
	MetricGatewayRequests            = "gateway.requests"
	MetricGatewayRequestDuration     = "gateway.request.duration"
	MetricRealtimeEventsReceived     = "realtime.events.received"
	MetricRealtimeEventsDropped      = "realtime.events.dropped"
	MetricRealtimeReconnects         = "realtime.reconnects"
	MetricRealtimeSubscribers        = "realtime.subscribers"
	MetricDashboardAggregateDuration = "dashboard.aggregate.duration"
)

// OperationResultAttributes returns the standard attribute set for an operation outcome.
func OperationResultAttributes(operation, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(Environment()),
		AttrOperation.String(operation),
		AttrResult.String(result),
	}
}

// ErrorAttributes extends an outcome with the error classification.
func ErrorAttributes(operation, errorType string) []attribute.KeyValue {
	return append(OperationResultAttributes(operation, ResultError), AttrErrorType.String(errorType))
}
