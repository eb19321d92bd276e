package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricDeliveryLatency = "DeliveryLatency"
	MetricQueueLag        = "BuildEventQueueLag"

	// Dimension Keys
	DimPhase  = "Phase"
	DimResult = "Result"

	// DefaultMetricNamespace is used when METRIC_NAMESPACE is unset.
	DefaultMetricNamespace = "BuildAlert"
)
