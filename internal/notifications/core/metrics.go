package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"buildalert/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchNotificationMetrics emits delivery metrics to AWS CloudWatch.
//
// Metrics emitted:
//   - DeliveryAttempt: Dims {Phase, Result} -- on every notification outcome
//   - DeliveryLatency: Dims {Phase} -- time from payload build to verdict
//   - BuildEventQueueLag: No dims -- time between enqueue and worker pickup
//
// Metric failures are logged and never affect the notification outcome.
type CloudWatchNotificationMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

var _ NotificationMetrics = (*CloudWatchNotificationMetrics)(nil)

// NewCloudWatchNotificationMetrics creates a new CloudWatchNotificationMetrics
// that publishes to the given namespace (types.DefaultMetricNamespace if empty).
func NewCloudWatchNotificationMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchNotificationMetrics {
	if namespace == "" {
		namespace = types.DefaultMetricNamespace
	}
	return &CloudWatchNotificationMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDelivery emits a DeliveryAttempt metric with Phase and Result dimensions.
//
//	Metric: DeliveryAttempt, Dims: {Phase: "finish", Result: "success"}
func (m *CloudWatchNotificationMetrics) RecordDelivery(ctx context.Context, phase types.Phase, result MetricResult) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricDeliveryAttempt),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(types.DimPhase),
						Value: aws.String(string(phase)),
					},
					{
						Name:  aws.String(types.DimResult),
						Value: aws.String(string(result)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record delivery metric",
			"error", err.Error(),
			"phase", string(phase),
			"result", string(result),
		)
	}
}

// RecordLatency emits a DeliveryLatency metric with the Phase dimension.
// Duration is recorded in milliseconds.
func (m *CloudWatchNotificationMetrics) RecordLatency(ctx context.Context, phase types.Phase, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricDeliveryLatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(types.DimPhase),
						Value: aws.String(string(phase)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record latency metric",
			"error", err.Error(),
			"phase", string(phase),
			"duration_ms", duration.Milliseconds(),
		)
	}
}

// RecordQueueLag emits a metric tracking the time between a CI job
// enqueueing a build event and the worker starting to process it.
func (m *CloudWatchNotificationMetrics) RecordQueueLag(ctx context.Context, lag time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricQueueLag),
				Value:      aws.Float64(float64(lag.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record queue lag metric",
			"error", err.Error(),
			"lag_ms", lag.Milliseconds(),
		)
	}
}
