// Package core holds the delivery plumbing shared by every buildalert
// entrypoint: outcome metrics and the SQS build-event publisher.
package core

import (
	"context"
	"time"

	"buildalert/internal/types"
)

// MetricResult categorizes a delivery outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
	// MetricDegraded marks a success decided by the non-empty-body fallback.
	MetricDegraded MetricResult = "degraded"
)

// NotificationMetrics abstracts CloudWatch/telemetry operations for the
// notification pipeline.
type NotificationMetrics interface {
	RecordDelivery(ctx context.Context, phase types.Phase, result MetricResult)
	RecordLatency(ctx context.Context, phase types.Phase, duration time.Duration)
	RecordQueueLag(ctx context.Context, lag time.Duration)
}

// NopMetrics discards all metrics. The CLI uses it unless ENABLE_METRICS is set.
type NopMetrics struct{}

var _ NotificationMetrics = NopMetrics{}

func (NopMetrics) RecordDelivery(context.Context, types.Phase, MetricResult) {}
func (NopMetrics) RecordLatency(context.Context, types.Phase, time.Duration) {}
func (NopMetrics) RecordQueueLag(context.Context, time.Duration)             {}
