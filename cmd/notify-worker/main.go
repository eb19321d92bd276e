// Package main is the entrypoint for the Notify Worker Lambda function.
//
// The worker consumes BuildEventMessages from the build-events SQS queue
// (published by `buildalert enqueue`) and runs each one through the OpsGenie
// notifier, exactly as the CLI would inline.
//
// Cold Start (main):
//  1. Initialize structured logger.
//  2. Load configuration and AWS SDK configuration.
//  3. Initialize CloudWatch metrics.
//  4. Initialize the Notifier (proxy-aware HTTP client, circuit breaker).
//  5. Register handler and call lambda.Start.
//
// Per record:
//  1. Unmarshal the BuildEventMessage. Malformed bodies are logged and
//     acknowledged; redelivery cannot fix them.
//  2. Record queue lag from the SentTimestamp attribute.
//  3. Notify with the event ID as the correlation ID.
//  4. A transport failure or an open breaker is reported as a batch item
//     failure so SQS redelivers the record. Every other outcome is final.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"buildalert/internal/config"
	"buildalert/internal/notifications/core"
	"buildalert/internal/notifications/opsgenie"
	"buildalert/internal/types"
)

// slogAdapter wraps *slog.Logger to implement types.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// BuildNotifier runs one notification. *opsgenie.Notifier satisfies it.
type BuildNotifier interface {
	Notify(ctx context.Context, phase types.Phase, build *types.BuildSnapshot, overrides types.Overrides) opsgenie.Outcome
}

// Handler holds the dependencies for the notify worker Lambda handler.
type Handler struct {
	notifier BuildNotifier
	metrics  core.NotificationMetrics
	logger   types.Logger
	clock    types.Clock
}

// Handle processes an SQS batch. Records are handled sequentially; failures
// that redelivery may fix are returned as partial batch failures.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.Error("failed to process SQS message",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var msg types.BuildEventMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		h.logger.Error("failed to unmarshal build event",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	if sent, ok := record.Attributes["SentTimestamp"]; ok {
		if sentAt, err := parseMillisTimestamp(sent); err == nil {
			h.metrics.RecordQueueLag(ctx, h.clock.Now().Sub(sentAt))
		}
	}

	if msg.EventID != "" {
		ctx = types.WithRequestID(ctx, msg.EventID)
	}

	out := h.notifier.Notify(ctx, msg.Phase, &msg.Build, msg.Overrides)
	if retryable(out) {
		return fmt.Errorf("delivery of %s failed: %w", out.EventID, out.Err())
	}
	return nil
}

// retryable reports whether the outcome failed before OpsGenie saw the
// request. A rejection or a build error will not change on redelivery.
func retryable(out opsgenie.Outcome) bool {
	if out.Success {
		return false
	}
	for _, e := range out.Errors {
		switch e.Code {
		case types.ErrCodeDeliveryTransport, types.ErrCodeDeliveryCircuitOpen:
			return true
		}
	}
	return false
}

// parseMillisTimestamp parses the SQS SentTimestamp attribute.
func parseMillisTimestamp(ms string) (time.Time, error) {
	millis, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis), nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logger.Info("Notify Worker Lambda initializing (cold start)")

	typedLogger := &slogAdapter{logger: logger}

	cfg, err := config.LoadConfig(config.NewFileProvider())
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Queue.Region))
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	var metrics core.NotificationMetrics = core.NopMetrics{}
	if cfg.Observability.EnableMetrics {
		metrics = core.NewCloudWatchNotificationMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, typedLogger)
	}

	notifier, err := opsgenie.NewNotifier(cfg, metrics, types.LoggerConsole{Logger: typedLogger}, typedLogger)
	if err != nil {
		logger.Error("Failed to create notifier", "error", err)
		os.Exit(1)
	}

	handler := &Handler{
		notifier: notifier,
		metrics:  metrics,
		logger:   typedLogger,
		clock:    types.RealClock{},
	}

	logger.Info("Notify Worker Lambda initialized",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"metric_namespace", cfg.Observability.MetricNamespace,
		"metrics_enabled", cfg.Observability.EnableMetrics,
		"opsgenie_timeout", cfg.OpsGenie.Timeout.String(),
	)

	lambda.Start(handler.Handle)
}

// Compile-time assertion that slogAdapter implements types.Logger.
var _ types.Logger = (*slogAdapter)(nil)
