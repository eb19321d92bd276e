package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"buildalert/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// BuildEventPublisher hands build events to the notify worker through SQS.
// Each message carries exactly one notification; nothing is batched.
type BuildEventPublisher struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   types.Logger
}

// NewBuildEventPublisher creates a publisher targeting the build-events queue.
func NewBuildEventPublisher(client SQSSender, queueURL string, clock types.Clock, logger types.Logger) *BuildEventPublisher {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &BuildEventPublisher{
		client:   client,
		queueURL: queueURL,
		clock:    clock,
		logger:   logger,
	}
}

// Publish stamps the message with an event ID (if missing) and the enqueue
// time, then sends it. The stamped message is returned so callers can log
// the event ID.
func (p *BuildEventPublisher) Publish(ctx context.Context, msg types.BuildEventMessage) (types.BuildEventMessage, error) {
	if msg.Phase != types.PhaseStart && msg.Phase != types.PhaseFinish {
		return msg, types.NewAppError(types.ErrCodeValidationInvalidPhase,
			fmt.Sprintf("unknown phase %q", msg.Phase), nil)
	}
	if msg.EventID == "" {
		msg.EventID = uuid.NewString()
	}
	msg.EnqueuedAt = p.clock.Now()

	body, err := json.Marshal(msg)
	if err != nil {
		return msg, fmt.Errorf("build event publisher: failed to marshal message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return msg, types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to send message to %s", p.queueURL), err)
	}

	p.logger.Info("build event published",
		"event_id", msg.EventID,
		"phase", string(msg.Phase),
		"project", msg.Build.ProjectName,
		"display_name", msg.Build.DisplayName,
	)

	return msg, nil
}
