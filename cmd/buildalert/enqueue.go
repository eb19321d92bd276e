package main

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/spf13/cobra"

	"buildalert/internal/config"
	"buildalert/internal/notifications/core"
	"buildalert/internal/types"
)

func newEnqueueCmd(a *app) *cobra.Command {
	var (
		flags buildFlags
		phase string
	)

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a build notification for the notify worker",
		Long: `enqueue publishes the build snapshot to the SQS_BUILD_EVENTS queue. The
notify worker delivers it to OpsGenie asynchronously, so the build does not
wait on OpsGenie.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := types.Phase(phase)
			if p != types.PhaseStart && p != types.PhaseFinish {
				return fmt.Errorf("--phase must be %q or %q", types.PhaseStart, types.PhaseFinish)
			}

			cfg, err := a.loadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if cfg.Queue.BuildEventsURL == "" {
				return fmt.Errorf("SQS_BUILD_EVENTS is not set")
			}
			logger := &slogAdapter{logger: newLogger(a.stderr, cfg.LogLevel)}

			build, err := flags.load()
			if err != nil {
				return err
			}

			client, err := a.sqsClient(cmd, cfg.Queue)
			if err != nil {
				return err
			}

			publisher := core.NewBuildEventPublisher(client, cfg.Queue.BuildEventsURL, nil, logger)
			msg, err := publisher.Publish(cmd.Context(), types.BuildEventMessage{
				Phase:     p,
				Build:     *build,
				Overrides: flags.overrides,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "Queued OpsGenie notification %s\n", msg.EventID)
			return nil
		},
	}
	cmd.Flags().StringVar(&phase, "phase", "", "Notification phase: start or finish (required)")
	_ = cmd.MarkFlagRequired("phase")
	flags.register(cmd)
	return cmd
}

func (a *app) sqsClient(cmd *cobra.Command, q config.QueueConfig) (core.SQSSender, error) {
	if a.sqs != nil {
		return a.sqs, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(cmd.Context(), awsconfig.WithRegion(q.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if q.EndpointURL != "" {
			o.BaseEndpoint = aws.String(q.EndpointURL)
		}
	}), nil
}
