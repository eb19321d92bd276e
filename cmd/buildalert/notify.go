package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/spf13/cobra"

	"buildalert/internal/config"
	"buildalert/internal/junit"
	"buildalert/internal/notifications/core"
	"buildalert/internal/notifications/opsgenie"
	"buildalert/internal/types"
)

// errNotDelivered makes the process exit non-zero after a failed outcome.
var errNotDelivered = errors.New("notification was not delivered")

// buildFlags are shared by every command that reads a snapshot.
type buildFlags struct {
	snapshot  string
	junit     []string
	overrides types.Overrides
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.snapshot, "snapshot", "", "Path to the build snapshot JSON file (required)")
	cmd.Flags().StringArrayVar(&f.junit, "junit", nil, "Glob of JUnit XML reports to attach as the test summary (repeatable)")
	cmd.Flags().StringVar(&f.overrides.APIKey, "api-key", "", "OpsGenie integration API key (overrides OPSGENIE_API_KEY)")
	cmd.Flags().StringVar(&f.overrides.APIURL, "api-url", "", "OpsGenie API host or URL (overrides OPSGENIE_API_URL)")
	cmd.Flags().StringVar(&f.overrides.Tags, "tags", "", "Comma separated alert tags")
	cmd.Flags().StringVar(&f.overrides.Teams, "teams", "", "Comma separated responder teams")
	cmd.Flags().StringVar(&f.overrides.Priority, "priority", "", "Priority of the finish alert (P1..P5)")
	cmd.Flags().StringVar(&f.overrides.BuildStartPriority, "build-start-priority", "", "Priority of the start alert (P1..P5)")
	_ = cmd.MarkFlagRequired("snapshot")
}

// load reads the snapshot, attaches any JUnit results and validates the
// whole input.
func (f *buildFlags) load() (*types.BuildSnapshot, error) {
	data, err := os.ReadFile(f.snapshot)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var build types.BuildSnapshot
	if err := json.Unmarshal(data, &build); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", f.snapshot, err)
	}

	if len(f.junit) > 0 {
		summary, err := junit.ParseFiles(f.junit)
		if err != nil {
			return nil, err
		}
		if summary != nil {
			if build.Tests == nil {
				build.Tests = summary
			} else {
				build.Tests.Merge(summary)
			}
		}
	}

	v := config.NewValidator()
	if err := v.Struct(&build); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	if err := v.Struct(&f.overrides); err != nil {
		return nil, fmt.Errorf("invalid overrides: %w", err)
	}
	return &build, nil
}

func newNotifyCmd(a *app, phase types.Phase) *cobra.Command {
	var flags buildFlags

	short := "Send the build-start notification"
	if phase == types.PhaseFinish {
		short = "Send the build-finish notification"
	}

	cmd := &cobra.Command{
		Use:   string(phase),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			logger := &slogAdapter{logger: newLogger(a.stderr, cfg.LogLevel)}

			build, err := flags.load()
			if err != nil {
				return err
			}

			notifier, err := a.newNotifier(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			out := notifier.Notify(cmd.Context(), phase, build, flags.overrides)
			if !out.Success {
				return errNotDelivered
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// newNotifier builds the Notifier for the CLI. Console output goes to stdout
// so it lands in the CI build log.
func (a *app) newNotifier(ctx context.Context, cfg *config.Config, logger types.Logger) (*opsgenie.Notifier, error) {
	console := types.WriterConsole{W: a.stdout}
	metrics := a.newMetrics(ctx, cfg, logger)

	if a.doer != nil {
		return opsgenie.NewNotifierWithClient(cfg, a.doer, metrics, console, logger), nil
	}
	return opsgenie.NewNotifier(cfg, metrics, console, logger)
}

// newMetrics returns CloudWatch metrics when enabled, otherwise a no-op.
// Failing to load AWS credentials never blocks the notification.
func (a *app) newMetrics(ctx context.Context, cfg *config.Config, logger types.Logger) core.NotificationMetrics {
	if !cfg.Observability.EnableMetrics {
		return core.NopMetrics{}
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Queue.Region))
	if err != nil {
		logger.Warn("metrics disabled: failed to load AWS config", "error", err.Error())
		return core.NopMetrics{}
	}
	return core.NewCloudWatchNotificationMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
}
