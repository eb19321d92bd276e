// Package main is the buildalert CLI. CI jobs call it at the start and end of
// a build to raise an OpsGenie alert for the build, or to hand the event to
// the notify worker via SQS.
//
//	buildalert start  --snapshot build.json
//	buildalert finish --snapshot build.json --junit 'target/surefire-reports/*.xml'
//	buildalert enqueue --phase finish --snapshot build.json
//
// Configuration comes from the environment (see internal/config). Console
// lines meant for the build log go to stdout; structured logs go to stderr.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"buildalert/internal/config"
	"buildalert/internal/notifications/core"
	"buildalert/internal/notifications/opsgenie"
	"buildalert/internal/types"
)

// slogAdapter wraps *slog.Logger to implement types.Logger. slog.Logger.With
// returns *slog.Logger rather than types.Logger, so an adapter is needed.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

var _ types.Logger = (*slogAdapter)(nil)

// app holds the process-level dependencies. Tests replace the outbound
// clients and the config loader.
type app struct {
	stdout io.Writer
	stderr io.Writer

	loadConfig func() (*config.Config, error)
	// doer, when set, replaces the production OpsGenie HTTP stack.
	doer opsgenie.Doer
	// sqs, when set, replaces the SQS client built from the AWS config.
	sqs core.SQSSender
}

func newApp() *app {
	return &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		loadConfig: func() (*config.Config, error) {
			return config.LoadConfig(config.NewFileProvider())
		},
	}
}

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "buildalert",
		Short: "Send CI build notifications to OpsGenie",
		Long: `buildalert posts a JSON description of a CI build to the OpsGenie
Jenkins integration when the build starts and when it finishes.

Alert defaults (API key, tags, teams, priorities) come from the environment
and may be overridden per invocation with flags.`,
		Version:      config.NewBuildInfo().String(),
		SilenceUsage: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.AddCommand(
		newNotifyCmd(a, types.PhaseStart),
		newNotifyCmd(a, types.PhaseFinish),
		newEnqueueCmd(a),
		newVersionCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := config.NewBuildInfo()
			fmt.Fprintf(a.stdout, "buildalert version: %s\n", info.Version)
			fmt.Fprintf(a.stdout, "  git commit: %s\n", info.Commit)
			fmt.Fprintf(a.stdout, "  build time: %s\n", info.BuildTime)
		},
	}
}

// newLogger builds the JSON logger at the configured level.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
