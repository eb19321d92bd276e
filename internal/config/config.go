// Package config defines the process configuration for buildalert.
// Configuration is loaded once at startup and is immutable thereafter; the
// resolved values are injected into the notifier rather than read from
// ambient global state at call time.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> *_FILE secret files (Lowest)
package config

import (
	"time"

	"buildalert/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"buildalert"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Domain Configurations
	OpsGenie      OpsGenieConfig
	Jenkins       JenkinsConfig
	Proxy         ProxyConfig
	Server        ServerConfig
	Queue         QueueConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// OpsGenieConfig holds the global alert defaults. Per-call overrides that are
// left blank fall back to these values.
type OpsGenieConfig struct {
	APIKey SecretString `envconfig:"OPSGENIE_API_KEY"`
	// APIURL is either a bare host ("api.eu.opsgenie.com") or an absolute URI.
	APIURL             string        `envconfig:"OPSGENIE_API_URL" default:"api.opsgenie.com" validate:"required"`
	Tags               string        `envconfig:"OPSGENIE_TAGS"`
	Teams              string        `envconfig:"OPSGENIE_TEAMS"`
	Priority           string        `envconfig:"OPSGENIE_PRIORITY" validate:"omitempty,priority"`
	BuildStartPriority string        `envconfig:"OPSGENIE_BUILD_START_PRIORITY" validate:"omitempty,priority"`
	Timeout            time.Duration `envconfig:"OPSGENIE_TIMEOUT" default:"30s" validate:"gt=0"`
	UserAgent          string        `envconfig:"OPSGENIE_USER_AGENT" default:"buildalert/1.0"`
	// BreakerThreshold is the number of consecutive transport failures that
	// opens the circuit breaker. Zero disables tripping. An open breaker skips
	// the delivery attempt, so only set it where the event can be redelivered.
	BreakerThreshold uint32 `envconfig:"OPSGENIE_BREAKER_THRESHOLD" default:"0"`
}

// JenkinsConfig describes the CI server the snapshots come from.
type JenkinsConfig struct {
	// RootURL is prefixed to the relative build URL, e.g. "https://ci.example.com/".
	RootURL string `envconfig:"JENKINS_URL" validate:"omitempty,url"`
	// TimeZone is used to render the "time" and "previousTime" payload fields.
	TimeZone string `envconfig:"BUILD_TIME_ZONE" default:"UTC" validate:"timezone"`
}

// Location resolves TimeZone, falling back to UTC. The value is validated at
// load time so the fallback only applies to hand-built configs.
func (c JenkinsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ProxyConfig is the process-wide outbound proxy. An empty Host disables it.
type ProxyConfig struct {
	Host string `envconfig:"HTTP_PROXY_HOST" validate:"omitempty,hostname_rfc1123|ip"`
	Port int    `envconfig:"HTTP_PROXY_PORT" validate:"required_with=Host,max=65535"`
	// NoProxyHosts are glob patterns ("*.internal", "localhost") for
	// destinations that bypass the proxy.
	NoProxyHosts []string `envconfig:"HTTP_NO_PROXY_HOSTS"`
}

// Enabled reports whether a proxy is configured.
func (c ProxyConfig) Enabled() bool {
	return c.Host != ""
}

// ServerConfig holds the relay HTTP server settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

// QueueConfig holds the SQS queue used for asynchronous delivery.
type QueueConfig struct {
	BuildEventsURL string `envconfig:"SQS_BUILD_EVENTS" validate:"omitempty,url"`
	Region         string `envconfig:"AWS_REGION" default:"us-east-1"`
	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"BuildAlert"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSecretResolution indicates a *_FILE secret could not be read.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
