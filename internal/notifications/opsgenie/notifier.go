package opsgenie

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"buildalert/internal/config"
	"buildalert/internal/external"
	"buildalert/internal/notifications/core"
	"buildalert/internal/transport"
	"buildalert/internal/types"
)

// Outcome is the result of one notification attempt.
type Outcome struct {
	EventID  string
	Phase    types.Phase
	Success  bool
	Response string
	// Errors lists every step that degraded, in pipeline order. A
	// successful outcome may still carry a response parse error.
	Errors []*types.AppError
}

// Err joins the recorded errors, or returns nil if there were none.
func (o Outcome) Err() error {
	if len(o.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(o.Errors))
	for i, e := range o.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Notifier runs the build -> serialize -> send -> verify pipeline for the
// start and finish of a build. It holds only configuration and the HTTP
// client. Each call produces exactly one document and at most one delivery
// attempt; the attempt is skipped only when an enabled breaker is open.
type Notifier struct {
	defaults config.OpsGenieConfig
	builder  *PayloadBuilder
	client   *Client
	metrics  core.NotificationMetrics
	console  types.Console
	logger   types.Logger
	clock    types.Clock
}

// NewNotifier creates a Notifier with the production HTTP stack: the
// configured proxy, the delivery timeout, and a circuit breaker owned by
// this Notifier.
func NewNotifier(
	cfg *config.Config,
	metrics core.NotificationMetrics,
	console types.Console,
	logger types.Logger,
) (*Notifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("opsgenie notifier: config is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("opsgenie notifier: logger is nil")
	}

	proxy, err := transport.NewProxySelector(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("opsgenie notifier: %w", err)
	}

	httpClient := transport.NewHTTPClient(cfg.OpsGenie.Timeout, proxy)
	settings := external.DefaultBreakerSettings("opsgenie")
	settings.Threshold = cfg.OpsGenie.BreakerThreshold
	base := external.NewBaseClient(httpClient, settings, cfg.OpsGenie.UserAgent)

	return NewNotifierWithClient(cfg, base, metrics, console, logger), nil
}

// NewNotifierWithClient creates a Notifier with a caller-supplied HTTP
// client. Tests use it to point delivery at an httptest server.
func NewNotifierWithClient(
	cfg *config.Config,
	doer Doer,
	metrics core.NotificationMetrics,
	console types.Console,
	logger types.Logger,
) *Notifier {
	if doer == nil {
		doer = http.DefaultClient
	}
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	if console == nil {
		console = types.NopConsole{}
	}
	return &Notifier{
		defaults: cfg.OpsGenie,
		builder:  NewPayloadBuilder(cfg.Jenkins),
		client:   NewClient(doer, console, logger),
		metrics:  metrics,
		console:  console,
		logger:   logger,
		clock:    types.RealClock{},
	}
}

// SetClock overrides the clock for testing.
func (n *Notifier) SetClock(c types.Clock) {
	n.clock = c
}

// NotifyBuildStart sends the pre-build notification.
func (n *Notifier) NotifyBuildStart(ctx context.Context, build *types.BuildSnapshot, overrides types.Overrides) Outcome {
	return n.Notify(ctx, types.PhaseStart, build, overrides)
}

// NotifyBuildFinish sends the post-build notification.
func (n *Notifier) NotifyBuildFinish(ctx context.Context, build *types.BuildSnapshot, overrides types.Overrides) Outcome {
	return n.Notify(ctx, types.PhaseFinish, build, overrides)
}

// Notify runs the pipeline for the given phase. It never returns an error;
// every failure is folded into the Outcome and logged.
func (n *Notifier) Notify(ctx context.Context, phase types.Phase, build *types.BuildSnapshot, overrides types.Overrides) Outcome {
	eventID := types.GetRequestID(ctx)
	if eventID == "" {
		eventID = uuid.NewString()
		ctx = types.WithRequestID(ctx, eventID)
	}
	log := n.logger.With("event_id", eventID, "phase", string(phase))
	started := n.clock.Now()

	out := Outcome{EventID: eventID, Phase: phase}

	props, ep := n.resolve(overrides, log)

	var payload Payload
	var buildErr *types.AppError
	switch phase {
	case types.PhaseStart:
		payload, buildErr = n.builder.BuildPreBuildPayload(build, props)
	case types.PhaseFinish:
		payload, buildErr = n.builder.BuildPostBuildPayload(build, props)
	default:
		buildErr = types.NewAppError(types.ErrCodeValidationInvalidPhase,
			fmt.Sprintf("unknown phase %q", phase), nil)
	}
	if buildErr != nil {
		log.Error("failed to build payload", "code", string(buildErr.Code), "error", buildErr.Error())
		out.Errors = append(out.Errors, buildErr)
		n.metrics.RecordDelivery(ctx, phase, core.MetricFailed)
		return out
	}

	body, serErr := Serialize(payload)
	if serErr != nil {
		// Degrade to an empty body and still attempt delivery.
		n.console.Println(serErr.Error())
		log.Error("failed to serialize payload", "error", serErr.Error())
		out.Errors = append(out.Errors, serErr)
	}

	raw, sendErr := n.client.Send(ctx, body, ep)
	out.Response = raw
	if sendErr != nil {
		out.Errors = append(out.Errors, sendErr)
	}

	verdict := Verify(raw)
	out.Success = verdict.Success

	result := core.MetricSuccess
	switch {
	case sendErr != nil:
		result = core.MetricFailed
	case verdict.Err == nil:
		n.console.Println("Sending job data to OpsGenie is done")
	case verdict.Err.Code == types.ErrCodeResponseRejected:
		n.console.Println("Response status is failed")
		log.Error("Response status is failed", "error", verdict.Err.Details["error"])
		out.Errors = append(out.Errors, verdict.Err)
		result = core.MetricFailed
	default:
		n.console.Println(verdict.Err.Error())
		log.Warn("could not parse opsgenie response", "error", verdict.Err.Error(), "success", verdict.Success)
		out.Errors = append(out.Errors, verdict.Err)
		result = core.MetricDegraded
		if !verdict.Success {
			result = core.MetricFailed
		}
	}

	n.metrics.RecordDelivery(ctx, phase, result)
	n.metrics.RecordLatency(ctx, phase, n.clock.Now().Sub(started))

	log.Info("notification processed",
		"project", build.ProjectName,
		"display_name", build.DisplayName,
		"success", out.Success,
		"result", string(result),
	)

	return out
}

// resolve merges per-call overrides with the configured defaults. Blank
// override fields fall back to the default; a non-blank priority that is not
// recognized resolves to no priority.
func (n *Notifier) resolve(o types.Overrides, log types.Logger) (types.AlertProperties, Endpoint) {
	props := types.AlertProperties{
		Tags:               firstNonBlank(o.Tags, n.defaults.Tags),
		Teams:              firstNonBlank(o.Teams, n.defaults.Teams),
		Priority:           n.resolvePriority(o.Priority, n.defaults.Priority, log),
		BuildStartPriority: n.resolvePriority(o.BuildStartPriority, n.defaults.BuildStartPriority, log),
	}

	ep := Endpoint{
		APIURL: firstNonBlank(o.APIURL, n.defaults.APIURL),
		APIKey: n.defaults.APIKey,
	}
	if !isBlank(o.APIKey) {
		ep.APIKey = types.SecretString(o.APIKey)
	}
	if ep.APIKey.IsEmpty() {
		log.Warn("opsgenie api key is empty; the integration will reject the notification")
	}

	return props, ep
}

func (n *Notifier) resolvePriority(override, fallback string, log types.Logger) types.AlertPriority {
	raw := firstNonBlank(override, fallback)
	p := types.ParsePriority(raw)
	if !p.IsSet() && !isBlank(raw) {
		log.Warn("ignoring unknown priority", "priority", raw)
	}
	return p
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if !isBlank(v) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
