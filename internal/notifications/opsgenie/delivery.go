package opsgenie

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"buildalert/internal/types"
)

// IntegrationPath is the fixed path of the OpsGenie Jenkins integration.
const IntegrationPath = "/v1/json/jenkins"

// contentType is what the integration has always been sent. The body is
// JSON regardless.
const contentType = "application/x-www-form-urlencoded"

// maxResponseBodyRead limits how much of a response body is buffered.
const maxResponseBodyRead = 1 << 20

// Endpoint is the resolved destination of one notification.
type Endpoint struct {
	// APIURL is a bare host ("api.eu.opsgenie.com") or an absolute URI
	// ("http://localhost:8080").
	APIURL string
	APIKey types.SecretString
}

// Doer executes HTTP requests. *external.BaseClient and *http.Client both
// satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client POSTs serialized payloads to OpsGenie.
type Client struct {
	http    Doer
	console types.Console
	logger  types.Logger
}

// NewClient creates a delivery client. Transport failures are reported to
// both the console and the logger.
func NewClient(doer Doer, console types.Console, logger types.Logger) *Client {
	if console == nil {
		console = types.NopConsole{}
	}
	return &Client{http: doer, console: console, logger: logger}
}

// ResolveURL builds {scheme}://{host}/v1/json/jenkins?apiKey={key}. An
// absolute APIURL contributes its scheme and host (port included) and drops
// any path; anything else is taken as a bare host reached over https.
func ResolveURL(ep Endpoint) (string, *types.AppError) {
	raw := strings.TrimSpace(ep.APIURL)
	if raw == "" {
		return "", types.NewAppError(types.ErrCodeDeliveryInvalidEndpoint, "api url is empty", nil)
	}

	// "localhost:8080" parses as scheme "localhost" with no host; treat it
	// as a bare host like any other non-absolute input.
	scheme, host := "https", raw
	if parsed, err := url.Parse(raw); err == nil && parsed.IsAbs() && parsed.Host != "" {
		scheme, host = parsed.Scheme, parsed.Host
	}
	if strings.ContainsAny(host, "/?# ") {
		return "", types.NewAppError(types.ErrCodeDeliveryInvalidEndpoint,
			fmt.Sprintf("api url %q is not a host or absolute URI", raw), nil)
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     IntegrationPath,
		RawQuery: url.Values{"apiKey": []string{ep.APIKey.Unmask()}}.Encode(),
	}
	return u.String(), nil
}

// Send POSTs body to the endpoint and returns the raw response body. The
// body is returned for every status code since OpsGenie reports rejections
// in it. On any failure before a response arrives, Send returns "" and a
// typed error.
func (c *Client) Send(ctx context.Context, body []byte, ep Endpoint) (string, *types.AppError) {
	target, appErr := ResolveURL(ep)
	if appErr != nil {
		c.reportFailure(appErr)
		return "", appErr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		appErr = types.NewAppError(types.ErrCodeDeliveryInvalidEndpoint, "failed to create request", err)
		c.reportFailure(appErr)
		return "", appErr
	}
	req.Header.Set("Content-Type", contentType)

	c.console.Println("Sending job data to OpsGenie...")

	resp, err := c.http.Do(req)
	if err != nil {
		redactURLError(err)
		appErr = asAppError(err, types.ErrCodeDeliveryTransport, "delivery request failed")
		c.reportFailure(appErr)
		return "", appErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
	if err != nil {
		appErr = types.NewAppError(types.ErrCodeDeliveryReadBody, "failed to read response body", err)
		c.reportFailure(appErr)
		return "", appErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("opsgenie returned non-2xx status",
			"status", resp.StatusCode,
			"host", req.URL.Host,
		)
	}

	return string(raw), nil
}

func (c *Client) reportFailure(appErr *types.AppError) {
	c.console.Println(appErr.Error())
	c.logger.Error("failed to send notification",
		"code", string(appErr.Code),
		"error", appErr.Error(),
	)
}

// redactURLError scrubs the api key from the request URL that net/http
// embeds in its errors.
func redactURLError(err error) {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return
	}
	u, parseErr := url.Parse(ue.URL)
	if parseErr != nil {
		ue.URL = "[unparseable url]"
		return
	}
	q := u.Query()
	if q.Has("apiKey") {
		q.Set("apiKey", "***REDACTED***")
		u.RawQuery = q.Encode()
	}
	ue.URL = u.String()
}

// asAppError keeps AppErrors produced further down (breaker, transport) and
// wraps anything else with the given code.
func asAppError(err error, code types.ErrorCode, msg string) *types.AppError {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return types.NewAppError(code, msg, err)
}
