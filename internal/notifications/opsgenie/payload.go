// Package opsgenie builds, delivers and verifies the build notifications
// consumed by the OpsGenie Jenkins integration.
//
// A notification is one flat JSON document POSTed to
// {scheme}://{host}/v1/json/jenkins?apiKey=KEY. The pipeline is
// build -> serialize -> send -> verify, and every step degrades instead of
// failing the caller: missing build data is omitted, and serialization,
// transport and parse failures are folded into the Outcome.
package opsgenie

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/hako/durafmt"

	"buildalert/internal/config"
	"buildalert/internal/types"
)

// Payload is the flat document sent to OpsGenie. Values are either string
// or []string. Keys are serialized in sorted order.
type Payload map[string]any

// javaDateLayout renders timestamps the way the integration has always
// received them, e.g. "Tue Mar 05 14:03:07 UTC 2024".
const javaDateLayout = "Mon Jan 02 15:04:05 MST 2006"

const noChangesText = "No changes.\n\n"

// PayloadBuilder turns BuildSnapshots into Payloads. It holds only
// configuration and is safe for concurrent use.
type PayloadBuilder struct {
	rootURL  string
	location *time.Location
}

// NewPayloadBuilder creates a builder that prefixes build URLs with the
// Jenkins root URL and renders times in the configured zone.
func NewPayloadBuilder(cfg config.JenkinsConfig) *PayloadBuilder {
	return &PayloadBuilder{
		rootURL:  cfg.RootURL,
		location: cfg.Location(),
	}
}

// BuildMandatoryFields returns the eight fields present in every
// notification. The snapshot must not be nil.
func (b *PayloadBuilder) BuildMandatoryFields(s *types.BuildSnapshot, props types.AlertProperties) Payload {
	status := string(s.Result)
	if !s.Result.IsResolved() {
		status = string(types.ResultSuccess)
	}

	return Payload{
		"time":              b.formatTime(s.StartTime),
		"projectName":       s.ProjectName,
		"displayName":       s.DisplayName,
		"status":            status,
		"url":               b.rootURL + s.URL,
		"tags":              SplitCommaList(props.Tags),
		"teams":             SplitCommaList(props.Teams),
		"startTimeInMillis": strconv.FormatInt(s.StartTimeMillis(), 10),
	}
}

// BuildPreBuildPayload assembles the notification sent when a build starts.
func (b *PayloadBuilder) BuildPreBuildPayload(s *types.BuildSnapshot, props types.AlertProperties) (Payload, *types.AppError) {
	if s == nil {
		return nil, errSnapshotMissing()
	}

	p := b.BuildMandatoryFields(s, props)
	p["isPreBuild"] = "true"
	if props.BuildStartPriority.IsSet() {
		p["priority"] = string(props.BuildStartPriority)
	}
	return p, nil
}

// BuildPostBuildPayload assembles the notification sent when a build
// finishes. Optional sub-data is added only when the snapshot carries it.
func (b *PayloadBuilder) BuildPostBuildPayload(s *types.BuildSnapshot, props types.AlertProperties) (Payload, *types.AppError) {
	if s == nil {
		return nil, errSnapshotMissing()
	}

	p := b.BuildMandatoryFields(s, props)
	p["isPreBuild"] = "false"
	p["duration"] = FormatDuration(s.Duration())

	scm := s.Kind.HasSCMData()
	broken := s.Result.IsBroken()

	if scm {
		p["params"] = formatParams(s.Variables)
	} else {
		p["params"] = ""
	}

	if scm && broken && len(s.Culprits) > 0 {
		p["culprits"] = formatCulprits(s.Culprits)
	}

	if s.Tests != nil {
		p["passedTestCount"] = strconv.Itoa(s.Tests.PassCount())
		p["failedTestCount"] = strconv.Itoa(s.Tests.FailCount)
		p["skippedTestCount"] = strconv.Itoa(s.Tests.SkipCount)
		if broken {
			p["failedTests"] = formatFailedTests(s.Tests.FailedTests)
		}
	}

	if scm {
		p["commitList"] = formatCommitList(s.ChangeLog)
	}

	if prev := s.Previous; prev != nil {
		p["previousDisplayName"] = prev.DisplayName
		p["previousTime"] = b.formatTime(prev.StartTime)
		if prev.Result.IsResolved() {
			p["previousStatus"] = string(prev.Result)
		}
		if prev.ProjectName != "" {
			p["previousProjectName"] = prev.ProjectName
		}
	}

	if props.Priority.IsSet() {
		p["priority"] = string(props.Priority)
	}

	return p, nil
}

// Serialize renders the payload as pretty-printed JSON with two-space
// indentation. Build text such as "<b>" or "a & b" is written as is rather
// than as \u003c escapes. On failure it returns an empty body alongside the
// error so the caller can still attempt delivery.
func Serialize(p Payload) ([]byte, *types.AppError) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return []byte{}, types.NewAppError(types.ErrCodeBuildSerialization, "failed to serialize payload", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// SplitCommaList trims s, splits it on commas and trims every token. Empty
// tokens are dropped, so a blank string yields an empty (non-nil) slice.
func SplitCommaList(s string) []string {
	out := []string{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// FormatDuration renders an elapsed time using its two most significant
// units, e.g. "3 hours 25 minutes". Durations of a second or more are
// truncated to whole seconds.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d >= time.Second {
		d = d.Truncate(time.Second)
	} else {
		d = d.Truncate(time.Millisecond)
	}
	return durafmt.Parse(d).LimitFirstN(2).String()
}

func (b *PayloadBuilder) formatTime(t time.Time) string {
	return t.In(b.location).Format(javaDateLayout)
}

func formatCulprits(culprits []string) string {
	var sb strings.Builder
	for _, c := range culprits {
		sb.WriteString(c)
		sb.WriteString(",")
	}
	return sb.String()
}

func formatFailedTests(tests []types.FailedTest) string {
	var sb strings.Builder
	for _, t := range tests {
		sb.WriteString("<strong>")
		sb.WriteString(t.FullName)
		sb.WriteString("</strong>\n")
		if strings.TrimSpace(t.ErrorDetails) != "" {
			sb.WriteString(t.ErrorDetails)
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func formatCommitList(entries []types.ChangeLogEntry) string {
	if len(entries) == 0 {
		return noChangesText
	}
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Message)
		sb.WriteString(" - <strong>")
		sb.WriteString(e.Author)
		sb.WriteString("</strong><br>\n")
	}
	return sb.String()
}

func formatParams(vars []types.BuildVariable) string {
	var sb strings.Builder
	for _, v := range vars {
		sb.WriteString(v.Key)
		sb.WriteString(" -> ")
		sb.WriteString(v.Value)
		sb.WriteString("\n")
	}
	return sb.String()
}

func errSnapshotMissing() *types.AppError {
	return types.NewAppError(types.ErrCodeBuildSnapshotMissing, "build snapshot is nil", nil)
}
