package types

import "strings"

// BuildResult is the completion state reported by the CI server.
// The zero value means the result is not yet known (build still running).
type BuildResult string

const (
	ResultUnresolved BuildResult = ""
	ResultSuccess    BuildResult = "SUCCESS"
	ResultUnstable   BuildResult = "UNSTABLE"
	ResultFailure    BuildResult = "FAILURE"
	ResultAborted    BuildResult = "ABORTED"
	ResultNotBuilt   BuildResult = "NOT_BUILT"
)

// IsResolved reports whether the build has a final result.
func (r BuildResult) IsResolved() bool {
	return r != ResultUnresolved
}

// IsBroken reports whether the result warrants culprit and failed-test details.
func (r BuildResult) IsBroken() bool {
	return r == ResultFailure || r == ResultUnstable
}

// BuildKind distinguishes freestyle/matrix builds from pipeline runs.
type BuildKind string

const (
	// KindLegacy builds carry SCM change sets, culprits and build variables.
	KindLegacy BuildKind = "legacy"
	// KindPipeline runs expose none of those directly.
	KindPipeline BuildKind = "pipeline"
)

// HasSCMData reports whether builds of this kind expose culprits, change sets
// and build variables. Unknown kinds are treated as legacy builds.
func (k BuildKind) HasSCMData() bool {
	return k != KindPipeline
}

// Phase identifies which notification variant is being sent.
type Phase string

const (
	PhaseStart  Phase = "start"
	PhaseFinish Phase = "finish"
)

// AlertPriority is an OpsGenie alert urgency level.
type AlertPriority string

const (
	PriorityNone AlertPriority = ""
	PriorityP1   AlertPriority = "P1"
	PriorityP2   AlertPriority = "P2"
	PriorityP3   AlertPriority = "P3"
	PriorityP4   AlertPriority = "P4"
	PriorityP5   AlertPriority = "P5"
)

var priorityDisplayNames = map[AlertPriority]string{
	PriorityP1: "Critical",
	PriorityP2: "High",
	PriorityP3: "Moderate",
	PriorityP4: "Low",
	PriorityP5: "Informational",
}

// Priorities lists the valid priorities in descending urgency.
var Priorities = []AlertPriority{PriorityP1, PriorityP2, PriorityP3, PriorityP4, PriorityP5}

// IsSet reports whether a priority was configured.
func (p AlertPriority) IsSet() bool {
	return p != PriorityNone
}

// DisplayName returns the label shown in the Jenkins UI, e.g. "P3-Moderate".
func (p AlertPriority) DisplayName() string {
	name, ok := priorityDisplayNames[p]
	if !ok {
		return ""
	}
	return string(p) + "-" + name
}

// ParsePriority accepts "P3", "p3", "Moderate" or "P3-Moderate" and returns
// the matching priority. Blank or unknown input yields PriorityNone.
func ParsePriority(s string) AlertPriority {
	s = strings.TrimSpace(s)
	if s == "" {
		return PriorityNone
	}
	for _, p := range Priorities {
		name := priorityDisplayNames[p]
		if strings.EqualFold(s, string(p)) ||
			strings.EqualFold(s, name) ||
			strings.EqualFold(s, p.DisplayName()) {
			return p
		}
	}
	return PriorityNone
}
