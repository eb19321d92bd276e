package types

import "time"

// BuildEventMessage is the SQS envelope published by CI jobs that hand
// delivery off to the notify worker instead of calling OpsGenie inline.
type BuildEventMessage struct {
	EventID    string        `json:"event_id"`
	Phase      Phase         `json:"phase"`
	Build      BuildSnapshot `json:"build"`
	Overrides  Overrides     `json:"overrides"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}
