package messaging

import "strings"

// Subject constants for the analytics message bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	// SubjectEventsIngested is the base subject for committed event
	// notifications. A per-event-name subject is derived by appending the
	// event name (see EventIngestedSubject).
	SubjectEventsIngested = "analytics.events.ingested"

	// SubjectProfilesIdentified carries profile upsert notifications.
	SubjectProfilesIdentified = "analytics.profiles.identified"

	// SubjectCohortsCreated is published when a cohort snapshot is materialized.
	SubjectCohortsCreated = "analytics.cohorts.created"
)

// Queue group names for load-balanced consumers.
const (
	QueueRealtimeWorkers = "realtime-workers"
)

// subjectSanitizer strips characters that carry meaning in broker
// subjects from event names.
var subjectSanitizer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// EventIngestedSubject returns the subject for a specific event name.
// Example: analytics.events.ingested.purchase
func EventIngestedSubject(name string) string {
	return SubjectEventsIngested + "." + subjectSanitizer.Replace(name)
}

// EventIngestedWildcard matches committed notifications for every event name.
func EventIngestedWildcard() string {
	return SubjectEventsIngested + ".>"
}
