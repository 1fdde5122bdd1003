package models

// Intent is the classification attached to a sub-query by the external classifier.
type Intent string

const (
	IntentGreeting      Intent = "greeting"
	IntentStudySchedule Intent = "study_schedule"
	IntentSetReminder   Intent = "set_reminder"
	IntentMotivation    Intent = "motivation"
	IntentGeneralQuery  Intent = "general_query"
	// IntentDocumentQuery asks for an answer grounded in uploaded documents.
	IntentDocumentQuery Intent = "document_query"
)

// Valid reports whether the intent is one the router knows how to dispatch.
func (i Intent) Valid() bool {
	switch i {
	case IntentGreeting, IntentStudySchedule, IntentSetReminder, IntentMotivation,
		IntentGeneralQuery, IntentDocumentQuery:
		return true
	}
	return false
}

// Schedules reports whether the intent arms a deferred notification.
func (i Intent) Schedules() bool {
	return i == IntentStudySchedule || i == IntentSetReminder
}

// SubQuery is one classified piece of a user message.
type SubQuery struct {
	Query  string `json:"query"`
	Intent Intent `json:"intent"`
}
