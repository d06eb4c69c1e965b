package model

import (
	"time"
)

// EventType represents the type of contact state change.
type EventType string

const (
	EventContactSelected   EventType = "contact.selected"
	EventContactImported   EventType = "contact.imported"
	EventMessageAppended   EventType = "contact.message_appended"
	EventAnalysisStarted   EventType = "contact.analysis_started"
	EventAnalysisCompleted EventType = "contact.analysis_completed"
	EventAnalysisFailed    EventType = "contact.analysis_failed"
	EventIncomingPending   EventType = "contact.incoming_pending"
	EventIncomingCleared   EventType = "contact.incoming_cleared"
	EventDraftStarted      EventType = "contact.draft_started"
	EventDraftReady        EventType = "contact.draft_ready"
	EventDraftCleared      EventType = "contact.draft_cleared"
)

// EventNamespace prefixes every contact event kind.
const EventNamespace = "contact."

// ContactEvent tells the rendering layer that a contact changed.
type ContactEvent struct {
	ID        string         `json:"id"`
	ContactID string         `json:"contact_id"`
	Type      EventType      `json:"type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
