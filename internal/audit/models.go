package audit

import "time"

// Event is an append-only record of a recording reconciliation that did not
// fully land in the CRM. A sweep reads these to retry association by
// engagement id or to recreate a lost engagement.
//
// Events are never updated or deleted.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	ContactID    string `json:"contact_id,omitempty" db:"contact_id"`
	OwnerID      string `json:"owner_id,omitempty" db:"owner_id"`
	EngagementID string `json:"engagement_id,omitempty" db:"engagement_id"`
	RecordingSID string `json:"recording_sid,omitempty" db:"recording_sid"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON with the upstream error detail.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeEngagementCreateFailed EventType = "engagement_create_failed"
	EventTypeEngagementUnassociated EventType = "engagement_unassociated"
)
