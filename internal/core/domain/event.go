package domain

import "time"

// EventType names a domain event emitted by the connection and publish workflow.
type EventType string

const (
	EventConnectionConnected    EventType = "connection.connected"
	EventConnectionDisconnected EventType = "connection.disconnected"
	EventPostPublished          EventType = "post.published"
	EventPostFailed             EventType = "post.failed"
)

// Event is a domain event. Data never contains token material.
type Event struct {
	Type         EventType         `json:"type"`
	UserID       string            `json:"user_id"`
	Platform     Platform          `json:"platform"`
	ConnectionID string            `json:"connection_id,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}
