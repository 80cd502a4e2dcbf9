package events

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketTriaged       EventType = "ticket_triaged"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventReplySent           EventType = "reply_sent"
	EventSLABreach           EventType = "sla_breach"
)

// Event represents a domain event emitted by services. These are
// in-process notifications, distinct from the durable audit log.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	TicketID  string       `json:"ticket_id"`
	Actor     domain.Actor `json:"actor"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   interface{}  `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	RequesterID string                `json:"requester_id"`
	Title       string                `json:"title"`
	Category    domain.TicketCategory `json:"category"`
}

// TicketTriagedPayload payload.
type TicketTriagedPayload struct {
	Outcome         string                `json:"outcome"`
	Category        domain.TicketCategory `json:"category"`
	Confidence      float64               `json:"confidence"`
	AssignedAgentID *string               `json:"assigned_agent_id,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// ReplySentPayload payload.
type ReplySentPayload struct {
	Actor       domain.Actor `json:"actor"`
	BodyPreview string       `json:"body_preview"`
}

// SLABreachPayload payload.
type SLABreachPayload struct {
	AssignedAgentID *string   `json:"assigned_agent_id,omitempty"`
	AssignedAt      time.Time `json:"assigned_at"`
	SLAHours        int       `json:"sla_hours"`
}
