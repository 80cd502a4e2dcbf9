package dto

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ReplyRequest payload.
type ReplyRequest struct {
	Message string `json:"message"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status  domain.TicketStatus `json:"status"`
	Comment string              `json:"comment"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID              string                `json:"id"`
	RequesterID     string                `json:"requester_id"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Category        domain.TicketCategory `json:"category"`
	Status          domain.TicketStatus   `json:"status"`
	AssignedAgentID *string               `json:"assigned_agent_id,omitempty"`
	Version         int64                 `json:"version"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	ClosedAt        *time.Time            `json:"closed_at,omitempty"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:              ticket.ID,
		RequesterID:     ticket.RequesterID,
		Title:           ticket.Title,
		Description:     ticket.Description,
		Category:        ticket.Category,
		Status:          ticket.Status,
		AssignedAgentID: ticket.AssignedAgentID,
		Version:         ticket.Version,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
		ClosedAt:        ticket.ClosedAt,
	}
}

// AuditEventResponse is the wire form of an audit event.
type AuditEventResponse struct {
	ID        string             `json:"id"`
	Seq       int64              `json:"seq"`
	TicketID  string             `json:"ticket_id"`
	Action    domain.AuditAction `json:"action"`
	Actor     domain.Actor       `json:"actor"`
	Meta      map[string]any     `json:"meta,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewAuditEventResponse maps a domain audit event.
func NewAuditEventResponse(event *domain.AuditEvent) AuditEventResponse {
	return AuditEventResponse{
		ID:        event.ID,
		Seq:       event.Seq,
		TicketID:  event.TicketID,
		Action:    event.Action,
		Actor:     event.Actor,
		Meta:      event.Meta,
		Timestamp: event.Timestamp,
	}
}

// TicketDetailResponse bundles a ticket with its derived views.
type TicketDetailResponse struct {
	Ticket       TicketResponse               `json:"ticket"`
	Audit        []AuditEventResponse         `json:"audit"`
	Conversation []domain.ConversationMessage `json:"conversation"`
}
