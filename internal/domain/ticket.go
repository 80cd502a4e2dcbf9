package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen         TicketStatus = "open"
	TicketStatusTriaged      TicketStatus = "triaged"
	TicketStatusWaitingHuman TicketStatus = "waiting_human"
	TicketStatusResolved     TicketStatus = "resolved"
	TicketStatusClosed       TicketStatus = "closed"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusTriaged, TicketStatusWaitingHuman,
		TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketCategory enumerates support categories.
type TicketCategory string

const (
	CategoryBilling  TicketCategory = "billing"
	CategoryTech     TicketCategory = "tech"
	CategoryShipping TicketCategory = "shipping"
	CategoryOther    TicketCategory = "other"
)

// ValidCategory reports whether c is a known category.
func ValidCategory(c TicketCategory) bool {
	switch c {
	case CategoryBilling, CategoryTech, CategoryShipping, CategoryOther:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. Status is mutated only
// through the transition function; writes commit conditionally on
// Version being unchanged.
type Ticket struct {
	ID              string
	RequesterID     string
	Title           string
	Description     string
	Category        TicketCategory
	Status          TicketStatus
	AssignedAgentID *string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
}

// Terminal reports whether the ticket has passed the point of triage:
// a triage call on such a ticket is an idempotent no-op.
func (t *Ticket) Terminal() bool {
	switch t.Status {
	case TicketStatusWaitingHuman, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}
