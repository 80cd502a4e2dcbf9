package domain

import "time"

// Suggestion is the classifier's ephemeral proposal for a ticket.
// Recomputing it never mutates ticket state; it becomes authoritative
// only when the triage engine commits a decision.
type Suggestion struct {
	TicketID          string         `json:"ticket_id"`
	DraftReply        string         `json:"draft_reply"`
	Confidence        float64        `json:"confidence"`
	PredictedCategory TicketCategory `json:"predicted_category"`
	GeneratedAt       time.Time      `json:"generated_at"`
}
