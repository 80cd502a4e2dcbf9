package dto

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// TriageRequest payload.
type TriageRequest struct {
	TicketID string `json:"ticket_id"`
}

// TriageResponse is the committed triage outcome.
type TriageResponse struct {
	Outcome string         `json:"outcome"`
	Ticket  TicketResponse `json:"ticket"`
}

// SuggestionResponse is the wire form of a suggestion.
type SuggestionResponse struct {
	TicketID          string                `json:"ticket_id"`
	DraftReply        string                `json:"draft_reply"`
	Confidence        float64               `json:"confidence"`
	PredictedCategory domain.TicketCategory `json:"predicted_category"`
	GeneratedAt       time.Time             `json:"generated_at"`
}

// NewSuggestionResponse maps a domain suggestion.
func NewSuggestionResponse(s *domain.Suggestion) SuggestionResponse {
	return SuggestionResponse{
		TicketID:          s.TicketID,
		DraftReply:        s.DraftReply,
		Confidence:        s.Confidence,
		PredictedCategory: s.PredictedCategory,
		GeneratedAt:       s.GeneratedAt,
	}
}

// PolicyResponse is the wire form of the triage policy.
type PolicyResponse struct {
	AutoCloseEnabled    bool    `json:"autoCloseEnabled"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	SLAHours            int     `json:"slaHours"`
	Version             int64   `json:"version"`
}

// NewPolicyResponse maps a domain policy.
func NewPolicyResponse(p domain.TriagePolicy) PolicyResponse {
	return PolicyResponse{
		AutoCloseEnabled:    p.AutoCloseEnabled,
		ConfidenceThreshold: p.ConfidenceThreshold,
		SLAHours:            p.SLAHours,
		Version:             p.Version,
	}
}
