package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/service"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// TriageHandler exposes the triage engine to agents.
type TriageHandler struct {
	service *service.TriageService
}

// NewTriageHandler constructs handler.
func NewTriageHandler(triageService *service.TriageService) *TriageHandler {
	return &TriageHandler{service: triageService}
}

// Triage POST /agent/triage. Idempotent: re-running against a ticket
// that already left open reports NO_OP without new events.
func (h *TriageHandler) Triage(c *fiber.Ctx) error {
	var req dto.TriageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.TicketID) == "" {
		return apperrors.NewValidationError("ticket_id is required", nil)
	}
	result, err := h.service.Triage(c.UserContext(), req.TicketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TriageResponse{
		Outcome: string(result.Outcome),
		Ticket:  dto.NewTicketResponse(result.Ticket),
	}})
}

// GetSuggestion GET /agent/suggestion/:id.
func (h *TriageHandler) GetSuggestion(c *fiber.Ctx) error {
	suggestion, err := h.service.GetSuggestion(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSuggestionResponse(suggestion)})
}
