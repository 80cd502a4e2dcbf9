package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/service"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// ConfigHandler exposes the live triage policy.
type ConfigHandler struct {
	policies *service.PolicyService
	metrics  *observability.Metrics
}

// NewConfigHandler constructs handler.
func NewConfigHandler(policies *service.PolicyService, metrics *observability.Metrics) *ConfigHandler {
	return &ConfigHandler{policies: policies, metrics: metrics}
}

// GetConfig GET /config. Bypasses the snapshot cache so operators see
// the stored policy, not a possibly stale copy.
func (h *ConfigHandler) GetConfig(c *fiber.Ctx) error {
	policy, err := h.policies.Get(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPolicyResponse(policy)})
}

// UpdateConfig PUT /config. Partial update, admin only.
func (h *ConfigHandler) UpdateConfig(c *fiber.Ctx) error {
	var patch domain.TriagePolicyPatch
	if err := c.BodyParser(&patch); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	policy, err := h.policies.Update(c.UserContext(), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPolicyResponse(policy)})
}

// GetMetrics GET /metrics.
func (h *ConfigHandler) GetMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
