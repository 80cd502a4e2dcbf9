package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
)

// AssignmentService selects the agent for tickets escalated to the
// human queue. Strategy: least-loaded active agent, load being the
// number of waiting_human tickets currently assigned; ties break on
// agent account age.
type AssignmentService struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
	logger  *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(tickets repository.TicketRepository, users repository.UserRepository, logger *zap.Logger) *AssignmentService {
	return &AssignmentService{tickets: tickets, users: users, logger: logger}
}

// PickAgent returns the id of the least-loaded active agent, or nil
// when no agent is available. Assignment is best-effort: a failure
// leaves the ticket unassigned in the human queue rather than failing
// the escalation.
func (s *AssignmentService) PickAgent(ctx context.Context) *string {
	agents, err := s.users.ListActiveAgents(ctx)
	if err != nil {
		s.logger.Warn("agent listing failed, escalating unassigned", zap.Error(err))
		return nil
	}
	if len(agents) == 0 {
		return nil
	}

	var best *domain.User
	bestLoad := 0
	for i := range agents {
		load, err := s.tickets.CountActiveByAssignee(ctx, agents[i].ID)
		if err != nil {
			s.logger.Warn("agent load lookup failed", zap.String("agent_id", agents[i].ID), zap.Error(err))
			continue
		}
		if best == nil || load < bestLoad {
			best = &agents[i]
			bestLoad = load
		}
	}
	if best == nil {
		return nil
	}
	agentID := best.ID
	return &agentID
}
