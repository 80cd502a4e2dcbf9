package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/service"
)

// SLAMonitor periodically scans the human queue and appends an
// SLA_BREACH audit event for tickets waiting longer than the policy's
// slaHours. It runs decoupled from request handling; every failure is
// logged and retried on the next tick. De-duplication rides on the
// audit log itself: a breach is appended only if none exists since the
// latest assignment, so concurrent runs converge on a single event.
type SLAMonitor struct {
	tickets    repository.TicketRepository
	audit      repository.AuditRepository
	policies   *service.PolicyService
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	interval   time.Duration
	now        func() time.Time
}

// SLAMonitorDependencies bundles collaborators for the monitor.
type SLAMonitorDependencies struct {
	TicketRepo repository.TicketRepository
	AuditRepo  repository.AuditRepository
	Policies   *service.PolicyService
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Interval   time.Duration
}

// NewSLAMonitor constructs the monitor.
func NewSLAMonitor(deps SLAMonitorDependencies) *SLAMonitor {
	interval := deps.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &SLAMonitor{
		tickets:    deps.TicketRepo,
		audit:      deps.AuditRepo,
		policies:   deps.Policies,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		interval:   interval,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run executes sweeps until ctx is cancelled.
func (m *SLAMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.RunOnce(ctx); err != nil {
				m.logger.Warn("sla sweep failed, retrying next tick", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single sweep over the human queue. Safe to call
// concurrently with itself and with replies.
func (m *SLAMonitor) RunOnce(ctx context.Context) error {
	policy, err := m.policies.Snapshot(ctx)
	if err != nil {
		return err
	}

	waiting, err := m.tickets.ListByStatus(ctx, domain.TicketStatusWaitingHuman)
	if err != nil {
		return err
	}

	for i := range waiting {
		if err := m.checkTicket(ctx, &waiting[i], policy); err != nil {
			m.logger.Warn("sla check failed for ticket",
				zap.String("ticket_id", waiting[i].ID), zap.Error(err))
		}
	}
	return nil
}

func (m *SLAMonitor) checkTicket(ctx context.Context, ticket *domain.Ticket, policy domain.TriagePolicy) error {
	trail, err := m.audit.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}

	var assignment *domain.AuditEvent
	breachedSinceAssignment := false
	for i := range trail {
		switch trail[i].Action {
		case domain.AuditAssignedToHuman:
			assignment = &trail[i]
			breachedSinceAssignment = false
		case domain.AuditSLABreach:
			if assignment != nil {
				breachedSinceAssignment = true
			}
		}
	}
	if assignment == nil || breachedSinceAssignment {
		return nil
	}

	overdue := m.now().Sub(assignment.Timestamp)
	if overdue <= policy.SLAWindow() {
		return nil
	}

	breach := &domain.AuditEvent{
		TicketID: ticket.ID,
		Action:   domain.AuditSLABreach,
		Actor:    domain.ActorSystem,
		Meta: map[string]any{
			"sla_hours":     policy.SLAHours,
			"overdue_hours": int(overdue.Hours()) - policy.SLAHours,
			"assigned_at":   assignment.Timestamp.Format(time.RFC3339),
		},
	}
	if _, err := m.audit.Append(ctx, breach); err != nil {
		return err
	}

	m.metrics.RecordSLABreach()
	m.logger.Info("sla breach recorded",
		zap.String("ticket_id", ticket.ID),
		zap.Int("sla_hours", policy.SLAHours))
	if m.dispatcher != nil {
		_ = m.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventSLABreach,
			TicketID:  ticket.ID,
			Actor:     domain.ActorSystem,
			Timestamp: m.now(),
			Payload: events.SLABreachPayload{
				AssignedAgentID: ticket.AssignedAgentID,
				AssignedAt:      assignment.Timestamp,
				SLAHours:        policy.SLAHours,
			},
		})
	}
	return nil
}
