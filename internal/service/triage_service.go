package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/cache"
	"github.com/spec-kit/triage-service/internal/classifier"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// TriageOutcome names the result of a triage call.
type TriageOutcome string

const (
	OutcomeAutoClosed      TriageOutcome = "AUTO_CLOSED"
	OutcomeAssignedToHuman TriageOutcome = "ASSIGNED_TO_HUMAN"
	OutcomeNoOp            TriageOutcome = "NO_OP"
)

// TriageResult is the committed outcome of a triage call.
type TriageResult struct {
	Outcome TriageOutcome
	Ticket  *domain.Ticket
}

// TriageOptions tunes the engine's commit behavior.
type TriageOptions struct {
	// MaxCommitRetries bounds re-read-and-retry loops after version
	// conflicts before a ConflictError surfaces.
	MaxCommitRetries int
	// RetryBackoff is the base pause between retries; actual pauses
	// add up to the same amount of jitter.
	RetryBackoff time.Duration
	// AutoCloseTarget is the status an auto-closed ticket lands in:
	// resolved (default) or closed.
	AutoCloseTarget domain.TicketStatus
}

// TriageDependencies bundles collaborators for the engine.
type TriageDependencies struct {
	TicketRepo  repository.TicketRepository
	AuditRepo   repository.AuditRepository
	Policies    *PolicyService
	Classifier  classifier.Classifier
	Suggestions cache.SuggestionCache
	Assignment  *AssignmentService
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Options     TriageOptions
}

// TriageService is the triage and lifecycle engine: it turns a ticket
// plus the classifier's output into an authoritative status
// transition and a matching audit record, under optimistic
// concurrency.
type TriageService struct {
	tickets     repository.TicketRepository
	audit       repository.AuditRepository
	policies    *PolicyService
	classifier  classifier.Classifier
	suggestions cache.SuggestionCache
	assignment  *AssignmentService
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	opts        TriageOptions
}

// NewTriageService constructs the engine.
func NewTriageService(deps TriageDependencies) *TriageService {
	opts := deps.Options
	if opts.MaxCommitRetries <= 0 {
		opts.MaxCommitRetries = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 25 * time.Millisecond
	}
	if opts.AutoCloseTarget != domain.TicketStatusClosed {
		opts.AutoCloseTarget = domain.TicketStatusResolved
	}
	return &TriageService{
		tickets:     deps.TicketRepo,
		audit:       deps.AuditRepo,
		policies:    deps.Policies,
		classifier:  deps.Classifier,
		suggestions: deps.Suggestions,
		assignment:  deps.Assignment,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		opts:        opts,
	}
}

// auditAppendAttempts bounds retries of a single audit append before
// the engine gives up and compensates the ticket write.
const auditAppendAttempts = 3

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
}

// CreateTicket records a new open ticket for a requester and appends
// its TICKET_CREATED audit event.
func (s *TriageService) CreateTicket(ctx context.Context, requesterID string, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}

	ticket := &domain.Ticket{
		RequesterID: requesterID,
		Title:       title,
		Description: description,
		Category:    domain.CategoryOther,
		Status:      domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	created := &domain.AuditEvent{
		TicketID: ticket.ID,
		Action:   domain.AuditTicketCreated,
		Actor:    domain.ActorUser,
	}
	if err := s.appendEvents(ctx, created); err != nil {
		s.logger.Error("audit append failed for ticket creation",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    domain.ActorUser,
		Payload: events.TicketCreatedPayload{
			RequesterID: ticket.RequesterID,
			Title:       ticket.Title,
			Category:    ticket.Category,
		},
	})
	return ticket, nil
}

// Triage runs one triage decision for the ticket: config snapshot,
// classifier call, policy decision, versioned state transition and
// audit append, committed as one logical unit. Calling it on a ticket
// already past triage is an idempotent no-op. Once the classifier has
// returned, the decision always commits even if the caller has gone
// away.
func (s *TriageService) Triage(ctx context.Context, ticketID string) (*TriageResult, error) {
	for attempt := 0; ; attempt++ {
		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return nil, apperrors.MapError(err)
		}
		if ticket.Terminal() {
			return &TriageResult{Outcome: OutcomeNoOp, Ticket: ticket}, nil
		}

		policy, err := s.policies.Snapshot(ctx)
		if err != nil {
			return nil, err
		}

		suggestion := s.computeSuggestion(ctx, ticket)

		// The decision is made; it commits even if the caller's
		// context is cancelled while we write.
		commitCtx := context.WithoutCancel(ctx)
		result, err := s.commitDecision(commitCtx, ticket, policy, suggestion)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		if attempt+1 >= s.opts.MaxCommitRetries {
			return nil, apperrors.NewConflict("triage commit lost the version race",
				map[string]any{"ticket_id": ticketID, "attempts": attempt + 1})
		}
		s.sleepWithJitter()
	}
}

// computeSuggestion calls the classifier and caches its proposal. A
// classifier failure returns nil: the engine falls back to human
// assignment, never blocks and never auto-closes on missing data.
func (s *TriageService) computeSuggestion(ctx context.Context, ticket *domain.Ticket) *domain.Suggestion {
	result, err := s.classifier.Classify(ctx, ticket.Title, ticket.Description)
	if err != nil {
		s.logger.Warn("classifier unavailable, falling back to human assignment",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return nil
	}
	suggestion := &domain.Suggestion{
		TicketID:          ticket.ID,
		DraftReply:        result.DraftReply,
		Confidence:        result.Confidence,
		PredictedCategory: result.PredictedCategory,
		GeneratedAt:       time.Now().UTC(),
	}
	if err := s.suggestions.Set(ctx, suggestion); err != nil {
		s.logger.Warn("suggestion cache write failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return suggestion
}

// commitDecision applies the policy decision for one read snapshot of
// the ticket. A version conflict is returned untranslated so Triage
// can re-read and retry.
func (s *TriageService) commitDecision(ctx context.Context, ticket *domain.Ticket, policy domain.TriagePolicy, suggestion *domain.Suggestion) (*TriageResult, error) {
	autoClose := suggestion != nil &&
		policy.AutoCloseEnabled &&
		suggestion.Confidence >= policy.ConfidenceThreshold

	decisionID := uuid.NewString()
	patch := repository.TicketPatch{}
	if suggestion != nil && domain.ValidCategory(suggestion.PredictedCategory) {
		category := suggestion.PredictedCategory
		patch.Category = &category
	}

	var outcome TriageOutcome
	var decisionEvents []*domain.AuditEvent

	if autoClose {
		next, err := domain.Transition(ticket.Status, domain.EventAutoClose)
		if err != nil {
			return nil, err
		}
		if s.opts.AutoCloseTarget == domain.TicketStatusClosed {
			next, err = domain.Transition(next, domain.EventClose)
			if err != nil {
				return nil, err
			}
			closedAt := time.Now().UTC()
			patch.ClosedAt = &closedAt
		}
		patch.Status = &next
		outcome = OutcomeAutoClosed
		decisionEvents = []*domain.AuditEvent{
			{
				TicketID: ticket.ID,
				Action:   domain.AuditReplySent,
				Actor:    domain.ActorSystem,
				Meta: map[string]any{
					"message":     suggestion.DraftReply,
					"decision_id": decisionID,
				},
			},
			{
				TicketID: ticket.ID,
				Action:   domain.AuditAutoClosed,
				Actor:    domain.ActorSystem,
				Meta: map[string]any{
					"confidence":  suggestion.Confidence,
					"threshold":   policy.ConfidenceThreshold,
					"decision_id": decisionID,
				},
			},
		}
	} else {
		next, err := domain.Transition(ticket.Status, domain.EventAssignHuman)
		if err != nil {
			return nil, err
		}
		patch.Status = &next
		outcome = OutcomeAssignedToHuman

		meta := map[string]any{"decision_id": decisionID}
		if suggestion == nil {
			meta["reason"] = "classifier_unavailable"
		} else {
			meta["reason"] = "low_confidence"
			meta["confidence"] = suggestion.Confidence
			meta["threshold"] = policy.ConfidenceThreshold
		}
		if agentID := s.assignment.PickAgent(ctx); agentID != nil {
			patch.AssignedAgentID = agentID
			meta["agent_id"] = *agentID
		}
		decisionEvents = []*domain.AuditEvent{
			{
				TicketID: ticket.ID,
				Action:   domain.AuditAssignedToHuman,
				Actor:    domain.ActorSystem,
				Meta:     meta,
			},
		}
	}

	updated, err := s.tickets.UpdateWithVersion(ctx, ticket.ID, ticket.Version, patch)
	if err != nil {
		return nil, err
	}

	if err := s.appendEvents(ctx, decisionEvents...); err != nil {
		// State without audit is an unrecoverable consistency
		// violation, so compensate the ticket write before failing.
		s.rollbackTicket(ctx, ticket, updated)
		return nil, apperrors.NewInternalError(err)
	}

	s.metrics.RecordTriageOutcome(string(outcome))
	confidence := 0.0
	if suggestion != nil {
		confidence = suggestion.Confidence
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketTriaged,
		TicketID: updated.ID,
		Actor:    domain.ActorSystem,
		Payload: events.TicketTriagedPayload{
			Outcome:         string(outcome),
			Category:        updated.Category,
			Confidence:      confidence,
			AssignedAgentID: updated.AssignedAgentID,
		},
	})
	return &TriageResult{Outcome: outcome, Ticket: updated}, nil
}

// rollbackTicket restores the pre-decision ticket state after a failed
// audit append.
func (s *TriageService) rollbackTicket(ctx context.Context, previous, committed *domain.Ticket) {
	status := previous.Status
	category := previous.Category
	revert := repository.TicketPatch{
		Status:        &status,
		Category:      &category,
		ClearClosedAt: previous.ClosedAt == nil,
		ClosedAt:      previous.ClosedAt,
		ClearAssignee: previous.AssignedAgentID == nil,
	}
	if previous.AssignedAgentID != nil {
		revert.AssignedAgentID = previous.AssignedAgentID
	}
	if _, err := s.tickets.UpdateWithVersion(ctx, committed.ID, committed.Version, revert); err != nil {
		s.logger.Error("compensating rollback failed",
			zap.String("ticket_id", committed.ID), zap.Error(err))
	}
}

// GetSuggestion returns the classifier's current proposal for the
// ticket, computing and caching it when absent. It never mutates
// ticket state.
func (s *TriageService) GetSuggestion(ctx context.Context, ticketID string) (*domain.Suggestion, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	if cached, ok := s.suggestions.Get(ctx, ticket.ID); ok {
		return cached, nil
	}

	result, err := s.classifier.Classify(ctx, ticket.Title, ticket.Description)
	if err != nil {
		return nil, apperrors.NewClassifierUnavailable(err)
	}
	suggestion := &domain.Suggestion{
		TicketID:          ticket.ID,
		DraftReply:        result.DraftReply,
		Confidence:        result.Confidence,
		PredictedCategory: result.PredictedCategory,
		GeneratedAt:       time.Now().UTC(),
	}
	if err := s.suggestions.Set(ctx, suggestion); err != nil {
		s.logger.Warn("suggestion cache write failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return suggestion, nil
}

// Reply appends a REPLY_SENT event for the given actor. Agent and
// admin replies are valid only while the ticket waits on a human and
// resolve it in the same commit; user replies are follow-up comments
// on waiting_human or resolved tickets and change no state.
func (s *TriageService) Reply(ctx context.Context, ticketID, message string, actor *domain.User) (*domain.AuditEvent, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("message required", nil)
	}
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	for attempt := 0; ; attempt++ {
		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return nil, apperrors.MapError(err)
		}

		event, err := s.commitReply(ctx, ticket, message, actor)
		if err == nil {
			return event, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		if attempt+1 >= s.opts.MaxCommitRetries {
			return nil, apperrors.NewConflict("reply commit lost the version race",
				map[string]any{"ticket_id": ticketID, "attempts": attempt + 1})
		}
		s.sleepWithJitter()
	}
}

func (s *TriageService) commitReply(ctx context.Context, ticket *domain.Ticket, message string, actor *domain.User) (*domain.AuditEvent, error) {
	auditActor := actor.Role.Actor()
	event := &domain.AuditEvent{
		TicketID: ticket.ID,
		Action:   domain.AuditReplySent,
		Actor:    auditActor,
		Meta: map[string]any{
			"message":   message,
			"author_id": actor.ID,
		},
	}

	switch auditActor {
	case domain.ActorAgent:
		next, err := domain.Transition(ticket.Status, domain.EventAgentResolve)
		if err != nil {
			return nil, err
		}
		updated, err := s.tickets.UpdateWithVersion(ctx, ticket.ID, ticket.Version, repository.TicketPatch{Status: &next})
		if err != nil {
			return nil, err
		}
		if err := s.appendEvents(ctx, event); err != nil {
			s.rollbackTicket(ctx, ticket, updated)
			return nil, apperrors.NewInternalError(err)
		}
	case domain.ActorUser:
		if ticket.RequesterID != actor.ID {
			return nil, apperrors.NewForbidden("not the ticket requester")
		}
		if ticket.Status != domain.TicketStatusWaitingHuman && ticket.Status != domain.TicketStatusResolved {
			return nil, apperrors.NewInvalidTransition(string(ticket.Status), "reply")
		}
		if err := s.appendEvents(ctx, event); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	default:
		return nil, apperrors.NewForbidden("system cannot reply directly")
	}

	s.publish(ctx, events.Event{
		Type:     events.EventReplySent,
		TicketID: ticket.ID,
		Actor:    auditActor,
		Payload: events.ReplySentPayload{
			Actor:       auditActor,
			BodyPreview: preview(message, 120),
		},
	})
	return event, nil
}

// manualEvents are the lifecycle moves agents and admins may request
// as a target status; auto-close paths stay reserved for the engine.
var manualEvents = map[domain.TransitionEvent]bool{
	domain.EventMarkTriaged: true,
	domain.EventClose:       true,
	domain.EventForceClose:  true,
}

// UpdateStatus applies a manual status change through the state
// machine and audits it. Force-closing a waiting ticket is admin-only.
func (s *TriageService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, newStatus domain.TicketStatus, comment string) (*domain.Ticket, error) {
	if actor == nil || (actor.Role != domain.RoleAgent && actor.Role != domain.RoleAdmin) {
		return nil, apperrors.NewForbidden("agent role required")
	}
	if !domain.ValidStatus(newStatus) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}

	for attempt := 0; ; attempt++ {
		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return nil, apperrors.MapError(err)
		}

		event, ok := domain.EventFor(ticket.Status, newStatus)
		if !ok || !manualEvents[event] {
			return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(newStatus))
		}
		if event == domain.EventForceClose && actor.Role != domain.RoleAdmin {
			return nil, apperrors.NewForbidden("admin role required to force close")
		}

		next, err := domain.Transition(ticket.Status, event)
		if err != nil {
			return nil, err
		}
		patch := repository.TicketPatch{Status: &next}
		if next == domain.TicketStatusClosed {
			closedAt := time.Now().UTC()
			patch.ClosedAt = &closedAt
		}

		updated, err := s.tickets.UpdateWithVersion(ctx, ticket.ID, ticket.Version, patch)
		if errors.Is(err, repository.ErrVersionConflict) {
			if attempt+1 >= s.opts.MaxCommitRetries {
				return nil, apperrors.NewConflict("status update lost the version race",
					map[string]any{"ticket_id": ticketID, "attempts": attempt + 1})
			}
			s.sleepWithJitter()
			continue
		}
		if err != nil {
			return nil, apperrors.MapError(err)
		}

		audit := &domain.AuditEvent{
			TicketID: ticket.ID,
			Action:   domain.AuditStatusChanged,
			Actor:    actor.Role.Actor(),
			Meta: map[string]any{
				"old_status": string(ticket.Status),
				"new_status": string(next),
				"author_id":  actor.ID,
			},
		}
		if comment != "" {
			audit.Meta["comment"] = comment
		}
		if err := s.appendEvents(ctx, audit); err != nil {
			s.rollbackTicket(ctx, ticket, updated)
			return nil, apperrors.NewInternalError(err)
		}

		s.publish(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Actor:    actor.Role.Actor(),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: ticket.Status,
				NewStatus: next,
				Comment:   comment,
			},
		})
		return updated, nil
	}
}

// GetTicket fetches a ticket enforcing requester ownership for plain
// users.
func (s *TriageService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if actor != nil && actor.Role == domain.RoleUser && ticket.RequesterID != actor.ID {
		return nil, apperrors.NewForbidden("not the ticket requester")
	}
	return ticket, nil
}

// ListTickets returns tickets visible to the actor, optionally
// filtered by status. Users see their own tickets; agents and admins
// see all.
func (s *TriageService) ListTickets(ctx context.Context, actor *domain.User, statuses []domain.TicketStatus, limit, offset int) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{Statuses: statuses, Limit: limit, Offset: offset}
	if actor != nil && actor.Role == domain.RoleUser {
		requesterID := actor.ID
		filter.RequesterID = &requesterID
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetAudit returns the ticket's ordered audit trail.
func (s *TriageService) GetAudit(ctx context.Context, actor *domain.User, ticketID string) ([]domain.AuditEvent, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	auditEvents, err := s.audit.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return auditEvents, nil
}

func (s *TriageService) appendEvents(ctx context.Context, auditEvents ...*domain.AuditEvent) error {
	for _, event := range auditEvents {
		var err error
		for attempt := 0; attempt < auditAppendAttempts; attempt++ {
			if _, err = s.audit.Append(ctx, event); err == nil {
				break
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *TriageService) sleepWithJitter() {
	backoff := s.opts.RetryBackoff
	time.Sleep(backoff + time.Duration(rand.Int63n(int64(backoff)+1)))
}

func (s *TriageService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
