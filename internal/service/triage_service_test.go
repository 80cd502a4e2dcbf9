package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/cache"
	"github.com/spec-kit/triage-service/internal/classifier"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/service"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

type stubClassifier struct {
	mu     sync.Mutex
	result classifier.Result
	err    error
	calls  int
}

func (c *stubClassifier) Classify(ctx context.Context, title, description string) (*classifier.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	result := c.result
	return &result, nil
}

func (c *stubClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// failingAuditRepository rejects appends after allowed successes, for
// exercising the compensating rollback path.
type failingAuditRepository struct {
	inner   repository.AuditRepository
	mu      sync.Mutex
	allowed int
}

func (r *failingAuditRepository) Append(ctx context.Context, event *domain.AuditEvent) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.allowed <= 0 {
		return 0, errors.New("audit store down")
	}
	r.allowed--
	return r.inner.Append(ctx, event)
}

func (r *failingAuditRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEvent, error) {
	return r.inner.ListByTicket(ctx, ticketID)
}

type triageFixture struct {
	tickets    repository.TicketRepository
	audit      repository.AuditRepository
	users      repository.UserRepository
	policies   *service.PolicyService
	classifier *stubClassifier
	engine     *service.TriageService
}

func newTriageFixture(t *testing.T, mutate func(deps *service.TriageDependencies)) *triageFixture {
	t.Helper()
	logger := zap.NewNop()
	fixture := &triageFixture{
		tickets:    repository.NewMemoryTicketRepository(),
		audit:      repository.NewMemoryAuditRepository(),
		users:      repository.NewMemoryUserRepository(),
		classifier: &stubClassifier{result: classifier.Result{DraftReply: "draft", Confidence: 0.9, PredictedCategory: domain.CategoryBilling}},
	}
	fixture.policies = service.NewPolicyService(repository.NewMemoryPolicyRepository(), logger, time.Minute)

	deps := service.TriageDependencies{
		TicketRepo:  fixture.tickets,
		AuditRepo:   fixture.audit,
		Policies:    fixture.policies,
		Classifier:  fixture.classifier,
		Suggestions: cache.NewMemorySuggestionCache(time.Minute),
		Assignment:  service.NewAssignmentService(fixture.tickets, fixture.users, logger),
		Metrics:     observability.NewMetrics(),
		Logger:      logger,
	}
	if mutate != nil {
		mutate(&deps)
	}
	fixture.audit = deps.AuditRepo
	fixture.engine = service.NewTriageService(deps)
	return fixture
}

func (f *triageFixture) createTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.engine.CreateTicket(context.Background(), "user-1", service.TicketCreateInput{
		Title:       "Charged twice",
		Description: "My card was charged twice for the same invoice",
	})
	require.NoError(t, err)
	return ticket
}

func (f *triageFixture) trail(t *testing.T, ticketID string) []domain.AuditEvent {
	t.Helper()
	trail, err := f.audit.ListByTicket(context.Background(), ticketID)
	require.NoError(t, err)
	return trail
}

func TestCreateTicketAppendsCreationEvent(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	ticket := fixture.createTicket(t)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.CategoryOther, ticket.Category)
	assert.Equal(t, int64(1), ticket.Version)

	trail := fixture.trail(t, ticket.ID)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.AuditTicketCreated, trail[0].Action)
	assert.Equal(t, domain.ActorUser, trail[0].Actor)
}

func TestCreateTicketRejectsBlankFields(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	_, err := fixture.engine.CreateTicket(context.Background(), "user-1", service.TicketCreateInput{Title: "  "})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestTriageAutoClosesAboveThreshold(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	ticket := fixture.createTicket(t)

	result, err := fixture.engine.Triage(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeAutoClosed, result.Outcome)
	assert.Equal(t, domain.TicketStatusResolved, result.Ticket.Status)
	assert.Equal(t, domain.CategoryBilling, result.Ticket.Category)
	assert.Equal(t, int64(2), result.Ticket.Version)

	trail := fixture.trail(t, ticket.ID)
	require.Len(t, trail, 3)
	assert.Equal(t, domain.AuditTicketCreated, trail[0].Action)
	assert.Equal(t, domain.AuditReplySent, trail[1].Action)
	assert.Equal(t, domain.AuditAutoClosed, trail[2].Action)

	// The reply precedes the close and both carry the same decision
	// id and the system actor.
	assert.Equal(t, domain.ActorSystem, trail[1].Actor)
	assert.Equal(t, domain.ActorSystem, trail[2].Actor)
	assert.Equal(t, "draft", trail[1].Meta["message"])
	require.NotEmpty(t, trail[1].Meta["decision_id"])
	assert.Equal(t, trail[1].Meta["decision_id"], trail[2].Meta["decision_id"])
	assert.Equal(t, 0.9, trail[2].Meta["confidence"])
}

func TestTriageAssignsToHumanBelowThreshold(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	fixture.classifier.result.Confidence = 0.5
	ticket := fixture.createTicket(t)

	result, err := fixture.engine.Triage(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeAssignedToHuman, result.Outcome)
	assert.Equal(t, domain.TicketStatusWaitingHuman, result.Ticket.Status)

	trail := fixture.trail(t, ticket.ID)
	require.Len(t, trail, 2)
	assert.Equal(t, domain.AuditAssignedToHuman, trail[1].Action)
	assert.Equal(t, "low_confidence", trail[1].Meta["reason"])
	assert.Equal(t, 0.5, trail[1].Meta["confidence"])
}

func TestTriageAssignsToHumanWhenClassifierFails(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	fixture.classifier.err = errors.New("model down")
	ticket := fixture.createTicket(t)

	result, err := fixture.engine.Triage(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeAssignedToHuman, result.Outcome)
	assert.Equal(t, domain.TicketStatusWaitingHuman, result.Ticket.Status)
	// Category stays untouched without a prediction.
	assert.Equal(t, domain.CategoryOther, result.Ticket.Category)

	trail := fixture.trail(t, ticket.ID)
	require.Len(t, trail, 2)
	assert.Equal(t, "classifier_unavailable", trail[1].Meta["reason"])
}

func TestTriageRespectsAutoCloseDisabled(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	disabled := false
	_, err := fixture.policies.Update(context.Background(), domain.TriagePolicyPatch{AutoCloseEnabled: &disabled})
	require.NoError(t, err)

	ticket := fixture.createTicket(t)
	result, err := fixture.engine.Triage(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeAssignedToHuman, result.Outcome)
}

func TestTriagePolicyChangeAppliesToNextDecisionOnly(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	fixture.classifier.result.Confidence = 0.8

	first := fixture.createTicket(t)
	result, err := fixture.engine.Triage(context.Background(), first.ID)
	require.NoError(t, err)
	require.Equal(t, service.OutcomeAutoClosed, result.Outcome)

	threshold := 0.95
	_, err = fixture.policies.Update(context.Background(), domain.TriagePolicyPatch{ConfidenceThreshold: &threshold})
	require.NoError(t, err)

	second := fixture.createTicket(t)
	result, err = fixture.engine.Triage(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeAssignedToHuman, result.Outcome)

	// The earlier decision is never revisited.
	committed, err := fixture.engine.GetTicket(context.Background(), nil, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, committed.Status)
}

func TestTriageIsIdempotent(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	ticket := fixture.createTicket(t)

	first, err := fixture.engine.Triage(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, service.OutcomeAutoClosed, first.Outcome)
	eventsAfterFirst := len(fixture.trail(t, ticket.ID))

	second, err := fixture.engine.Triage(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeNoOp, second.Outcome)
	assert.Equal(t, first.Ticket.Status, second.Ticket.Status)
	assert.Len(t, fixture.trail(t, ticket.ID), eventsAfterFirst, "no-op must append nothing")
}

func TestTriageConcurrentCallsCommitOneDecision(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	ticket := fixture.createTicket(t)

	const callers = 4
	outcomes := make(chan service.TriageOutcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := fixture.engine.Triage(context.Background(), ticket.ID)
			if err == nil {
				outcomes <- result.Outcome
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	decisions := 0
	for outcome := range outcomes {
		if outcome == service.OutcomeAutoClosed {
			decisions++
		}
	}
	assert.Equal(t, 1, decisions, "exactly one caller commits the decision")

	trail := fixture.trail(t, ticket.ID)
	replies, closes := 0, 0
	for _, event := range trail {
		switch event.Action {
		case domain.AuditReplySent:
			replies++
		case domain.AuditAutoClosed:
			closes++
		}
	}
	assert.Equal(t, 1, replies)
	assert.Equal(t, 1, closes)
}

func TestTriageNotFound(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	_, err := fixture.engine.Triage(context.Background(), "missing")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestTriageRollsBackTicketWhenAuditAppendFails(t *testing.T) {
	var failing *failingAuditRepository
	fixture := newTriageFixture(t, func(deps *service.TriageDependencies) {
		// One successful append for TICKET_CREATED, then the store
		// goes down for the decision events.
		failing = &failingAuditRepository{inner: deps.AuditRepo, allowed: 1}
		deps.AuditRepo = failing
	})
	ticket := fixture.createTicket(t)

	_, err := fixture.engine.Triage(context.Background(), ticket.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INTERNAL_ERROR"))

	reread, getErr := fixture.engine.GetTicket(context.Background(), nil, ticket.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.TicketStatusOpen, reread.Status, "failed decision must not leave state behind")

	trail := fixture.trail(t, ticket.ID)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.AuditTicketCreated, trail[0].Action)
}

func TestTriageAutoCloseTargetClosed(t *testing.T) {
	fixture := newTriageFixture(t, func(deps *service.TriageDependencies) {
		deps.Options.AutoCloseTarget = domain.TicketStatusClosed
	})
	ticket := fixture.createTicket(t)

	result, err := fixture.engine.Triage(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeAutoClosed, result.Outcome)
	assert.Equal(t, domain.TicketStatusClosed, result.Ticket.Status)
	require.NotNil(t, result.Ticket.ClosedAt)
}

func TestTriageAssignsLeastLoadedAgent(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	fixture.classifier.result.Confidence = 0.1
	ctx := context.Background()

	agent := &domain.User{Email: "agent@example.com", Role: domain.RoleAgent, Active: true}
	require.NoError(t, fixture.users.Create(ctx, agent))

	ticket := fixture.createTicket(t)
	result, err := fixture.engine.Triage(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Ticket.AssignedAgentID)
	assert.Equal(t, agent.ID, *result.Ticket.AssignedAgentID)

	trail := fixture.trail(t, ticket.ID)
	assert.Equal(t, agent.ID, trail[1].Meta["agent_id"])
}

func TestGetSuggestionDoesNotMutateTicket(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	ticket := fixture.createTicket(t)

	suggestion, err := fixture.engine.GetSuggestion(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, suggestion.TicketID)
	assert.Equal(t, 0.9, suggestion.Confidence)

	reread, err := fixture.engine.GetTicket(context.Background(), nil, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, reread.Status)
	assert.Equal(t, int64(1), reread.Version)
	assert.Len(t, fixture.trail(t, ticket.ID), 1)
}

func TestGetSuggestionServesCachedCopy(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	ticket := fixture.createTicket(t)

	_, err := fixture.engine.GetSuggestion(context.Background(), ticket.ID)
	require.NoError(t, err)
	calls := fixture.classifier.callCount()

	_, err = fixture.engine.GetSuggestion(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, calls, fixture.classifier.callCount(), "second read must hit the cache")
}

func TestGetSuggestionClassifierDown(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	fixture.classifier.err = errors.New("model down")
	ticket := fixture.createTicket(t)

	_, err := fixture.engine.GetSuggestion(context.Background(), ticket.ID)
	assert.True(t, apperrors.IsCode(err, "CLASSIFIER_UNAVAILABLE"))
}

func TestAuditTrailIsStableAcrossReads(t *testing.T) {
	fixture := newTriageFixture(t, nil)
	ticket := fixture.createTicket(t)
	_, err := fixture.engine.Triage(context.Background(), ticket.ID)
	require.NoError(t, err)

	first := fixture.trail(t, ticket.ID)
	second := fixture.trail(t, ticket.ID)
	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.Greater(t, first[i].Seq, first[i-1].Seq)
	}
}
