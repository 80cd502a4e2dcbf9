package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/triage-service/internal/domain"
)

// In-memory backends. They back the service when no Postgres DSN is
// configured and are the fixtures the test suites run against. All of
// them are safe for concurrent use.

type memoryTicketRepository struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

// NewMemoryTicketRepository returns an in-memory TicketRepository.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func (r *memoryTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ticket.Version = 1
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	stored := *ticket
	r.tickets[ticket.ID] = &stored
	return nil
}

func (r *memoryTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *memoryTicketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make(map[domain.TicketStatus]struct{}, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses[status] = struct{}{}
	}

	var result []domain.Ticket
	for _, stored := range r.tickets {
		if filter.RequesterID != nil && stored.RequesterID != *filter.RequesterID {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[stored.Status]; !ok {
				continue
			}
		}
		result = append(result, *stored)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return []domain.Ticket{}, nil
	}
	result = result[offset:]
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memoryTicketRepository) ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, stored := range r.tickets {
		if stored.Status == status {
			result = append(result, *stored)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *memoryTicketRepository) UpdateWithVersion(ctx context.Context, id string, expectedVersion int64, patch TicketPatch) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	if patch.Status != nil {
		stored.Status = *patch.Status
	}
	if patch.Category != nil {
		stored.Category = *patch.Category
	}
	if patch.AssignedAgentID != nil {
		agentID := *patch.AssignedAgentID
		stored.AssignedAgentID = &agentID
	} else if patch.ClearAssignee {
		stored.AssignedAgentID = nil
	}
	if patch.ClosedAt != nil {
		closedAt := *patch.ClosedAt
		stored.ClosedAt = &closedAt
	} else if patch.ClearClosedAt {
		stored.ClosedAt = nil
	}
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()

	copied := *stored
	return &copied, nil
}

func (r *memoryTicketRepository) CountActiveByAssignee(ctx context.Context, agentID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, stored := range r.tickets {
		if stored.Status != domain.TicketStatusWaitingHuman {
			continue
		}
		if stored.AssignedAgentID != nil && *stored.AssignedAgentID == agentID {
			count++
		}
	}
	return count, nil
}

type memoryAuditRepository struct {
	mu     sync.Mutex
	seq    int64
	events []domain.AuditEvent
}

// NewMemoryAuditRepository returns an in-memory append-only audit
// store.
func NewMemoryAuditRepository() AuditRepository {
	return &memoryAuditRepository{}
}

func (r *memoryAuditRepository) Append(ctx context.Context, event *domain.AuditEvent) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	r.seq++
	event.Seq = r.seq
	stored := *event
	stored.Meta = copyMeta(event.Meta)
	r.events = append(r.events, stored)
	return event.Seq, nil
}

func (r *memoryAuditRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]domain.AuditEvent, 0)
	for _, stored := range r.events {
		if stored.TicketID != ticketID {
			continue
		}
		copied := stored
		copied.Meta = copyMeta(stored.Meta)
		result = append(result, copied)
	}
	return result, nil
}

func copyMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	copied := make(map[string]any, len(meta))
	for key, value := range meta {
		copied[key] = value
	}
	return copied
}

type memoryPolicyRepository struct {
	mu     sync.Mutex
	policy domain.TriagePolicy
}

// NewMemoryPolicyRepository returns an in-memory policy store seeded
// with the default policy.
func NewMemoryPolicyRepository() PolicyRepository {
	policy := domain.DefaultTriagePolicy()
	policy.Version = 1
	policy.UpdatedAt = time.Now().UTC()
	return &memoryPolicyRepository{policy: policy}
}

func (r *memoryPolicyRepository) Get(ctx context.Context) (domain.TriagePolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.policy, nil
}

func (r *memoryPolicyRepository) Save(ctx context.Context, policy domain.TriagePolicy) (domain.TriagePolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	policy.Version = r.policy.Version + 1
	policy.UpdatedAt = time.Now().UTC()
	r.policy = policy
	return policy, nil
}

type memoryUserRepository struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	byEmail map[string]*domain.User
}

// NewMemoryUserRepository returns an in-memory UserRepository.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]*domain.User),
	}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if _, exists := r.byEmail[email]; exists {
		return ErrDuplicate
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = email
	user.CreatedAt = time.Now().UTC()
	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[email] = &stored
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *memoryUserRepository) ListActiveAgents(ctx context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, stored := range r.byID {
		if stored.Role == domain.RoleAgent && stored.Active {
			result = append(result, *stored)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
