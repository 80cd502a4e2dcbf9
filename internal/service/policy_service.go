package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// PolicyService fronts the policy store with a bounded-staleness
// snapshot cache. The cache sits on the triage decision path, so a
// read never blocks on the store while a fresh snapshot exists; an
// admin update invalidates it immediately.
type PolicyService struct {
	policies repository.PolicyRepository
	logger   *zap.Logger
	ttl      time.Duration

	mu        sync.Mutex
	snapshot  domain.TriagePolicy
	fetchedAt time.Time
}

// NewPolicyService constructs the service. ttl bounds how stale a
// snapshot may be.
func NewPolicyService(policies repository.PolicyRepository, logger *zap.Logger, ttl time.Duration) *PolicyService {
	return &PolicyService{policies: policies, logger: logger, ttl: ttl}
}

// Snapshot returns an immutable policy value for one decision. A
// stale-but-within-TTL snapshot is acceptable; when the store fails
// and an old snapshot exists, the old snapshot is served rather than
// failing the decision.
func (s *PolicyService) Snapshot(ctx context.Context) (domain.TriagePolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fetchedAt.IsZero() && time.Since(s.fetchedAt) < s.ttl {
		return s.snapshot, nil
	}

	policy, err := s.policies.Get(ctx)
	if err != nil {
		if !s.fetchedAt.IsZero() {
			s.logger.Warn("policy refresh failed, serving stale snapshot", zap.Error(err))
			return s.snapshot, nil
		}
		return domain.TriagePolicy{}, apperrors.MapError(err)
	}

	s.snapshot = policy
	s.fetchedAt = time.Now()
	return policy, nil
}

// Get returns the current policy record, bypassing the cache.
func (s *PolicyService) Get(ctx context.Context) (domain.TriagePolicy, error) {
	policy, err := s.policies.Get(ctx)
	if err != nil {
		return domain.TriagePolicy{}, apperrors.MapError(err)
	}
	return policy, nil
}

// Update validates and applies a partial policy update, then
// invalidates the snapshot so the next decision sees the new values.
func (s *PolicyService) Update(ctx context.Context, patch domain.TriagePolicyPatch) (domain.TriagePolicy, error) {
	current, err := s.policies.Get(ctx)
	if err != nil {
		return domain.TriagePolicy{}, apperrors.MapError(err)
	}

	updated := patch.Apply(current)
	if err := updated.Validate(); err != nil {
		return domain.TriagePolicy{}, err
	}

	saved, err := s.policies.Save(ctx, updated)
	if err != nil {
		return domain.TriagePolicy{}, apperrors.MapError(err)
	}

	s.mu.Lock()
	s.snapshot = saved
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("triage policy updated",
		zap.Bool("auto_close_enabled", saved.AutoCloseEnabled),
		zap.Float64("confidence_threshold", saved.ConfidenceThreshold),
		zap.Int("sla_hours", saved.SLAHours),
		zap.Int64("version", saved.Version))
	return saved, nil
}
