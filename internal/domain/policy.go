package domain

import (
	"time"

	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// TriagePolicy is the single admin-tunable policy record consulted by
// the triage engine and the SLA monitor. Changes take effect on the
// next snapshot read; past decisions are never re-triaged.
type TriagePolicy struct {
	AutoCloseEnabled    bool    `json:"autoCloseEnabled"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	SLAHours            int     `json:"slaHours"`
	Version             int64   `json:"-"`
	UpdatedAt           time.Time
}

// DefaultTriagePolicy mirrors the values seeded on first boot.
func DefaultTriagePolicy() TriagePolicy {
	return TriagePolicy{
		AutoCloseEnabled:    true,
		ConfidenceThreshold: 0.78,
		SLAHours:            24,
	}
}

// SLAWindow returns the breach window as a duration.
func (p TriagePolicy) SLAWindow() time.Duration {
	return time.Duration(p.SLAHours) * time.Hour
}

// Validate rejects out-of-range policy values before they touch the
// store.
func (p TriagePolicy) Validate() error {
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return apperrors.NewValidationError("confidenceThreshold must be within [0,1]",
			map[string]any{"confidenceThreshold": p.ConfidenceThreshold})
	}
	if p.SLAHours < 1 {
		return apperrors.NewValidationError("slaHours must be at least 1",
			map[string]any{"slaHours": p.SLAHours})
	}
	return nil
}

// TriagePolicyPatch carries a partial policy update; nil fields keep
// the stored value.
type TriagePolicyPatch struct {
	AutoCloseEnabled    *bool    `json:"autoCloseEnabled"`
	ConfidenceThreshold *float64 `json:"confidenceThreshold"`
	SLAHours            *int     `json:"slaHours"`
}

// Apply merges the patch over p and returns the result.
func (patch TriagePolicyPatch) Apply(p TriagePolicy) TriagePolicy {
	if patch.AutoCloseEnabled != nil {
		p.AutoCloseEnabled = *patch.AutoCloseEnabled
	}
	if patch.ConfidenceThreshold != nil {
		p.ConfidenceThreshold = *patch.ConfidenceThreshold
	}
	if patch.SLAHours != nil {
		p.SLAHours = *patch.SLAHours
	}
	return p
}
