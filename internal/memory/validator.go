package memory

import (
	"fmt"
	"strings"
)

// Default policy values applied when a request leaves a field unset.
const (
	DefaultMinConfidence = 0.65
	DefaultMaxItems      = 5
)

// Policy is the per-request validation configuration. It is an immutable
// value: each save operation builds its own validator from the effective
// policy rather than sharing mutable engine state.
type Policy struct {
	MinConfidence            float64 `json:"minConfidence"`
	RequireVerificationSteps bool    `json:"requireVerificationSteps"`
	MaxItems                 int     `json:"maxItems"`
}

// PolicyOverrides carries the optional per-request overrides; nil pointers
// fall back to defaults.
type PolicyOverrides struct {
	MinConfidence            *float64 `json:"minConfidence,omitempty"`
	RequireVerificationSteps *bool    `json:"requireVerificationSteps,omitempty"`
	MaxItems                 *int     `json:"maxItems,omitempty"`
}

// EffectivePolicy resolves overrides against defaults.
func EffectivePolicy(o *PolicyOverrides) Policy {
	p := Policy{
		MinConfidence:            DefaultMinConfidence,
		RequireVerificationSteps: true,
		MaxItems:                 DefaultMaxItems,
	}
	if o == nil {
		return p
	}
	if o.MinConfidence != nil {
		p.MinConfidence = *o.MinConfidence
	}
	if o.RequireVerificationSteps != nil {
		p.RequireVerificationSteps = *o.RequireVerificationSteps
	}
	if o.MaxItems != nil && *o.MaxItems > 0 {
		p.MaxItems = *o.MaxItems
	}
	return p
}

// ValidationError reports a gate failure on the single-item save path.
// Batch saves report rejections as values, not errors.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Validator is the quality gate applied before any memory is admitted.
// Rejections are reported, never thrown: Validate returns ok=false with a
// reason string and the caller decides what to do with it.
type Validator struct {
	policy  Policy
	scanner SecretScanner
}

// NewValidator builds a validator scoped to one effective policy.
func NewValidator(policy Policy, scanner SecretScanner) *Validator {
	if scanner == nil {
		scanner = NewSecretScanner()
	}
	return &Validator{policy: policy, scanner: scanner}
}

// Validate applies the gate rules in order and returns the first failure.
func (v *Validator) Validate(l *LearningCandidate) (ok bool, reason string) {
	if len(strings.TrimSpace(l.Title)) < 4 {
		return false, "title too short"
	}
	if len(strings.TrimSpace(l.Content)) < 20 {
		return false, "content too short"
	}
	if len(l.Tags) < 1 {
		return false, "missing tags"
	}
	if !(l.Confidence >= 0 && l.Confidence <= 1) {
		return false, "confidence must be 0..1"
	}
	if l.Confidence < v.policy.MinConfidence {
		return false, fmt.Sprintf("confidence < %v", v.policy.MinConfidence)
	}
	if v.scanner.HasSecret(l.Content) {
		return false, "possible secret detected"
	}

	if l.Kind == KindProcedural && v.policy.RequireVerificationSteps {
		var verif, fix int
		if l.Triage != nil {
			verif = len(l.Triage.VerificationSteps)
			fix = len(l.Triage.FixSteps)
		}
		if verif < 1 {
			return false, "procedural requires triage.verificationSteps"
		}
		if fix < 1 {
			return false, "procedural requires triage.fixSteps"
		}
	}

	if l.EffectivePolarity() == PolarityNegative {
		if l.AntiPattern == nil || l.AntiPattern.Action == "" || l.AntiPattern.WhyBad == "" {
			return false, "negative memories require antiPattern.action + antiPattern.whyBad"
		}
	}
	return true, ""
}
