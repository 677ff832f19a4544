package engine

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/recalld/internal/memory"
)

// SaveRequest is a batch of candidate learnings plus per-request policy
// overrides. The policy is resolved once per call and never shared.
type SaveRequest struct {
	AgentID   string `json:"agentId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`

	Learnings []memory.LearningCandidate `json:"learnings"`
	Policy    *memory.PolicyOverrides    `json:"policy,omitempty"`

	// Env annotates the auto-created case when the learnings themselves
	// carry no environment.
	Env *memory.EnvironmentFingerprint `json:"env,omitempty"`
}

// SavedLearning is one admitted learning.
type SavedLearning struct {
	ID      string `json:"id"`
	Deduped bool   `json:"deduped"`
}

// RejectedLearning is one gated-out learning with its reason.
type RejectedLearning struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// SaveResult covers every submitted candidate: admitted, rejected, and the
// auto-created case when symptoms were present.
type SaveResult struct {
	Saved    []SavedLearning    `json:"saved"`
	Rejected []RejectedLearning `json:"rejected"`
	CaseID   string             `json:"caseId,omitempty"`
}

// SaveLearning gates a single candidate through the validation policy and
// upserts it on success. Unlike the batch path, a gate failure here is an
// error: callers get a *memory.ValidationError carrying the reason.
func (s *Service) SaveLearning(ctx context.Context, l *memory.LearningCandidate, overrides *memory.PolicyOverrides) (UpsertResult, error) {
	policy := memory.EffectivePolicy(overrides)
	validator := memory.NewValidator(policy, s.scanner)
	if ok, reason := validator.Validate(l); !ok {
		LearningsRejectedTotal.Inc()
		return UpsertResult{}, &memory.ValidationError{Reason: reason}
	}
	return s.UpsertMemory(ctx, l)
}

// SaveLearnings gates, dedups, and persists a batch of learnings. Rejections
// never abort the batch; they are reported per item. Candidates beyond the
// policy's maxItems are dropped silently. When any admitted learning carried
// symptoms, a case is auto-created linking the batch.
func (s *Service) SaveLearnings(ctx context.Context, req *SaveRequest) (*SaveResult, error) {
	policy := memory.EffectivePolicy(req.Policy)
	validator := memory.NewValidator(policy, s.scanner)

	learnings := req.Learnings
	if len(learnings) > policy.MaxItems {
		learnings = learnings[:policy.MaxItems]
	}

	result := &SaveResult{
		Saved:    []SavedLearning{},
		Rejected: []RejectedLearning{},
	}

	var symptoms []string
	var positiveIDs, negativeIDs []string
	var caseTitle string
	var caseEnv *memory.EnvironmentFingerprint

	for i := range learnings {
		l := &learnings[i]
		if ok, reason := validator.Validate(l); !ok {
			LearningsRejectedTotal.Inc()
			result.Rejected = append(result.Rejected, RejectedLearning{Title: l.Title, Reason: reason})
			continue
		}

		saved, err := s.UpsertMemory(ctx, l)
		if err != nil {
			return nil, err
		}
		result.Saved = append(result.Saved, SavedLearning{ID: saved.ID, Deduped: saved.Deduped})

		if caseTitle == "" {
			caseTitle = strings.TrimSpace(l.Title)
		}
		if caseEnv == nil && l.Env != nil {
			caseEnv = l.Env
		}
		symptoms = append(symptoms, l.CollectSymptoms()...)
		if l.EffectivePolarity() == memory.PolarityNegative {
			negativeIDs = append(negativeIDs, saved.ID)
		} else {
			positiveIDs = append(positiveIDs, saved.ID)
		}
	}

	if len(normalizeSymptoms(symptoms)) > 0 {
		caseID, err := s.autoCase(ctx, req, caseTitle, symptoms, caseEnv, positiveIDs, negativeIDs)
		if err != nil {
			return nil, err
		}
		result.CaseID = caseID
	}

	s.emitWrite("saveLearnings", map[string]any{
		"saved":    len(result.Saved),
		"rejected": len(result.Rejected),
		"caseId":   result.CaseID,
	})
	return result, nil
}

// autoCase records the batch as a resolved case tying symptoms to the
// memories that addressed them. A session-scoped id keeps repeated saves of
// one session idempotent.
func (s *Service) autoCase(ctx context.Context, req *SaveRequest, title string, symptoms []string, env *memory.EnvironmentFingerprint, positiveIDs, negativeIDs []string) (string, error) {
	id := ""
	if req.SessionID != "" {
		id = "case_" + req.SessionID
	}
	if env == nil {
		env = req.Env
	}
	var fingerprint memory.EnvironmentFingerprint
	if env != nil {
		fingerprint = *env
	}

	now := s.now()
	c := &memory.Case{
		ID:                id,
		Title:             title,
		Summary:           title,
		Outcome:           memory.CaseResolved,
		Symptoms:          symptoms,
		Env:               fingerprint,
		ResolvedByIDs:     positiveIDs,
		NegativeMemoryIDs: negativeIDs,
		ResolvedAt:        &now,
	}
	return s.UpsertCase(ctx, c)
}

// CaptureEpisode distills one agent run into an episodic learning and routes
// it through the batch save gate.
func (s *Service) CaptureEpisode(ctx context.Context, args memory.EpisodeArgs) (*SaveResult, error) {
	name := strings.TrimSpace(args.WorkflowName)
	if name == "" {
		name = strings.TrimSpace(args.RunID)
	}
	if name == "" {
		name = s.now().UTC().Format("2006-01-02")
	}
	title := "Episode: " + name

	candidate := memory.BuildEpisodeLearning(args, title)
	return s.SaveLearnings(ctx, &SaveRequest{
		AgentID:   args.AgentID,
		SessionID: args.RunID,
		Learnings: []memory.LearningCandidate{candidate},
	})
}
