package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/fyrsmithlabs/recalld/internal/memory"
)

// Defaults applied when a feedback call omits session metrics.
const (
	defaultQuality           = 0.7
	defaultHallucinationRisk = 0.2
)

// SessionMetrics qualifies how well a session went overall. Nil fields fall
// back to defaults.
type SessionMetrics struct {
	Quality           *float64 `json:"quality,omitempty"`
	HallucinationRisk *float64 `json:"hallucinationRisk,omitempty"`
}

// FeedbackArgs reports which memories a session touched and how they rated.
type FeedbackArgs struct {
	AgentID   string `json:"agentId"`
	SessionID string `json:"sessionId,omitempty"`

	UsedIDs           []string `json:"usedIds,omitempty"`
	UsefulIDs         []string `json:"usefulIds,omitempty"`
	NotUsefulIDs      []string `json:"notUsefulIds,omitempty"`
	NeutralIDs        []string `json:"neutralIds,omitempty"`
	PreventedErrorIDs []string `json:"preventedErrorIds,omitempty"`

	// UpdateUnratedUsed controls the target for used-but-unrated memories.
	// Nil defaults to true: unrated use degrades trust unless a caller
	// explicitly excuses it to the neutral target with false.
	UpdateUnratedUsed *bool `json:"updateUnratedUsed,omitempty"`

	Metrics *SessionMetrics `json:"metrics,omitempty"`
}

// UpdatedEdge is one post-update recall posterior.
type UpdatedEdge struct {
	ID   string          `json:"id"`
	Edge memory.BetaEdge `json:"edge"`
}

// FeedbackResult lists every touched recall edge after its update, sorted
// by memory id.
type FeedbackResult struct {
	Updated []UpdatedEdge `json:"updated"`
}

// feedbackPlan is the normalized form of a feedback call: the final used set
// with each memory's target y, plus the evidence weight.
type feedbackPlan struct {
	usedIDs []string // sorted
	targets map[string]float64
	weight  float64
}

// normalizeFeedback resolves the rating precedence rules:
// preventedError counts as useful, useful wins over notUseful, neutral
// removes a notUseful vote, and every rated id is folded into used.
func normalizeFeedback(args *FeedbackArgs) feedbackPlan {
	updateUnrated := true
	if args.UpdateUnratedUsed != nil {
		updateUnrated = *args.UpdateUnratedUsed
	}

	useful := make(map[string]struct{})
	for _, id := range args.UsefulIDs {
		useful[id] = struct{}{}
	}
	for _, id := range args.PreventedErrorIDs {
		useful[id] = struct{}{}
	}
	neutral := make(map[string]struct{})
	for _, id := range args.NeutralIDs {
		neutral[id] = struct{}{}
	}
	notUseful := make(map[string]struct{})
	for _, id := range args.NotUsefulIDs {
		if _, ok := useful[id]; ok {
			continue
		}
		if _, ok := neutral[id]; ok {
			continue
		}
		notUseful[id] = struct{}{}
	}

	used := make(map[string]struct{})
	for _, id := range args.UsedIDs {
		used[id] = struct{}{}
	}
	for id := range useful {
		used[id] = struct{}{}
	}
	for id := range notUseful {
		used[id] = struct{}{}
	}
	for id := range neutral {
		used[id] = struct{}{}
	}
	delete(used, "")

	quality := defaultQuality
	hallucinationRisk := defaultHallucinationRisk
	if args.Metrics != nil {
		if args.Metrics.Quality != nil {
			quality = memory.Clamp01(*args.Metrics.Quality)
		}
		if args.Metrics.HallucinationRisk != nil {
			hallucinationRisk = memory.Clamp01(*args.Metrics.HallucinationRisk)
		}
	}
	baseY := memory.Clamp01(quality - 0.7*hallucinationRisk)
	weight := 0.5 + 1.5*quality

	targets := make(map[string]float64, len(used))
	ids := make([]string, 0, len(used))
	for id := range used {
		ids = append(ids, id)
		switch {
		case hasID(useful, id):
			targets[id] = baseY
		case hasID(notUseful, id):
			targets[id] = 0.0
		case hasID(neutral, id):
			targets[id] = 0.5
		case !updateUnrated:
			// Explicitly excused: no directional signal, still a touch.
			targets[id] = 0.5
		default:
			// Unrated use degrades trust.
			targets[id] = 0.0
		}
	}
	sort.Strings(ids)

	return feedbackPlan{usedIDs: ids, targets: targets, weight: weight}
}

func hasID(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}

// decayUpdate is the Beta-Bernoulli posterior update with half-life decay.
// Prior evidence is discounted by 2^(-dt/H) before the new observation is
// added; both parameters stay at or above their floors, so strength remains
// strictly inside (0,1).
func decayUpdate(prior *memory.BetaEdge, now time.Time, halfLife time.Duration, w, y float64) memory.BetaEdge {
	a, b := memory.AMin, memory.BMin
	if prior != nil {
		dt := now.Sub(prior.UpdatedAt).Seconds()
		if dt < 0 {
			dt = 0
		}
		decay := math.Exp2(-dt / halfLife.Seconds())
		a = math.Max(memory.AMin, prior.A*decay)
		b = math.Max(memory.BMin, prior.B*decay)
	}
	a += w * y
	b += w * (1 - y)
	return memory.BetaEdge{
		A:         a,
		B:         b,
		Strength:  a / (a + b),
		Evidence:  a + b,
		UpdatedAt: now,
	}
}

// Feedback applies one session's ratings to the recall edges of every used
// memory and to the co-used edge of every unordered pair among them. Zero
// touched ids is a no-op success. Each edge's read-decay-update-write runs
// atomically in the store.
func (s *Service) Feedback(ctx context.Context, args *FeedbackArgs) (*FeedbackResult, error) {
	if args.AgentID == "" {
		return nil, memory.ErrEmptyAgentID
	}

	plan := normalizeFeedback(args)
	if len(plan.usedIDs) == 0 {
		return &FeedbackResult{Updated: []UpdatedEdge{}}, nil
	}

	if err := s.store.EnsureAgent(ctx, args.AgentID); err != nil {
		return nil, fmt.Errorf("ensuring agent: %w", err)
	}

	now := s.now()
	result := &FeedbackResult{Updated: make([]UpdatedEdge, 0, len(plan.usedIDs))}
	for _, id := range plan.usedIDs {
		y := plan.targets[id]
		edge, err := s.store.UpdateRecallEdge(ctx, args.AgentID, id, func(prior *memory.BetaEdge) memory.BetaEdge {
			return decayUpdate(prior, now, s.halfLife, plan.weight, y)
		})
		if err != nil {
			return nil, fmt.Errorf("updating recall edge for %s: %w", id, err)
		}
		FeedbackEdgesUpdatedTotal.WithLabelValues("recall").Inc()
		result.Updated = append(result.Updated, UpdatedEdge{ID: id, Edge: edge})
	}

	// A pair is credited only as far as its weaker member: y = min(y_i, y_j).
	for i := 0; i < len(plan.usedIDs); i++ {
		for j := i + 1; j < len(plan.usedIDs); j++ {
			a, b := plan.usedIDs[i], plan.usedIDs[j]
			y := math.Min(plan.targets[a], plan.targets[b])
			_, err := s.store.UpdateCoUsedEdge(ctx, a, b, func(prior *memory.BetaEdge) memory.BetaEdge {
				return decayUpdate(prior, now, s.halfLife, plan.weight, y)
			})
			if err != nil {
				return nil, fmt.Errorf("updating co-used edge %s/%s: %w", a, b, err)
			}
			FeedbackEdgesUpdatedTotal.WithLabelValues("co_used").Inc()
		}
	}

	s.emitWrite("feedback", map[string]any{
		"agentId":   args.AgentID,
		"sessionId": args.SessionID,
		"updated":   len(result.Updated),
	})
	return result, nil
}
