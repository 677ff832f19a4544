package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/memory"
)

// DefaultUtility is the starting utility of a freshly created memory.
// Utility rises only through feedback.
const DefaultUtility = 0.2

// UpsertResult reports the outcome of a memory write.
type UpsertResult struct {
	ID      string `json:"id"`
	Deduped bool   `json:"deduped"`
}

// UpsertMemory dedups by content hash and creates the memory when new.
// A resubmission whose normalized payload matches an existing memory returns
// the existing id with Deduped set; nothing is written. Validation happens on
// the save-learnings path, not here.
func (s *Service) UpsertMemory(ctx context.Context, l *memory.LearningCandidate) (UpsertResult, error) {
	if !l.Kind.Valid() {
		return UpsertResult{}, memory.ErrInvalidKind
	}

	hash := memory.ContentHash(l)

	if cached, ok := s.dedupCache.Get(hash); ok {
		if id, ok := cached.(string); ok && id != "" {
			MemoriesSavedTotal.WithLabelValues("deduped").Inc()
			s.emitWrite("upsertMemory", map[string]any{"id": id, "deduped": true})
			return UpsertResult{ID: id, Deduped: true}, nil
		}
	}

	existing, err := s.store.FindIDByContentHash(ctx, hash)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("dedup lookup: %w", err)
	}
	if existing != "" {
		s.dedupCache.Set(hash, existing, 1)
		MemoriesSavedTotal.WithLabelValues("deduped").Inc()
		s.emitWrite("upsertMemory", map[string]any{"id": existing, "deduped": true})
		return UpsertResult{ID: existing, Deduped: true}, nil
	}

	m := s.buildMemory(l, hash)
	if err := s.store.UpsertMemory(ctx, m); err != nil {
		return UpsertResult{}, fmt.Errorf("persisting memory: %w", err)
	}
	s.dedupCache.Set(hash, m.ID, 1)

	if l.Env != nil {
		env := memory.EnsureEnvHash(*l.Env)
		if err := s.store.AttachEnvironment(ctx, m.ID, env); err != nil {
			return UpsertResult{}, fmt.Errorf("attaching environment: %w", err)
		}
	}

	// Vector indexing is best-effort; a failed add must not fail the write.
	if s.index != nil {
		text := m.Title + "\n" + m.Content
		meta := map[string]string{"kind": string(m.Kind), "polarity": string(m.Polarity)}
		if err := s.index.Add(ctx, m.ID, text, meta); err != nil {
			s.log.Warn("vector index add failed",
				zap.String("memory_id", m.ID),
				zap.Error(err))
		}
	}

	if s.shouldAutoRelate(m) {
		if err := s.autoRelateMemory(ctx, m); err != nil {
			s.log.Warn("auto-relate failed",
				zap.String("memory_id", m.ID),
				zap.Error(err))
		}
	}

	MemoriesSavedTotal.WithLabelValues("created").Inc()
	s.emitWrite("upsertMemory", map[string]any{"id": m.ID, "deduped": false})
	return UpsertResult{ID: m.ID, Deduped: false}, nil
}

func (s *Service) shouldAutoRelate(m *memory.Memory) bool {
	p := s.autoRelate
	if !p.Enabled {
		return false
	}
	if len(memory.NormalizeTags(m.Tags)) < p.MinSharedTags {
		return false
	}
	return p.AllowsKind(m.Kind)
}

// buildMemory materializes a candidate into a persistable memory. Tags are
// normalized and deduplicated but keep submission order for display; hashing
// sorts its own copy.
func (s *Service) buildMemory(l *memory.LearningCandidate, hash string) *memory.Memory {
	now := s.now()

	id := strings.TrimSpace(l.ID)
	if id == "" {
		id = memory.NewID("mem")
	}

	utility := DefaultUtility
	if l.Utility != nil {
		utility = memory.Clamp01(*l.Utility)
	}

	var sigs []memory.ErrorSignature
	for _, raw := range l.ErrorSignatures {
		text := memory.NormalizeSymptom(raw)
		if text == "" {
			continue
		}
		sigs = append(sigs, memory.ErrorSignature{
			ID:   memory.SHA256Hex(text),
			Text: text,
		})
	}

	m := &memory.Memory{
		ID:          id,
		Kind:        l.Kind,
		Polarity:    l.EffectivePolarity(),
		Title:       strings.TrimSpace(l.Title),
		Content:     l.Content,
		Summary:     l.Summary,
		WhenToUse:   l.WhenToUse,
		HowToApply:  l.HowToApply,
		Gotchas:     l.Gotchas,
		Evidence:    l.Evidence,
		Scope:       l.Scope,
		Tags:        dedupPreserveOrder(l.Tags),
		Confidence:  memory.Clamp01(l.Confidence),
		Utility:     utility,
		ContentHash: hash,
		Outcome:     l.Outcome,

		Triage:      l.Triage,
		Signals:     l.Signals,
		Distilled:   l.Distilled,
		AntiPattern: l.AntiPattern,

		Concepts:        l.Concepts,
		Symptoms:        l.CollectSymptoms(),
		FilePaths:       l.FilePaths,
		ToolNames:       l.ToolNames,
		ErrorSignatures: sigs,
		Env:             l.Env,

		CreatedAt: now,
		UpdatedAt: now,
	}
	return m
}

// dedupPreserveOrder normalizes tags keeping first-seen order.
func dedupPreserveOrder(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := memory.Normalize(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
