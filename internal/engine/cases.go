package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/recalld/internal/memory"
)

// UpsertCase merges a case record by id, replacing its fields and memory
// links. Symptoms are normalized and deduplicated; the environment hash is
// computed when absent. A missing id gets a fresh one.
func (s *Service) UpsertCase(ctx context.Context, c *memory.Case) (string, error) {
	stored := *c
	if strings.TrimSpace(stored.ID) == "" {
		stored.ID = memory.NewID("case")
	}
	if stored.Outcome == "" {
		stored.Outcome = memory.CaseUnresolved
	}
	stored.Symptoms = normalizeSymptoms(stored.Symptoms)
	stored.Env = memory.EnsureEnvHash(stored.Env)

	if err := s.store.UpsertCase(ctx, &stored); err != nil {
		return "", fmt.Errorf("persisting case: %w", err)
	}
	s.emitWrite("upsertCase", map[string]any{
		"id":       stored.ID,
		"outcome":  string(stored.Outcome),
		"symptoms": len(stored.Symptoms),
	})
	return stored.ID, nil
}

// normalizeSymptoms lowercases, collapses whitespace, and deduplicates,
// dropping empties.
func normalizeSymptoms(symptoms []string) []string {
	seen := make(map[string]struct{}, len(symptoms))
	out := make([]string, 0, len(symptoms))
	for _, sym := range symptoms {
		n := memory.NormalizeSymptom(sym)
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
