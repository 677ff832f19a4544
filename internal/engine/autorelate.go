package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/fyrsmithlabs/recalld/internal/graph"
	"github.com/fyrsmithlabs/recalld/internal/memory"
)

// relatedCandidate pairs a tag-overlap match with its Jaccard weight.
type relatedCandidate struct {
	id     string
	weight float64
}

// autoRelateMemory links a freshly written memory to existing ones by tag
// overlap. Merging by canonical endpoints makes repeated runs idempotent.
func (s *Service) autoRelateMemory(ctx context.Context, m *memory.Memory) error {
	p := s.autoRelate
	tags := memory.NormalizeTags(m.Tags)
	if len(tags) == 0 {
		return nil
	}

	candidates, err := s.store.FindTagCandidates(ctx, graph.TagOverlapQuery{
		MemoryID:      m.ID,
		Tags:          tags,
		MinSharedTags: p.MinSharedTags,
		SameKind:      p.SameKind,
		Kind:          m.Kind,
		SamePolarity:  p.SamePolarity,
		Polarity:      m.Polarity,
		AllowedKinds:  p.AllowedKinds,
	})
	if err != nil {
		return fmt.Errorf("finding tag candidates: %w", err)
	}

	ranked := make([]relatedCandidate, 0, len(candidates))
	for _, c := range candidates {
		w := jaccardWeight(len(tags), c.TotalTags, c.SharedTags)
		if w < p.MinWeight {
			continue
		}
		ranked = append(ranked, relatedCandidate{id: c.ID, weight: w})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].id < ranked[j].id
	})
	if len(ranked) > p.MaxCandidates {
		ranked = ranked[:p.MaxCandidates]
	}

	for _, c := range ranked {
		if err := s.store.MergeRelatedEdge(ctx, m.ID, c.id, c.weight); err != nil {
			return fmt.Errorf("merging related edge to %s: %w", c.id, err)
		}
		AutoRelateEdgesTotal.Inc()
	}
	if len(ranked) > 0 {
		s.emitWrite("autoRelate", map[string]any{"id": m.ID, "related": len(ranked)})
	}
	return nil
}

// jaccardWeight is shared/union tag overlap for two tag sets of the given
// sizes.
func jaccardWeight(aTags, bTags, shared int) float64 {
	union := aTags + bTags - shared
	if union <= 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
