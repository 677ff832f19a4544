package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fyrsmithlabs/recalld/internal/memory"
)

// MemStore is an in-memory Store backed by mutex-guarded maps. It is the
// reference implementation used in tests and for embedded callers that do
// not need persistence.
type MemStore struct {
	mu sync.RWMutex

	memories map[string]*memory.Memory
	order    []string // insertion order, for stable listing
	byHash   map[string]string

	envs   map[string]memory.EnvironmentFingerprint
	memEnv map[string]string

	cases map[string]*memory.Case

	agents  map[string]struct{}
	recall  map[string]map[string]memory.BetaEdge // agentID -> memoryID -> edge
	coUsed  map[string]memory.BetaEdge            // "a|b" canonical
	related map[string]relatedEdge                // "a|b" canonical
	links   map[string]map[string]any             // "from|rel|to" -> props
}

type relatedEdge struct {
	weight    float64
	updatedAt time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		memories: make(map[string]*memory.Memory),
		byHash:   make(map[string]string),
		envs:     make(map[string]memory.EnvironmentFingerprint),
		memEnv:   make(map[string]string),
		cases:    make(map[string]*memory.Case),
		agents:   make(map[string]struct{}),
		recall:   make(map[string]map[string]memory.BetaEdge),
		coUsed:   make(map[string]memory.BetaEdge),
		related:  make(map[string]relatedEdge),
		links:    make(map[string]map[string]any),
	}
}

// Close implements Store. The in-memory store holds no resources.
func (s *MemStore) Close() error { return nil }

func pairID(a, b string) string {
	a, b = PairKey(a, b)
	return a + "|" + b
}

// UpsertMemory inserts a new memory node.
func (s *MemStore) UpsertMemory(ctx context.Context, m *memory.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memories[m.ID]; ok {
		return fmt.Errorf("upserting memory %s: %w", m.ID, ErrDuplicateID)
	}
	cp := *m
	s.memories[m.ID] = &cp
	s.order = append(s.order, m.ID)
	s.byHash[m.ContentHash] = m.ID
	return nil
}

// FindIDByContentHash returns the existing id for hash, or "".
func (s *MemStore) FindIDByContentHash(ctx context.Context, hash string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byHash[hash], nil
}

// AttachEnvironment merges the environment node and links the memory to it.
func (s *MemStore) AttachEnvironment(ctx context.Context, memoryID string, env memory.EnvironmentFingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memories[memoryID]; !ok {
		return fmt.Errorf("attaching environment to %s: %w", memoryID, ErrNotFound)
	}
	if _, ok := s.envs[env.Hash]; !ok {
		s.envs[env.Hash] = env
	}
	s.memEnv[memoryID] = env.Hash
	return nil
}

// GetMemoriesByID fetches memories preserving the order of ids.
func (s *MemStore) GetMemoriesByID(ctx context.Context, ids []string) ([]memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]memory.Memory, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.memories[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

// ListMemories returns memories matching the query, newest first.
func (s *MemStore) ListMemories(ctx context.Context, q ListQuery) ([]memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]memory.Memory, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		m := s.memories[s.order[i]]
		if q.Kind != "" && m.Kind != q.Kind {
			continue
		}
		out = append(out, *m)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// FindTagCandidates returns memories sharing at least MinSharedTags tags.
func (s *MemStore) FindTagCandidates(ctx context.Context, q TagOverlapQuery) ([]TagCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := tagSet(q.Tags)
	var out []TagCandidate
	for _, id := range s.order {
		m := s.memories[id]
		if m.ID == q.MemoryID {
			continue
		}
		if q.SameKind && m.Kind != q.Kind {
			continue
		}
		if q.SamePolarity && m.Polarity != q.Polarity {
			continue
		}
		if len(q.AllowedKinds) > 0 && !kindAllowed(q.AllowedKinds, m.Kind) {
			continue
		}
		shared := 0
		for _, t := range memory.NormalizeTags(m.Tags) {
			if _, ok := want[t]; ok {
				shared++
			}
		}
		if shared < q.MinSharedTags {
			continue
		}
		out = append(out, TagCandidate{ID: m.ID, SharedTags: shared, TotalTags: len(memory.NormalizeTags(m.Tags))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SharedTags != out[j].SharedTags {
			return out[i].SharedTags > out[j].SharedTags
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func kindAllowed(allowed []memory.Kind, k memory.Kind) bool {
	for _, a := range allowed {
		if a == k {
			return true
		}
	}
	return false
}

// SearchText scores memories by term matches over title and content.
func (s *MemStore) SearchText(ctx context.Context, q TextQuery) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := TextTerms(q.Query)
	var hits []Hit
	for _, id := range s.order {
		m := s.memories[id]
		if score := TextScore(m, terms); score > 0 {
			hits = append(hits, Hit{Memory: *m, Score: score})
		}
	}
	sortHits(hits)
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// FindByTags scores memories by overlap with the given normalized tags.
func (s *MemStore) FindByTags(ctx context.Context, tags []string, limit int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := tagSet(memory.NormalizeTags(tags))
	if len(want) == 0 {
		return nil, nil
	}
	var hits []Hit
	for _, id := range s.order {
		m := s.memories[id]
		shared := 0
		for _, t := range memory.NormalizeTags(m.Tags) {
			if _, ok := want[t]; ok {
				shared++
			}
		}
		if shared == 0 {
			continue
		}
		hits = append(hits, Hit{Memory: *m, Score: float64(shared) / float64(len(want))})
	}
	sortHits(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Memory.ID < hits[j].Memory.ID
	})
}

// UpsertCase merges a case by id, replacing fields and links.
func (s *MemStore) UpsertCase(ctx context.Context, c *memory.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.cases[c.ID] = &cp
	if _, ok := s.envs[c.Env.Hash]; !ok && c.Env.Hash != "" {
		s.envs[c.Env.Hash] = c.Env
	}
	return nil
}

// MatchCaseCandidates returns cases sharing a symptom or environment hash.
func (s *MemStore) MatchCaseCandidates(ctx context.Context, q CaseQuery) ([]memory.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := tagSet(q.Symptoms)
	var out []memory.Case
	for _, c := range s.cases {
		match := q.EnvHash != "" && c.Env.Hash == q.EnvHash
		if !match {
			for _, sym := range c.Symptoms {
				if _, ok := want[sym]; ok {
					match = true
					break
				}
			}
		}
		if match {
			out = append(out, *c)
		}
	}
	// Deterministic order for the engine's ranking pass.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// EnsureAgent merges the agent node by id.
func (s *MemStore) EnsureAgent(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agentID] = struct{}{}
	return nil
}

// GetRecallEdges returns existing posteriors keyed by memory id.
func (s *MemStore) GetRecallEdges(ctx context.Context, agentID string, memoryIDs []string) (map[string]memory.BetaEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]memory.BetaEdge)
	edges, ok := s.recall[agentID]
	if !ok {
		return out, nil
	}
	for _, id := range memoryIDs {
		if e, ok := edges[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

// UpdateRecallEdge atomically applies update to one agent->memory edge.
func (s *MemStore) UpdateRecallEdge(ctx context.Context, agentID, memoryID string, update EdgeUpdate) (memory.BetaEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edges, ok := s.recall[agentID]
	if !ok {
		edges = make(map[string]memory.BetaEdge)
		s.recall[agentID] = edges
	}
	var prior *memory.BetaEdge
	if e, ok := edges[memoryID]; ok {
		prior = &e
	}
	next := update(prior)
	edges[memoryID] = next
	return next, nil
}

// UpdateCoUsedEdge atomically applies update to the canonical pair edge.
func (s *MemStore) UpdateCoUsedEdge(ctx context.Context, a, b string, update EdgeUpdate) (memory.BetaEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairID(a, b)
	var prior *memory.BetaEdge
	if e, ok := s.coUsed[key]; ok {
		prior = &e
	}
	next := update(prior)
	s.coUsed[key] = next
	return next, nil
}

// MergeRelatedEdge merges the symmetric RELATED_TO edge, overwriting weight.
func (s *MemStore) MergeRelatedEdge(ctx context.Context, a, b string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.related[pairID(a, b)] = relatedEdge{weight: weight, updatedAt: time.Now()}
	return nil
}

// MergeLink merges a generic named relationship with properties.
func (s *MemStore) MergeLink(ctx context.Context, fromID, relType, toID string, props map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fromID + "|" + relType + "|" + toID
	merged, ok := s.links[key]
	if !ok {
		merged = make(map[string]any, len(props))
	}
	for k, v := range props {
		merged[k] = v
	}
	s.links[key] = merged
	return nil
}

// ListEdges exports co-used and related edges above MinStrength.
func (s *MemStore) ListEdges(ctx context.Context, q EdgeQuery) ([]memory.EdgeExport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []memory.EdgeExport
	for key, e := range s.coUsed {
		if e.Strength < q.MinStrength {
			continue
		}
		a, b := splitPair(key)
		out = append(out, memory.EdgeExport{
			Source: a, Target: b, Kind: memory.EdgeCoUsed,
			Strength: e.Strength, Evidence: e.Evidence, UpdatedAt: e.UpdatedAt,
		})
	}
	for key, e := range s.related {
		if e.weight < q.MinStrength {
			continue
		}
		a, b := splitPair(key)
		out = append(out, memory.EdgeExport{
			Source: a, Target: b, Kind: memory.EdgeRelatedTo,
			Strength: e.weight, UpdatedAt: e.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func splitPair(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
