package graph

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/recalld/internal/memory"
)

// storeFactories builds each Store implementation fresh per test.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "graph.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func runForEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			fn(t, s)
		})
	}
}

func testMemory(id, hash, title string, tags []string) *memory.Memory {
	return &memory.Memory{
		ID:          id,
		Kind:        memory.KindSemantic,
		Polarity:    memory.PolarityPositive,
		Title:       title,
		Content:     "content for " + title,
		Tags:        tags,
		Confidence:  0.8,
		Utility:     0.1,
		ContentHash: hash,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func TestStore_MemoryRoundTrip(t *testing.T) {
	runForEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m := testMemory("mem_1", "hash1", "First memory", []string{"npm", "cache"})
		require.NoError(t, s.UpsertMemory(ctx, m))

		id, err := s.FindIDByContentHash(ctx, "hash1")
		require.NoError(t, err)
		assert.Equal(t, "mem_1", id)

		id, err = s.FindIDByContentHash(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, id)

		got, err := s.GetMemoriesByID(ctx, []string{"mem_1", "mem_unknown"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, m.Title, got[0].Title)
		assert.Equal(t, m.Tags, got[0].Tags)
	})
}

func TestStore_ListMemoriesNewestFirst(t *testing.T) {
	runForEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.UpsertMemory(ctx, testMemory("mem_1", "h1", "Oldest", []string{"a"})))
		require.NoError(t, s.UpsertMemory(ctx, testMemory("mem_2", "h2", "Newest", []string{"a"})))

		got, err := s.ListMemories(ctx, ListQuery{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "mem_2", got[0].ID)
		assert.Equal(t, "mem_1", got[1].ID)

		limited, err := s.ListMemories(ctx, ListQuery{Limit: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, "mem_2", limited[0].ID)
	})
}

func TestStore_FindTagCandidates(t *testing.T) {
	runForEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.UpsertMemory(ctx, testMemory("mem_1", "h1", "Subject", []string{"npm", "cache", "linux"})))
		require.NoError(t, s.UpsertMemory(ctx, testMemory("mem_2", "h2", "Two shared", []string{"npm", "cache"})))
		require.NoError(t, s.UpsertMemory(ctx, testMemory("mem_3", "h3", "One shared", []string{"npm", "windows"})))

		out, err := s.FindTagCandidates(ctx, TagOverlapQuery{
			MemoryID:      "mem_1",
			Tags:          []string{"npm", "cache", "linux"},
			MinSharedTags: 2,
			SameKind:      true,
			Kind:          memory.KindSemantic,
			SamePolarity:  true,
			Polarity:      memory.PolarityPositive,
		})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "mem_2", out[0].ID)
		assert.Equal(t, 2, out[0].SharedTags)
		assert.Equal(t, 2, out[0].TotalTags)
	})
}

func TestStore_SearchTextAndTags(t *testing.T) {
	runForEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.UpsertMemory(ctx, testMemory("mem_1", "h1", "Fix npm cache corruption", []string{"npm", "cache"})))
		require.NoError(t, s.UpsertMemory(ctx, testMemory("mem_2", "h2", "Rotate deploy tokens", []string{"deploy"})))

		hits, err := s.SearchText(ctx, TextQuery{Query: "npm cache"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "mem_1", hits[0].Memory.ID)
		assert.Greater(t, hits[0].Score, 0.0)

		hits, err = s.FindByTags(ctx, []string{"Deploy"}, 5)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "mem_2", hits[0].Memory.ID)
	})
}

func TestStore_CaseUpsertAndMatch(t *testing.T) {
	runForEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		resolvedAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
		c := &memory.Case{
			ID:            "case_1",
			Title:         "npm EACCES on CI",
			Summary:       "Global install failed until the prefix moved",
			Outcome:       memory.CaseResolved,
			Symptoms:      []string{"eacces"},
			Env:           memory.EnsureEnvHash(memory.EnvironmentFingerprint{OS: "linux", CI: "github"}),
			ResolvedByIDs: []string{"mem_1"},
			ResolvedAt:    &resolvedAt,
		}
		require.NoError(t, s.UpsertCase(ctx, c))

		bySymptom, err := s.MatchCaseCandidates(ctx, CaseQuery{Symptoms: []string{"eacces"}})
		require.NoError(t, err)
		require.Len(t, bySymptom, 1)
		assert.Equal(t, []string{"mem_1"}, bySymptom[0].ResolvedByIDs)
		require.NotNil(t, bySymptom[0].ResolvedAt)
		assert.True(t, resolvedAt.Equal(*bySymptom[0].ResolvedAt))

		byEnv, err := s.MatchCaseCandidates(ctx, CaseQuery{EnvHash: c.Env.Hash})
		require.NoError(t, err)
		assert.Len(t, byEnv, 1)

		none, err := s.MatchCaseCandidates(ctx, CaseQuery{Symptoms: []string{"enoent"}})
		require.NoError(t, err)
		assert.Empty(t, none)

		// Re-upsert replaces, never duplicates.
		c.Symptoms = []string{"eacces", "eperm"}
		require.NoError(t, s.UpsertCase(ctx, c))
		again, err := s.MatchCaseCandidates(ctx, CaseQuery{Symptoms: []string{"eperm"}})
		require.NoError(t, err)
		require.Len(t, again, 1)
		assert.Len(t, again[0].Symptoms, 2)
	})
}

func TestStore_RecallEdgeUpdateIsAtomicReadModifyWrite(t *testing.T) {
	runForEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.EnsureAgent(ctx, "agent-1"))

		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		first, err := s.UpdateRecallEdge(ctx, "agent-1", "mem_1", func(prior *memory.BetaEdge) memory.BetaEdge {
			require.Nil(t, prior)
			return memory.BetaEdge{A: 1, B: 1, Strength: 0.5, Evidence: 2, UpdatedAt: now}
		})
		require.NoError(t, err)
		assert.InDelta(t, 0.5, first.Strength, 1e-9)

		second, err := s.UpdateRecallEdge(ctx, "agent-1", "mem_1", func(prior *memory.BetaEdge) memory.BetaEdge {
			require.NotNil(t, prior)
			assert.InDelta(t, 1.0, prior.A, 1e-9)
			next := *prior
			next.A += 2
			next.Strength = next.A / (next.A + next.B)
			next.Evidence = next.A + next.B
			next.UpdatedAt = now.Add(time.Hour)
			return next
		})
		require.NoError(t, err)
		assert.InDelta(t, 0.75, second.Strength, 1e-9)

		edges, err := s.GetRecallEdges(ctx, "agent-1", []string{"mem_1", "mem_2"})
		require.NoError(t, err)
		require.Contains(t, edges, "mem_1")
		assert.NotContains(t, edges, "mem_2")
		assert.InDelta(t, 0.75, edges["mem_1"].Strength, 1e-9)
		assert.True(t, edges["mem_1"].UpdatedAt.Equal(now.Add(time.Hour)))
	})
}

func TestStore_CoUsedEdgeCanonicalPair(t *testing.T) {
	runForEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC()

		set := func(e memory.BetaEdge) EdgeUpdate {
			return func(*memory.BetaEdge) memory.BetaEdge { return e }
		}
		_, err := s.UpdateCoUsedEdge(ctx, "mem_b", "mem_a", set(memory.BetaEdge{A: 2, B: 1, Strength: 2.0 / 3, Evidence: 3, UpdatedAt: now}))
		require.NoError(t, err)

		// Reversed order addresses the same edge.
		_, err = s.UpdateCoUsedEdge(ctx, "mem_a", "mem_b", func(prior *memory.BetaEdge) memory.BetaEdge {
			require.NotNil(t, prior)
			next := *prior
			next.Evidence = 4
			next.UpdatedAt = now
			return next
		})
		require.NoError(t, err)

		edges, err := s.ListEdges(ctx, EdgeQuery{})
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, "mem_a", edges[0].Source)
		assert.Equal(t, "mem_b", edges[0].Target)
		assert.InDelta(t, 4.0, edges[0].Evidence, 1e-9)
	})
}

func TestStore_ListEdgesFiltersByStrength(t *testing.T) {
	runForEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.MergeRelatedEdge(ctx, "mem_a", "mem_b", 0.9))
		require.NoError(t, s.MergeRelatedEdge(ctx, "mem_a", "mem_c", 0.1))

		edges, err := s.ListEdges(ctx, EdgeQuery{MinStrength: 0.5})
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, memory.EdgeRelatedTo, edges[0].Kind)
		assert.InDelta(t, 0.9, edges[0].Strength, 1e-9)
	})
}

func TestStore_MergeLink(t *testing.T) {
	runForEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.MergeLink(ctx, "mem_1", "ABOUT", "concept_npm", map[string]any{"weight": 0.8}))
		// Merging again must not error.
		require.NoError(t, s.MergeLink(ctx, "mem_1", "ABOUT", "concept_npm", nil))
	})
}

func TestPairKey(t *testing.T) {
	a, b := PairKey("mem_z", "mem_a")
	assert.Equal(t, "mem_a", a)
	assert.Equal(t, "mem_z", b)

	a, b = PairKey("mem_a", "mem_z")
	assert.Equal(t, "mem_a", a)
	assert.Equal(t, "mem_z", b)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.UpsertMemory(ctx, testMemory("mem_1", "h1", "Durable memory", []string{"npm"})))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	id, err := reopened.FindIDByContentHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "mem_1", id)
}
