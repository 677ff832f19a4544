package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/recalld/internal/graph"
	"github.com/fyrsmithlabs/recalld/internal/memory"
)

func TestUpsertMemory_CreatesAndDedups(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertMemory(ctx, &memory.LearningCandidate{
		Kind:       memory.KindSemantic,
		Title:      "Fix npm global install permissions",
		Content:    "Switch the npm prefix to a user-owned directory.",
		Tags:       []string{"npm", "permissions"},
		Confidence: 0.9,
	})
	require.NoError(t, err)
	assert.False(t, first.Deduped)
	assert.NotEmpty(t, first.ID)

	// Differs only by casing, whitespace, and tag order.
	second, err := svc.UpsertMemory(ctx, &memory.LearningCandidate{
		Kind:       memory.KindSemantic,
		Title:      "FIX NPM Global   Install Permissions",
		Content:    "Switch the  npm prefix to a user-owned directory.",
		Tags:       []string{"Permissions", "NPM"},
		Confidence: 0.9,
	})
	require.NoError(t, err)
	assert.True(t, second.Deduped)
	assert.Equal(t, first.ID, second.ID)

	memories, err := store.ListMemories(ctx, graph.ListQuery{})
	require.NoError(t, err)
	assert.Len(t, memories, 1)
}

func TestUpsertMemory_RejectsInvalidKind(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.UpsertMemory(context.Background(), &memory.LearningCandidate{
		Kind:    "declarative",
		Title:   "Some title",
		Content: "Some content long enough to pass any gate.",
		Tags:    []string{"x"},
	})
	assert.ErrorIs(t, err, memory.ErrInvalidKind)
}

func TestUpsertMemory_NormalizesStoredFields(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	res, err := svc.UpsertMemory(ctx, &memory.LearningCandidate{
		Kind:       memory.KindProcedural,
		Title:      "  Fix deploy pipeline  ",
		Content:    "Rotate the deploy token and rerun the release job.",
		Tags:       []string{"Deploy", "CI", "deploy"},
		Confidence: 1.7,
		Triage:     &memory.Triage{Symptoms: []string{"  EPERM ", "eperm"}},
	})
	require.NoError(t, err)

	mems, err := store.GetMemoriesByID(ctx, []string{res.ID})
	require.NoError(t, err)
	require.Len(t, mems, 1)

	m := mems[0]
	assert.Equal(t, "Fix deploy pipeline", m.Title)
	assert.Equal(t, []string{"deploy", "ci"}, m.Tags)
	assert.InDelta(t, 1.0, m.Confidence, 1e-9)
	assert.InDelta(t, DefaultUtility, m.Utility, 1e-9)
	assert.Equal(t, []string{"eperm"}, m.Symptoms)
	assert.Equal(t, memory.PolarityPositive, m.Polarity)
	assert.NotEmpty(t, m.ContentHash)
	assert.False(t, m.CreatedAt.IsZero())
}

func TestUpsertMemory_UtilityDefaultsAndOverrides(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// A request decoded without a utility key gets the default, not zero.
	var omitted memory.LearningCandidate
	require.NoError(t, json.Unmarshal([]byte(`{
		"kind": "semantic",
		"title": "Pin the registry mirror",
		"content": "Point npm at the internal mirror to avoid rate limits.",
		"tags": ["npm"],
		"confidence": 0.9
	}`), &omitted))
	require.Nil(t, omitted.Utility)

	res, err := svc.UpsertMemory(ctx, &omitted)
	require.NoError(t, err)
	mems, err := store.GetMemoriesByID(ctx, []string{res.ID})
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.InDelta(t, DefaultUtility, mems[0].Utility, 1e-9)

	// An explicit zero is honored as zero.
	zero := 0.0
	res, err = svc.UpsertMemory(ctx, &memory.LearningCandidate{
		Kind:       memory.KindSemantic,
		Title:      "Retired workaround",
		Content:    "The proxy bug this worked around was fixed upstream.",
		Tags:       []string{"proxy"},
		Confidence: 0.8,
		Utility:    &zero,
	})
	require.NoError(t, err)
	mems, err = store.GetMemoriesByID(ctx, []string{res.ID})
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.InDelta(t, 0.0, mems[0].Utility, 1e-9)
}

func TestUpsertMemory_AttachesEnvironment(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	res, err := svc.UpsertMemory(ctx, &memory.LearningCandidate{
		Kind:       memory.KindSemantic,
		Title:      "Alpine needs build-base for cgo",
		Content:    "Install build-base before compiling cgo-dependent modules.",
		Tags:       []string{"alpine", "cgo"},
		Confidence: 0.8,
		Env:        &memory.EnvironmentFingerprint{OS: "linux", Distro: "alpine"},
	})
	require.NoError(t, err)

	mems, err := store.GetMemoriesByID(ctx, []string{res.ID})
	require.NoError(t, err)
	require.Len(t, mems, 1)
	require.NotNil(t, mems[0].Env)
	assert.Equal(t, "linux", mems[0].Env.OS)
}

func TestUpsertMemory_AutoRelatesByTags(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertMemory(ctx, &memory.LearningCandidate{
		Kind:       memory.KindSemantic,
		Title:      "npm cache lives under ~/.npm",
		Content:    "Clearing the npm cache resolves stale tarball checksums.",
		Tags:       []string{"npm", "cache"},
		Confidence: 0.8,
	})
	require.NoError(t, err)

	second, err := svc.UpsertMemory(ctx, &memory.LearningCandidate{
		Kind:       memory.KindSemantic,
		Title:      "npm cache verify detects corruption",
		Content:    "Run npm cache verify before wiping the whole cache.",
		Tags:       []string{"npm", "cache"},
		Confidence: 0.8,
	})
	require.NoError(t, err)

	edges, err := store.ListEdges(ctx, graph.EdgeQuery{})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, memory.EdgeRelatedTo, edges[0].Kind)

	a, b := graph.PairKey(first.ID, second.ID)
	assert.Equal(t, a, edges[0].Source)
	assert.Equal(t, b, edges[0].Target)
	// Identical tag sets: Jaccard weight 1.
	assert.InDelta(t, 1.0, edges[0].Strength, 1e-9)
}

func TestUpsertMemory_AutoRelateRespectsKindFilter(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertMemory(ctx, &memory.LearningCandidate{
		Kind:       memory.KindEpisodic,
		Title:      "Tuesday deploy trace",
		Content:    "Deploy of build 1243 succeeded after the token rotation.",
		Tags:       []string{"deploy", "ci"},
		Confidence: 0.7,
	})
	require.NoError(t, err)

	_, err = svc.UpsertMemory(ctx, &memory.LearningCandidate{
		Kind:       memory.KindEpisodic,
		Title:      "Wednesday deploy trace",
		Content:    "Deploy of build 1244 succeeded without intervention.",
		Tags:       []string{"deploy", "ci"},
		Confidence: 0.7,
	})
	require.NoError(t, err)

	// Episodic memories are outside the default allow-list.
	edges, err := store.ListEdges(ctx, graph.EdgeQuery{})
	require.NoError(t, err)
	assert.Empty(t, edges)
}
