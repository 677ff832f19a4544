package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultAutoRelatePolicy(t *testing.T) {
	p := DefaultAutoRelatePolicy()
	assert.True(t, p.Enabled)
	assert.Equal(t, 2, p.MinSharedTags)
	assert.InDelta(t, 0.2, p.MinWeight, 0.001)
	assert.Equal(t, 12, p.MaxCandidates)
	assert.True(t, p.SameKind)
	assert.True(t, p.SamePolarity)
	assert.Equal(t, []Kind{KindSemantic, KindProcedural}, p.AllowedKinds)
}

func TestBuildAutoRelatePolicy_Clamps(t *testing.T) {
	zero := 0
	negWeight := -0.5
	bigWeight := 1.5
	off := false

	p := BuildAutoRelatePolicy(&AutoRelateConfig{
		Enabled:       &off,
		MinSharedTags: &zero,
		MinWeight:     &negWeight,
		MaxCandidates: &zero,
	})
	assert.False(t, p.Enabled)
	assert.Equal(t, 1, p.MinSharedTags)
	assert.Zero(t, p.MinWeight)
	assert.Equal(t, 1, p.MaxCandidates)

	p = BuildAutoRelatePolicy(&AutoRelateConfig{MinWeight: &bigWeight})
	assert.InDelta(t, 1.0, p.MinWeight, 0.001)
}

func TestAutoRelatePolicy_AllowsKind(t *testing.T) {
	p := DefaultAutoRelatePolicy()
	assert.True(t, p.AllowsKind(KindSemantic))
	assert.True(t, p.AllowsKind(KindProcedural))
	assert.False(t, p.AllowsKind(KindEpisodic))

	// An empty allow-list admits every kind.
	p.AllowedKinds = nil
	assert.True(t, p.AllowsKind(KindEpisodic))
}
