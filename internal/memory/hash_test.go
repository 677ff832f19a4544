package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "EACCES Error", "eacces error"},
		{"trims", "  hello  ", "hello"},
		{"collapses whitespace", "a \t b\n\nc", "a b c"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"NPM", "  permissions ", "npm", "", "Linux"})
	assert.Equal(t, []string{"linux", "npm", "permissions"}, got)
}

func TestContentHash_TagOrderStability(t *testing.T) {
	a := &LearningCandidate{Title: "Fix npm perms", Content: "use a prefix", Tags: []string{"A", "B"}}
	b := &LearningCandidate{Title: "Fix npm perms", Content: "use a prefix", Tags: []string{"B", "A"}}
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestContentHash_CaseAndWhitespaceStability(t *testing.T) {
	a := &LearningCandidate{Title: "Fix NPM Perms", Content: "Use  a   prefix", Tags: []string{"npm"}}
	b := &LearningCandidate{Title: "fix npm perms", Content: "use a prefix", Tags: []string{"NPM "}}
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestContentHash_StructuredFieldsMatter(t *testing.T) {
	base := LearningCandidate{Title: "Fix npm perms", Content: "use a prefix", Tags: []string{"npm"}}

	withSummary := base
	withSummary.Summary = "change the global prefix"
	assert.NotEqual(t, ContentHash(&base), ContentHash(&withSummary))

	withScope := base
	withScope.Scope = Scope{Repo: "acme/api"}
	assert.NotEqual(t, ContentHash(&base), ContentHash(&withScope))

	withSteps := base
	withSteps.HowToApply = []string{"npm config set prefix ~/.npm-global"}
	assert.NotEqual(t, ContentHash(&base), ContentHash(&withSteps))
}

func TestContentHash_PresetWins(t *testing.T) {
	l := &LearningCandidate{Title: "Fix npm perms", Content: "use a prefix", Tags: []string{"npm"}, ContentHash: "abc123"}
	assert.Equal(t, "abc123", ContentHash(l))
}

func TestEnvHash_AbsenceIsExplicit(t *testing.T) {
	withOS := EnvironmentFingerprint{OS: "linux"}
	withoutOS := EnvironmentFingerprint{}
	assert.NotEqual(t, EnvHash(withOS), EnvHash(withoutOS))

	// Same fields, same hash.
	assert.Equal(t, EnvHash(withOS), EnvHash(EnvironmentFingerprint{OS: "linux"}))
}

func TestEnvHash_ContainerFlag(t *testing.T) {
	yes, no := true, false
	inContainer := EnvironmentFingerprint{OS: "linux", Container: &yes}
	onHost := EnvironmentFingerprint{OS: "linux", Container: &no}
	unknown := EnvironmentFingerprint{OS: "linux"}

	// All three states are distinct observations: true, explicit false,
	// and not reported.
	assert.NotEqual(t, EnvHash(inContainer), EnvHash(unknown))
	assert.NotEqual(t, EnvHash(onHost), EnvHash(unknown))
	assert.NotEqual(t, EnvHash(inContainer), EnvHash(onHost))
}

func TestEnsureEnvHash(t *testing.T) {
	env := EnsureEnvHash(EnvironmentFingerprint{OS: "linux"})
	require.NotEmpty(t, env.Hash)
	assert.Equal(t, env.Hash, EnvHash(EnvironmentFingerprint{OS: "linux"}))

	// A preset hash is preserved.
	preset := EnsureEnvHash(EnvironmentFingerprint{Hash: "custom"})
	assert.Equal(t, "custom", preset.Hash)
}

func TestNewID(t *testing.T) {
	id := NewID("mem")
	assert.True(t, strings.HasPrefix(id, "mem_"))
	assert.NotEqual(t, id, NewID("mem"))
}
