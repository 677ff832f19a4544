package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSignalCandidates(t *testing.T) {
	prompt := "npm install fails with EACCES, permission denied on /usr/lib/node_modules. " +
		"Running `npm config get prefix` shows the default."

	signals := ExtractSignalCandidates(prompt)
	require.NotEmpty(t, signals)
	assert.Contains(t, signals, "EACCES")
	assert.Contains(t, signals, "npm config get prefix")
}

func TestExtractSignalCandidates_Caps(t *testing.T) {
	prompt := "EAAAA EBBBB ECCCC EDDDD EEEEE EFFFF EGGGG EHHHH EIIII EJJJJ"
	signals := ExtractSignalCandidates(prompt)
	assert.LessOrEqual(t, len(signals), 8)
}

func TestExtractSignalCandidates_DropsShortAndLong(t *testing.T) {
	signals := ExtractSignalCandidates("`ab` is too short")
	assert.NotContains(t, signals, "ab")
}

func TestExtractBulletLines(t *testing.T) {
	response := "Here is what I did:\n" +
		"- checked the npm prefix\n" +
		"* moved it to ~/.npm-global\n" +
		"1. updated PATH\n" +
		"2) reinstalled the package\n" +
		"not a bullet line\n"

	steps := ExtractBulletLines(response, 0)
	assert.Equal(t, []string{
		"checked the npm prefix",
		"moved it to ~/.npm-global",
		"updated PATH",
		"reinstalled the package",
	}, steps)
}

func TestBuildEpisodeLearning(t *testing.T) {
	args := EpisodeArgs{
		AgentID:      "agent-1",
		RunID:        "run-42",
		WorkflowName: "deploy",
		Prompt:       "release failed with EPERM during asset upload",
		Response:     "Retried with elevated token.\n- rotated the deploy token\n- reran the pipeline",
		Outcome:      "success",
		Tags:         []string{"deploy", "ci"},
	}

	l := BuildEpisodeLearning(args, "Episode: deploy")
	assert.Equal(t, KindEpisodic, l.Kind)
	assert.Equal(t, "Episode: deploy", l.Title)
	assert.Equal(t, "Retried with elevated token.", l.Summary)
	assert.Equal(t, args.Response, l.Content)
	assert.Contains(t, l.WhenToUse, "EPERM")
	assert.Equal(t, []string{"rotated the deploy token", "reran the pipeline"}, l.HowToApply)
	assert.Equal(t, "success", l.Outcome)
	assert.Equal(t, []string{"outcome:success"}, l.Evidence)
	assert.InDelta(t, 0.7, l.Confidence, 0.001)
	assert.Nil(t, l.Utility) // starting utility is the writer's default
}

func TestBuildEpisodeLearning_OutcomeMapping(t *testing.T) {
	tests := []struct {
		in       string
		out      string
		evidence bool
	}{
		{"success", "success", true},
		{"partial", "partial", true},
		{"failure", "dead_end", true},
		{"", "partial", false},
		{"unknown", "partial", false},
	}
	for _, tt := range tests {
		t.Run("outcome "+tt.in, func(t *testing.T) {
			l := BuildEpisodeLearning(EpisodeArgs{Outcome: tt.in, Response: "done"}, "Episode")
			assert.Equal(t, tt.out, l.Outcome)
			if tt.evidence {
				assert.NotEmpty(t, l.Evidence)
			} else {
				assert.Empty(t, l.Evidence)
			}
		})
	}
}
