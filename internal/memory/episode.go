package memory

import (
	"fmt"
	"regexp"
	"strings"
)

// Limits on what episode extraction pulls out of free text.
const (
	episodeMaxSignals    = 8
	episodeMinSignalLen  = 4
	episodeMaxSignalLen  = 120
	episodeMaxBullets    = 8
	episodeSummaryMaxLen = 240
)

var signalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bE[A-Z]{3,6}\b`),
	regexp.MustCompile(`\b[A-Z][A-Z0-9_]{2,}\b`),
	regexp.MustCompile(`(?i)\b(?:error|exception|denied|failed|permission)\b[^.\n]{0,80}`),
	regexp.MustCompile("`([^`]{4,80})`"),
	regexp.MustCompile(`'([^']{4,80})'`),
}

var bulletPrefix = regexp.MustCompile(`^(?:[-*]\s+|\d+[.)]\s+)`)

// ExtractSignalCandidates pulls recognizable error codes, shouting
// identifiers, and quoted spans out of prompt text, capped at eight.
func ExtractSignalCandidates(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, re := range signalPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			candidate := m[0]
			if len(m) > 1 && m[1] != "" {
				candidate = m[1]
			}
			candidate = strings.TrimSpace(candidate)
			if len(candidate) < episodeMinSignalLen || len(candidate) > episodeMaxSignalLen {
				continue
			}
			if _, ok := seen[candidate]; ok {
				continue
			}
			seen[candidate] = struct{}{}
			out = append(out, candidate)
			if len(out) >= episodeMaxSignals {
				return out
			}
		}
	}
	return out
}

// ExtractBulletLines returns up to max bullet or numbered-list lines from
// text, with their list markers stripped.
func ExtractBulletLines(text string, max int) []string {
	if max <= 0 {
		max = episodeMaxBullets
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !bulletPrefix.MatchString(line) {
			continue
		}
		out = append(out, bulletPrefix.ReplaceAllString(line, ""))
		if len(out) >= max {
			break
		}
	}
	return out
}

// EpisodeArgs describes one agent run to distill into an episodic memory.
type EpisodeArgs struct {
	AgentID      string
	RunID        string
	WorkflowName string
	Prompt       string
	Response     string
	Outcome      string // success, failure, partial, unknown
	Tags         []string
}

// BuildEpisodeLearning compiles an episodic learning candidate from a run:
// signals from the prompt become whenToUse, response bullets become
// howToApply, and the first response line becomes the summary.
func BuildEpisodeLearning(args EpisodeArgs, title string) LearningCandidate {
	signals := ExtractSignalCandidates(args.Prompt)
	steps := ExtractBulletLines(args.Response, episodeMaxBullets)

	summary := "Episode outcome recorded."
	for _, line := range strings.Split(strings.TrimSpace(args.Response), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			if len(line) > episodeSummaryMaxLen {
				line = line[:episodeSummaryMaxLen]
			}
			summary = line
			break
		}
	}

	var outcome string
	var evidence []string
	switch args.Outcome {
	case "success":
		outcome = "success"
	case "partial":
		outcome = "partial"
	case "failure":
		outcome = "dead_end"
	}
	if outcome == "" {
		outcome = "partial"
	} else {
		evidence = []string{fmt.Sprintf("outcome:%s", outcome)}
	}

	return LearningCandidate{
		Kind:       KindEpisodic,
		Title:      title,
		Summary:    summary,
		Content:    args.Response,
		WhenToUse:  signals,
		HowToApply: steps,
		Evidence:   evidence,
		Tags:       args.Tags,
		Outcome:    outcome,
		Confidence: 0.7,
	}
}
