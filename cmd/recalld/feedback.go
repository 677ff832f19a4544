package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/recalld/internal/engine"
)

var feedbackFlags struct {
	agentID       string
	sessionID     string
	used          []string
	useful        []string
	notUseful     []string
	neutral       []string
	prevented     []string
	updateUnrated bool
	quality       float64
	risk          float64
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Report how retrieved memories performed",
	Long: `Report usage feedback for a session. Every touched recall edge and
every co-used pair gets a Beta-posterior update with time decay.

Examples:
  recalld feedback --agent agent-1 --useful mem_123 --quality 1.0 --risk 0.0
  recalld feedback --agent agent-1 --used mem_123 --not-useful mem_456`,
	RunE: runFeedback,
}

func init() {
	f := feedbackCmd.Flags()
	f.StringVar(&feedbackFlags.agentID, "agent", "", "agent id (required)")
	f.StringVar(&feedbackFlags.sessionID, "session", "", "session id from retrieve")
	f.StringArrayVar(&feedbackFlags.used, "used", nil, "memory id that was used (repeatable)")
	f.StringArrayVar(&feedbackFlags.useful, "useful", nil, "memory id that helped (repeatable)")
	f.StringArrayVar(&feedbackFlags.notUseful, "not-useful", nil, "memory id that did not help (repeatable)")
	f.StringArrayVar(&feedbackFlags.neutral, "neutral", nil, "memory id with no signal (repeatable)")
	f.StringArrayVar(&feedbackFlags.prevented, "prevented-error", nil, "memory id that prevented a mistake (repeatable)")
	f.BoolVar(&feedbackFlags.updateUnrated, "update-unrated", true, "degrade trust in used-but-unrated memories")
	f.Float64Var(&feedbackFlags.quality, "quality", -1, "session quality 0..1 (default 0.7)")
	f.Float64Var(&feedbackFlags.risk, "risk", -1, "hallucination risk 0..1 (default 0.2)")
	_ = feedbackCmd.MarkFlagRequired("agent")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	req := &engine.FeedbackArgs{
		AgentID:           feedbackFlags.agentID,
		SessionID:         feedbackFlags.sessionID,
		UsedIDs:           feedbackFlags.used,
		UsefulIDs:         feedbackFlags.useful,
		NotUsefulIDs:      feedbackFlags.notUseful,
		NeutralIDs:        feedbackFlags.neutral,
		PreventedErrorIDs: feedbackFlags.prevented,
		UpdateUnratedUsed: &feedbackFlags.updateUnrated,
	}
	if feedbackFlags.quality >= 0 || feedbackFlags.risk >= 0 {
		m := &engine.SessionMetrics{}
		if feedbackFlags.quality >= 0 {
			q := feedbackFlags.quality
			m.Quality = &q
		}
		if feedbackFlags.risk >= 0 {
			r := feedbackFlags.risk
			m.HallucinationRisk = &r
		}
		req.Metrics = m
	}

	result, err := rt.engine.Feedback(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(result)
}
