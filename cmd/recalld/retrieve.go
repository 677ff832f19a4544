package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/recalld/internal/engine"
)

var retrieveFlags struct {
	agentID   string
	prompt    string
	symptoms  []string
	tags      []string
	caseLimit   int
	fixLimit    int
	dontLimit   int
	useFallback bool
	useVector   bool
	blocks      bool
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Retrieve a ranked context bundle",
	Long: `Retrieve a context bundle for the given situation.

Cases matching the symptoms or environment supply the primary results; when
none match and --fallback is set, a full-text/tag (and optionally vector)
search runs over the memories themselves.

Examples:
  recalld retrieve --agent agent-1 --symptom EACCES --tag npm
  recalld retrieve --agent agent-1 --prompt "permission denied on npm install" --fallback --blocks`,
	RunE: runRetrieve,
}

func init() {
	f := retrieveCmd.Flags()
	f.StringVar(&retrieveFlags.agentID, "agent", "", "agent id (required)")
	f.StringVar(&retrieveFlags.prompt, "prompt", "", "free-text description of the situation")
	f.StringArrayVar(&retrieveFlags.symptoms, "symptom", nil, "observed symptom (repeatable)")
	f.StringArrayVar(&retrieveFlags.tags, "tag", nil, "relevant tag (repeatable)")
	f.IntVar(&retrieveFlags.caseLimit, "case-limit", 0, "max matching cases (default 5)")
	f.IntVar(&retrieveFlags.fixLimit, "fix-limit", 0, "max fix memories (default 8)")
	f.IntVar(&retrieveFlags.dontLimit, "dont-limit", 0, "max do-not-do memories (default 6)")
	f.BoolVar(&retrieveFlags.useFallback, "fallback", false, "search memories directly when no case matches")
	f.BoolVar(&retrieveFlags.useVector, "vector", false, "enable the vector-similarity fallback leg (implies --fallback)")
	f.BoolVar(&retrieveFlags.blocks, "blocks", false, "print injection blocks instead of JSON")
	_ = retrieveCmd.MarkFlagRequired("agent")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	req := &engine.RetrieveArgs{
		AgentID:   retrieveFlags.agentID,
		Prompt:    retrieveFlags.prompt,
		Symptoms:  retrieveFlags.symptoms,
		Tags:      retrieveFlags.tags,
		CaseLimit: retrieveFlags.caseLimit,
		FixLimit:  retrieveFlags.fixLimit,
		DontLimit: retrieveFlags.dontLimit,
	}
	if retrieveFlags.useFallback || retrieveFlags.useVector {
		t := true
		req.Fallback = &engine.FallbackConfig{Enabled: &t}
		if retrieveFlags.useVector {
			req.Fallback.Vector = &t
		}
	}

	bundle, err := rt.engine.RetrieveContextBundle(cmd.Context(), req)
	if err != nil {
		return err
	}

	if retrieveFlags.blocks {
		cmd.Println(bundle.Injection.FixBlock)
		cmd.Println()
		cmd.Println(bundle.Injection.DoNotDoBlock)
		return nil
	}
	return printJSON(bundle)
}
