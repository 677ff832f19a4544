package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/recalld/internal/engine"
)

var saveCmd = &cobra.Command{
	Use:   "save [file]",
	Short: "Save a batch of learnings",
	Long: `Save a batch of candidate learnings from a JSON file or stdin.

The input is a save request:

  {
    "agentId": "agent-1",
    "sessionId": "session-abc",
    "learnings": [
      {
        "kind": "procedural",
        "title": "Fix npm EACCES on global installs",
        "content": "Use a user-owned prefix instead of sudo ...",
        "tags": ["npm", "permissions"],
        "confidence": 0.8,
        "triage": {
          "symptoms": ["EACCES"],
          "verificationSteps": ["npm config get prefix"],
          "fixSteps": ["npm config set prefix ~/.npm-global"]
        }
      }
    ]
  }

Each candidate passes the validation gate independently; rejections are
reported per item and never abort the batch.

Examples:
  recalld save learnings.json
  cat learnings.json | recalld save -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSave,
}

func runSave(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		in = f
	}

	var req engine.SaveRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("decoding save request: %w", err)
	}

	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	result, err := rt.engine.SaveLearnings(cmd.Context(), &req)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
