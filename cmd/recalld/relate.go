package main

import (
	"github.com/spf13/cobra"
)

var relateWeight float64

var relateCmd = &cobra.Command{
	Use:   "relate <memory-id-a> <memory-id-b>",
	Short: "Relate two memories",
	Long: `Merge a symmetric RELATED_TO edge between two memories. The pair is
canonicalized, so the argument order does not matter and repeated runs are
idempotent.

Examples:
  recalld relate mem_123 mem_456
  recalld relate mem_123 mem_456 --weight 0.8`,
	Args: cobra.ExactArgs(2),
	RunE: runRelate,
}

func init() {
	relateCmd.Flags().Float64Var(&relateWeight, "weight", -1, "relation weight 0..1 (default 0.5)")
}

func runRelate(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.engine.Relate(cmd.Context(), args[0], args[1], relateWeight); err != nil {
		return err
	}
	cmd.Printf("related %s <-> %s\n", args[0], args[1])
	return nil
}
