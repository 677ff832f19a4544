package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/recalld/internal/memory"
)

var listFlags struct {
	kind  string
	limit int
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored memories",
	Long: `List stored memories, newest first.

Examples:
  recalld list --limit 20
  recalld list --kind procedural`,
	RunE: runList,
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listFlags.kind, "kind", "", "filter by kind (semantic, procedural, episodic)")
	f.IntVar(&listFlags.limit, "limit", 50, "max memories to return")
}

func runList(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	memories, err := rt.engine.ListMemories(cmd.Context(), memory.Kind(listFlags.kind), listFlags.limit)
	if err != nil {
		return err
	}
	return printJSON(memories)
}

var edgesFlags struct {
	limit       int
	minStrength float64
}

var edgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "List memory-to-memory edges",
	Long: `List co-used and related edges above a strength threshold, strongest
first.

Examples:
  recalld edges --min-strength 0.6 --limit 20`,
	RunE: runEdges,
}

func init() {
	f := edgesCmd.Flags()
	f.IntVar(&edgesFlags.limit, "limit", 50, "max edges to return")
	f.Float64Var(&edgesFlags.minStrength, "min-strength", 0, "minimum edge strength")
}

func runEdges(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	edges, err := rt.engine.ListMemoryEdges(cmd.Context(), edgesFlags.limit, edgesFlags.minStrength)
	if err != nil {
		return err
	}
	return printJSON(edges)
}
