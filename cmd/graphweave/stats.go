package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print store statistics and health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, err := buildEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.close(ctx)

		graphStats, err := eng.graph.Stats(ctx)
		if err != nil {
			return err
		}
		chunkStats, err := eng.chunks.Stats(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Graph store (%s)\n", eng.cfg.Graph.Store)
		fmt.Fprintf(out, "  nodes:  %d\n", graphStats.NodeCount)
		fmt.Fprintf(out, "  edges:  %d\n", graphStats.EdgeCount)
		fmt.Fprintf(out, "  health: %s\n", eng.graph.Health(ctx).State)
		fmt.Fprintf(out, "Chunk store (%s)\n", eng.cfg.Chunks.Store)
		fmt.Fprintf(out, "  chunks: %d\n", chunkStats.ChunkCount)
		fmt.Fprintf(out, "  linked: %d\n", chunkStats.LinkedCount)
		fmt.Fprintf(out, "  health: %s\n", eng.chunks.Health(ctx).State)

		relations := eng.graph.Registry().All()
		fmt.Fprintf(out, "Relation types: %d\n", len(relations))
		for _, rt := range relations {
			arrow := "->"
			if !rt.Directed {
				arrow = "--"
			}
			fmt.Fprintf(out, "  %s: %s %s %s (%s)\n",
				rt.Name, rt.SourceLabel, arrow, rt.TargetLabel, rt.Category)
		}
		return nil
	},
}
