package main

import (
	"github.com/spf13/cobra"

	"github.com/graphweave/graphweave/internal/mcptool"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the retrieve_context tool over stdio",
	Long: `Starts the Model Context Protocol server on stdin/stdout. An MCP
client (an LLM agent host) connects to it and calls retrieve_context.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, err := buildEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.close(ctx)

		eng.logger.Info("serving retrieve_context over stdio",
			"graph_store", eng.cfg.Graph.Store,
			"chunk_store", eng.cfg.Chunks.Store,
			"embedding_provider", eng.cfg.Embedding.Provider)

		svc := mcptool.NewService(eng.service, eng.cfg.Retrieval, eng.cfg.MCP, eng.logger)
		return mcptool.Run(ctx, svc, version)
	},
}
