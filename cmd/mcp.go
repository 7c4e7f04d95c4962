package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/internal/api"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve research tools over MCP on stdio",
	Long:  "Exposes research_vendors, deduplicate_vendors and list_vendors as MCP tools on stdin/stdout. Logs go to stderr.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := api.New(api.Deps{
			Store:    env.Store,
			Pipeline: env.Pipeline,
			Catalog:  env.Catalog,
			Breakers: env.Breakers,
		}).MCPServer(version)

		zap.L().Info("mcp server started (stdio transport)")
		stdio := server.NewStdioServer(srv)
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return eris.Wrap(err, "mcp stdio server")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
