package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajranjith/gamecheck/internal/mcpserve"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Serve the list_checks, scan_games, plan_fix and apply_fix tools over
the Model Context Protocol on stdin/stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			opts := []mcpserve.Option{mcpserve.WithPolicy(a.cfg.Policy)}
			if a.ledger != nil {
				opts = append(opts, mcpserve.WithIndex(a.ledger))
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return mcpserve.NewServer(Version, a.cat, a.store, opts...).Run(ctx)
		},
	}
}
