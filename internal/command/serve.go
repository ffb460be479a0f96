package command

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and live feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return deps.Serve(ctx, cmdLogger(cmd))
		},
	}
}
