package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/spf13/cobra"

	"github.com/blackmichael/caughtup/internal/terminal"
)

func newThreadCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thread <at-uri>",
		Short: "Show a post and its replies with spoiler branches pruned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := strings.TrimSpace(args[0])
			if _, err := syntax.ParseATURI(uri); err != nil {
				return fmt.Errorf("invalid post uri %q: %w", uri, err)
			}
			depth, _ := cmd.Flags().GetInt("depth")
			if depth > 6 {
				return fmt.Errorf("--depth must be at most 6")
			}

			return withService(cmd, deps, func(ctx context.Context, svc Service, r *terminal.Renderer) error {
				view, err := svc.Thread(ctx, uri, depth)
				if err != nil {
					return err
				}
				if jsonMode(cmd) {
					return writeJSON(cmd, view)
				}
				fmt.Fprint(cmd.OutOrStdout(), r.Thread(view))
				return nil
			})
		},
	}

	cmd.Flags().Int("depth", -1, "reply levels to show below the root (default from THREAD_MAX_DEPTH)")
	return cmd
}
