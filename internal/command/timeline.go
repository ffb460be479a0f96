package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackmichael/caughtup/internal/domain"
	"github.com/blackmichael/caughtup/internal/terminal"
)

func newTimelineCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show your home timeline with spoilers filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			cursor, _ := cmd.Flags().GetString("cursor")
			caughtUp, _ := cmd.Flags().GetBool("caught-up")
			if limit < 1 || limit > 100 {
				return fmt.Errorf("--limit must be between 1 and 100")
			}

			return withService(cmd, deps, func(ctx context.Context, svc Service, r *terminal.Renderer) error {
				var (
					page *domain.TimelinePage
					err  error
				)
				if caughtUp {
					page, err = svc.TimelineWithHide(ctx, false, limit, cursor)
				} else {
					page, err = svc.Timeline(ctx, limit, cursor)
				}
				if err != nil {
					return err
				}

				if jsonMode(cmd) {
					return writeJSON(cmd, page)
				}
				fmt.Fprint(cmd.OutOrStdout(), r.Timeline(page))
				return nil
			})
		},
	}

	cmd.Flags().Int("limit", 30, "number of posts to fetch (1-100)")
	cmd.Flags().String("cursor", "", "pagination cursor from a previous page")
	cmd.Flags().Bool("caught-up", false, "show spoilers for this run without changing the saved preference")
	return cmd
}
