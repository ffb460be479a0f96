package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackmichael/caughtup/internal/terminal"
)

func newPrefsCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "prefs [show|hide|show-all]",
		Short:     "Show or change the saved spoiler preference",
		Long:      "With no argument or \"show\", print the preference. \"hide\" hides spoilers; \"show-all\" shows everything.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"show", "hide", "show-all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "show"
			if len(args) == 1 {
				action = args[0]
			}

			return withService(cmd, deps, func(ctx context.Context, svc Service, _ *terminal.Renderer) error {
				switch action {
				case "hide":
					if err := svc.SetHideSpoilers(ctx, true); err != nil {
						return err
					}
				case "show-all":
					if err := svc.SetHideSpoilers(ctx, false); err != nil {
						return err
					}
				}

				hide, err := svc.HideSpoilers(ctx)
				if err != nil {
					return err
				}
				if jsonMode(cmd) {
					return writeJSON(cmd, map[string]bool{"hideSpoilers": hide})
				}
				if hide {
					fmt.Fprintln(cmd.OutOrStdout(), "spoilers hidden")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "spoilers shown (caught up)")
				}
				return nil
			})
		},
	}
	return cmd
}
