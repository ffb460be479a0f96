package command

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackmichael/caughtup/internal/domain"
	"github.com/blackmichael/caughtup/internal/terminal"
)

const AppName = "caughtup"

// Service is what the read commands need from the timeline service.
type Service interface {
	Timeline(ctx context.Context, limit int, cursor string) (*domain.TimelinePage, error)
	TimelineWithHide(ctx context.Context, hide bool, limit int, cursor string) (*domain.TimelinePage, error)
	Thread(ctx context.Context, uri string, depth int) (*domain.ThreadView, error)
	HideSpoilers(ctx context.Context) (bool, error)
	SetHideSpoilers(ctx context.Context, hide bool) error
}

// Deps connects the commands to the application. Open returns a service and
// a function releasing it; Serve runs the HTTP server until ctx is done.
type Deps struct {
	Open  func(ctx context.Context, logger *slog.Logger) (Service, func() error, error)
	Serve func(ctx context.Context, logger *slog.Logger) error
}

// NewRootCmd builds the caughtup command tree.
func NewRootCmd(version string, deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "caughtup - a spoiler-free Bluesky timeline",
		Long:          "caughtup reads your Bluesky timeline and threads with spoilers for your team hidden until you're caught up.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output to stderr")

	cmd.AddCommand(
		newTimelineCmd(deps),
		newThreadCmd(deps),
		newPrefsCmd(deps),
		newServeCmd(deps),
	)

	return cmd
}

// cmdLogger logs to stderr: warnings only, or everything with --verbose.
func cmdLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func jsonMode(cmd *cobra.Command) bool {
	on, _ := cmd.Flags().GetBool("json")
	return on
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withService opens the service for the duration of fn.
func withService(cmd *cobra.Command, deps Deps, fn func(ctx context.Context, svc Service, r *terminal.Renderer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := deps.Open(ctx, cmdLogger(cmd))
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, svc, terminal.NewRenderer())
}
