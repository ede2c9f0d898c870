package cli

import (
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/shub/internal/application"
	"github.com/ericfisherdev/shub/internal/fanout"
)

func dashboardCmd(services ServicesFunc) *cobra.Command {
	var (
		cached    bool
		resync    bool
		keepGoing bool
		workers   int
		watch     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the build status of your repositories",
		Long: `Show the build status of the latest commit of every repository you own.
Forks and archived repositories are left out.

The repository list is cached locally and only pulled from GitHub when the
cache is empty or --resync is given. Build statuses are fetched on every run.

Examples:
  shub dashboard
  shub dashboard --resync --workers 8
  shub dashboard --cached
  shub dashboard --watch 5m --keep-going`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if workers < 0 {
				return errors.New("--workers must not be negative")
			}
			if watch < 0 {
				return errors.New("--watch must not be negative")
			}

			ctx := cmd.Context()
			svc, err := services(ctx)
			if err != nil {
				return err
			}

			if cached {
				return svc.Dashboard.Print(ctx)
			}

			opts := application.RefreshOptions{
				Resync:  resync,
				Policy:  fanout.FailFast,
				Workers: workers,
			}
			if keepGoing {
				opts.Policy = fanout.Isolate
			}

			if watch > 0 {
				return svc.Dashboard.Watch(ctx, watch, opts, svc.Clear)
			}

			report, err := svc.Dashboard.Refresh(ctx, opts)
			if err != nil {
				slog.Debug("dashboard refresh stopped", "stage", report.Stage.String())
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "Print the cached statuses without contacting GitHub")
	cmd.Flags().BoolVar(&resync, "resync", false, "Pull the repository list from GitHub even when cached")
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Show the statuses that could be fetched when some lookups fail")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of concurrent status lookups (default from SHUB_CONCURRENCY)")
	cmd.Flags().DurationVar(&watch, "watch", 0, "Refresh on this interval until interrupted, e.g. 5m")

	cmd.MarkFlagsMutuallyExclusive("cached", "resync")
	cmd.MarkFlagsMutuallyExclusive("cached", "keep-going")
	cmd.MarkFlagsMutuallyExclusive("cached", "watch")

	return cmd
}
