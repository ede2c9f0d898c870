// Package cli implements the shub command tree on top of cobra.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/shub/internal/application"
	"github.com/ericfisherdev/shub/internal/domain/model"
	"github.com/ericfisherdev/shub/internal/domain/port/driven"
)

// Printer renders command output.
type Printer interface {
	driven.DashboardPrinter
	PrintRepositories(repos []model.RepositoryDetail) error
	PrintStars(repos []model.RepositoryDetail, short bool) error
	PrintCheckRuns(id model.RepoID, commit *model.Commit, runs []model.CheckRun, status model.BuildStatus) error
	PrintSettings(id model.RepoID, s model.RepositorySettings) error
	Printf(format string, args ...any) error
}

// Services bundles what the commands call into.
type Services struct {
	Dashboard *application.DashboardService
	Repos     *application.RepositoryService
	Activity  *application.ActivityService
	Printer   Printer
	// Clear runs before each watch cycle. Nil leaves earlier output in place.
	Clear func()
}

// ServicesFunc builds the services for the running command. Commands call it
// only once they have validated their arguments, so usage errors never reach
// the network.
type ServicesFunc func(ctx context.Context) (*Services, error)

// NewRootCmd returns the shub command tree.
func NewRootCmd(services ServicesFunc, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "shub",
		Short: "Work with your GitHub repositories from the terminal",
		Long: `shub lists, clones, forks and configures GitHub repositories and keeps a
local build status dashboard of the repositories you own.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(dashboardCmd(services))
	root.AddCommand(reposCmd(services))
	root.AddCommand(starsCmd(services))
	root.AddCommand(actionsCmd(services))
	root.AddCommand(workspaceCmd(services))

	return root
}

// resolveRepo parses "[owner/]name" and completes it with the configured user.
func resolveRepo(svc *Services, arg string) (model.RepoID, error) {
	partial, err := model.ParsePartialRepoID(arg)
	if err != nil {
		return model.RepoID{}, err
	}
	return svc.Repos.Resolve(partial)
}

func resolveRepos(svc *Services, args []string) ([]model.RepoID, error) {
	ids := make([]model.RepoID, 0, len(args))
	for _, arg := range args {
		id, err := resolveRepo(svc, arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// validateRepoArgs rejects malformed repository arguments before any service
// is built.
func validateRepoArgs(args ...string) error {
	for _, arg := range args {
		if _, err := model.ParsePartialRepoID(arg); err != nil {
			return err
		}
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
