package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/shub/internal/domain/model"
)

func reposCmd(services ServicesFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "repos",
		Aliases: []string{"repo"},
		Short:   "Manage your repositories",
		Long: `List, clone, fork and configure repositories.

A repository is given as owner/name, or as a bare name for one of your own.`,
	}

	cmd.AddCommand(reposListCmd(services))
	cmd.AddCommand(reposSyncCmd(services))
	cmd.AddCommand(reposStatusCmd(services))
	cmd.AddCommand(reposCloneCmd(services))
	cmd.AddCommand(reposForkCmd(services))
	cmd.AddCommand(reposBrowseCmd(services))
	cmd.AddCommand(reposSettingsCmd(services))

	return cmd
}

func reposListCmd(services ServicesFunc) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the repositories you own",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := services(ctx)
			if err != nil {
				return err
			}

			repos, err := svc.Repos.ListOwned(ctx)
			if err != nil {
				return err
			}
			return svc.Printer.PrintRepositories(repos)
		},
	}
}

func reposSyncCmd(services ServicesFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh the cached repository list from GitHub",
		Long: `Pull the list of repositories you own into the local cache. Cached build
statuses are kept. Repositories that disappeared from GitHub stay cached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := services(ctx)
			if err != nil {
				return err
			}

			n, err := svc.Dashboard.Sync(ctx)
			if err != nil {
				return err
			}
			return svc.Printer.Printf("synced %s", plural(n, "repository", "repositories"))
		},
	}
}

func reposStatusCmd(services ServicesFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status <repo>",
		Short: "Show the check runs of a repository's latest commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateRepoArgs(args...); err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := services(ctx)
			if err != nil {
				return err
			}

			id, err := resolveRepo(svc, args[0])
			if err != nil {
				return err
			}

			status, err := svc.Repos.BuildStatus(ctx, id)
			if err != nil {
				return err
			}
			return svc.Printer.PrintCheckRuns(status.ID, status.Commit, status.Runs, status.Status)
		},
	}
}

func reposCloneCmd(services ServicesFunc) *cobra.Command {
	var ssh bool

	cmd := &cobra.Command{
		Use:   "clone <repo>",
		Short: "Clone a repository into the workspace",
		Long: `Clone a repository into <workspace>/<owner>/<name>. The workspace is
SHUB_WORKSPACE_HOME, WORKSPACE_HOME or ~/workspace.

Examples:
  shub repos clone dotfiles
  shub repos clone spf13/cobra --ssh`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateRepoArgs(args...); err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := services(ctx)
			if err != nil {
				return err
			}

			id, err := resolveRepo(svc, args[0])
			if err != nil {
				return err
			}

			dir, err := svc.Repos.Clone(ctx, id, ssh)
			if err != nil {
				return err
			}
			return svc.Printer.Printf("cloned %s into %s", id, dir)
		},
	}

	cmd.Flags().BoolVar(&ssh, "ssh", false, "Clone over SSH instead of HTTPS")

	return cmd
}

func reposForkCmd(services ServicesFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "fork <owner/repo>",
		Short: "Fork a repository into your account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseRepoID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := services(ctx)
			if err != nil {
				return err
			}

			fork, err := svc.Repos.Fork(ctx, id)
			if err != nil {
				return err
			}
			return svc.Printer.Printf("forked %s to %s", id, fork.ID)
		},
	}
}

func reposBrowseCmd(services ServicesFunc) *cobra.Command {
	var upstream bool

	cmd := &cobra.Command{
		Use:   "browse <repo>",
		Short: "Open a repository in the web browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateRepoArgs(args...); err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := services(ctx)
			if err != nil {
				return err
			}

			id, err := resolveRepo(svc, args[0])
			if err != nil {
				return err
			}

			_, err = svc.Repos.Browse(ctx, id, upstream)
			return err
		},
	}

	cmd.Flags().BoolVar(&upstream, "upstream", false, "Open the repository this one was forked from")

	return cmd
}

func reposSettingsCmd(services ServicesFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "View, save and apply merge settings",
		Long: `Work with the merge settings of repositories: allow_rebase_merge,
allow_squash_merge, allow_auto_merge, delete_branch_on_merge and
allow_merge_commit. Settings files are YAML and must set all five keys.`,
	}

	cmd.AddCommand(settingsViewCmd(services))
	cmd.AddCommand(settingsDownloadCmd(services))
	cmd.AddCommand(settingsApplyCmd(services))
	cmd.AddCommand(settingsCopyCmd(services))

	return cmd
}

func settingsViewCmd(services ServicesFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "view <repo>",
		Short: "Print the merge settings of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateRepoArgs(args...); err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := services(ctx)
			if err != nil {
				return err
			}

			id, err := resolveRepo(svc, args[0])
			if err != nil {
				return err
			}

			settings, err := svc.Repos.Settings(ctx, id)
			if err != nil {
				return err
			}
			return svc.Printer.PrintSettings(id, settings)
		},
	}
}

func settingsDownloadCmd(services ServicesFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "download <repo> <file>",
		Short: "Save the merge settings of a repository to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateRepoArgs(args[0]); err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := services(ctx)
			if err != nil {
				return err
			}

			id, err := resolveRepo(svc, args[0])
			if err != nil {
				return err
			}

			if err := svc.Repos.DownloadSettings(ctx, id, args[1]); err != nil {
				return err
			}
			return svc.Printer.Printf("saved settings of %s to %s", id, args[1])
		},
	}
}

func settingsApplyCmd(services ServicesFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <file> <repo>...",
		Short: "Apply a settings file to one or more repositories",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateRepoArgs(args[1:]...); err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := services(ctx)
			if err != nil {
				return err
			}

			targets, err := resolveRepos(svc, args[1:])
			if err != nil {
				return err
			}

			updated, err := svc.Repos.ApplySettings(ctx, args[0], targets)
			return reportUpdated(svc, updated, err)
		},
	}
}

func settingsCopyCmd(services ServicesFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <from> <to>...",
		Short: "Copy the merge settings of one repository to others",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateRepoArgs(args...); err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := services(ctx)
			if err != nil {
				return err
			}

			ids, err := resolveRepos(svc, args)
			if err != nil {
				return err
			}

			updated, err := svc.Repos.CopySettings(ctx, ids[0], ids[1:])
			return reportUpdated(svc, updated, err)
		},
	}
}

// reportUpdated prints the repositories that were updated, then returns err
// so partial failures still exit non-zero.
func reportUpdated(svc *Services, updated []model.RepoID, err error) error {
	for _, id := range updated {
		if perr := svc.Printer.Printf("updated %s", id); perr != nil {
			return perr
		}
	}
	if err != nil {
		return fmt.Errorf("updated %s: %w", plural(len(updated), "repository", "repositories"), err)
	}
	return nil
}
