package cli

import (
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/shub/internal/domain/model"
)

func workspaceCmd(services ServicesFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Find repositories cloned into the workspace",
		Long: `The workspace holds clones at <workspace>/<owner>/<name>. It is
SHUB_WORKSPACE_HOME, WORKSPACE_HOME or ~/workspace.`,
	}

	cmd.AddCommand(workspaceListCmd(services))
	cmd.AddCommand(workspaceLocateCmd(services))

	return cmd
}

func workspaceListCmd(services ServicesFunc) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the cloned repositories",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := services(cmd.Context())
			if err != nil {
				return err
			}

			projects, err := svc.Repos.Projects()
			if err != nil {
				return err
			}
			for _, id := range projects {
				if err := svc.Printer.Printf("%s", id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func workspaceLocateCmd(services ServicesFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <repo>",
		Short: "Print the directory of a cloned repository",
		Long: `Print the directory of a cloned repository. A bare name matches any
owner, preferring your own clone.

Example:
  cd "$(shub workspace locate dotfiles)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			partial, err := model.ParsePartialRepoID(args[0])
			if err != nil {
				return err
			}

			svc, err := services(cmd.Context())
			if err != nil {
				return err
			}

			dir, err := svc.Repos.Locate(partial)
			if err != nil {
				return err
			}
			return svc.Printer.Printf("%s", dir)
		},
	}
}
