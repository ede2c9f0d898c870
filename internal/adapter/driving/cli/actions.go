package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func actionsCmd(services ServicesFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "Work with GitHub Actions",
	}

	cmd.AddCommand(actionsDeleteRunsCmd(services))

	return cmd
}

func actionsDeleteRunsCmd(services ServicesFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-runs <repo>",
		Short: "Delete every workflow run of a repository",
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

			n, err := svc.Activity.DeleteWorkflowRuns(ctx, id)
			if perr := svc.Printer.Printf("deleted %s from %s", plural(n, "workflow run", "workflow runs"), id); perr != nil {
				return perr
			}
			if err != nil {
				return fmt.Errorf("deleting workflow runs of %s: %w", id, err)
			}
			return nil
		},
	}
}
