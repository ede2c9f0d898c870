package cli

import (
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/shub/internal/application"
)

func starsCmd(services ServicesFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stars",
		Short: "Work with your starred repositories",
	}

	cmd.AddCommand(starsListCmd(services))

	return cmd
}

func starsListCmd(services ServicesFunc) *cobra.Command {
	var (
		lang  string
		short bool
	)

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the repositories you starred",
		Long: `List the repositories you starred, optionally filtered by language.
Prefix the language with ! to exclude it.

Examples:
  shub stars ls --lang go
  shub stars ls --lang '!javascript' --short`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := application.ParseLanguageFilter(lang)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := services(ctx)
			if err != nil {
				return err
			}

			stars, err := svc.Activity.Starred(ctx, filter)
			if err != nil {
				return err
			}
			return svc.Printer.PrintStars(stars, short)
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Only show this language; !LANG hides it")
	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only owner/name")

	return cmd
}
