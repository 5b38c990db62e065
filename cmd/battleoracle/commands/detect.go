package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/battleoracle/internal/server/handler"
)

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "detect <title>",
		Short:   "Show what the detector and market policy make of a stream title",
		Example: `  battleoracle detect "Pokemon Showdown: Ash vs. Misty"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			preview := handler.BuildPreview(handler.PreviewRequest{Title: strings.Join(args, " ")})
			return printJSON(cmd.OutOrStdout(), preview)
		},
	}
}

func resolveCmd() *cobra.Command {
	var p1, p2 string
	cmd := &cobra.Command{
		Use:     "resolve <title>",
		Short:   "Resolve the winner of a known match from a stream title",
		Example: `  battleoracle resolve "GG! Misty wins" --p1 Ash --p2 Misty`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			preview := handler.BuildPreview(handler.PreviewRequest{
				Title:     strings.Join(args, " "),
				PlayerOne: p1,
				PlayerTwo: p2,
			})
			return printJSON(cmd.OutOrStdout(), preview)
		},
	}
	cmd.Flags().StringVar(&p1, "p1", "", "first player")
	cmd.Flags().StringVar(&p2, "p2", "", "second player")
	_ = cmd.MarkFlagRequired("p1")
	_ = cmd.MarkFlagRequired("p2")
	return cmd
}
