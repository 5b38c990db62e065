package commands

import (
	"github.com/spf13/cobra"
)

func discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Search Twitch for Pokemon categories and store them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Mode = "monitor"
			a, svc, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := svc.Discovery.Discover(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}
