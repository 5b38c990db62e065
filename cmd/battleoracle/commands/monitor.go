package commands

import (
	"github.com/spf13/cobra"
)

func monitorCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run a single monitoring cycle and print its report",
		Long: "Run a single monitoring cycle and print its report.\n\n" +
			"With --dry-run the cycle runs against in-memory stores: Twitch is\n" +
			"polled but nothing is persisted and no locks or events are used.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Mode = "monitor"
			a, svc, err := openApp(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			if dryRun {
				// In-memory stores start empty, so categories are discovered
				// first.
				if _, err := svc.Discovery.Discover(cmd.Context()); err != nil {
					return err
				}
			}
			report, err := svc.Monitor.RunCycle(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "use in-memory stores instead of Postgres and Redis")
	return cmd
}
