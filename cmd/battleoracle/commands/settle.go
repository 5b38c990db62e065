package commands

import (
	"github.com/spf13/cobra"
)

func settleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settle",
		Short: "Apply pending auto_settle proposals once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, svc, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := svc.Settlement.SettlePending(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}
