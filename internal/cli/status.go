package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/assetwatch/pkg/client"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server health and an alert summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			health, healthErr := apiClient.Ready(ctx)
			list, listErr := apiClient.Alerts().List(ctx, &client.AlertListOptions{Limit: 1})

			if getOutputFormat() != "table" {
				summary := map[string]interface{}{}
				if healthErr == nil {
					summary["health"] = health
				}
				if listErr == nil {
					summary["alerts"] = list.Statistics
				}
				return printOutput(out, summary)
			}

			fmt.Fprintln(out, "AssetWatch Status")
			fmt.Fprintln(out, strings.Repeat("=", 40))

			if healthErr != nil {
				fmt.Fprintf(out, "  Server:      (error: %v)\n", healthErr)
			} else {
				fmt.Fprintf(out, "  Server:      %s (store: %s)\n", health.Status, health.Store)
			}

			if listErr != nil {
				fmt.Fprintf(out, "  Alerts:      (error: %v)\n", listErr)
				return nil
			}

			s := list.Statistics
			fmt.Fprintf(out, "  Alerts:      %d total, %d unresolved\n", s.Total, s.Unresolved)
			fmt.Fprintf(out, "  Critical:    %d\n", s.Critical)
			fmt.Fprintf(out, "  Today:       %d (last 7 days: %d)\n", s.Today, s.LastWeek)
			for _, p := range []string{"critical", "high", "medium", "low", "info"} {
				if n := s.ByPriority[p]; n > 0 {
					fmt.Fprintf(out, "    %-10s %d\n", p+":", n)
				}
			}
			return nil
		},
	}
}
