package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/assetwatch/pkg/client"
)

func newAlertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "List and triage alerts",
	}

	cmd.AddCommand(newAlertListCmd())
	cmd.AddCommand(newAlertGetCmd())
	cmd.AddCommand(newAlertActionCmd("ack <id>", "Acknowledge an alert", "acknowledge"))
	cmd.AddCommand(newAlertActionCmd("progress <id>", "Mark an alert as in progress", "in_progress"))
	cmd.AddCommand(newAlertActionCmd("escalate <id>", "Raise an alert's priority one step", "escalate"))
	cmd.AddCommand(newAlertAssignCmd())
	cmd.AddCommand(newAlertResolveCmd())
	cmd.AddCommand(newAlertDismissCmd())
	cmd.AddCommand(newAlertSweepCmd())

	return cmd
}

func newAlertListCmd() *cobra.Command {
	var opts client.AlertListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts, most urgent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := apiClient.Alerts().List(cmd.Context(), &opts)
			if err != nil {
				return fmt.Errorf("failed to list alerts: %w", err)
			}

			out := cmd.OutOrStdout()
			if getOutputFormat() != "table" {
				return printOutput(out, list)
			}

			t := NewTable(out, "ID", "PRIORITY", "STATUS", "DEPARTMENT", "TITLE")
			for _, a := range list.Alerts {
				t.AddRow(
					a.ID,
					formatPriority(a.Priority),
					formatStatus(a.Status),
					a.Department,
					truncate(a.Title, 50),
				)
			}
			t.Render()
			fmt.Fprintf(out, "\nShowing %d of %d (critical: %d, unresolved: %d)\n",
				len(list.Alerts), list.Total, list.Statistics.Critical, list.Statistics.Unresolved)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Type, "type", "", "filter by alert type")
	f.StringVar(&opts.Priority, "priority", "", "filter by priority")
	f.StringVar(&opts.Status, "status", "", "filter by status")
	f.StringVar(&opts.Department, "department", "", "filter by department")
	f.StringVar(&opts.AssignedTo, "assigned-to", "", "filter by assignee")
	f.StringVar(&opts.DateRange, "range", "", "date range: today, 7d, 30d, 90d")
	f.IntVar(&opts.Limit, "limit", 0, "page size (max 100)")
	f.IntVar(&opts.Offset, "offset", 0, "page offset")

	return cmd
}

func newAlertGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get alert details and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := apiClient.Alerts().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get alert: %w", err)
			}
			return printAlert(cmd.OutOrStdout(), a)
		},
	}
}

func newAlertActionCmd(use, short, action string) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, client.ActionRequest{AlertID: args[0], Action: action, Notes: notes})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "notes recorded in the alert history")
	return cmd
}

func newAlertAssignCmd() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "assign <id> <assignee>",
		Short: "Assign an alert and notify the assignee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, client.ActionRequest{AlertID: args[0], Action: "assign", AssignTo: args[1], Notes: notes})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "notes recorded in the alert history")
	return cmd
}

func newAlertResolveCmd() *cobra.Command {
	var resolution string

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, client.ActionRequest{AlertID: args[0], Action: "resolve", Resolution: resolution})
		},
	}
	cmd.Flags().StringVar(&resolution, "resolution", "", "how the alert was resolved")
	return cmd
}

func newAlertDismissCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "dismiss <id>",
		Short: "Dismiss an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := apiClient.Alerts().Dismiss(cmd.Context(), args[0], reason)
			if err != nil {
				return fmt.Errorf("failed to dismiss alert: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Alert %s dismissed\n", a.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "dismiss reason")
	return cmd
}

func newAlertSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run an escalation sweep now",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := apiClient.Alerts().Sweep(cmd.Context())
			if err != nil {
				return fmt.Errorf("escalation sweep failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if getOutputFormat() != "table" {
				return printOutput(out, res)
			}
			if res.Skipped {
				fmt.Fprintln(out, "A sweep is already running; skipped")
				return nil
			}
			fmt.Fprintf(out, "Checked %d alerts, escalated %d\n", res.Checked, res.Escalated)
			return nil
		},
	}
}

func runAction(cmd *cobra.Command, req client.ActionRequest) error {
	a, err := apiClient.Alerts().Act(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("failed to %s alert: %w", req.Action, err)
	}

	out := cmd.OutOrStdout()
	if getOutputFormat() != "table" {
		return printOutput(out, a)
	}
	fmt.Fprintf(out, "Alert %s is now %s (priority %s)\n", a.ID, a.Status, a.Priority)
	return nil
}

func printAlert(out io.Writer, a *client.Alert) error {
	if getOutputFormat() != "table" {
		return printOutput(out, a)
	}

	fmt.Fprintf(out, "ID:         %s\n", a.ID)
	fmt.Fprintf(out, "Type:       %s\n", a.Type)
	fmt.Fprintf(out, "Priority:   %s\n", formatPriority(a.Priority))
	fmt.Fprintf(out, "Status:     %s\n", formatStatus(a.Status))
	fmt.Fprintf(out, "Title:      %s\n", a.Title)
	fmt.Fprintf(out, "Message:    %s\n", a.Message)
	if a.Department != "" {
		fmt.Fprintf(out, "Department: %s\n", a.Department)
	}
	if a.AssignedTo != "" {
		fmt.Fprintf(out, "Assigned:   %s\n", a.AssignedTo)
	}
	fmt.Fprintf(out, "Created:    %s\n", a.Timestamp.Format("2006-01-02 15:04:05"))

	if len(a.History) > 0 {
		fmt.Fprintln(out)
		t := NewTable(out, "#", "ACTION", "BY", "AT", "NOTES")
		for i, h := range a.History {
			t.AddRow(strconv.Itoa(i+1), h.Action, h.PerformedBy, h.PerformedAt.Format("2006-01-02 15:04"), truncate(h.Notes, 40))
		}
		t.Render()
	}
	return nil
}
