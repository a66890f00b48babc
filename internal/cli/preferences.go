package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pratik-mahalle/assetwatch/pkg/client"
)

func newPreferencesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "preferences",
		Aliases: []string{"prefs"},
		Short:   "Manage your alert notification preferences",
	}

	cmd.AddCommand(newPreferencesGetCmd())
	cmd.AddCommand(newPreferencesSetCmd())

	return cmd
}

func newPreferencesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show your preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := apiClient.Alerts().GetPreferences(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get preferences: %w", err)
			}

			out := cmd.OutOrStdout()
			if getOutputFormat() != "table" {
				return printOutput(out, prefs)
			}

			fmt.Fprintf(out, "Channels:    email=%t push=%t sms=%t\n", prefs.Channels.Email, prefs.Channels.Push, prefs.Channels.SMS)
			fmt.Fprintf(out, "Types:       %s\n", listOrAll(prefs.AlertTypes))
			fmt.Fprintf(out, "Priorities:  %s\n", listOrAll(prefs.Priorities))
			if q := prefs.QuietHours; q.Enabled {
				fmt.Fprintf(out, "Quiet hours: %s-%s %s\n", q.Start, q.End, q.Timezone)
			} else {
				fmt.Fprintln(out, "Quiet hours: off")
			}
			for _, r := range prefs.EscalationRules {
				fmt.Fprintf(out, "Escalate:    %s after %dm to %s\n", r.Priority, r.EscalateAfterMinutes, strings.Join(r.EscalateTo, ","))
			}
			return nil
		},
	}
}

func newPreferencesSetCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set -f <file.yaml>",
		Short: "Replace your preferences from a YAML file",
		Example: `  channels: {email: true, sms: true}
  priorities: [critical, high]
  quietHours: {enabled: true, start: "22:00", end: "07:00", timezone: Europe/London}
  escalationRules:
    - {priority: high, escalateAfterMinutes: 30, escalateTo: [ops-lead]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := readPreferences(file)
			if err != nil {
				return err
			}

			stored, err := apiClient.Alerts().UpdatePreferences(cmd.Context(), prefs)
			if err != nil {
				if apiErr, ok := client.AsAPIError(err); ok && apiErr.IsValidationError() {
					for _, fe := range apiErr.FieldErrors() {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", fe.Field, fe.Message)
					}
				}
				return fmt.Errorf("failed to update preferences: %w", err)
			}

			out := cmd.OutOrStdout()
			if getOutputFormat() != "table" {
				return printOutput(out, stored)
			}
			fmt.Fprintf(out, "Preferences saved for %s\n", stored.RecipientID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with preferences")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func readPreferences(path string) (*client.Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var prefs client.Preferences
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&prefs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &prefs, nil
}

func listOrAll(values []string) string {
	if len(values) == 0 {
		return "all"
	}
	return strings.Join(values, ", ")
}
