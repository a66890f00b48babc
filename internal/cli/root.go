package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pratik-mahalle/assetwatch/pkg/client"
)

var (
	cfgFile      string
	outputFormat string
	serverURL    string
	apiClient    *client.Client
)

// skipAuth lists commands that run without a stored token
var skipAuth = map[string]bool{
	"config": true,
	"auth":   true,
	"help":   true,
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assetwatch",
		Short: "AssetWatch CLI - asset alert monitoring",
		Long: `AssetWatch CLI gives command-line access to the asset alert engine:
list and triage alerts, manage notification preferences and trigger
escalation sweeps.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for c := cmd; c != nil; c = c.Parent() {
				if skipAuth[c.Name()] {
					return initClient()
				}
			}
			return initAuthenticatedClient()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.assetwatch/config.yaml)")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json, yaml")
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides config)")

	_ = viper.BindPFlag("output", cmd.PersistentFlags().Lookup("output"))

	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newAlertCmd())
	cmd.AddCommand(newPreferencesCmd())

	return cmd
}

// Execute runs the CLI with os.Args
func Execute() error {
	cobra.OnInitialize(initConfig)
	return newRootCmd().Execute()
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".assetwatch"), nil
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ASSETWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server_url", "http://localhost:8080")
	viper.SetDefault("output", "table")

	_ = viper.ReadInConfig()
}

func initClient() error {
	url := viper.GetString("server_url")
	if serverURL != "" {
		url = serverURL
	}

	apiClient = client.NewClient(client.Config{
		BaseURL: url,
		Token:   viper.GetString("auth.token"),
	})
	return nil
}

func initAuthenticatedClient() error {
	if err := initClient(); err != nil {
		return err
	}
	if apiClient.GetToken() == "" {
		return fmt.Errorf("not authenticated. Run 'assetwatch auth token' first")
	}
	return nil
}

func getOutputFormat() string {
	if outputFormat != "" {
		return outputFormat
	}
	if f := viper.GetString("output"); f != "" {
		return f
	}
	return "table"
}

// writeConfig persists viper settings to the active config file
func writeConfig() error {
	if path := viper.ConfigFileUsed(); path != "" {
		return viper.WriteConfigAs(path)
	}
	dir, err := configDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return viper.WriteConfigAs(filepath.Join(dir, "config.yaml"))
}
