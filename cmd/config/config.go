package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/stratastor/usbtrigger/config"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage USB Trigger configuration",
	}

	cmd.AddCommand(NewPathConfigCmd())
	cmd.AddCommand(NewPrintConfigCmd())
	cmd.AddCommand(NewInitConfigCmd())
	return cmd
}

// NewPathConfigCmd shows which file the root --config flag resolved to.
func NewPathConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the configuration file in use",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.GetLoadedConfigPath())
		},
	}
}

func NewPrintConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Print the currently loaded configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()
			if cfg == nil {
				return fmt.Errorf("no configuration loaded")
			}

			safe := *cfg
			if safe.Notifications.WebhookURL != "" {
				safe.Notifications.WebhookURL = "[REDACTED]"
			}
			if safe.Logger.SentryDSN != "" {
				safe.Logger.SentryDSN = "[REDACTED]"
			}

			ymlData, err := yaml.Marshal(safe)
			if err != nil {
				return fmt.Errorf("failed to marshal config to YAML: %v", err)
			}

			fmt.Printf("# %s\n%s", config.GetLoadedConfigPath(), string(ymlData))
			return nil
		},
	}
}

// NewInitConfigCmd writes the effective configuration, defaults included,
// back to disk.
func NewInitConfigCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SaveConfig(out); err != nil {
				return err
			}
			fmt.Printf("Configuration written to: %s\n", config.GetLoadedConfigPath())
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Destination file (defaults to the config directory)")
	return cmd
}
