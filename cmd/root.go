// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stratastor/usbtrigger/cmd/activity"
	"github.com/stratastor/usbtrigger/cmd/autostart"
	"github.com/stratastor/usbtrigger/cmd/bindings"
	"github.com/stratastor/usbtrigger/cmd/commands"
	"github.com/stratastor/usbtrigger/cmd/config"
	"github.com/stratastor/usbtrigger/cmd/devices"
	"github.com/stratastor/usbtrigger/cmd/health"
	"github.com/stratastor/usbtrigger/cmd/logs"
	"github.com/stratastor/usbtrigger/cmd/monitor"
	"github.com/stratastor/usbtrigger/cmd/serve"
	"github.com/stratastor/usbtrigger/cmd/status"
	"github.com/stratastor/usbtrigger/cmd/version"
	cfg "github.com/stratastor/usbtrigger/config"
)

func NewRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "usbtrigger",
		Short: "USB Trigger: run commands when USB devices come and go",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.LoadConfig(configPath)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(serve.NewServeCmd())
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(health.NewHealthCmd())
	rootCmd.AddCommand(status.NewStatusCmd())
	rootCmd.AddCommand(status.NewReloadCmd())
	rootCmd.AddCommand(logs.NewLogsCmd())
	rootCmd.AddCommand(config.NewConfigCmd())
	rootCmd.AddCommand(devices.NewDevicesCmd())
	rootCmd.AddCommand(bindings.NewBindingsCmd())
	rootCmd.AddCommand(monitor.NewMonitorCmd())
	rootCmd.AddCommand(activity.NewActivityCmd())
	rootCmd.AddCommand(commands.NewTestCommandCmd())
	rootCmd.AddCommand(autostart.NewAutostartCmd())

	return rootCmd
}
