// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratastor/usbtrigger/cmd/cli"
	"github.com/stratastor/usbtrigger/pkg/autostart"
)

func NewAutostartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Manage starting with the user session",
	}

	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newEnableCmd())
	cmd.AddCommand(newDisableCmd())
	return cmd
}

func printStatus(st *autostart.Status) {
	fmt.Printf("Backend: %s\n", st.Backend)
	fmt.Printf("Enabled: %s\n", cli.YesNo(st.Enabled))
	if st.Path != "" {
		fmt.Printf("Command: %s\n", st.Path)
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show autostart state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cli.Context()
			defer cancel()

			st, err := cli.Client().Autostart(ctx)
			if err != nil {
				return err
			}
			printStatus(st)
			return nil
		},
	}
}

func newEnableCmd() *cobra.Command {
	var (
		path      string
		minimized bool
	)

	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Start USB Trigger with the user session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cli.Context()
			defer cancel()

			st, err := cli.Client().EnableAutostart(ctx, path, minimized)
			if err != nil {
				return err
			}
			printStatus(st)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Executable to launch (defaults to this binary)")
	cmd.Flags().BoolVar(&minimized, "minimized", false, "Launch with --minimized")
	return cmd
}

func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Stop starting with the user session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cli.Context()
			defer cancel()

			st, err := cli.Client().DisableAutostart(ctx)
			if err != nil {
				return err
			}
			printStatus(st)
			return nil
		},
	}
}
