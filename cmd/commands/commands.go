// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratastor/usbtrigger/cmd/cli"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

// NewTestCommandCmd runs a command through the daemon exactly as a binding
// would, but always waits and never elevates.
func NewTestCommandCmd() *cobra.Command {
	var (
		c      types.Command
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "test-command <program> [arguments]",
		Short: "Dry run a command and show its outcome",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Program = args[0]
			if len(args) > 1 {
				c.Arguments = args[1]
			}

			ctx, cancel := cli.Context()
			defer cancel()

			res, err := cli.Client().TestCommand(ctx, c)
			if err != nil {
				return err
			}
			if asJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), res)
			}

			if res.Success {
				cli.Success.Printf("✓ exit %d", res.ExitCode)
			} else {
				cli.Failure.Printf("✗ %s", res.ErrorMessage)
			}
			cli.Muted.Printf(" in %s\n", res.Elapsed)
			if res.Stdout != "" {
				fmt.Println("stdout:")
				fmt.Println(res.Stdout)
			}
			if res.Stderr != "" {
				fmt.Println("stderr:")
				fmt.Println(res.Stderr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&c.WorkingDirectory, "workdir", "", "Working directory")
	cmd.Flags().IntVar(&c.TimeoutSeconds, "timeout", 0, "Seconds to wait before killing it")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
