// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package activity

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stratastor/usbtrigger/cmd/cli"
)

func NewActivityCmd() *cobra.Command {
	var (
		asJSON bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent device and command activity, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cli.Context()
			defer cancel()

			entries, err := cli.Client().Activity(ctx)
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			if asJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				cli.Muted.Println("No activity yet")
				return nil
			}

			for _, e := range entries {
				cli.Muted.Printf("[%s] ", e.Time.Format("15:04:05"))
				switch {
				case strings.HasPrefix(e.Message, "✓"):
					cli.Success.Println(e.Message)
				case strings.HasPrefix(e.Message, "✗"):
					cli.Failure.Println(e.Message)
				default:
					fmt.Println(e.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many entries")
	return cmd
}
