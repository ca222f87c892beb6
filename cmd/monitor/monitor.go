// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratastor/usbtrigger/cmd/cli"
	"github.com/stratastor/usbtrigger/pkg/apiclient"
	"github.com/stratastor/usbtrigger/pkg/usb/dispatch"
)

func NewMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Control USB hotplug monitoring",
	}

	cmd.AddCommand(newMonitorAction("status", "Show monitoring state and counters", (*apiclient.Client).MonitorStatus))
	cmd.AddCommand(newMonitorAction("start", "Start monitoring", (*apiclient.Client).StartMonitor))
	cmd.AddCommand(newMonitorAction("stop", "Stop monitoring", (*apiclient.Client).StopMonitor))
	return cmd
}

type action func(*apiclient.Client, context.Context) (*dispatch.Status, error)

func newMonitorAction(use, short string, do action) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cli.Context()
			defer cancel()

			st, err := do(cli.Client(), ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), st)
			}
			printStatus(st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}

func printStatus(st *dispatch.Status) {
	fmt.Printf("Monitoring: %s\n", cli.YesNo(st.Monitoring))
	if st.Stats.Source != "" {
		fmt.Printf("Source:     %s\n", st.Stats.Source)
	}
	fmt.Printf("In flight:  %d\n", st.InFlight)
	fmt.Printf("Events:     %d received, %d emitted, %d duplicates, %d dropped\n",
		st.Stats.Received, st.Stats.Emitted, st.Stats.Duplicates, st.Stats.Dropped)
	if !st.Stats.LastEvent.IsZero() {
		cli.Muted.Printf("Last event: %s\n", st.Stats.LastEvent.Format("2006-01-02 15:04:05"))
	}
}
