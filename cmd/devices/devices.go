// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package devices

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratastor/usbtrigger/cmd/cli"
)

func NewDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List connected USB devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cli.Context()
			defer cancel()

			devs, err := cli.Client().Devices(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), devs)
			}

			if len(devs) == 0 {
				cli.Warning.Println("No USB devices found")
				return nil
			}

			cli.Header.Println("Connected USB devices:")
			for i, cd := range devs {
				connector := "├── "
				if i == len(devs)-1 {
					connector = "└── "
				}
				cli.Muted.Print(connector)
				cli.Name.Print(cd.Device.Name())
				fmt.Print(" ")
				cli.ID.Printf("[%s]", cd.Device.Key())
				if cd.Device.SerialNumber != "" {
					cli.Muted.Printf(" serial=%s", cd.Device.SerialNumber)
				}
				if cd.Bound {
					fmt.Print(" ")
					cli.Success.Printf("bound:%s", cd.BindingID)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print devices as JSON")
	return cmd
}
