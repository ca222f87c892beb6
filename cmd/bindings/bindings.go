// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package bindings

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stratastor/usbtrigger/cmd/cli"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

func NewBindingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bindings",
		Aliases: []string{"binding"},
		Short:   "Manage device bindings",
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newToggleCmd("enable", true))
	cmd.AddCommand(newToggleCmd("disable", false))
	return cmd
}

func newListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cli.Context()
			defer cancel()

			list, err := cli.Client().Bindings(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				cli.Warning.Println("No bindings configured")
				return nil
			}

			for _, b := range list {
				printBinding(b)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print bindings as JSON")
	return cmd
}

func printBinding(b *types.Binding) {
	cli.Name.Print(b.Device.Name())
	fmt.Print(" ")
	cli.ID.Printf("[%s]", b.Device.Key())
	if !b.Enabled {
		cli.Warning.Print(" (disabled)")
	}
	fmt.Println()
	cli.Muted.Printf("  id: %s\n", b.ID)
	if b.Device.SerialNumber != "" {
		cli.Muted.Printf("  serial: %s\n", b.Device.SerialNumber)
	}
	printCommand("on arrive", b.OnArrive)
	printCommand("on remove", b.OnRemove)
	if b.Notes != "" {
		cli.Muted.Printf("  notes: %s\n", b.Notes)
	}
}

func printCommand(label string, c *types.Command) {
	if !c.IsValid() {
		return
	}
	line := strings.TrimSpace(c.Program + " " + c.Arguments)
	var flags []string
	if c.Elevate {
		flags = append(flags, "elevated")
	}
	if c.WaitForExit {
		flags = append(flags, fmt.Sprintf("wait %s", c.Timeout()))
	}
	fmt.Printf("  %s: %s", label, line)
	if len(flags) > 0 {
		cli.Muted.Printf(" (%s)", strings.Join(flags, ", "))
	}
	fmt.Println()
}

type commandFlags struct {
	program, args, workDir string
	elevate, wait          bool
	timeout                int
}

func (f *commandFlags) register(cmd *cobra.Command, prefix, side string) {
	cmd.Flags().StringVar(&f.program, prefix+"program", "", "Program to run "+side)
	cmd.Flags().StringVar(&f.args, prefix+"args", "", "Arguments, shell quoted")
	cmd.Flags().StringVar(&f.workDir, prefix+"workdir", "", "Working directory")
	cmd.Flags().BoolVar(&f.elevate, prefix+"elevate", false, "Run with elevated privileges")
	cmd.Flags().BoolVar(&f.wait, prefix+"wait", false, "Wait for the program to exit")
	cmd.Flags().IntVar(&f.timeout, prefix+"timeout", 0, "Seconds to wait before killing it")
}

func (f *commandFlags) command() *types.Command {
	if strings.TrimSpace(f.program) == "" {
		return nil
	}
	return &types.Command{
		Program:          f.program,
		Arguments:        f.args,
		WorkingDirectory: f.workDir,
		Elevate:          f.elevate,
		WaitForExit:      f.wait,
		TimeoutSeconds:   f.timeout,
	}
}

func newAddCmd() *cobra.Command {
	var (
		b                types.Binding
		disabled         bool
		arrive, removeCF commandFlags
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Bind commands to a device",
		Example: `  usbtrigger bindings add --vid 046D --pid C52B --name "Unifying Receiver" \
    --arrive-program notify-send --arrive-args '"Receiver plugged in"'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b.Enabled = !disabled
			b.OnArrive = arrive.command()
			b.OnRemove = removeCF.command()

			ctx, cancel := cli.Context()
			defer cancel()

			added, overlaps, err := cli.Client().AddBinding(ctx, &b)
			if err != nil {
				return err
			}
			cli.Success.Print("Added ")
			printBinding(added)
			if len(overlaps) > 0 {
				cli.Warning.Printf("Overlaps with: %s\n", strings.Join(overlaps, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&b.ID, "id", "", "Binding id (generated when empty)")
	cmd.Flags().StringVar(&b.Device.VendorID, "vid", "", "Vendor id, e.g. 046D")
	cmd.Flags().StringVar(&b.Device.ProductID, "pid", "", "Product id, e.g. C52B")
	cmd.Flags().StringVar(&b.Device.SerialNumber, "serial", "", "Serial number")
	cmd.Flags().StringVar(&b.Device.DisplayName, "name", "", "Display name")
	cmd.Flags().StringVar(&b.Notes, "notes", "", "Free form notes")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Add the binding disabled")
	arrive.register(cmd, "arrive-", "when the device arrives")
	removeCF.register(cmd, "remove-", "when the device is removed")
	cmd.MarkFlagRequired("vid")
	cmd.MarkFlagRequired("pid")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a binding",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cli.Context()
			defer cancel()

			if err := cli.Client().RemoveBinding(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed binding %s\n", args[0])
			return nil
		},
	}
}

func newToggleCmd(verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a binding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cli.Context()
			defer cancel()

			b, err := cli.Client().SetBindingEnabled(ctx, args[0], enabled)
			if err != nil {
				return err
			}
			printBinding(b)
			return nil
		},
	}
}
