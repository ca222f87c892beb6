package health

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratastor/usbtrigger/cmd/cli"
	"github.com/stratastor/usbtrigger/config"
	"github.com/stratastor/usbtrigger/pkg/health"
)

func NewHealthCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check USB Trigger health",
		RunE: func(cmd *cobra.Command, args []string) error {
			checker, err := health.NewHealthChecker(config.GetConfig())
			if err != nil {
				return err
			}

			ctx, cancel := cli.Context()
			defer cancel()

			rep, err := checker.CheckHealth(ctx)
			if err != nil {
				cli.Failure.Println("Health check failed:", err)
				return nil
			}
			if asJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), rep)
			}

			fmt.Printf("Status:     %s\n", cli.Success.Sprint(rep.Status))
			fmt.Printf("Version:    %s\n", rep.Version)
			fmt.Printf("Uptime:     %s\n", rep.Uptime)
			fmt.Printf("Monitoring: %s", cli.YesNo(rep.Monitoring))
			if rep.Source != "" {
				cli.Muted.Printf(" (%s)", rep.Source)
			}
			fmt.Println()
			fmt.Printf("Bindings:   %d\n", rep.Bindings)
			fmt.Printf("In flight:  %d\n", rep.InFlight)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw report")
	return cmd
}
