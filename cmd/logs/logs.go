/*
 * Copyright 2024-2025 Raamsri Kumar <raam@tinkershack.in>
 * Copyright 2024-2025 The StrataSTOR Authors and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logs

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stratastor/usbtrigger/cmd/cli"
	"github.com/stratastor/usbtrigger/config"
	"github.com/stratastor/usbtrigger/internal/constants"
	"github.com/stratastor/usbtrigger/pkg/autostart"
)

func NewLogsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View USB Trigger logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()

			name, tailArgs := "tail", []string{"-n", strconv.Itoa(lines)}
			switch {
			case cfg.Logs.Output == "stdout" && cfg.Autostart.Backend == autostart.BackendSystemd:
				name = "journalctl"
				tailArgs = append(tailArgs, "--user", "-u", constants.AppName)
			case cfg.Logs.Output == "stdout":
				cli.Warning.Println("Logs are being written to stdout.")
				return nil
			default:
				if _, err := os.Stat(cfg.Logs.Path); os.IsNotExist(err) {
					cli.Warning.Println("Log file does not exist:", cfg.Logs.Path)
					return nil
				}
			}

			if follow {
				tailArgs = append(tailArgs, "-f")
			}
			if name == "tail" {
				tailArgs = append(tailArgs, cfg.Logs.Path)
			}

			execCmd := exec.Command(name, tailArgs...)
			execCmd.Stdout = os.Stdout
			execCmd.Stderr = os.Stderr
			if err := execCmd.Run(); err != nil {
				return fmt.Errorf("failed to read logs: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 100, "Number of lines to show")
	return cmd
}
