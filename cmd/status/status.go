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

package status

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stratastor/usbtrigger/cmd/cli"
	"github.com/stratastor/usbtrigger/config"
	"github.com/stratastor/usbtrigger/pkg/lifecycle"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the USB Trigger daemon is running",
		Run: func(cmd *cobra.Command, args []string) {
			pidFile := config.GetPIDFile()
			pid, running, err := lifecycle.ReadPID(pidFile)
			if err != nil || !running {
				cli.Warning.Println("USB Trigger is not running")
				return
			}
			fmt.Printf("USB Trigger is running (PID: %d)\n", pid)
		},
	}
}

// NewReloadCmd asks the running daemon to re-read its bindings file.
func NewReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload bindings in the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := lifecycle.SignalRunning(config.GetPIDFile(), syscall.SIGHUP)
			if err != nil {
				return err
			}
			fmt.Printf("Sent reload to PID %d\n", pid)
			return nil
		},
	}
}
