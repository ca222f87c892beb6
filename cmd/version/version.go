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

package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/stratastor/usbtrigger/cmd/cli"
	"github.com/stratastor/usbtrigger/internal/constants"
)

type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
}

func NewVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show USB Trigger version",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildInfo{
				Version:   constants.Version,
				Commit:    constants.CommitSHA,
				BuildTime: constants.BuildTime,
				Go:        runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			if asJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), info)
			}
			fmt.Printf("%s %s (%s)\n", constants.AppDisplayName, info.Version, info.Platform)
			fmt.Printf("Commit: %s\n", info.Commit)
			fmt.Printf("Built:  %s with %s\n", info.BuildTime, info.Go)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build info as JSON")
	return cmd
}
