// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package command

import (
	"os"
	"os/exec"
)

func setProcAttr(_ *exec.Cmd) {}

// killTree only reaches the direct child on platforms without process
// groups.
func killTree(p *os.Process) error {
	return p.Kill()
}
