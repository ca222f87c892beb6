// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/internal/constants"
	"github.com/stratastor/usbtrigger/pkg/errors"
)

const desktopSection = "Desktop Entry"

// XDG writes a desktop entry into $XDG_CONFIG_HOME/autostart.
type XDG struct {
	logger logger.Logger
	file   string
}

// NewXDG creates the backend. dir overrides the autostart directory.
func NewXDG(l logger.Logger, dir string) *XDG {
	if dir == "" {
		dir = filepath.Join(xdg.ConfigHome, "autostart")
	}
	return &XDG{logger: l, file: filepath.Join(dir, constants.AppName+".desktop")}
}

func (x *XDG) Name() string { return BackendXDG }

// File returns the desktop entry location.
func (x *XDG) File() string { return x.file }

func (x *XDG) Enable(path string, startMinimized bool) error {
	exe, err := resolveExecutable(path)
	if err != nil {
		return err
	}

	entry := fmt.Sprintf(`[%s]
Type=Application
Name=%s
Comment=Run commands when USB devices are plugged in or removed
Exec=%s
Terminal=false
X-GNOME-Autostart-enabled=true
`, desktopSection, constants.AppDisplayName, commandLine(exe, startMinimized))

	if err := writeFile(x.file, []byte(entry)); err != nil {
		return errors.Wrap(err, errors.AutostartEnableFailed).WithMetadata("file", x.file)
	}

	x.logger.Info("autostart enabled", "backend", BackendXDG, "file", x.file, "path", exe)
	return nil
}

func (x *XDG) Disable() error {
	err := os.Remove(x.file)
	if os.IsNotExist(err) {
		x.logger.Info("autostart was not enabled", "backend", BackendXDG)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errors.AutostartDisableFailed).WithMetadata("file", x.file)
	}
	x.logger.Info("autostart disabled", "backend", BackendXDG, "file", x.file)
	return nil
}

func (x *XDG) IsEnabled() bool {
	if _, ok := readKey(x.file, desktopSection, "Exec"); !ok {
		return false
	}
	if v, ok := readKey(x.file, desktopSection, "Hidden"); ok && strings.EqualFold(v, "true") {
		return false
	}
	if v, ok := readKey(x.file, desktopSection, "X-GNOME-Autostart-enabled"); ok &&
		strings.EqualFold(v, "false") {
		return false
	}
	return true
}

func (x *XDG) Path() (string, bool) {
	exec, ok := readKey(x.file, desktopSection, "Exec")
	if !ok {
		return "", false
	}
	return executableFrom(exec)
}
