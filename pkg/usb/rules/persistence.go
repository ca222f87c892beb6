// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
	"gopkg.in/yaml.v3"
)

// Persistence loads and saves Settings.
type Persistence interface {
	// Load never fails: missing or unreadable state yields defaults.
	Load() *types.Settings
	// Save reports every failure to the caller.
	Save(settings *types.Settings) error
}

// FilePersistence stores settings as YAML. Saves go through a temp file and
// an atomic rename; the previous file is kept as <path>.backup.
type FilePersistence struct {
	logger logger.Logger
	path   string
	mu     sync.Mutex
}

// NewFilePersistence creates a persistence backed by path.
func NewFilePersistence(l logger.Logger, path string) *FilePersistence {
	return &FilePersistence{logger: l, path: path}
}

// Path returns the settings file location.
func (p *FilePersistence) Path() string {
	return p.path
}

func (p *FilePersistence) Load() *types.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		p.logger.Info("settings file not found, using defaults", "path", p.path)
		return types.DefaultSettings()
	}
	if err != nil {
		p.logger.Error("failed to read settings file, using defaults",
			"error", err,
			"path", p.path)
		return types.DefaultSettings()
	}

	settings := types.DefaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		p.logger.Warn("failed to parse settings file, backing up and starting fresh",
			"error", err,
			"path", p.path)

		corruptPath := p.path + ".corrupted." + time.Now().Format("20060102-150405")
		if err := os.Rename(p.path, corruptPath); err != nil {
			p.logger.Error("failed to back up corrupted settings", "error", err)
		}
		return types.DefaultSettings()
	}

	normalize(p.logger, settings)
	p.logger.Info("settings loaded",
		"path", p.path,
		"bindings", len(settings.Bindings))
	return settings
}

func (p *FilePersistence) Save(settings *types.Settings) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if settings == nil {
		return errors.New(errors.RulesPersistFailed, "nil settings")
	}

	out := settings.Clone()
	out.Version = types.SettingsVersion

	data, err := yaml.Marshal(out)
	if err != nil {
		return errors.Wrap(err, errors.RulesPersistFailed).
			WithMetadata("path", p.path).
			WithMetadata("operation", "marshal")
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return errors.Wrap(err, errors.RulesPersistFailed).
			WithMetadata("path", p.path).
			WithMetadata("operation", "mkdir")
	}

	tempPath := p.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return errors.Wrap(err, errors.RulesPersistFailed).
			WithMetadata("path", tempPath).
			WithMetadata("operation", "write_temp")
	}

	// The live file stays in place until the final rename replaces it.
	if err := backupFile(p.path, p.path+".backup"); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("failed to back up current settings", "error", err)
	}

	if err := os.Rename(tempPath, p.path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, errors.RulesPersistFailed).
			WithMetadata("path", p.path).
			WithMetadata("operation", "rename")
	}

	p.logger.Debug("settings saved", "path", p.path, "bindings", len(out.Bindings))
	return nil
}

// backupFile links src to dst, copying when a hard link is not possible.
func backupFile(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// normalize repairs fields a hand edited file may leave inconsistent.
// Bindings without an id, or reusing an earlier id, get a fresh one.
func normalize(l logger.Logger, s *types.Settings) {
	if s.Version == "" {
		s.Version = types.SettingsVersion
	}
	seen := make(map[string]bool, len(s.Bindings))
	kept := s.Bindings[:0]
	for _, b := range s.Bindings {
		if b == nil {
			continue
		}
		b.ID = strings.TrimSpace(b.ID)
		if b.ID == "" || seen[b.ID] {
			old := b.ID
			b.ID = uuid.New().String()
			l.Warn("binding id missing or duplicated, assigned a new one",
				"old_id", old,
				"new_id", b.ID,
				"device", b.Device.String())
		}
		seen[b.ID] = true
		b.Device = b.Device.Normalize()
		kept = append(kept, b)
	}
	s.Bindings = kept
	if s.Bindings == nil {
		s.Bindings = []*types.Binding{}
	}
}
