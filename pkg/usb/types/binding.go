// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"slices"
	"time"
)

// SettingsVersion is written into every saved settings file.
const SettingsVersion = "1.0.0"

// Binding ties a device template to the commands run when it arrives or
// leaves. A binding without a valid command is inert but still stored.
type Binding struct {
	ID       string    `json:"id"                 yaml:"id"`
	Device   Device    `json:"device"             yaml:"device"`
	OnArrive *Command  `json:"onArrive,omitempty" yaml:"onArrive,omitempty"`
	OnRemove *Command  `json:"onRemove,omitempty" yaml:"onRemove,omitempty"`
	Enabled  bool      `json:"enabled"            yaml:"enabled"`
	Notes    string    `json:"notes,omitempty"    yaml:"notes,omitempty"`
	Created  time.Time `json:"created"            yaml:"created"`
	Modified time.Time `json:"modified"           yaml:"modified"`
}

// HasCommands reports whether at least one side carries a valid command.
func (b *Binding) HasCommands() bool {
	return b.OnArrive.IsValid() || b.OnRemove.IsValid()
}

// CommandFor returns the command matching the event direction, or nil.
func (b *Binding) CommandFor(kind EventKind) *Command {
	switch kind {
	case EventArrived:
		return b.OnArrive
	case EventRemoved:
		return b.OnRemove
	default:
		return nil
	}
}

// Clone returns a deep copy so stored bindings never alias caller values.
func (b *Binding) Clone() *Binding {
	if b == nil {
		return nil
	}
	c := *b
	if b.OnArrive != nil {
		cmd := *b.OnArrive
		c.OnArrive = &cmd
	}
	if b.OnRemove != nil {
		cmd := *b.OnRemove
		c.OnRemove = &cmd
	}
	return &c
}

// Settings holds the bindings in insertion order plus process toggles.
type Settings struct {
	Version             string     `json:"version"             yaml:"version"`
	Bindings            []*Binding `json:"bindings"            yaml:"bindings"`
	AutoStartMonitoring bool       `json:"autoStartMonitoring" yaml:"autoStartMonitoring"`
	ShowNotifications   bool       `json:"showNotifications"   yaml:"showNotifications"`
	MinimizeToTray      bool       `json:"minimizeToTray"      yaml:"minimizeToTray"`
	StartMinimized      bool       `json:"startMinimized"      yaml:"startMinimized"`
	StartWithSession    bool       `json:"startWithSession"    yaml:"startWithSession"`
	LogCommandExecution bool       `json:"logCommandExecution" yaml:"logCommandExecution"`
	Language            string     `json:"language"            yaml:"language"`
}

// DefaultSettings mirrors what a fresh install starts with.
func DefaultSettings() *Settings {
	return &Settings{
		Version:             SettingsVersion,
		Bindings:            []*Binding{},
		AutoStartMonitoring: true,
		ShowNotifications:   true,
		MinimizeToTray:      true,
		LogCommandExecution: true,
		Language:            "en",
	}
}

// Clone deep copies the settings, including every binding.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	c := *s
	c.Bindings = make([]*Binding, 0, len(s.Bindings))
	for _, b := range s.Bindings {
		c.Bindings = append(c.Bindings, b.Clone())
	}
	return &c
}

// Binding returns the binding with the given id.
func (s *Settings) Binding(id string) (*Binding, bool) {
	i := slices.IndexFunc(s.Bindings, func(b *Binding) bool { return b.ID == id })
	if i < 0 {
		return nil, false
	}
	return s.Bindings[i], true
}

// Toggles is the subset of Settings editable without touching bindings.
type Toggles struct {
	AutoStartMonitoring *bool   `json:"autoStartMonitoring,omitempty"`
	ShowNotifications   *bool   `json:"showNotifications,omitempty"`
	MinimizeToTray      *bool   `json:"minimizeToTray,omitempty"`
	StartMinimized      *bool   `json:"startMinimized,omitempty"`
	StartWithSession    *bool   `json:"startWithSession,omitempty"`
	LogCommandExecution *bool   `json:"logCommandExecution,omitempty"`
	Language            *string `json:"language,omitempty"`
}

// Apply copies every non-nil toggle into s.
func (t Toggles) Apply(s *Settings) {
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&s.AutoStartMonitoring, t.AutoStartMonitoring)
	set(&s.ShowNotifications, t.ShowNotifications)
	set(&s.MinimizeToTray, t.MinimizeToTray)
	set(&s.StartMinimized, t.StartMinimized)
	set(&s.StartWithSession, t.StartWithSession)
	set(&s.LogCommandExecution, t.LogCommandExecution)
	if t.Language != nil {
		s.Language = *t.Language
	}
}
