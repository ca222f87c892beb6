// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
	"golang.org/x/text/language"
)

// Store owns the Settings value. Readers get immutable snapshots; writers
// are serialized, work on a copy, persist it, and only then publish it. A
// failed save leaves the published snapshot untouched.
type Store struct {
	logger  logger.Logger
	persist Persistence

	// writeMu serializes mutations end to end, including the save
	writeMu sync.Mutex

	mu      sync.RWMutex
	current *types.Settings

	now func() time.Time
}

// NewStore loads settings through p.
func NewStore(l logger.Logger, p Persistence) *Store {
	s := &Store{logger: l, persist: p, now: time.Now}
	s.current = s.load()
	return s
}

func (s *Store) load() *types.Settings {
	settings := s.persist.Load()
	if settings == nil {
		settings = types.DefaultSettings()
	}
	normalize(s.logger, settings)
	return settings
}

// Snapshot returns the current settings. The value is shared and must be
// treated as read-only.
func (s *Store) Snapshot() *types.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Resolve returns a copy of the binding that fires for dev, or nil.
func (s *Store) Resolve(dev types.Device) *types.Binding {
	return Resolve(dev, s.Snapshot().Bindings).Clone()
}

// List returns copies of all bindings in insertion order.
func (s *Store) List() []*types.Binding {
	snap := s.Snapshot()
	out := make([]*types.Binding, 0, len(snap.Bindings))
	for _, b := range snap.Bindings {
		out = append(out, b.Clone())
	}
	return out
}

// Get returns a copy of the binding with the given id.
func (s *Store) Get(id string) (*types.Binding, error) {
	b, ok := s.Snapshot().Binding(id)
	if !ok {
		return nil, errors.New(errors.RulesBindingNotFound, "no binding with this id").
			WithMetadata("id", id)
	}
	return b.Clone(), nil
}

// Add appends a binding. An empty id is assigned a UUID; an id already in
// use is rejected.
func (s *Store) Add(b *types.Binding) (*types.Binding, error) {
	if err := validate(b); err != nil {
		return nil, err
	}

	added := b.Clone()
	added.ID = strings.TrimSpace(added.ID)
	if added.ID == "" {
		added.ID = uuid.New().String()
	}
	added.Device = stripRuntime(added.Device.Normalize())
	now := s.now()
	added.Created = now
	added.Modified = now

	err := s.mutate(func(next *types.Settings) error {
		if _, exists := next.Binding(added.ID); exists {
			return errors.New(errors.RulesBindingExists, "binding id already in use").
				WithMetadata("id", added.ID)
		}
		s.warnOverlaps(added, next.Bindings)
		next.Bindings = append(next.Bindings, added.Clone())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("binding added",
		"id", added.ID,
		"device", added.Device.String(),
		"enabled", added.Enabled)
	return added, nil
}

// Update replaces an existing binding in place, keeping its position and
// creation time and refreshing Modified.
func (s *Store) Update(b *types.Binding) (*types.Binding, error) {
	if err := validate(b); err != nil {
		return nil, err
	}

	updated := b.Clone()
	updated.Device = stripRuntime(updated.Device.Normalize())

	err := s.mutate(func(next *types.Settings) error {
		i := slices.IndexFunc(next.Bindings, func(x *types.Binding) bool { return x.ID == updated.ID })
		if i < 0 {
			return errors.New(errors.RulesBindingNotFound, "no binding with this id").
				WithMetadata("id", updated.ID)
		}
		updated.Created = next.Bindings[i].Created
		updated.Modified = s.now()
		s.warnOverlaps(updated, next.Bindings)
		next.Bindings[i] = updated.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("binding updated", "id", updated.ID, "enabled", updated.Enabled)
	return updated, nil
}

// Remove deletes a binding.
func (s *Store) Remove(id string) error {
	err := s.mutate(func(next *types.Settings) error {
		i := slices.IndexFunc(next.Bindings, func(x *types.Binding) bool { return x.ID == id })
		if i < 0 {
			return errors.New(errors.RulesBindingNotFound, "no binding with this id").
				WithMetadata("id", id)
		}
		next.Bindings = slices.Delete(next.Bindings, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("binding removed", "id", id)
	return nil
}

// SetEnabled toggles a binding without touching its commands.
func (s *Store) SetEnabled(id string, enabled bool) (*types.Binding, error) {
	var out *types.Binding
	err := s.mutate(func(next *types.Settings) error {
		b, ok := next.Binding(id)
		if !ok {
			return errors.New(errors.RulesBindingNotFound, "no binding with this id").
				WithMetadata("id", id)
		}
		b.Enabled = enabled
		b.Modified = s.now()
		out = b.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateToggles applies process level settings. Language must be a BCP 47
// tag and is stored in canonical form.
func (s *Store) UpdateToggles(t types.Toggles) (*types.Settings, error) {
	if t.Language != nil {
		tag, err := language.Parse(strings.TrimSpace(*t.Language))
		if err != nil {
			return nil, errors.Wrap(err, errors.RulesSettingsInvalid).
				WithMetadata("language", *t.Language)
		}
		canonical := tag.String()
		t.Language = &canonical
	}

	err := s.mutate(func(next *types.Settings) error {
		t.Apply(next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// Overlaps lists bindings that would compete with b for the same device.
func (s *Store) Overlaps(b *types.Binding) []string {
	return FindOverlaps(b, s.Snapshot().Bindings)
}

// Reload re-reads settings from persistence and publishes them.
func (s *Store) Reload() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.load()

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	s.logger.Info("settings reloaded", "bindings", len(next.Bindings))
}

// mutate runs fn on a private copy and publishes it once persisted.
func (s *Store) mutate(fn func(next *types.Settings) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.Snapshot().Clone()
	if err := fn(next); err != nil {
		return err
	}

	if err := s.persist.Save(next); err != nil {
		s.logger.Error("failed to persist settings", "error", err)
		if errors.IsAppError(err) {
			return err
		}
		return errors.Wrap(err, errors.RulesPersistFailed)
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return nil
}

func (s *Store) warnOverlaps(b *types.Binding, bindings []*types.Binding) {
	if ids := FindOverlaps(b, bindings); len(ids) > 0 {
		s.logger.Warn("binding overlaps existing bindings, first match wins",
			"id", b.ID,
			"device", b.Device.Key(),
			"overlaps", strings.Join(ids, ","))
	}
}

func validate(b *types.Binding) error {
	if b == nil {
		return errors.New(errors.RulesBindingInvalid, "binding is required")
	}
	d := b.Device
	if strings.TrimSpace(d.BusID) == "" &&
		(strings.TrimSpace(d.VendorID) == "" || strings.TrimSpace(d.ProductID) == "") {
		return errors.New(errors.RulesBindingInvalid,
			"device needs a bus id or both vendor and product ids")
	}
	return nil
}

// stripRuntime drops fields that describe one attachment, not a template.
func stripRuntime(d types.Device) types.Device {
	d.Connected = false
	d.LastSeen = time.Time{}
	return d
}
