// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/transany/router/internal/kv"
)

// RulesKey is the shared-store key holding the encoded rule collection.
const RulesKey = "FileHandlerRules"

// Store keeps the ordered rule collection in memory and writes the whole
// collection back to the shared store after every mutation.
//
// Write failures are returned as *PersistError; the in-memory collection
// has already been updated when that happens and remains authoritative.
type Store struct {
	kv  kv.Store
	key string

	mu     sync.RWMutex
	rules  []Rule
	loaded bool
}

// NewStore creates a rule store over the shared key-value store.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store, key: RulesKey}
}

// Load reads the persisted rules. When nothing has been persisted yet the
// built-in defaults are written and returned.
//
// A read or decode failure is reported as a *PersistError together with
// the rules the store will use for the session: the previously loaded
// collection if there is one, otherwise the defaults (which are not
// written, so unreadable data is never clobbered by Load).
func (s *Store) Load(ctx context.Context) ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.kv.Get(ctx, s.key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		s.rules = Defaults()
		s.loaded = true
		slog.Info("no persisted rules, initialised defaults", "count", len(s.rules))
		return s.snapshot(), s.persist(ctx)

	case err != nil:
		s.fallback()
		return s.snapshot(), &PersistError{Op: "load rules", Err: err}
	}

	decoded, version, err := Decode(data)
	if err != nil {
		s.fallback()
		return s.snapshot(), &PersistError{Op: "decode rules", Err: err}
	}
	if version != SchemaCurrent {
		slog.Info("loaded rules from legacy schema", "version", version, "count", len(decoded))
	}

	s.rules = decoded
	s.loaded = true
	return s.snapshot(), nil
}

// fallback keeps the previously loaded rules, or the defaults on first load.
func (s *Store) fallback() {
	if !s.loaded {
		s.rules = Defaults()
		s.loaded = true
	}
}

// Rules returns a copy of the current in-memory collection in store order.
func (s *Store) Rules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// Get returns the rule with the given id.
func (s *Store) Get(id uuid.UUID) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.ID == id {
			return r.Clone(), true
		}
	}
	return Rule{}, false
}

// Add validates and appends a rule, assigning an id when it has none.
func (s *Store) Add(ctx context.Context, r Rule) (Rule, error) {
	r = r.Normalized()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rules {
		if existing.ID == r.ID {
			return Rule{}, fmt.Errorf("%w: rule %s already exists", ErrValidation, r.ID)
		}
	}

	s.rules = append(s.rules, r)
	return r.Clone(), s.persist(ctx)
}

// Update replaces the rule with the same id. It reports false, and writes
// nothing, when no such rule exists.
func (s *Store) Update(ctx context.Context, r Rule) (bool, error) {
	r = r.Normalized()
	if err := r.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rules {
		if s.rules[i].ID == r.ID {
			s.rules[i] = r
			return true, s.persist(ctx)
		}
	}
	return false, nil
}

// Delete removes the rule with the given id and persists the collection.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rules[:0]
	for _, r := range s.rules {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.rules = kept
	return s.persist(ctx)
}

// ResetToDefaults replaces the whole collection with the built-in defaults.
func (s *Store) ResetToDefaults(ctx context.Context) ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = Defaults()
	s.loaded = true
	return s.snapshot(), s.persist(ctx)
}

// Migrate rewrites the persisted collection in the current schema. It
// reports the schema version that was found.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read rules: %w", err)
	}
	decoded, version, err := Decode(data)
	if err != nil {
		return 0, err
	}
	if version == SchemaCurrent {
		return version, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = decoded
	s.loaded = true
	if err := s.persist(ctx); err != nil {
		return version, err
	}
	slog.Info("migrated rules to current schema", "from", version, "count", len(decoded))
	return version, nil
}

// persist writes the whole collection. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) error {
	data, err := Encode(s.rules)
	if err != nil {
		return &PersistError{Op: "encode rules", Err: err}
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		slog.Warn("failed to save rules", "count", len(s.rules), "error", err)
		return &PersistError{Op: "save rules", Err: err}
	}
	slog.Debug("saved rules", "count", len(s.rules))
	return nil
}

func (s *Store) snapshot() []Rule {
	out := make([]Rule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Clone()
	}
	return out
}
