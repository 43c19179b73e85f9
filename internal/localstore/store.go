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

// Package localstore persists captured content records and their blobs in
// the storage shared by the share flow and the browsing front end.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/transany/router/internal/blob"
	"github.com/transany/router/internal/content"
	"github.com/transany/router/internal/kv"
)

const (
	// ItemsKey holds the encoded record collection.
	ItemsKey = "SharedItemsV2"
	// LegacyItemsKey held the record collection before ItemsKey existed.
	// It is read when ItemsKey is absent and never written.
	LegacyItemsKey = "SharedItems"

	// DefaultMaxItems is the retention cap used when none is configured.
	DefaultMaxItems = 100
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("item not found")

// PersistError reports a failed read or write of the record collection.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Store keeps records newest first, capped at a maximum count. Every
// operation reads the collection from the shared store, so changes made by
// other processes using the same namespace are visible immediately.
type Store struct {
	kv       kv.Store
	blobs    *blob.Store
	maxItems int
	now      func() time.Time

	mu sync.Mutex
}

// New creates a record store. maxItems <= 0 selects DefaultMaxItems.
func New(store kv.Store, blobs *blob.Store, maxItems int) *Store {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Store{kv: store, blobs: blobs, maxItems: maxItems, now: time.Now}
}

// MaxItems returns the retention cap.
func (s *Store) MaxItems() int {
	return s.maxItems
}

// SaveFile writes file content into the blob directory and returns its
// relative path. It satisfies content.BlobWriter.
func (s *Store) SaveFile(data []byte, filename string) (string, error) {
	rel, err := s.blobs.Save(data, filename)
	if err != nil {
		slog.Error("failed to save blob", "filename", filename, "error", err)
		return "", err
	}
	return rel, nil
}

// FilePath resolves a record's relative blob path.
func (s *Store) FilePath(rel string) (string, error) {
	return s.blobs.Path(rel)
}

// OpenFile opens a record's blob for reading. The caller closes the file.
func (s *Store) OpenFile(rel string) (*os.File, error) {
	return s.blobs.Open(rel)
}

// SaveItem inserts rec at the front of the collection. Records beyond the
// cap are evicted from the end, and their blobs deleted.
func (s *Store) SaveItem(ctx context.Context, rec content.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read(ctx)
	if err != nil {
		return err
	}

	items = append([]content.Record{rec}, items...)
	var evicted []content.Record
	if len(items) > s.maxItems {
		evicted = items[s.maxItems:]
		items = items[:s.maxItems]
	}

	if err := s.write(ctx, items); err != nil {
		return err
	}
	for _, old := range evicted {
		s.deleteBlob(old)
	}
	if len(evicted) > 0 {
		slog.Info("evicted items over retention cap", "count", len(evicted), "max_items", s.maxItems)
	}
	return nil
}

// LoadItems returns every record, newest first.
func (s *Store) LoadItems(ctx context.Context) ([]content.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id string) (content.Record, error) {
	items, err := s.LoadItems(ctx)
	if err != nil {
		return content.Record{}, err
	}
	for _, r := range items {
		if r.ID == id {
			return r, nil
		}
	}
	return content.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// UpdateItem applies an edit to the record with the given id and returns
// the updated record. Title and text edits fail with content.ErrNotEditable
// on file-backed records. When only the final write fails, the edited
// record is returned together with a *PersistError; every other failure
// returns a zero Record.
func (s *Store) UpdateItem(ctx context.Context, id string, e content.Edit) (content.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read(ctx)
	if err != nil {
		return content.Record{}, err
	}
	i := slices.IndexFunc(items, func(r content.Record) bool { return r.ID == id })
	if i < 0 {
		return content.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated, err := items[i].Apply(e)
	if err != nil {
		return content.Record{}, err
	}
	items[i] = updated
	if err := s.write(ctx, items); err != nil {
		return updated, err
	}
	return updated, nil
}

// DeleteItem removes the record with the given id and its blob.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(items, func(r content.Record) bool { return r.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	removed := items[i]
	items = slices.Delete(items, i, i+1)
	if err := s.write(ctx, items); err != nil {
		return err
	}
	s.deleteBlob(removed)
	return nil
}

// ClearAll removes every record and every blob.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, key := range []string{ItemsKey, LegacyItemsKey} {
		if err := s.kv.Delete(ctx, key); err != nil {
			errs = append(errs, &PersistError{Op: "delete " + key, Err: err})
		}
	}
	if err := s.blobs.Clear(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		slog.Error("failed to clear items", "error", err)
		return err
	}
	slog.Info("cleared all items")
	return nil
}

// Migrate rewrites the persisted collection in the current schema under
// ItemsKey. It reports the schema version that was found, or 0 when there
// was nothing to migrate. Records beyond the cap are dropped along with
// their blobs. The legacy key is left in place.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, key, err := s.readRaw(ctx)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	items, version, err := content.Decode(data, s.now())
	if err != nil {
		return 0, &PersistError{Op: "decode " + key, Err: err}
	}
	if version == content.SchemaCurrent && key == ItemsKey && len(items) <= s.maxItems {
		return version, nil
	}
	sortNewestFirst(items)
	var evicted []content.Record
	if len(items) > s.maxItems {
		evicted = items[s.maxItems:]
		items = items[:s.maxItems]
	}
	if err := s.write(ctx, items); err != nil {
		return version, err
	}
	for _, old := range evicted {
		s.deleteBlob(old)
	}
	slog.Info("migrated items to current schema",
		"from", version, "key", key, "count", len(items), "evicted", len(evicted))
	return version, nil
}

// read loads and decodes the collection. Callers hold s.mu.
func (s *Store) read(ctx context.Context) ([]content.Record, error) {
	data, key, err := s.readRaw(ctx)
	if errors.Is(err, kv.ErrNotFound) {
		return []content.Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	items, version, err := content.Decode(data, s.now())
	if err != nil {
		return nil, &PersistError{Op: "decode " + key, Err: err}
	}
	if version != content.SchemaCurrent {
		slog.Debug("read items from legacy schema", "version", version, "key", key)
		sortNewestFirst(items)
	}
	return items, nil
}

// readRaw returns the current collection, falling back to the legacy key.
func (s *Store) readRaw(ctx context.Context) ([]byte, string, error) {
	for _, key := range []string{ItemsKey, LegacyItemsKey} {
		data, err := s.kv.Get(ctx, key)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, key, &PersistError{Op: "read " + key, Err: err}
		}
		return data, key, nil
	}
	return nil, "", kv.ErrNotFound
}

// write encodes and stores the collection. Callers hold s.mu.
func (s *Store) write(ctx context.Context, items []content.Record) error {
	data, err := content.Encode(items)
	if err != nil {
		return &PersistError{Op: "encode items", Err: err}
	}
	if err := s.kv.Set(ctx, ItemsKey, data); err != nil {
		slog.Warn("failed to save items", "count", len(items), "error", err)
		return &PersistError{Op: "save items", Err: err}
	}
	slog.Debug("saved items", "count", len(items))
	return nil
}

func (s *Store) deleteBlob(r content.Record) {
	path, ok := r.FilePath()
	if !ok {
		return
	}
	if err := s.blobs.Delete(path); err != nil {
		slog.Warn("failed to delete blob", "item_id", r.ID, "path", path, "error", err)
	}
}

func sortNewestFirst(items []content.Record) {
	slices.SortStableFunc(items, func(a, b content.Record) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}
