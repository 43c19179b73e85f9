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

package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	file, err := NewFile(t.TempDir(), "group.test")
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	stores := map[string]Store{
		"memory": NewMemory(),
		"file":   file,
	}
	for name, s := range remoteBackends(t) {
		stores[name] = s
	}
	return stores
}

// TestStore_RoundTrip verifies get/set/delete semantics shared by all backends.
func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "FileHandlerRules"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
			}

			if err := s.Set(ctx, "FileHandlerRules", []byte(`[1]`)); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := s.Set(ctx, "FileHandlerRules", []byte(`[1,2]`)); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}

			got, err := s.Get(ctx, "FileHandlerRules")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != `[1,2]` {
				t.Errorf("Get = %q, want [1,2]", got)
			}

			if err := s.Delete(ctx, "FileHandlerRules"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(ctx, "FileHandlerRules"); err != nil {
				t.Fatalf("Delete of missing key should succeed: %v", err)
			}
			if _, err := s.Get(ctx, "FileHandlerRules"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
			}
		})
	}
}

// TestMemory_CopiesValues verifies callers cannot mutate stored bytes.
func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	in := []byte("abc")
	_ = m.Set(ctx, "k", in)
	in[0] = 'x'

	out, _ := m.Get(ctx, "k")
	if string(out) != "abc" {
		t.Errorf("stored value mutated through input slice: %q", out)
	}
	out[1] = 'y'
	again, _ := m.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value mutated through output slice: %q", again)
	}
}

// TestFile_RejectsPathKeys verifies keys cannot escape the namespace directory.
func TestFile_RejectsPathKeys(t *testing.T) {
	f, err := NewFile(t.TempDir(), "ns")
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	for _, key := range []string{"", "../escape", "a/b", `a\b`, ".."} {
		if err := f.Set(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("Set(%q) should fail", key)
		}
	}
}

// TestFile_NamespacesAreIsolated verifies two namespaces under one directory
// do not see each other's keys, and no temp files are left behind.
func TestFile_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, _ := NewFile(dir, "group.a")
	b, _ := NewFile(dir, "group.b")

	if err := a.Set(ctx, "SharedItemsV2", []byte("[]")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := b.Get(ctx, "SharedItemsV2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("namespace b sees namespace a's key: err = %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "group.a"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "SharedItemsV2.json" {
		t.Errorf("unexpected files in namespace dir: %v", entries)
	}
}
