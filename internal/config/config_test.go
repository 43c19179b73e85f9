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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORE_BACKEND", "STORE_NAMESPACE", "REDIS_URL", "DATABASE_URL", "STORE_DIR",
		"BLOB_DIR", "MAX_ITEMS", "DISPATCH_TIMEOUT", "DISPATCH_CLIENT_ID",
		"DISPATCH_CLIENT_SECRET", "DISPATCH_TOKEN_URL", "PORT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoad_MissingFileUsesDefaults verifies that a missing config file
// falls back to built-in defaults.
func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.StoreBackend != BackendFile {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, BackendFile)
	}
	if cfg.Namespace != DefaultNamespace {
		t.Errorf("Namespace = %q, want %q", cfg.Namespace, DefaultNamespace)
	}
	if cfg.MaxItems != 100 {
		t.Errorf("MaxItems = %d, want 100", cfg.MaxItems)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DispatchTimeout != 30*time.Second {
		t.Errorf("DispatchTimeout = %v, want 30s", cfg.DispatchTimeout)
	}
	if cfg.OAuth.Enabled() {
		t.Error("OAuth should be disabled without credentials")
	}
}

// TestLoad_YAMLWithEnvExpansion verifies YAML parsing and ${VAR} expansion.
func TestLoad_YAMLWithEnvExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_REDIS_HOST", "cache.internal")
	t.Setenv("TEST_CLIENT_SECRET", "s3cret")

	path := writeConfig(t, `
store:
  backend: Redis
  namespace: group.test
  redis_url: redis://${TEST_REDIS_HOST}:6379/2
blobs:
  dir: /tmp/blobs
items:
  max: 25
dispatch:
  timeout: 5s
  oauth:
    client_id: router
    client_secret: ${TEST_CLIENT_SECRET}
    token_url: https://auth.test/token
    scopes: [upload]
server:
  port: 9090
`)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.StoreBackend != BackendRedis {
		t.Errorf("StoreBackend = %q, want redis", cfg.StoreBackend)
	}
	if cfg.RedisURL != "redis://cache.internal:6379/2" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.Namespace != "group.test" {
		t.Errorf("Namespace = %q", cfg.Namespace)
	}
	if cfg.BlobDir != "/tmp/blobs" {
		t.Errorf("BlobDir = %q", cfg.BlobDir)
	}
	if cfg.MaxItems != 25 {
		t.Errorf("MaxItems = %d, want 25", cfg.MaxItems)
	}
	if cfg.DispatchTimeout != 5*time.Second {
		t.Errorf("DispatchTimeout = %v, want 5s", cfg.DispatchTimeout)
	}
	if !cfg.OAuth.Enabled() || cfg.OAuth.ClientSecret != "s3cret" {
		t.Errorf("OAuth = %+v, want enabled with expanded secret", cfg.OAuth)
	}
	if len(cfg.OAuth.Scopes) != 1 || cfg.OAuth.Scopes[0] != "upload" {
		t.Errorf("Scopes = %v", cfg.OAuth.Scopes)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
}

// TestLoad_Validation verifies rejected backend configurations.
func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown backend", yaml: "store:\n  backend: etcd\n"},
		{name: "postgres without url", yaml: "store:\n  backend: postgres\n"},
		{name: "bad timeout", yaml: "dispatch:\n  timeout: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("CONFIG_PATH", writeConfig(t, tt.yaml))

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

// TestLoad_EnvOverrides verifies environment fallbacks when YAML is silent.
func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_PATH", writeConfig(t, "server:\n  port: 0\n"))
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("MAX_ITEMS", "7")
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Errorf("StoreBackend = %q, want memory", cfg.StoreBackend)
	}
	if cfg.MaxItems != 7 {
		t.Errorf("MaxItems = %d, want 7", cfg.MaxItems)
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Port)
	}
}
