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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported shared store backends.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

// DefaultNamespace is the application group both front ends share.
const DefaultNamespace = "group.cc.raoqu.transany"

// OAuthConfig holds optional client credentials for outbound dispatch.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Enabled reports whether enough fields are set to request tokens.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != "" && o.TokenURL != ""
}

// Config holds all configuration for the routing service.
type Config struct {
	// Shared key-value store
	StoreBackend string
	Namespace    string
	RedisURL     string
	DatabaseURL  string
	StoreDir     string

	// Local content
	BlobDir  string
	MaxItems int

	// Dispatch
	DispatchTimeout time.Duration
	OAuth           OAuthConfig

	// Server
	Port     int
	LogLevel string
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Store struct {
		Backend     string `yaml:"backend"`
		Namespace   string `yaml:"namespace"`
		RedisURL    string `yaml:"redis_url"`
		DatabaseURL string `yaml:"database_url"`
		Dir         string `yaml:"dir"`
	} `yaml:"store"`
	Blobs struct {
		Dir string `yaml:"dir"`
	} `yaml:"blobs"`
	Items struct {
		Max int `yaml:"max"`
	} `yaml:"items"`
	Dispatch struct {
		Timeout string `yaml:"timeout"`
		OAuth   struct {
			ClientID     string   `yaml:"client_id"`
			ClientSecret string   `yaml:"client_secret"`
			TokenURL     string   `yaml:"token_url"`
			Scopes       []string `yaml:"scopes"`
		} `yaml:"oauth"`
	} `yaml:"dispatch"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables. A missing config file is not an error; every
// setting has an environment or built-in default.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	var raw rawConfig
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	default:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	return fromRaw(raw)
}

func fromRaw(raw rawConfig) (*Config, error) {
	timeout := envOrDefaultDuration("DISPATCH_TIMEOUT", 30*time.Second)
	if raw.Dispatch.Timeout != "" {
		d, err := time.ParseDuration(raw.Dispatch.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse dispatch.timeout %q: %w", raw.Dispatch.Timeout, err)
		}
		timeout = d
	}

	cfg := &Config{
		StoreBackend:    strings.ToLower(firstNonEmpty(raw.Store.Backend, envOrDefault("STORE_BACKEND", BackendFile))),
		Namespace:       firstNonEmpty(raw.Store.Namespace, envOrDefault("STORE_NAMESPACE", DefaultNamespace)),
		RedisURL:        firstNonEmpty(raw.Store.RedisURL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		DatabaseURL:     firstNonEmpty(raw.Store.DatabaseURL, os.Getenv("DATABASE_URL")),
		StoreDir:        firstNonEmpty(raw.Store.Dir, envOrDefault("STORE_DIR", "/app/data/defaults")),
		BlobDir:         firstNonEmpty(raw.Blobs.Dir, envOrDefault("BLOB_DIR", "/app/data/SharedFiles")),
		MaxItems:        firstPositive(raw.Items.Max, envOrDefaultInt("MAX_ITEMS", 100)),
		DispatchTimeout: timeout,
		OAuth: OAuthConfig{
			ClientID:     firstNonEmpty(raw.Dispatch.OAuth.ClientID, os.Getenv("DISPATCH_CLIENT_ID")),
			ClientSecret: firstNonEmpty(raw.Dispatch.OAuth.ClientSecret, os.Getenv("DISPATCH_CLIENT_SECRET")),
			TokenURL:     firstNonEmpty(raw.Dispatch.OAuth.TokenURL, os.Getenv("DISPATCH_TOKEN_URL")),
			Scopes:       raw.Dispatch.OAuth.Scopes,
		},
		Port:     firstPositive(raw.Server.Port, envOrDefaultInt("PORT", 8080)),
		LogLevel: envOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendRedis, BackendFile, BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("store backend %q requires DATABASE_URL", c.StoreBackend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("dispatch timeout must be positive, got %s", c.DispatchTimeout)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
