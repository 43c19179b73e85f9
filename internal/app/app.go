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

// Package app wires configuration into the shared store backend, the
// logger and the outbound HTTP client. Both commands build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/transany/router/internal/config"
	"github.com/transany/router/internal/kv"
)

// Pinger is implemented by networked backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is an opened shared store.
type Backend struct {
	Store kv.Store
	// Pinger is nil for backends without a connection to check.
	Pinger Pinger
	close  func()
}

// Close releases the backend's connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// SetupLogging installs a JSON slog handler at the configured level.
func SetupLogging(level string) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
	slog.SetDefault(logger)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenStore connects the configured shared store backend.
func OpenStore(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		store := kv.NewRedis(rdb, cfg.Namespace)
		if err := store.Ping(ctx); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("connect to Redis: %w", err)
		}
		slog.Info("connected to Redis", "namespace", cfg.Namespace)
		return &Backend{Store: store, Pinger: store, close: func() { rdb.Close() }}, nil

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("create Postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		store, err := kv.NewPostgres(ctx, pool, cfg.Namespace)
		if err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("connected to PostgreSQL", "namespace", cfg.Namespace)
		return &Backend{Store: store, Pinger: store, close: pool.Close}, nil

	case config.BackendFile:
		store, err := kv.NewFile(cfg.StoreDir, cfg.Namespace)
		if err != nil {
			return nil, err
		}
		slog.Info("using file store", "dir", cfg.StoreDir, "namespace", cfg.Namespace)
		return &Backend{Store: store}, nil

	case config.BackendMemory:
		slog.Warn("using in-memory store, nothing will persist across restarts")
		return &Backend{Store: kv.NewMemory()}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// HTTPClient returns the client used for outbound dispatch: an OAuth2
// client-credentials client when credentials are configured, otherwise a
// plain client. Request deadlines come from the dispatcher's contexts.
func HTTPClient(ctx context.Context, cfg *config.Config) *http.Client {
	if !cfg.OAuth.Enabled() {
		return &http.Client{}
	}
	creds := &clientcredentials.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		TokenURL:     cfg.OAuth.TokenURL,
		Scopes:       cfg.OAuth.Scopes,
	}
	slog.Info("dispatch uses OAuth2 client credentials", "token_url", cfg.OAuth.TokenURL)
	return creds.Client(ctx)
}
