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
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores values in a single shared_defaults table keyed by
// (namespace, key). Writes are single-statement upserts.
type Postgres struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPostgres creates a Postgres-backed store and ensures its schema exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, namespace string) (*Postgres, error) {
	s := &Postgres{pool: pool, namespace: namespace}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure shared_defaults schema: %w", err)
	}
	slog.Info("postgres shared store initialised", "namespace", namespace)
	return s, nil
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS shared_defaults (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		);
	`)
	return err
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM shared_defaults
		WHERE namespace = $1 AND key = $2
	`, s.namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return value, nil
}

func (s *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO shared_defaults (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value      = EXCLUDED.value,
			updated_at = NOW()
	`, s.namespace, key, value)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM shared_defaults WHERE namespace = $1 AND key = $2
	`, s.namespace, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
