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

// TransAny schema migration command
//
// Standalone CLI tool that rewrites rules and items persisted by older
// releases into the current schema. Reads never modify legacy data, so
// this is the only path that upgrades it in place.
//
// Usage:
//
//	go run ./cmd/migrate/ [--rules=true] [--items=true] [--dry-run]
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/transany/router/internal/app"
	"github.com/transany/router/internal/blob"
	"github.com/transany/router/internal/config"
	"github.com/transany/router/internal/content"
	"github.com/transany/router/internal/kv"
	"github.com/transany/router/internal/localstore"
	"github.com/transany/router/internal/rules"
)

func main() {
	// --- CLI Flags ---
	rulesFlag := flag.Bool("rules", true, "Migrate the persisted routing rules")
	itemsFlag := flag.Bool("items", true, "Migrate the persisted content items")
	dryRun := flag.Bool("dry-run", false, "Report schema versions without writing")
	timeout := flag.Duration("timeout", time.Minute, "Overall time limit")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		app.SetupLogging("info")
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	app.SetupLogging(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	backend, err := app.OpenStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open shared store", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	if *dryRun {
		report(ctx, backend.Store)
		return
	}

	failed := false

	if *rulesFlag {
		version, err := rules.NewStore(backend.Store).Migrate(ctx)
		if err != nil {
			slog.Error("rule migration failed", "error", err)
			failed = true
		} else {
			slog.Info("rules migrated", "found_schema", version, "current_schema", rules.SchemaCurrent)
		}
	}

	if *itemsFlag {
		blobs, err := blob.New(cfg.BlobDir)
		if err != nil {
			slog.Error("failed to open blob directory", "error", err)
			os.Exit(1)
		}
		version, err := localstore.New(backend.Store, blobs, cfg.MaxItems).Migrate(ctx)
		if err != nil {
			slog.Error("item migration failed", "error", err)
			failed = true
		} else {
			slog.Info("items migrated", "found_schema", version, "current_schema", content.SchemaCurrent)
		}
	}

	if failed {
		os.Exit(1)
	}
}

// report logs the schema version of each persisted collection.
func report(ctx context.Context, store kv.Store) {
	if data, err := store.Get(ctx, rules.RulesKey); err == nil {
		_, version, err := rules.Decode(data)
		slog.Info("rules", "key", rules.RulesKey, "schema", version, "error", err)
	} else if !errors.Is(err, kv.ErrNotFound) {
		slog.Error("failed to read rules", "error", err)
	}

	for _, key := range []string{localstore.ItemsKey, localstore.LegacyItemsKey} {
		data, err := store.Get(ctx, key)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			slog.Error("failed to read items", "key", key, "error", err)
			continue
		}
		records, version, err := content.Decode(data, time.Now())
		slog.Info("items", "key", key, "schema", version, "count", len(records), "error", err)
	}
}
