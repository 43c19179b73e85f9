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

// TransAny routing service
//
// Entry point for the share routing service. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Opens the shared store (Redis, PostgreSQL, file or memory)
//  3. Loads the routing rules, writing the defaults on first start
//  4. Serves the rules, share and items API
//  5. Waits for in-flight dispatches on SIGTERM/SIGINT before exiting
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/transany/router/internal/api"
	"github.com/transany/router/internal/app"
	"github.com/transany/router/internal/blob"
	"github.com/transany/router/internal/config"
	"github.com/transany/router/internal/dispatch"
	"github.com/transany/router/internal/localstore"
	"github.com/transany/router/internal/rules"
	"github.com/transany/router/internal/share"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		app.SetupLogging("info")
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	app.SetupLogging(cfg.LogLevel)

	slog.Info("starting TransAny routing service",
		"backend", cfg.StoreBackend,
		"namespace", cfg.Namespace,
		"max_items", cfg.MaxItems,
		"dispatch_timeout", cfg.DispatchTimeout,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// --- Shared Store ---
	backend, err := app.OpenStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open shared store", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	// --- Rules ---
	ruleStore := rules.NewStore(backend.Store)
	loaded, err := ruleStore.Load(ctx)
	if err != nil {
		// Non-fatal: the store keeps serving from memory.
		slog.Warn("rules could not be loaded from the shared store", "error", err)
	}
	slog.Info("rules loaded", "count", len(loaded))

	// --- Items and Blobs ---
	blobs, err := blob.New(cfg.BlobDir)
	if err != nil {
		slog.Error("failed to open blob directory", "error", err)
		os.Exit(1)
	}
	items := localstore.New(backend.Store, blobs, cfg.MaxItems)

	// --- Dispatch ---
	dispatcher := dispatch.New(app.HTTPClient(ctx, cfg), cfg.DispatchTimeout)
	shareSvc := share.NewService(rules.NewMatcher(ruleStore), dispatcher, items)

	// --- API Server ---
	checks := map[string]api.Pinger{}
	if backend.Pinger != nil {
		checks[cfg.StoreBackend] = backend.Pinger
	}
	handler := api.NewHandler(ruleStore, items, shareSvc, checks)

	ready, done, err := api.Serve(ctx, cfg.Port, handler.Routes())
	if err != nil {
		slog.Error("failed to start api server", "error", err)
		os.Exit(1)
	}
	<-ready
	slog.Info("routing service ready", "port", cfg.Port)

	// --- Graceful Shutdown ---
	<-ctx.Done()
	slog.Info("received shutdown signal")
	<-done

	dispatcher.Wait()
	slog.Info("routing service stopped")
}
