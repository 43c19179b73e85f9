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

// Package api exposes the routing rules, the share flow and the stored
// items over HTTP. It stands in for the share extension and the settings
// and browsing screens of the desktop front end.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/transany/router/internal/localstore"
	"github.com/transany/router/internal/metrics"
	"github.com/transany/router/internal/rules"
	"github.com/transany/router/internal/share"
)

// Pinger is a dependency whose connectivity is reported by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the HTTP API.
type Handler struct {
	rules  *rules.Store
	items  *localstore.Store
	share  *share.Service
	checks map[string]Pinger
}

// NewHandler creates an API handler. checks are probed by /health.
func NewHandler(ruleStore *rules.Store, items *localstore.Store, shareSvc *share.Service, checks map[string]Pinger) *Handler {
	return &Handler{
		rules:  ruleStore,
		items:  items,
		share:  shareSvc,
		checks: checks,
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/rules", func(r chi.Router) {
		r.Get("/", h.listRules)
		r.Post("/", h.createRule)
		r.Post("/reset", h.resetRules)
		r.Put("/{id}", h.updateRule)
		r.Delete("/{id}", h.deleteRule)
	})

	r.Post("/share", h.postShare)

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.listItems)
		r.Delete("/", h.clearItems)
		r.Get("/{id}", h.getItem)
		r.Patch("/{id}", h.patchItem)
		r.Delete("/{id}", h.deleteItem)
		r.Get("/{id}/file", h.getItemFile)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	result := map[string]string{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			slog.Warn("health check failed", "check", name, "error", err)
			result[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": result})
}

// --- Response helpers ---

type errorBody struct {
	Error      string       `json:"error"`
	Candidates []rules.Rule `json:"candidates,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// warnPersist reports a non-fatal persistence failure in a response
// header. It reports whether err was such a warning; any other error is
// left for the caller.
func warnPersist(w http.ResponseWriter, err error) bool {
	var rulesErr *rules.PersistError
	var itemsErr *localstore.PersistError
	if errors.As(err, &rulesErr) || errors.As(err, &itemsErr) {
		slog.Warn("persistence warning", "error", err)
		w.Header().Add("Warning", `199 transany "`+err.Error()+`"`)
		return true
	}
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return jsonDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

func jsonDecoder(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec
}
