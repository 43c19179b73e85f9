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

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/transany/router/internal/rules"
)

func (h *Handler) listRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.rules.Rules())
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var rule rules.Rule
	if err := decodeJSON(w, r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode rule: %w", err))
		return
	}

	saved, err := h.rules.Add(r.Context(), rule)
	if err != nil && !warnPersist(w, err) {
		writeError(w, statusForRuleError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("rule id: %w", err))
		return
	}
	var rule rules.Rule
	if err := decodeJSON(w, r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode rule: %w", err))
		return
	}
	rule.ID = id

	found, err := h.rules.Update(r.Context(), rule)
	if err != nil && !warnPersist(w, err) {
		writeError(w, statusForRuleError(err), err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("rule %s not found", id))
		return
	}
	saved, _ := h.rules.Get(id)
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("rule id: %w", err))
		return
	}
	if _, ok := h.rules.Get(id); !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("rule %s not found", id))
		return
	}
	if err := h.rules.Delete(r.Context(), id); err != nil && !warnPersist(w, err) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resetRules(w http.ResponseWriter, r *http.Request) {
	reset, err := h.rules.ResetToDefaults(r.Context())
	if err != nil && !warnPersist(w, err) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, reset)
}

func statusForRuleError(err error) int {
	if errors.Is(err, rules.ErrValidation) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
