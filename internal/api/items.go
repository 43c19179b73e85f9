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
	"path"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/transany/router/internal/content"
	"github.com/transany/router/internal/localstore"
)

// itemView is a record as listed by the API, with its display preview.
type itemView struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	ContentType string            `json:"contentType"`
	FilePath    string            `json:"filePath,omitempty"`
	TextContent *string           `json:"textContent,omitempty"`
	Metadata    map[string]string `json:"metadata"`
	Timestamp   time.Time         `json:"timestamp"`
	Preview     string            `json:"preview"`
}

func viewOf(rec content.Record) itemView {
	v := itemView{
		ID:          rec.ID,
		Title:       rec.Title,
		ContentType: string(rec.Type),
		Metadata:    rec.Metadata,
		Timestamp:   rec.Timestamp,
		Preview:     rec.Preview(),
	}
	if p, ok := rec.FilePath(); ok {
		v.FilePath = p
	}
	if text, ok := rec.TextContent(); ok {
		v.TextContent = &text
	}
	return v
}

type itemPatch struct {
	Title    *string           `json:"title,omitempty"`
	Text     *string           `json:"textContent,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.LoadItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]itemView, 0, len(items))
	for _, rec := range items {
		views = append(views, viewOf(rec))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	rec, err := h.items.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusForItemError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(rec))
}

func (h *Handler) patchItem(w http.ResponseWriter, r *http.Request) {
	var patch itemPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode edit: %w", err))
		return
	}

	rec, err := h.items.UpdateItem(r.Context(), chi.URLParam(r, "id"), content.Edit{
		Title:    patch.Title,
		Text:     patch.Text,
		Metadata: patch.Metadata,
	})
	// A write failure still returns the edited record. Anything else,
	// including an unreadable collection, means no edit took place.
	if err != nil && (rec.ID == "" || !warnPersist(w, err)) {
		writeError(w, statusForItemError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(rec))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.items.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusForItemError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearItems(w http.ResponseWriter, r *http.Request) {
	if err := h.items.ClearAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getItemFile streams the blob of a file-backed record.
func (h *Handler) getItemFile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.items.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusForItemError(err), err)
		return
	}
	rel, ok := rec.FilePath()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("item %s has no file", rec.ID))
		return
	}

	f, err := h.items.OpenFile(rel)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	name := rec.Metadata[content.MetaOriginalFilename]
	if name == "" {
		name = path.Base(rel)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func statusForItemError(err error) int {
	switch {
	case errors.Is(err, localstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, content.ErrNotEditable):
		return http.StatusUnprocessableEntity
	}
	var persistErr *localstore.PersistError
	if errors.As(err, &persistErr) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
