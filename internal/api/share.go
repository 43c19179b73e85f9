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
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/transany/router/internal/content"
	"github.com/transany/router/internal/rules"
	"github.com/transany/router/internal/share"
)

const maxShareBytes = 64 << 20

type shareItem struct {
	Kind     string `json:"kind"`
	URL      string `json:"url,omitempty"`
	Text     string `json:"text,omitempty"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

type shareRequest struct {
	Items        []shareItem `json:"items"`
	Title        string      `json:"title,omitempty"`
	RuleID       string      `json:"rule_id,omitempty"`
	FirstMatch   bool        `json:"first_match,omitempty"`
	SaveUnrouted bool        `json:"save_unrouted,omitempty"`
	Source       string      `json:"source,omitempty"`
}

type shareResponse struct {
	Records    []itemView `json:"records"`
	Dispatched int        `json:"dispatched"`
	Unrouted   int        `json:"unrouted,omitempty"`
	Warnings   []string   `json:"warnings,omitempty"`
}

// postShare accepts either multipart/form-data ("file" parts plus repeated
// "url" and "text" fields) or a JSON shareRequest.
func (h *Handler) postShare(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxShareBytes)

	var (
		req share.Request
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		req, err = parseMultipartShare(r)
	} else {
		req, err = parseJSONShare(r)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.share.Share(r.Context(), req)
	var amb *share.AmbiguousError
	switch {
	case errors.As(err, &amb):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Candidates: amb.Candidates})
		return
	case errors.Is(err, rules.ErrUnsupportedContent):
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := shareResponse{
		Records:    make([]itemView, 0, len(res.Records)),
		Dispatched: res.Dispatched,
		Unrouted:   res.Unrouted,
	}
	for _, rec := range res.Records {
		resp.Records = append(resp.Records, viewOf(rec))
	}
	for _, warn := range res.Warnings {
		resp.Warnings = append(resp.Warnings, warn.Error())
	}
	writeJSON(w, http.StatusCreated, resp)
}

func parseJSONShare(r *http.Request) (share.Request, error) {
	var body shareRequest
	dec := jsonDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		return share.Request{}, fmt.Errorf("decode share request: %w", err)
	}

	req := share.Request{
		Title:        body.Title,
		FirstMatch:   body.FirstMatch,
		SaveUnrouted: body.SaveUnrouted,
		Source:       body.Source,
	}
	if err := setRuleID(&req, body.RuleID); err != nil {
		return share.Request{}, err
	}
	for i, it := range body.Items {
		in, err := inputOf(it)
		if err != nil {
			return share.Request{}, fmt.Errorf("item %d: %w", i, err)
		}
		req.Items = append(req.Items, in)
	}
	return req, nil
}

func inputOf(it shareItem) (content.Input, error) {
	switch content.InputKind(it.Kind) {
	case content.InputFile:
		if it.Filename == "" {
			return content.Input{}, errors.New("file item without filename")
		}
		return content.FileInput(it.Filename, it.Data), nil
	case content.InputURL:
		return content.URLInput(it.URL)
	case content.InputText:
		return content.TextInput(it.Text), nil
	}
	return content.Input{}, fmt.Errorf("unknown item kind %q", it.Kind)
}

func parseMultipartShare(r *http.Request) (share.Request, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return share.Request{}, fmt.Errorf("parse multipart form: %w", err)
	}
	form := r.MultipartForm

	req := share.Request{
		Title:  first(form.Value["title"]),
		Source: first(form.Value["source"]),
	}
	for name, dst := range map[string]*bool{"first_match": &req.FirstMatch, "save_unrouted": &req.SaveUnrouted} {
		v := first(form.Value[name])
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return share.Request{}, fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
	}
	if err := setRuleID(&req, first(form.Value["rule_id"])); err != nil {
		return share.Request{}, err
	}

	for _, fh := range form.File["file"] {
		f, err := fh.Open()
		if err != nil {
			return share.Request{}, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return share.Request{}, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		req.Items = append(req.Items, content.FileInput(fh.Filename, data))
	}
	for _, raw := range form.Value["url"] {
		in, err := content.URLInput(raw)
		if err != nil {
			return share.Request{}, err
		}
		req.Items = append(req.Items, in)
	}
	for _, text := range form.Value["text"] {
		req.Items = append(req.Items, content.TextInput(text))
	}
	return req, nil
}

func setRuleID(req *share.Request, raw string) error {
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("rule_id: %w", err)
	}
	req.RuleID = id
	return nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
