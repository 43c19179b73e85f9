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

package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Schema versions of a persisted record collection, oldest first.
const (
	// SchemaDictionary is the loose dictionary list written by the first
	// share extension: {"type", "title", "content", "timestamp"}.
	SchemaDictionary = 1
	// SchemaSharedItem is the typed list with localized content-type labels
	// and a single "content" string.
	SchemaSharedItem = 2
	// SchemaReferenceDate is the current field layout with timestamps as
	// seconds since 2001-01-01 UTC.
	SchemaReferenceDate = 3
	// SchemaCurrent is the layout produced by Encode, with RFC 3339 timestamps.
	SchemaCurrent = 4
)

// referenceDate is the epoch used by reference-date timestamps.
var referenceDate = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

type schemaDecoder struct {
	version int
	decode  func([]byte, time.Time) ([]Record, error)
}

// decoders lists every known schema, newest first.
var decoders = []schemaDecoder{
	{version: SchemaCurrent, decode: decodeCurrent},
	{version: SchemaReferenceDate, decode: decodeReferenceDate},
	{version: SchemaSharedItem, decode: decodeSharedItem},
	{version: SchemaDictionary, decode: decodeDictionary},
}

// Encode marshals records in the current schema, preserving order.
func Encode(records []Record) ([]byte, error) {
	out := make([]recordJSON, len(records))
	for i, r := range records {
		out[i] = r.toJSON()
	}
	return json.Marshal(out)
}

// Decode parses a persisted record collection written by any known schema.
// now stamps legacy entries that carry no timestamp.
func Decode(data []byte, now time.Time) ([]Record, int, error) {
	var errs []error
	for _, d := range decoders {
		records, err := d.decode(data, now)
		if err == nil {
			return records, d.version, nil
		}
		errs = append(errs, fmt.Errorf("schema v%d: %w", d.version, err))
	}
	return nil, 0, fmt.Errorf("decode records: %w", errors.Join(errs...))
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func decodeCurrent(data []byte, _ time.Time) ([]Record, error) {
	var raw []recordJSON
	if err := strictUnmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raw))
	for i, r := range raw {
		rec, err := fromFields(r.ID, r.Title, r.ContentType, r.FilePath, r.TextContent, r.Metadata, r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

type referenceDateJSON struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	ContentType string            `json:"contentType"`
	FilePath    *string           `json:"filePath,omitempty"`
	TextContent *string           `json:"textContent,omitempty"`
	Metadata    map[string]string `json:"metadata"`
	Timestamp   float64           `json:"timestamp"`
}

func decodeReferenceDate(data []byte, _ time.Time) ([]Record, error) {
	var raw []referenceDateJSON
	if err := strictUnmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raw))
	for i, r := range raw {
		rec, err := fromFields(r.ID, r.Title, r.ContentType, r.FilePath, r.TextContent, r.Metadata, fromReferenceSeconds(r.Timestamp))
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

type sharedItemJSON struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	ContentType   string  `json:"contentType"`
	Content       string  `json:"content"`
	Timestamp     float64 `json:"timestamp"`
	ThumbnailData *string `json:"thumbnailData,omitempty"`
}

// sharedItemTypes maps the localized labels of the typed list. Only text
// kept its content inline; every other label stored a link.
var sharedItemTypes = map[string]string{
	"URL": "url",
	"图片":  "image",
	"文本":  "text",
	"PDF": "pdf",
	"文档":  "document",
	"视频":  "video",
}

func decodeSharedItem(data []byte, _ time.Time) ([]Record, error) {
	var raw []sharedItemJSON
	if err := strictUnmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raw))
	for i, r := range raw {
		label, ok := sharedItemTypes[r.ContentType]
		if !ok {
			return nil, fmt.Errorf("record %d: unknown content type label %q", i, r.ContentType)
		}
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("record %d: id %q: %w", i, r.ID, err)
		}
		out = append(out, legacyRecord(id.String(), r.Title, label, r.Content, fromReferenceSeconds(r.Timestamp)))
	}
	return out, nil
}

type dictionaryJSON struct {
	Title     *string  `json:"title"`
	Content   *string  `json:"content"`
	Type      *string  `json:"type"`
	Timestamp *float64 `json:"timestamp"`
}

// decodeDictionary is lenient about extra keys, matching how the
// dictionary list was read originally; entries missing a required key are
// skipped rather than failing the whole list.
func decodeDictionary(data []byte, now time.Time) ([]Record, error) {
	var raw []dictionaryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raw))
	for _, r := range raw {
		if r.Title == nil || r.Content == nil || r.Type == nil {
			continue
		}
		ts := now
		if r.Timestamp != nil {
			ts = fromReferenceSeconds(*r.Timestamp)
		}
		out = append(out, legacyRecord(uuid.New().String(), *r.Title, *r.Type, *r.Content, ts))
	}
	if len(raw) > 0 && len(out) == 0 {
		return nil, fmt.Errorf("no usable dictionary entries among %d", len(raw))
	}
	return out, nil
}

// legacyRecord converts a single-content legacy entry. Text stays text;
// anything else held a link and becomes a URL record remembering its
// original label.
func legacyRecord(id, title, label, content string, ts time.Time) Record {
	r := Record{
		ID:        id,
		Title:     title,
		Body:      TextBody{Text: content},
		Metadata:  map[string]string{},
		Timestamp: ts.UTC(),
	}
	switch label {
	case "text":
		r.Type = TypeText
	case "url":
		r.Type = TypeURL
	default:
		r.Type = TypeURL
		r.Metadata[MetaLegacyType] = strings.ToLower(label)
	}
	return r
}

func fromReferenceSeconds(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return referenceDate.Add(time.Duration(whole) * time.Second).Add(time.Duration(frac * float64(time.Second)))
}
