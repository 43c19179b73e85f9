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

// Package content defines the canonical record for a piece of captured
// content, the conversion from ingestion-time input into records, and the
// persisted encoding of record collections.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Type is the kind of content a record holds.
type Type string

const (
	TypePhoto Type = "photo"
	TypePDF   Type = "pdf"
	TypeExcel Type = "excel"
	TypeText  Type = "text"
	TypeURL   Type = "url"
	TypeVideo Type = "video"
	TypeFile  Type = "file"
)

// ParseType validates a content type string.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypePhoto, TypePDF, TypeExcel, TypeText, TypeURL, TypeVideo, TypeFile:
		return t, nil
	}
	return "", fmt.Errorf("unknown content type %q", s)
}

// FileBacked reports whether records of this type reference a blob.
func (t Type) FileBacked() bool {
	return t != TypeText && t != TypeURL
}

// Editable reports whether the title and body of this type can be edited.
func (t Type) Editable() bool {
	return !t.FileBacked()
}

// TypeForExtension maps a file extension to the record type it produces.
func TypeForExtension(ext string) Type {
	switch normalizeExt(ext) {
	case "pdf":
		return TypePDF
	case "jpg", "jpeg", "png", "gif", "heic":
		return TypePhoto
	case "xls", "xlsx":
		return TypeExcel
	case "mp4", "mov":
		return TypeVideo
	default:
		return TypeFile
	}
}

// Body is the payload of a record: a FileBody for file-backed types or a
// TextBody for text and URL types.
type Body interface {
	isBody()
}

// FileBody references a blob by its path relative to the blob directory.
type FileBody struct {
	Path string
}

// TextBody holds inline text, or the URL string for URL records.
type TextBody struct {
	Text string
}

func (FileBody) isBody() {}
func (TextBody) isBody() {}

// Metadata keys written by the ingestion and routing flow.
const (
	MetaSource           = "source"
	MetaSize             = "size"
	MetaExtension        = "extension"
	MetaOriginalFilename = "original_filename"
	MetaHost             = "host"
	MetaScheme           = "scheme"
	MetaLength           = "length"
	MetaMergedFromText   = "merged_from_text"
	MetaLegacyType       = "legacy_type"
	MetaHandlerRuleID    = "handler_rule_id"
	MetaHandlerType      = "handler_type"
	MetaHandlerURL       = "handler_url"
	MetaHandlerStatus    = "handler_status"
)

// HandlerStatusPending is recorded when content is submitted for dispatch.
// Nothing updates it afterwards.
const HandlerStatusPending = "pending"

var (
	// ErrBodyMismatch means the body variant does not fit the content type.
	ErrBodyMismatch = errors.New("content body does not match content type")

	// ErrNotEditable means a title or body edit was attempted on a file-backed record.
	ErrNotEditable = errors.New("content type is not editable")
)

// Record is a stored piece of content.
type Record struct {
	ID        string
	Title     string
	Type      Type
	Body      Body
	Metadata  map[string]string
	Timestamp time.Time
}

// NewRecord builds a record with a fresh id, checking that the body
// variant fits the type.
func NewRecord(title string, typ Type, body Body, metadata map[string]string, now time.Time) (Record, error) {
	r := Record{
		ID:        uuid.New().String(),
		Title:     title,
		Type:      typ,
		Body:      body,
		Metadata:  copyMetadata(metadata),
		Timestamp: now.UTC(),
	}
	if err := r.validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

func (r Record) validate() error {
	if _, err := ParseType(string(r.Type)); err != nil {
		return err
	}
	switch b := r.Body.(type) {
	case FileBody:
		if !r.Type.FileBacked() {
			return fmt.Errorf("%w: %s record with a file body", ErrBodyMismatch, r.Type)
		}
		if b.Path == "" {
			return fmt.Errorf("%w: %s record with an empty file path", ErrBodyMismatch, r.Type)
		}
	case TextBody:
		if r.Type.FileBacked() {
			return fmt.Errorf("%w: %s record with a text body", ErrBodyMismatch, r.Type)
		}
	default:
		return fmt.Errorf("%w: %s record without a body", ErrBodyMismatch, r.Type)
	}
	return nil
}

// FilePath returns the blob path of a file-backed record.
func (r Record) FilePath() (string, bool) {
	b, ok := r.Body.(FileBody)
	return b.Path, ok
}

// TextContent returns the inline text of a text or URL record.
func (r Record) TextContent() (string, bool) {
	b, ok := r.Body.(TextBody)
	return b.Text, ok
}

// Preview returns a short display string: the first 100 characters of the
// text, the file path, or the title.
func (r Record) Preview() string {
	if text, ok := r.TextContent(); ok && text != "" {
		if utf8.RuneCountInString(text) > 100 {
			return string([]rune(text)[:100]) + "..."
		}
		return text
	}
	if path, ok := r.FilePath(); ok {
		return path
	}
	return r.Title
}

// Edit describes a change to an existing record. Nil fields are left alone;
// metadata entries are merged into the existing metadata.
type Edit struct {
	Title    *string
	Text     *string
	Metadata map[string]string
}

// Apply returns a copy of r with the edit applied. Title and text edits are
// only allowed on text and URL records.
func (r Record) Apply(e Edit) (Record, error) {
	if (e.Title != nil || e.Text != nil) && !r.Type.Editable() {
		return Record{}, fmt.Errorf("%w: %s", ErrNotEditable, r.Type)
	}
	out := r
	out.Metadata = copyMetadata(r.Metadata)
	if e.Title != nil {
		out.Title = *e.Title
	}
	if e.Text != nil {
		out.Body = TextBody{Text: *e.Text}
	}
	for k, v := range e.Metadata {
		out.Metadata[k] = v
	}
	return out, nil
}

// recordJSON is the persisted layout of a record.
type recordJSON struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	ContentType string            `json:"contentType"`
	FilePath    *string           `json:"filePath,omitempty"`
	TextContent *string           `json:"textContent,omitempty"`
	Metadata    map[string]string `json:"metadata"`
	Timestamp   time.Time         `json:"timestamp"`
}

func (r Record) toJSON() recordJSON {
	out := recordJSON{
		ID:          r.ID,
		Title:       r.Title,
		ContentType: string(r.Type),
		Metadata:    copyMetadata(r.Metadata),
		Timestamp:   r.Timestamp,
	}
	switch b := r.Body.(type) {
	case FileBody:
		out.FilePath = &b.Path
	case TextBody:
		out.TextContent = &b.Text
	}
	return out
}

func fromFields(id, title, contentType string, filePath, textContent *string, metadata map[string]string, ts time.Time) (Record, error) {
	typ, err := ParseType(contentType)
	if err != nil {
		return Record{}, err
	}
	if (filePath == nil) == (textContent == nil) {
		return Record{}, fmt.Errorf("%w: record %s must have exactly one of filePath or textContent", ErrBodyMismatch, id)
	}
	var body Body
	if filePath != nil {
		body = FileBody{Path: *filePath}
	} else {
		body = TextBody{Text: *textContent}
	}
	r := Record{
		ID:        id,
		Title:     title,
		Type:      typ,
		Body:      body,
		Metadata:  copyMetadata(metadata),
		Timestamp: ts.UTC(),
	}
	if err := r.validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// MarshalJSON encodes the record in the persisted layout.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.toJSON())
}

// UnmarshalJSON decodes the persisted layout, rejecting records whose body
// does not fit their type.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rec, err := fromFields(raw.ID, raw.Title, raw.ContentType, raw.FilePath, raw.TextContent, raw.Metadata, raw.Timestamp)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
