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

// Package rules holds the routing rules that decide where shared content is
// forwarded, the store that persists them, and the matcher that selects the
// rules applicable to a piece of content.
package rules

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Kind distinguishes rules that upload a file from rules that post a URL.
type Kind string

const (
	KindFile Kind = "file"
	KindURL  Kind = "url"
)

// DefaultFileFieldName is the multipart field used when a file rule does
// not name one.
const DefaultFileFieldName = "file"

// Rule routes matching content to a remote endpoint.
//
// FileExtensions and FileFieldName are only meaningful for KindFile; a
// normalized KindURL rule always has no extensions and an empty field name.
type Rule struct {
	ID               uuid.UUID         `json:"id"`
	TypeName         string            `json:"type_name"`
	Kind             Kind              `json:"kind"`
	FileExtensions   []string          `json:"file_extensions"`
	RemoteEndpoint   string            `json:"remote_endpoint"`
	FileFieldName    string            `json:"file_field_name"`
	CustomParameters map[string]string `json:"custom_parameters"`
	Enabled          bool              `json:"enabled"`
}

// NormalizeExtension lowercases an extension and strips surrounding
// whitespace and a leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ParseExtensions splits a comma-separated extension list such as
// "xls, .XLSX" into normalized extensions.
func ParseExtensions(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if ext := NormalizeExtension(part); ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

// Normalized returns a copy of r with its kind-specific fields made
// consistent: extensions lowercased and de-duplicated, URL rules stripped
// of file-only fields, and nil collections replaced with empty ones.
func (r Rule) Normalized() Rule {
	out := r.Clone()
	out.TypeName = strings.TrimSpace(out.TypeName)
	out.RemoteEndpoint = strings.TrimSpace(out.RemoteEndpoint)

	switch out.Kind {
	case KindURL:
		out.FileExtensions = []string{}
		out.FileFieldName = ""
	default:
		seen := make(map[string]bool, len(r.FileExtensions))
		exts := make([]string, 0, len(r.FileExtensions))
		for _, e := range r.FileExtensions {
			e = NormalizeExtension(e)
			if e == "" || seen[e] {
				continue
			}
			seen[e] = true
			exts = append(exts, e)
		}
		out.FileExtensions = exts
		out.FileFieldName = strings.TrimSpace(out.FileFieldName)
		if out.FileFieldName == "" {
			out.FileFieldName = DefaultFileFieldName
		}
	}
	return out
}

// Validate reports why r cannot be saved, wrapping ErrValidation.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.TypeName) == "" {
		return fmt.Errorf("%w: type name is required", ErrValidation)
	}
	switch r.Kind {
	case KindFile:
		if len(r.FileExtensions) == 0 {
			return fmt.Errorf("%w: file rule %q needs at least one extension", ErrValidation, r.TypeName)
		}
	case KindURL:
		if len(r.FileExtensions) != 0 {
			return fmt.Errorf("%w: url rule %q cannot carry file extensions", ErrValidation, r.TypeName)
		}
	default:
		return fmt.Errorf("%w: unknown rule kind %q", ErrValidation, r.Kind)
	}
	if err := validateEndpoint(r.RemoteEndpoint); err != nil {
		return fmt.Errorf("%w: rule %q: %v", ErrValidation, r.TypeName, err)
	}
	for k := range r.CustomParameters {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: rule %q has an empty parameter name", ErrValidation, r.TypeName)
		}
	}
	return nil
}

// ValidEndpoint reports whether endpoint is an absolute http(s) URL.
func ValidEndpoint(endpoint string) bool {
	return validateEndpoint(endpoint) == nil
}

func validateEndpoint(endpoint string) error {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return fmt.Errorf("endpoint %q must start with http:// or https://", endpoint)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return nil
}

// HandlesExtension reports whether r is a file rule for ext.
func (r Rule) HandlesExtension(ext string) bool {
	if r.Kind != KindFile {
		return false
	}
	ext = NormalizeExtension(ext)
	for _, e := range r.FileExtensions {
		if NormalizeExtension(e) == ext {
			return true
		}
	}
	return false
}

// ParameterNames returns the custom parameter names in sorted order.
func (r Rule) ParameterNames() []string {
	names := make([]string, 0, len(r.CustomParameters))
	for k := range r.CustomParameters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of r.
func (r Rule) Clone() Rule {
	out := r
	if r.FileExtensions != nil {
		out.FileExtensions = append([]string{}, r.FileExtensions...)
	}
	if r.CustomParameters != nil {
		out.CustomParameters = make(map[string]string, len(r.CustomParameters))
		for k, v := range r.CustomParameters {
			out.CustomParameters[k] = v
		}
	} else {
		out.CustomParameters = map[string]string{}
	}
	return out
}
