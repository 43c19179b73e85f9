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
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"
)

// InputKind is the shape of content as it arrives from a front end.
type InputKind string

const (
	InputFile InputKind = "file"
	InputURL  InputKind = "url"
	InputText InputKind = "text"
)

// ErrInvalidURL is returned for URL input that is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid url")

// Input is one ingested item before it becomes a Record. Only the fields
// of its Kind are set.
type Input struct {
	Kind     InputKind
	Title    string
	Metadata map[string]string

	// InputFile
	Filename  string
	Extension string
	Data      []byte

	// InputURL
	URL string

	// InputText
	Text string
}

// FileInput describes an uploaded file. The title is the filename without
// its extension.
func FileInput(filename string, data []byte) Input {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := normalizeExt(filepath.Ext(base))
	return Input{
		Kind:      InputFile,
		Title:     strings.TrimSuffix(base, filepath.Ext(base)),
		Filename:  base,
		Extension: ext,
		Data:      data,
		Metadata: map[string]string{
			MetaExtension:        ext,
			MetaSize:             strconv.Itoa(len(data)),
			MetaOriginalFilename: base,
		},
	}
}

// URLInput describes a shared link. The title is the host.
func URLInput(raw string) (Input, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Input{}, fmt.Errorf("%w: %q is not an http(s) url", ErrInvalidURL, raw)
	}
	title := u.Hostname()
	if title == "" {
		title = raw
	}
	return Input{
		Kind:  InputURL,
		Title: title,
		URL:   u.String(),
		Metadata: map[string]string{
			MetaHost:   u.Hostname(),
			MetaScheme: u.Scheme,
		},
	}, nil
}

// TextInput describes shared text. Text that is itself an http(s) URL is
// classified as a URL instead.
func TextInput(text string) Input {
	if looksLikeURL(text) {
		if in, err := URLInput(text); err == nil {
			return in
		}
	}
	return Input{
		Kind:  InputText,
		Title: "Text",
		Text:  text,
		Metadata: map[string]string{
			MetaLength: strconv.Itoa(utf8.RuneCountInString(text)),
		},
	}
}

func looksLikeURL(text string) bool {
	return strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://")
}

// MergeBatch collapses a batch of exactly one text item and one URL item
// into a single URL item titled with the text. A caption shared alongside
// a link arrives as two separate items for one action. Every other batch
// is returned unchanged.
func MergeBatch(items []Input) []Input {
	if len(items) != 2 {
		return items
	}

	var text, link *Input
	for i := range items {
		switch items[i].Kind {
		case InputText:
			text = &items[i]
		case InputURL:
			link = &items[i]
		}
	}
	if text == nil || link == nil {
		return items
	}

	merged := Input{
		Kind:     InputURL,
		Title:    text.Text,
		URL:      link.URL,
		Metadata: copyMetadata(link.Metadata),
	}
	merged.Metadata[MetaMergedFromText] = "true"
	return []Input{merged}
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
