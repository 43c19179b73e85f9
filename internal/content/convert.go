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
	"strings"
	"time"

	"github.com/transany/router/internal/blob"
)

// UntitledTitle is used when neither the caller nor the input supplies a title.
const UntitledTitle = "Untitled"

// ErrBlobWrite means the blob for a file-backed record could not be written.
var ErrBlobWrite = errors.New("blob write failed")

// BlobWriter writes file content and returns its relative path.
type BlobWriter interface {
	SaveFile(data []byte, filename string) (string, error)
}

// Converter turns ingested input into records.
type Converter struct {
	blobs BlobWriter
	now   func() time.Time
}

// NewConverter creates a converter writing file content through blobs.
func NewConverter(blobs BlobWriter) *Converter {
	return &Converter{blobs: blobs, now: time.Now}
}

// ToRecord converts one input. title overrides the input's own title when
// non-empty; extra metadata is layered over the input's metadata.
//
// File input is written to blob storage first, and no record is produced
// unless that write succeeds. Text and URL input never touch blob storage.
func (c *Converter) ToRecord(in Input, title string, extra map[string]string) (Record, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSpace(in.Title)
	}
	if title == "" {
		title = UntitledTitle
	}

	metadata := copyMetadata(in.Metadata)
	for k, v := range extra {
		metadata[k] = v
	}

	switch in.Kind {
	case InputFile:
		path, err := c.blobs.SaveFile(in.Data, blob.GenerateName(in.Extension))
		if err != nil {
			return Record{}, fmt.Errorf("%w: %s: %v", ErrBlobWrite, in.Filename, err)
		}
		return NewRecord(title, TypeForExtension(in.Extension), FileBody{Path: path}, metadata, c.now())

	case InputURL:
		return NewRecord(title, TypeURL, TextBody{Text: in.URL}, metadata, c.now())

	case InputText:
		return NewRecord(title, TypeText, TextBody{Text: in.Text}, metadata, c.now())
	}
	return Record{}, fmt.Errorf("unknown input kind %q", in.Kind)
}
