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
	"strings"
	"testing"
	"time"
)

type fakeBlobs struct {
	saved map[string][]byte
	err   error
	calls int
}

func (f *fakeBlobs) SaveFile(data []byte, filename string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[filename] = data
	return filename, nil
}

func newTestConverter(blobs BlobWriter) *Converter {
	c := NewConverter(blobs)
	c.now = func() time.Time { return testNow }
	return c
}

// TestToRecord_File verifies file input is written to blobs before the record exists.
func TestToRecord_File(t *testing.T) {
	blobs := &fakeBlobs{}
	c := newTestConverter(blobs)

	rec, err := c.ToRecord(FileInput("photo.JPG", []byte{0xff, 0xd8}), "", map[string]string{MetaSource: "share"})
	if err != nil {
		t.Fatalf("ToRecord: %v", err)
	}
	if rec.Type != TypePhoto || rec.Title != "photo" {
		t.Errorf("record = %+v", rec)
	}
	path, ok := rec.FilePath()
	if !ok || !strings.HasSuffix(path, ".jpg") {
		t.Fatalf("FilePath = %q, %v", path, ok)
	}
	if _, ok := blobs.saved[path]; !ok {
		t.Errorf("blob %q was not written", path)
	}
	if rec.Metadata[MetaSource] != "share" || rec.Metadata[MetaExtension] != "jpg" {
		t.Errorf("Metadata = %v", rec.Metadata)
	}
	if !rec.Timestamp.Equal(testNow) {
		t.Errorf("Timestamp = %v", rec.Timestamp)
	}
}

// TestToRecord_BlobFailure verifies no record is produced without a blob.
func TestToRecord_BlobFailure(t *testing.T) {
	c := newTestConverter(&fakeBlobs{err: errors.New("disk full")})

	rec, err := c.ToRecord(FileInput("a.pdf", []byte("x")), "", nil)
	if !errors.Is(err, ErrBlobWrite) {
		t.Fatalf("err = %v, want ErrBlobWrite", err)
	}
	if rec.ID != "" {
		t.Errorf("expected zero record, got %+v", rec)
	}
}

// TestToRecord_TextAndURL verifies inline content never touches blobs.
func TestToRecord_TextAndURL(t *testing.T) {
	blobs := &fakeBlobs{}
	c := newTestConverter(blobs)

	link, _ := URLInput("https://x.test/y")
	merged := MergeBatch([]Input{TextInput("Caption"), link})

	rec, err := c.ToRecord(merged[0], "", nil)
	if err != nil {
		t.Fatalf("ToRecord: %v", err)
	}
	if text, _ := rec.TextContent(); rec.Type != TypeURL || rec.Title != "Caption" || text != "https://x.test/y" {
		t.Errorf("record = %+v", rec)
	}

	note, err := c.ToRecord(TextInput("hello"), "", nil)
	if err != nil {
		t.Fatalf("ToRecord: %v", err)
	}
	if note.Type != TypeText {
		t.Errorf("Type = %q, want text", note.Type)
	}
	if blobs.calls != 0 {
		t.Errorf("blob store called %d times", blobs.calls)
	}
}

// TestToRecord_TitlePrecedence verifies caller title, then input title, then the fallback.
func TestToRecord_TitlePrecedence(t *testing.T) {
	c := newTestConverter(&fakeBlobs{})

	tests := []struct {
		name  string
		in    Input
		title string
		want  string
	}{
		{name: "caller title", in: TextInput("x"), title: " Mine ", want: "Mine"},
		{name: "input title", in: TextInput("x"), want: "Text"},
		{name: "fallback", in: Input{Kind: InputText, Text: "x"}, want: UntitledTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := c.ToRecord(tt.in, tt.title, nil)
			if err != nil {
				t.Fatalf("ToRecord: %v", err)
			}
			if rec.Title != tt.want {
				t.Errorf("Title = %q, want %q", rec.Title, tt.want)
			}
		})
	}
}
