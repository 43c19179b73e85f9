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

package share

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/transany/router/internal/content"
	"github.com/transany/router/internal/dispatch"
	"github.com/transany/router/internal/rules"
)

// --- Mocks ---

type ruleList []rules.Rule

func (l ruleList) Rules() []rules.Rule { return l }

type recordingSubmitter struct {
	jobs []dispatch.Job
}

func (r *recordingSubmitter) Submit(job dispatch.Job) { r.jobs = append(r.jobs, job) }

type memoryItems struct {
	blobs   map[string][]byte
	records []content.Record
	blobErr error
	saveErr error
}

func (m *memoryItems) SaveFile(data []byte, filename string) (string, error) {
	if m.blobErr != nil {
		return "", m.blobErr
	}
	if m.blobs == nil {
		m.blobs = map[string][]byte{}
	}
	m.blobs[filename] = data
	return filename, nil
}

func (m *memoryItems) SaveItem(_ context.Context, rec content.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append([]content.Record{rec}, m.records...)
	return nil
}

func newRule(name string, kind rules.Kind, exts ...string) rules.Rule {
	return rules.Rule{
		ID:             uuid.New(),
		TypeName:       name,
		Kind:           kind,
		FileExtensions: exts,
		RemoteEndpoint: "https://api.test/" + name,
		Enabled:        true,
	}
}

func newTestService(rs ...rules.Rule) (*Service, *recordingSubmitter, *memoryItems) {
	sub := &recordingSubmitter{}
	items := &memoryItems{}
	return NewService(rules.NewMatcher(ruleList(rs)), sub, items), sub, items
}

func mustURL(t *testing.T, raw string) content.Input {
	t.Helper()
	in, err := content.URLInput(raw)
	if err != nil {
		t.Fatalf("URLInput: %v", err)
	}
	return in
}

// --- Tests ---

// TestShare_SingleFileRule verifies dispatch and handler metadata for a file.
func TestShare_SingleFileRule(t *testing.T) {
	pdf := newRule("PDF", rules.KindFile, "pdf")
	svc, sub, items := newTestService(pdf, newRule("URL", rules.KindURL))

	res, err := svc.Share(context.Background(), Request{
		Items: []content.Input{content.FileInput("Report.PDF", []byte("%PDF"))},
	})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if res.Dispatched != 1 || len(sub.jobs) != 1 {
		t.Fatalf("dispatched %d jobs", len(sub.jobs))
	}
	job := sub.jobs[0]
	if job.Rule.ID != pdf.ID || job.Filename != "Report.PDF" || job.Extension != "pdf" {
		t.Errorf("job = %+v", job)
	}

	if len(items.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(items.records))
	}
	rec := items.records[0]
	if rec.Type != content.TypePDF || rec.Title != "Report" {
		t.Errorf("record = %+v", rec)
	}
	want := map[string]string{
		content.MetaSource:        SourceShare,
		content.MetaHandlerRuleID: pdf.ID.String(),
		content.MetaHandlerType:   "PDF",
		content.MetaHandlerURL:    "https://api.test/PDF",
		content.MetaHandlerStatus: content.HandlerStatusPending,
	}
	for k, v := range want {
		if rec.Metadata[k] != v {
			t.Errorf("metadata[%s] = %q, want %q", k, rec.Metadata[k], v)
		}
	}
}

// TestShare_CaptionAndLink verifies the merged batch is dispatched as one URL.
func TestShare_CaptionAndLink(t *testing.T) {
	svc, sub, items := newTestService(newRule("URL", rules.KindURL))

	res, err := svc.Share(context.Background(), Request{
		Items: []content.Input{content.TextInput("Caption"), mustURL(t, "https://x.test/y")},
	})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if len(res.Records) != 1 || len(sub.jobs) != 1 {
		t.Fatalf("records %d, jobs %d", len(res.Records), len(sub.jobs))
	}
	if sub.jobs[0].URL != "https://x.test/y" {
		t.Errorf("job url = %q", sub.jobs[0].URL)
	}
	rec := items.records[0]
	if text, _ := rec.TextContent(); rec.Type != content.TypeURL || rec.Title != "Caption" || text != "https://x.test/y" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Metadata[content.MetaMergedFromText] != "true" {
		t.Errorf("merged_from_text missing: %v", rec.Metadata)
	}
}

// TestShare_TextNeedsNoRule verifies plain text is stored without dispatch.
func TestShare_TextNeedsNoRule(t *testing.T) {
	svc, sub, items := newTestService()

	res, err := svc.Share(context.Background(), Request{Items: []content.Input{content.TextInput("hello")}, Title: "Note"})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if res.Dispatched != 0 || len(sub.jobs) != 0 {
		t.Error("text should not be dispatched")
	}
	if len(items.records) != 1 || items.records[0].Title != "Note" {
		t.Errorf("records = %+v", items.records)
	}
	if _, ok := items.records[0].Metadata[content.MetaHandlerStatus]; ok {
		t.Error("undispatched record should carry no handler status")
	}
}

// TestShare_Unsupported verifies nothing is stored when no rule applies.
func TestShare_Unsupported(t *testing.T) {
	svc, sub, items := newTestService(newRule("PDF", rules.KindFile, "pdf"))

	tests := []struct {
		name  string
		items []content.Input
	}{
		{name: "unknown extension", items: []content.Input{content.FileInput("a.zip", nil)}},
		{name: "no url rule", items: []content.Input{mustURL(t, "https://x.test")}},
		{name: "mixed batch", items: []content.Input{content.FileInput("a.pdf", nil), content.FileInput("b.zip", nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Share(context.Background(), Request{Items: tt.items})
			if !errors.Is(err, rules.ErrUnsupportedContent) {
				t.Errorf("err = %v, want ErrUnsupportedContent", err)
			}
		})
	}
	if len(sub.jobs) != 0 || len(items.records) != 0 {
		t.Errorf("jobs %d, records %d, want none", len(sub.jobs), len(items.records))
	}

	if _, err := svc.Share(context.Background(), Request{}); !errors.Is(err, ErrNoItems) {
		t.Errorf("empty request: err = %v", err)
	}
}

// TestShare_SaveUnrouted verifies unsupported items can be kept without dispatch.
func TestShare_SaveUnrouted(t *testing.T) {
	svc, sub, items := newTestService(newRule("PDF", rules.KindFile, "pdf"))

	res, err := svc.Share(context.Background(), Request{
		Items:        []content.Input{content.FileInput("a.pdf", []byte("x")), content.FileInput("b.zip", []byte("y"))},
		SaveUnrouted: true,
	})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if res.Dispatched != 1 || res.Unrouted != 1 || len(sub.jobs) != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(items.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(items.records))
	}
	unrouted := items.records[0]
	if unrouted.Type != content.TypeFile {
		t.Errorf("Type = %q, want file", unrouted.Type)
	}
	if _, ok := unrouted.Metadata[content.MetaHandlerRuleID]; ok {
		t.Error("unrouted record should carry no handler metadata")
	}
}

// TestShare_Ambiguous verifies candidates are reported and a selection resolves them.
func TestShare_Ambiguous(t *testing.T) {
	first := newRule("PDF-A", rules.KindFile, "pdf")
	second := newRule("PDF-B", rules.KindFile, "pdf")
	svc, sub, items := newTestService(first, second)
	file := content.FileInput("a.pdf", []byte("x"))

	_, err := svc.Share(context.Background(), Request{Items: []content.Input{file}})
	var amb *AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("err = %v, want *AmbiguousError", err)
	}
	if !errors.Is(err, rules.ErrAmbiguousMatch) {
		t.Error("AmbiguousError should unwrap to ErrAmbiguousMatch")
	}
	if len(amb.Candidates) != 2 || amb.Candidates[0].ID != first.ID {
		t.Errorf("candidates = %+v", amb.Candidates)
	}
	if len(items.records) != 0 {
		t.Fatal("ambiguous share stored a record")
	}

	if _, err := svc.Share(context.Background(), Request{Items: []content.Input{file}, RuleID: second.ID}); err != nil {
		t.Fatalf("Share with selection: %v", err)
	}
	if sub.jobs[0].Rule.ID != second.ID {
		t.Errorf("dispatched to %s, want selected rule", sub.jobs[0].Rule.TypeName)
	}

	if _, err := svc.Share(context.Background(), Request{Items: []content.Input{file}, FirstMatch: true}); err != nil {
		t.Fatalf("Share with first match: %v", err)
	}
	if sub.jobs[1].Rule.ID != first.ID {
		t.Errorf("dispatched to %s, want first rule", sub.jobs[1].Rule.TypeName)
	}

	if _, err := svc.Share(context.Background(), Request{Items: []content.Input{file}, RuleID: uuid.New()}); !errors.Is(err, ErrUnknownRule) {
		t.Errorf("unknown selection: err = %v, want ErrUnknownRule", err)
	}
}

// TestShare_SelectionOnlyAppliesToCandidates verifies other items keep their own rule.
func TestShare_SelectionOnlyAppliesToCandidates(t *testing.T) {
	pdfA := newRule("PDF-A", rules.KindFile, "pdf")
	pdfB := newRule("PDF-B", rules.KindFile, "pdf")
	link := newRule("URL", rules.KindURL)
	svc, sub, _ := newTestService(pdfA, pdfB, link)

	_, err := svc.Share(context.Background(), Request{
		Items:  []content.Input{content.FileInput("a.pdf", nil), mustURL(t, "https://x.test"), content.FileInput("b.pdf", nil)},
		RuleID: pdfB.ID,
	})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	got := []uuid.UUID{sub.jobs[0].Rule.ID, sub.jobs[1].Rule.ID, sub.jobs[2].Rule.ID}
	want := []uuid.UUID{pdfB.ID, link.ID, pdfB.ID}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("job %d rule = %s, want %s", i, got[i], want[i])
		}
	}
}

// TestShare_StorageFailuresAreWarnings verifies dispatch still happens when
// the record cannot be stored.
func TestShare_StorageFailuresAreWarnings(t *testing.T) {
	svc, sub, items := newTestService(newRule("PDF", rules.KindFile, "pdf"))
	items.blobErr = errors.New("disk full")

	res, err := svc.Share(context.Background(), Request{Items: []content.Input{content.FileInput("a.pdf", []byte("x"))}})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if len(sub.jobs) != 1 {
		t.Error("dispatch should not depend on storage")
	}
	if len(res.Records) != 0 || len(res.Warnings) != 1 || !errors.Is(res.Warnings[0], content.ErrBlobWrite) {
		t.Errorf("result = %+v", res)
	}
}
