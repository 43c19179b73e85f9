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

package rules

import (
	"errors"
	"reflect"
	"testing"
)

// TestNormalized_FileRule verifies extension normalization on write.
func TestNormalized_FileRule(t *testing.T) {
	r := Rule{
		TypeName:       " PDF ",
		Kind:           KindFile,
		FileExtensions: []string{"PDF", ".Pdf", " xlsx ", "", "pdf"},
		RemoteEndpoint: " https://api.test/pdf ",
	}.Normalized()

	if want := []string{"pdf", "xlsx"}; !reflect.DeepEqual(r.FileExtensions, want) {
		t.Errorf("FileExtensions = %v, want %v", r.FileExtensions, want)
	}
	if r.FileFieldName != DefaultFileFieldName {
		t.Errorf("FileFieldName = %q, want default", r.FileFieldName)
	}
	if r.TypeName != "PDF" || r.RemoteEndpoint != "https://api.test/pdf" {
		t.Errorf("fields not trimmed: %+v", r)
	}
	if r.CustomParameters == nil {
		t.Error("CustomParameters should be non-nil after normalization")
	}
}

// TestNormalized_URLRuleDropsFileFields verifies URL rules never carry
// extensions or a file field name.
func TestNormalized_URLRuleDropsFileFields(t *testing.T) {
	r := Rule{
		TypeName:       "URL",
		Kind:           KindURL,
		FileExtensions: []string{"pdf"},
		FileFieldName:  "file",
		RemoteEndpoint: "https://api.test/url",
	}.Normalized()

	if len(r.FileExtensions) != 0 {
		t.Errorf("FileExtensions = %v, want empty", r.FileExtensions)
	}
	if r.FileFieldName != "" {
		t.Errorf("FileFieldName = %q, want empty", r.FileFieldName)
	}
}

// TestNormalized_DoesNotAliasInput verifies the copy is independent.
func TestNormalized_DoesNotAliasInput(t *testing.T) {
	in := Rule{Kind: KindFile, FileExtensions: []string{"PDF"}, CustomParameters: map[string]string{"a": "1"}}
	out := in.Normalized()
	out.CustomParameters["a"] = "2"

	if in.FileExtensions[0] != "PDF" {
		t.Error("input extensions were modified")
	}
	if in.CustomParameters["a"] != "1" {
		t.Error("input parameters were modified")
	}
}

// TestValidate verifies rejected and accepted rules.
func TestValidate(t *testing.T) {
	valid := Rule{
		TypeName:       "PDF",
		Kind:           KindFile,
		FileExtensions: []string{"pdf"},
		RemoteEndpoint: "https://api.test/pdf",
	}

	tests := []struct {
		name    string
		mutate  func(r *Rule)
		wantErr bool
	}{
		{name: "valid file rule", mutate: func(r *Rule) {}},
		{name: "valid url rule", mutate: func(r *Rule) { r.Kind = KindURL; r.FileExtensions = nil }},
		{name: "http endpoint", mutate: func(r *Rule) { r.RemoteEndpoint = "http://10.0.0.1:8000/in" }},
		{name: "missing type name", mutate: func(r *Rule) { r.TypeName = "  " }, wantErr: true},
		{name: "ftp endpoint", mutate: func(r *Rule) { r.RemoteEndpoint = "ftp://api.test/pdf" }, wantErr: true},
		{name: "relative endpoint", mutate: func(r *Rule) { r.RemoteEndpoint = "/upload" }, wantErr: true},
		{name: "no host", mutate: func(r *Rule) { r.RemoteEndpoint = "https://" }, wantErr: true},
		{name: "file rule without extensions", mutate: func(r *Rule) { r.FileExtensions = nil }, wantErr: true},
		{name: "url rule with extensions", mutate: func(r *Rule) { r.Kind = KindURL }, wantErr: true},
		{name: "unknown kind", mutate: func(r *Rule) { r.Kind = "ftp" }, wantErr: true},
		{name: "empty parameter name", mutate: func(r *Rule) { r.CustomParameters = map[string]string{"": "x"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid.Clone()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("err = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// TestParseExtensions verifies comma-separated extension input parsing.
func TestParseExtensions(t *testing.T) {
	got := ParseExtensions("xls, .XLSX,, csv ")
	want := []string{"xls", "xlsx", "csv"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseExtensions = %v, want %v", got, want)
	}
}

// TestDefaults verifies the built-in rule set is valid and disabled.
func TestDefaults(t *testing.T) {
	defaults := Defaults()
	if len(defaults) != 3 {
		t.Fatalf("expected 3 default rules, got %d", len(defaults))
	}
	names := []string{"EXCEL", "PDF", "URL"}
	for i, r := range defaults {
		if r.TypeName != names[i] {
			t.Errorf("default %d = %q, want %q", i, r.TypeName, names[i])
		}
		if r.Enabled {
			t.Errorf("default rule %q should be disabled", r.TypeName)
		}
		if err := r.Validate(); err != nil {
			t.Errorf("default rule %q invalid: %v", r.TypeName, err)
		}
	}
	if defaults[0].ID == Defaults()[0].ID {
		t.Error("each call should produce fresh ids")
	}
}
