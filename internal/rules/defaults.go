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

import "github.com/google/uuid"

// Defaults returns the built-in rule set. Every rule starts disabled and
// points at a placeholder endpoint the user is expected to replace.
func Defaults() []Rule {
	return []Rule{
		{
			ID:               uuid.New(),
			TypeName:         "EXCEL",
			Kind:             KindFile,
			FileExtensions:   []string{"xls", "xlsx"},
			RemoteEndpoint:   "https://your-api.com/upload/excel",
			FileFieldName:    DefaultFileFieldName,
			CustomParameters: map[string]string{"api_key": "your_key"},
		},
		{
			ID:               uuid.New(),
			TypeName:         "PDF",
			Kind:             KindFile,
			FileExtensions:   []string{"pdf"},
			RemoteEndpoint:   "https://your-api.com/upload/pdf",
			FileFieldName:    DefaultFileFieldName,
			CustomParameters: map[string]string{},
		},
		{
			ID:               uuid.New(),
			TypeName:         "URL",
			Kind:             KindURL,
			FileExtensions:   []string{},
			RemoteEndpoint:   "https://your-api.com/process/url",
			CustomParameters: map[string]string{},
		},
	}
}
