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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Schema versions of the persisted rule collection.
const (
	// SchemaLegacy is the camelCase layout written by the first release,
	// where the kind was stored as "ruleType" and the endpoint as "remoteURL".
	SchemaLegacy = 1
	// SchemaCurrent is the layout produced by Encode.
	SchemaCurrent = 2
)

type schemaDecoder struct {
	version int
	decode  func([]byte) ([]Rule, error)
}

// decoders lists every known schema, newest first. Decode tries them in
// this order and stops at the first one that accepts the payload.
var decoders = []schemaDecoder{
	{version: SchemaCurrent, decode: decodeCurrent},
	{version: SchemaLegacy, decode: decodeLegacy},
}

// Encode marshals rules in the current schema.
func Encode(rules []Rule) ([]byte, error) {
	if rules == nil {
		rules = []Rule{}
	}
	return json.Marshal(rules)
}

// Decode parses a persisted rule collection written by any known schema
// and returns the normalized rules along with the schema version found.
func Decode(data []byte) ([]Rule, int, error) {
	var errs []error
	for _, d := range decoders {
		rules, err := d.decode(data)
		if err == nil {
			return rules, d.version, nil
		}
		errs = append(errs, fmt.Errorf("schema v%d: %w", d.version, err))
	}
	return nil, 0, fmt.Errorf("decode rules: %w", errors.Join(errs...))
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func decodeCurrent(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := strictUnmarshal(data, &rules); err != nil {
		return nil, err
	}
	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if r.Kind != KindFile && r.Kind != KindURL {
			return nil, fmt.Errorf("rule %d: unknown kind %q", i, r.Kind)
		}
		if r.ID == uuid.Nil {
			return nil, fmt.Errorf("rule %d: missing id", i)
		}
		out = append(out, r.Normalized())
	}
	return out, nil
}

// legacyRule mirrors the first-release JSON layout.
type legacyRule struct {
	ID                string            `json:"id"`
	TypeName          string            `json:"typeName"`
	RuleType          string            `json:"ruleType"`
	FileExtensions    []string          `json:"fileExtensions"`
	RemoteURL         string            `json:"remoteURL"`
	FileParameterName string            `json:"fileParameterName"`
	CustomParameters  map[string]string `json:"customParameters"`
	IsEnabled         bool              `json:"isEnabled"`
}

func decodeLegacy(data []byte) ([]Rule, error) {
	var legacy []legacyRule
	if err := strictUnmarshal(data, &legacy); err != nil {
		return nil, err
	}
	out := make([]Rule, 0, len(legacy))
	for i, l := range legacy {
		id, err := uuid.Parse(l.ID)
		if err != nil {
			return nil, fmt.Errorf("rule %d: id %q: %w", i, l.ID, err)
		}
		var kind Kind
		switch l.RuleType {
		case "file", "":
			kind = KindFile
		case "url":
			kind = KindURL
		default:
			return nil, fmt.Errorf("rule %d: unknown ruleType %q", i, l.RuleType)
		}
		out = append(out, Rule{
			ID:               id,
			TypeName:         l.TypeName,
			Kind:             kind,
			FileExtensions:   l.FileExtensions,
			RemoteEndpoint:   l.RemoteURL,
			FileFieldName:    l.FileParameterName,
			CustomParameters: l.CustomParameters,
			Enabled:          l.IsEnabled,
		}.Normalized())
	}
	return out, nil
}
