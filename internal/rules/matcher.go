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
	"fmt"

	"github.com/google/uuid"
)

// Source supplies the rule collection in store order.
type Source interface {
	Rules() []Rule
}

// Matcher selects the enabled rules applicable to a piece of content.
type Matcher struct {
	source Source
}

// NewMatcher creates a matcher reading rules from source on every call,
// so edits to the store are visible immediately.
func NewMatcher(source Source) *Matcher {
	return &Matcher{source: source}
}

// Match is the candidate set for one piece of content.
type Match struct {
	Candidates []Rule
}

// Ambiguous reports whether the caller has to choose between candidates.
func (m Match) Ambiguous() bool {
	return len(m.Candidates) > 1
}

// First returns the first candidate in store order. Non-interactive
// callers use it as the deterministic default for an ambiguous match.
func (m Match) First() (Rule, bool) {
	if len(m.Candidates) == 0 {
		return Rule{}, false
	}
	return m.Candidates[0], true
}

// Select returns the candidate with the given id.
func (m Match) Select(id uuid.UUID) (Rule, bool) {
	for _, r := range m.Candidates {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// MatchFile returns every enabled file rule handling ext, in store order.
// The comparison is case-insensitive and tolerates a leading dot.
func (m *Matcher) MatchFile(ext string) []Rule {
	ext = NormalizeExtension(ext)
	if ext == "" {
		return nil
	}
	var matched []Rule
	for _, r := range m.source.Rules() {
		if r.Enabled && r.HandlesExtension(ext) {
			matched = append(matched, r)
		}
	}
	return matched
}

// MatchURL returns the first enabled URL rule. Later URL rules are never
// consulted while an earlier one is enabled.
func (m *Matcher) MatchURL() (Rule, bool) {
	for _, r := range m.source.Rules() {
		if r.Enabled && r.Kind == KindURL {
			return r, true
		}
	}
	return Rule{}, false
}

// ResolveFile classifies a file extension. It returns ErrUnsupportedContent
// when no rule matches and ErrAmbiguousMatch, together with every
// candidate, when more than one does.
func (m *Matcher) ResolveFile(ext string) (Match, error) {
	matched := m.MatchFile(ext)
	switch len(matched) {
	case 0:
		return Match{}, fmt.Errorf("%w: no enabled rule for .%s", ErrUnsupportedContent, NormalizeExtension(ext))
	case 1:
		return Match{Candidates: matched}, nil
	default:
		return Match{Candidates: matched}, fmt.Errorf("%w: %d rules handle .%s", ErrAmbiguousMatch, len(matched), NormalizeExtension(ext))
	}
}

// ResolveURL classifies URL content. It returns ErrUnsupportedContent when
// no URL rule is enabled.
func (m *Matcher) ResolveURL() (Match, error) {
	r, ok := m.MatchURL()
	if !ok {
		return Match{}, fmt.Errorf("%w: no enabled url rule", ErrUnsupportedContent)
	}
	return Match{Candidates: []Rule{r}}, nil
}
