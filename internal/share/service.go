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

// Package share implements the flow behind a share action: incoming items
// are matched against the routing rules, submitted for dispatch, and stored
// as content records whether or not dispatch succeeds.
package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/transany/router/internal/content"
	"github.com/transany/router/internal/dispatch"
	"github.com/transany/router/internal/metrics"
	"github.com/transany/router/internal/rules"
)

// SourceShare is the default value of the "source" metadata key.
const SourceShare = "share"

// ErrNoItems is returned for a request without items.
var ErrNoItems = errors.New("no items to share")

// ErrUnknownRule means the selected rule is not a candidate for an
// ambiguous item.
var ErrUnknownRule = errors.New("selected rule does not handle this content")

// AmbiguousError reports an item that more than one enabled rule can
// handle. The caller repeats the request with one of the candidates
// selected. It unwraps to rules.ErrAmbiguousMatch.
type AmbiguousError struct {
	Item       int
	Candidates []rules.Rule
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("item %d: %d rules match", e.Item, len(e.Candidates))
}

func (e *AmbiguousError) Unwrap() error { return rules.ErrAmbiguousMatch }

// Submitter queues a dispatch job.
type Submitter interface {
	Submit(job dispatch.Job)
}

// ItemStore saves records and the blobs they reference.
type ItemStore interface {
	content.BlobWriter
	SaveItem(ctx context.Context, rec content.Record) error
}

// Request is one share action.
type Request struct {
	Items []content.Input
	// Title overrides the title of every stored record when set.
	Title string
	// RuleID selects among the candidates of an item. Items for which it
	// is not a candidate use their own match.
	RuleID uuid.UUID
	// FirstMatch resolves ambiguous items to the first candidate instead
	// of failing.
	FirstMatch bool
	// SaveUnrouted stores items no enabled rule handles instead of
	// rejecting the batch. They are not dispatched.
	SaveUnrouted bool
	// Source is recorded in the "source" metadata key.
	Source string
}

// Result describes what a share action stored.
type Result struct {
	Records []content.Record
	// Dispatched counts submitted dispatch jobs. Their outcomes are not tracked.
	Dispatched int
	// Unrouted counts items stored without a rule.
	Unrouted int
	// Warnings holds non-fatal failures: blob or record writes that did
	// not succeed for individual items.
	Warnings []error
}

// Service runs share actions.
type Service struct {
	matcher    *rules.Matcher
	dispatcher Submitter
	items      ItemStore
	converter  *content.Converter
}

// NewService creates a share service.
func NewService(matcher *rules.Matcher, dispatcher Submitter, items ItemStore) *Service {
	return &Service{
		matcher:    matcher,
		dispatcher: dispatcher,
		items:      items,
		converter:  content.NewConverter(items),
	}
}

type planned struct {
	input    content.Input
	rule     *rules.Rule
	unrouted bool
}

// Share merges the batch, resolves a rule for every item, and only then
// submits dispatches and stores records. A batch with an unsupported or
// ambiguous item stores nothing.
func (s *Service) Share(ctx context.Context, req Request) (Result, error) {
	if len(req.Items) == 0 {
		metrics.ShareTotal.WithLabelValues("rejected").Inc()
		return Result{}, ErrNoItems
	}

	batch := content.MergeBatch(req.Items)
	plan := make([]planned, 0, len(batch))
	for i, in := range batch {
		rule, err := s.resolve(i, in, req)
		if errors.Is(err, rules.ErrUnsupportedContent) && req.SaveUnrouted {
			slog.Info("storing unrouted item", "kind", in.Kind, "extension", in.Extension)
			plan = append(plan, planned{input: in, unrouted: true})
			continue
		}
		if err != nil {
			result := "unsupported"
			if errors.Is(err, rules.ErrAmbiguousMatch) {
				result = "ambiguous"
			}
			metrics.ShareTotal.WithLabelValues(result).Inc()
			return Result{}, err
		}
		plan = append(plan, planned{input: in, rule: rule})
	}

	source := req.Source
	if source == "" {
		source = SourceShare
	}

	var res Result
	for _, p := range plan {
		meta := map[string]string{content.MetaSource: source}
		if p.rule != nil {
			s.dispatcher.Submit(jobFor(*p.rule, p.input))
			res.Dispatched++
			meta[content.MetaHandlerRuleID] = p.rule.ID.String()
			meta[content.MetaHandlerType] = p.rule.TypeName
			meta[content.MetaHandlerURL] = p.rule.RemoteEndpoint
			meta[content.MetaHandlerStatus] = content.HandlerStatusPending
		}

		rec, err := s.converter.ToRecord(p.input, req.Title, meta)
		if err != nil {
			slog.Warn("failed to convert shared item", "kind", p.input.Kind, "error", err)
			res.Warnings = append(res.Warnings, err)
			continue
		}
		if err := s.items.SaveItem(ctx, rec); err != nil {
			slog.Warn("failed to save shared item", "item_id", rec.ID, "error", err)
			res.Warnings = append(res.Warnings, err)
			continue
		}
		if p.unrouted {
			res.Unrouted++
		}
		metrics.ItemsSavedTotal.WithLabelValues(string(rec.Type)).Inc()
		res.Records = append(res.Records, rec)
	}

	metrics.ShareTotal.WithLabelValues("accepted").Inc()
	slog.Info("share stored",
		"items", len(batch),
		"records", len(res.Records),
		"dispatched", res.Dispatched,
		"unrouted", res.Unrouted,
		"warnings", len(res.Warnings),
	)
	return res, nil
}

// resolve picks the rule for one item. Text needs no rule and is stored
// without dispatch.
func (s *Service) resolve(i int, in content.Input, req Request) (*rules.Rule, error) {
	var (
		match rules.Match
		err   error
	)
	switch in.Kind {
	case content.InputText:
		return nil, nil
	case content.InputURL:
		match, err = s.matcher.ResolveURL()
	case content.InputFile:
		match, err = s.matcher.ResolveFile(in.Extension)
	default:
		return nil, fmt.Errorf("item %d: unknown input kind %q", i, in.Kind)
	}

	if req.RuleID != uuid.Nil {
		if r, ok := match.Select(req.RuleID); ok {
			return &r, nil
		}
	}

	switch {
	case errors.Is(err, rules.ErrAmbiguousMatch) && req.RuleID != uuid.Nil:
		return nil, fmt.Errorf("%w: item %d, rule %s", ErrUnknownRule, i, req.RuleID)
	case errors.Is(err, rules.ErrAmbiguousMatch) && req.FirstMatch:
		r, _ := match.First()
		return &r, nil
	case errors.Is(err, rules.ErrAmbiguousMatch):
		return nil, &AmbiguousError{Item: i, Candidates: match.Candidates}
	case err != nil:
		return nil, fmt.Errorf("item %d: %w", i, err)
	}
	r, _ := match.First()
	return &r, nil
}

func jobFor(rule rules.Rule, in content.Input) dispatch.Job {
	if in.Kind == content.InputURL {
		return dispatch.Job{Rule: rule, URL: in.URL}
	}
	return dispatch.Job{Rule: rule, Filename: in.Filename, Extension: in.Extension, Data: in.Data}
}
