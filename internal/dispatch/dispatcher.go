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

// Package dispatch sends shared content to the remote endpoint of a
// routing rule. Delivery is fire-and-forget: one attempt, the outcome is
// logged and counted, and nothing is retried or reported back to the
// stored record.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/transany/router/internal/metrics"
	"github.com/transany/router/internal/rules"
)

// Outcome is the result of a single dispatch attempt.
type Outcome string

const (
	// OutcomeDelivered means the endpoint answered 200.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeHandlerError means the endpoint answered with any other status.
	OutcomeHandlerError Outcome = "handler-error"
	// OutcomeTransportError means no response was received.
	OutcomeTransportError Outcome = "transport-error"
)

// DefaultTimeout bounds a submitted dispatch when none is configured.
const DefaultTimeout = 30 * time.Second

var (
	// ErrWrongKind means the rule cannot carry the payload, e.g. a URL rule
	// given a file.
	ErrWrongKind = errors.New("rule kind does not match payload")

	// ErrHandlerStatus wraps a non-200 response from the endpoint.
	ErrHandlerStatus = errors.New("handler returned non-200 status")
)

// Job is one payload to send. Rule.Kind selects which fields are used.
type Job struct {
	Rule rules.Rule

	// KindFile
	Filename  string
	Extension string
	Data      []byte

	// KindURL
	URL string
}

// Dispatcher builds and sends outbound requests.
type Dispatcher struct {
	httpClient *http.Client
	timeout    time.Duration

	wg sync.WaitGroup
}

// New creates a dispatcher. timeout bounds each submitted job; requests
// sent directly with SendFile or SendURL are bounded by their context.
func New(httpClient *http.Client, timeout time.Duration) *Dispatcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{httpClient: httpClient, timeout: timeout}
}

// SendFile uploads a file as multipart/form-data. Parts are written in a
// fixed order: the file under the rule's field name, then "extension",
// then one part per custom parameter sorted by name.
func (d *Dispatcher) SendFile(ctx context.Context, rule rules.Rule, filename string, data []byte, ext string) (Outcome, error) {
	if rule.Kind != rules.KindFile {
		return d.record(rules.KindFile, OutcomeTransportError, fmt.Errorf("%w: %s rule %s", ErrWrongKind, rule.Kind, rule.ID))
	}

	body, contentType, err := fileBody(rule, filename, data, ext)
	if err != nil {
		return d.record(rules.KindFile, OutcomeTransportError, fmt.Errorf("build multipart body: %w", err))
	}
	outcome, err := d.post(ctx, rule, body, contentType)
	return d.record(rules.KindFile, outcome, err)
}

// SendURL posts a URL as application/x-www-form-urlencoded, with "url"
// first and custom parameters after it sorted by name.
func (d *Dispatcher) SendURL(ctx context.Context, rule rules.Rule, link string) (Outcome, error) {
	if rule.Kind != rules.KindURL {
		return d.record(rules.KindURL, OutcomeTransportError, fmt.Errorf("%w: %s rule %s", ErrWrongKind, rule.Kind, rule.ID))
	}

	outcome, err := d.post(ctx, rule, strings.NewReader(urlBody(rule, link)), "application/x-www-form-urlencoded")
	return d.record(rules.KindURL, outcome, err)
}

// Send dispatches a job according to its rule's kind.
func (d *Dispatcher) Send(ctx context.Context, job Job) (Outcome, error) {
	if job.Rule.Kind == rules.KindURL {
		return d.SendURL(ctx, job.Rule, job.URL)
	}
	return d.SendFile(ctx, job.Rule, job.Filename, job.Data, job.Extension)
}

// Submit sends a job in the background with its own timeout and returns
// immediately. The outcome is only logged.
func (d *Dispatcher) Submit(job Job) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		outcome, err := d.Send(ctx, job)
		if err != nil {
			slog.Warn("dispatch failed",
				"rule_id", job.Rule.ID,
				"kind", job.Rule.Kind,
				"endpoint", job.Rule.RemoteEndpoint,
				"outcome", outcome,
				"error", err,
			)
			return
		}
		slog.Info("dispatch delivered",
			"rule_id", job.Rule.ID,
			"kind", job.Rule.Kind,
			"endpoint", job.Rule.RemoteEndpoint,
		)
	}()
}

// Wait blocks until every submitted job has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) post(ctx context.Context, rule rules.Rule, body io.Reader, contentType string) (Outcome, error) {
	if !rules.ValidEndpoint(rule.RemoteEndpoint) {
		return OutcomeTransportError, fmt.Errorf("rule %s: invalid endpoint %q", rule.ID, rule.RemoteEndpoint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rule.RemoteEndpoint, body)
	if err != nil {
		return OutcomeTransportError, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return OutcomeTransportError, fmt.Errorf("post to %s: %w", rule.RemoteEndpoint, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return OutcomeHandlerError, fmt.Errorf("%w: HTTP %d from %s", ErrHandlerStatus, resp.StatusCode, rule.RemoteEndpoint)
	}
	return OutcomeDelivered, nil
}

func (d *Dispatcher) record(kind rules.Kind, outcome Outcome, err error) (Outcome, error) {
	metrics.DispatchTotal.WithLabelValues(string(kind), string(outcome)).Inc()
	return outcome, err
}

func fileBody(rule rules.Rule, filename string, data []byte, ext string) (io.Reader, string, error) {
	field := rule.FileFieldName
	if field == "" {
		field = rules.DefaultFileFieldName
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("extension", rules.NormalizeExtension(ext)); err != nil {
		return nil, "", err
	}
	for _, name := range rule.ParameterNames() {
		if err := w.WriteField(name, rule.CustomParameters[name]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func urlBody(rule rules.Rule, link string) string {
	var b strings.Builder
	b.WriteString("url=")
	b.WriteString(url.QueryEscape(link))
	for _, name := range rule.ParameterNames() {
		b.WriteByte('&')
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(rule.CustomParameters[name]))
	}
	return b.String()
}
