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
	"fmt"
)

var (
	// ErrValidation marks a rule that cannot be saved.
	ErrValidation = errors.New("invalid rule")

	// ErrUnsupportedContent means no enabled rule can route the content.
	ErrUnsupportedContent = errors.New("unsupported content")

	// ErrAmbiguousMatch means more than one enabled file rule matched and
	// the caller must choose.
	ErrAmbiguousMatch = errors.New("ambiguous rule match")
)

// PersistError reports a failed read or write of the rule collection. It is
// a warning: the in-memory collection stays authoritative for the session.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
