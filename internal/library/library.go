/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package library keeps finished jobs on disk so a script can be read again
// without another round trip to the synthesis service. Entries are keyed by
// job id and looked up by a content hash of the submitted script.
package library

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"readalong/internal/script"
	"readalong/internal/timing"
)

var ErrNotFound = errors.New("library: entry not found")

// Entry is one finished job.
type Entry struct {
	JobID     string
	CacheKey  string
	Title     string
	Script    string
	Roles     []string
	Timings   []timing.WordTiming
	AudioPath string // local copy of the audio, if downloaded
	CreatedAt time.Time
}

// Store persists entries. Implementations are safe for concurrent use.
type Store interface {
	Put(ctx context.Context, e Entry) error
	Get(ctx context.Context, jobID string) (Entry, error)
	// List returns the newest entries first; limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Entry, error)
	// LookupCache returns the newest entry recorded under key.
	LookupCache(ctx context.Context, key string) (Entry, error)
	// Prune keeps the keepLast newest entries and returns how many were removed.
	Prune(ctx context.Context, keepLast int) (int, error)
	Close() error
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open opens the store for driver. For sqlite target is a database file
// path; for postgres it is a DSN.
func Open(ctx context.Context, driver, target string) (Store, error) {
	switch driver {
	case "", DriverSQLite:
		return OpenSQLite(ctx, target)
	case DriverPostgres, "pgx":
		return OpenPostgres(ctx, target)
	default:
		return nil, fmt.Errorf("library: unknown driver %q", driver)
	}
}

var reSpace = regexp.MustCompile(`\s+`)

// CacheKey identifies a synthesis request by content: the spoken alignment
// text of the script's tagged lines with all whitespace removed, the sorted
// role set and the model name. Role tags, cues and untagged lines do not
// change the key, so a local job document and the script returned in its
// manifest hash alike.
func CacheKey(scriptText string, roles []string, model string) string {
	spoken := script.AlignmentText(script.UIScript(scriptText))
	rs := slices.Clone(roles)
	slices.Sort(rs)
	rs = slices.Compact(rs)
	if rs == nil {
		rs = []string{}
	}
	payload := struct {
		Model  string   `json:"model"`
		Roles  []string `json:"roles"`
		Script string   `json:"script"`
	}{model, rs, reSpace.ReplaceAllString(spoken, "")}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
	sum := sha256.Sum256(bytes.TrimSpace(buf.Bytes()))
	return hex.EncodeToString(sum[:])
}
