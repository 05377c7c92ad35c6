/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package library

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"readalong/internal/timing"
)

// sqlStore implements Store over database/sql. Queries are written with "?"
// placeholders and rebound for dialects that number them.
type sqlStore struct {
	db       *sql.DB
	numbered bool
	log      *slog.Logger
}

const entryColumns = `job_id, cache_key, title, script, roles, timings, audio_path, created_at`

func (s *sqlStore) q(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Put(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.JobID) == "" {
		return errors.New("library: job id is required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	roles, err := json.Marshal(nonNil(e.Roles))
	if err != nil {
		return err
	}
	var tb bytes.Buffer
	if err := timing.Encode(&tb, e.Timings); err != nil {
		return fmt.Errorf("encode timings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO UPDATE SET
			cache_key = excluded.cache_key,
			title = excluded.title,
			script = excluded.script,
			roles = excluded.roles,
			timings = excluded.timings,
			audio_path = excluded.audio_path,
			created_at = excluded.created_at`),
		e.JobID, e.CacheKey, e.Title, e.Script, string(roles), tb.String(), e.AudioPath, e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("put %s: %w", e.JobID, err)
	}
	s.log.Debug("entry stored", slog.String("job", e.JobID), slog.Int("words", len(e.Timings)))
	return nil
}

func (s *sqlStore) Get(ctx context.Context, jobID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+entryColumns+` FROM entries WHERE job_id = ?`), jobID)
	return scanEntry(row)
}

func (s *sqlStore) LookupCache(ctx context.Context, key string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+entryColumns+` FROM entries
		WHERE cache_key = ? ORDER BY created_at DESC, job_id DESC LIMIT 1`), key)
	return scanEntry(row)
}

func (s *sqlStore) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries ORDER BY created_at DESC, job_id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqlStore) Prune(ctx context.Context, keepLast int) (int, error) {
	if keepLast < 0 {
		keepLast = 0
	}
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM entries WHERE job_id NOT IN (
		SELECT job_id FROM entries ORDER BY created_at DESC, job_id DESC LIMIT ?)`), keepLast)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info("library pruned", slog.Int64("removed", n), slog.Int("kept", keepLast))
	}
	return int(n), nil
}

func (s *sqlStore) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e       Entry
		roles   string
		timings string
		created int64
	)
	err := sc.Scan(&e.JobID, &e.CacheKey, &e.Title, &e.Script, &roles, &timings, &e.AudioPath, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	if err := json.Unmarshal([]byte(roles), &e.Roles); err != nil {
		return Entry{}, fmt.Errorf("entry %s roles: %w", e.JobID, err)
	}
	if e.Timings, err = timing.Parse([]byte(timings)); err != nil {
		return Entry{}, fmt.Errorf("entry %s: %w", e.JobID, err)
	}
	e.CreatedAt = time.Unix(0, created)
	return e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
