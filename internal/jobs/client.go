/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package jobs talks to the synthesis service: it submits scripts, follows
// job state and downloads the finished audio and word timings.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	applog "readalong/internal/log"
	"readalong/internal/timing"
)

var (
	ErrNotFound = errors.New("job not found")
	ErrNotReady = errors.New("job not ready")
	ErrFailed   = errors.New("job failed")
)

// HTTPError is a non-2xx response. Detail is the service's error message.
// It matches ErrNotFound for 404 and ErrNotReady for 409.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrNotReady:
		return e.Status == http.StatusConflict
	}
	return false
}

// Status is the service's view of one job. Times are Unix seconds.
type Status struct {
	ID        string  `json:"id"`
	State     State   `json:"state"`
	Error     string  `json:"error,omitempty"`
	CreatedAt float64 `json:"createdAt"`
	UpdatedAt float64 `json:"updatedAt"`
}

func (s Status) Updated() time.Time {
	return time.Unix(0, int64(s.UpdatedAt*float64(time.Second)))
}

// Client is an HTTP client for the synthesis service. BaseURL includes the
// API prefix, e.g. http://localhost:8000/v1/tts.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
	log     *slog.Logger
}

// NewClient creates a client. A zero timeout means 10s per request; downloads
// are bounded by the caller's context instead.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout},
		log:     applog.WithComponent("jobs"),
	}
}

// resolve turns a path or URL from the service into an absolute URL.
// Paths starting with "/" are host-relative, as in manifest URLs.
func (c *Client) resolve(ref string) (string, error) {
	base, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(r).String(), nil
}

func (c *Client) do(ctx context.Context, method, ref string, body any) (*http.Response, error) {
	u, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		herr := &HTTPError{Method: method, Path: req.URL.Path, Status: resp.StatusCode}
		var detail struct {
			Detail string `json:"detail"`
		}
		if b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); json.Unmarshal(b, &detail) == nil {
			herr.Detail = detail.Detail
		}
		return nil, herr
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, ref string, body, dest any) error {
	resp, err := c.do(ctx, method, ref, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Submit creates a job for scriptText voiced by roles and returns its id.
func (c *Client) Submit(ctx context.Context, scriptText string, roles []string) (string, error) {
	if strings.TrimSpace(scriptText) == "" {
		return "", errors.New("submit: empty script")
	}
	if len(roles) == 0 {
		return "", errors.New("submit: roles must include at least one role")
	}
	req := struct {
		Script string   `json:"script"`
		Roles  []string `json:"roles"`
	}{scriptText, roles}
	var out struct {
		JobID string `json:"jobId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "jobs", req, &out); err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	c.log.Info("job submitted", slog.String("job", out.JobID), slog.Int("roles", len(roles)))
	return out.JobID, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, id string) (Status, error) {
	var st Status
	if err := c.doJSON(ctx, http.MethodGet, "jobs/"+url.PathEscape(id), nil, &st); err != nil {
		return Status{}, err
	}
	return st, nil
}

// Wait polls Status every interval until the job is terminal. A failed job
// returns its status together with an error matching ErrFailed.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration) (Status, error) {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	last := State("")
	for {
		st, err := c.Status(ctx, id)
		if err != nil {
			return Status{}, err
		}
		if st.State != last {
			c.log.Debug("job state", slog.String("job", id), slog.String("state", string(st.State)))
			last = st.State
		}
		switch st.State {
		case StateReady:
			return st, nil
		case StateFailed:
			return st, fmt.Errorf("%w: %s", ErrFailed, st.Error)
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-t.C:
		}
	}
}

// Manifest fetches what a reader needs for a finished job. It returns an
// error matching ErrNotReady while the job runs and ErrFailed when it failed.
func (c *Client) Manifest(ctx context.Context, id string) (timing.Manifest, error) {
	resp, err := c.do(ctx, http.MethodGet, "jobs/"+url.PathEscape(id)+"/manifest", nil)
	if err != nil {
		var herr *HTTPError
		if errors.As(err, &herr) && herr.Status == http.StatusBadRequest {
			return timing.Manifest{}, fmt.Errorf("%w: %s", ErrFailed, herr.Detail)
		}
		return timing.Manifest{}, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return timing.Manifest{}, err
	}
	return timing.ParseManifest(b)
}

// Timings downloads and decodes the timing document at ref.
func (c *Client) Timings(ctx context.Context, ref string) ([]timing.WordTiming, error) {
	resp, err := c.do(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return timing.Decode(resp.Body)
}

// Audio streams the audio at ref into w and returns the byte count.
func (c *Client) Audio(ctx context.Context, ref string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

// Artifacts is the downloaded output of a finished job.
type Artifacts struct {
	Manifest   timing.Manifest
	Timings    []timing.WordTiming
	AudioBytes int64
}

// FetchArtifacts downloads timings and audio concurrently. audio may be nil
// to skip the audio download.
func (c *Client) FetchArtifacts(ctx context.Context, m timing.Manifest, audio io.Writer) (Artifacts, error) {
	out := Artifacts{Manifest: m}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ws, err := c.Timings(gctx, m.TimingsURL)
		if err != nil {
			return fmt.Errorf("timings: %w", err)
		}
		out.Timings = ws
		return nil
	})
	if audio != nil {
		g.Go(func() error {
			n, err := c.Audio(gctx, m.AudioURL, audio)
			if err != nil {
				return fmt.Errorf("audio: %w", err)
			}
			out.AudioBytes = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Artifacts{}, err
	}
	return out, nil
}
