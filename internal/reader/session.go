/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package reader ties a built display result to playback and follow state for
// one job at a time.
package reader

import (
	"log/slog"
	"sync"

	"readalong/internal/display"
	"readalong/internal/follow"
	applog "readalong/internal/log"
	"readalong/internal/playback"
	"readalong/internal/timing"
)

// Transport is the audio player. Seek targets are seconds from the start.
type Transport interface {
	Seek(seconds float64)
}

// Snapshot is a consistent view of a session.
type Snapshot struct {
	JobID  string
	Result display.Result
	Follow follow.State
}

// Session is safe for concurrent use. Events from a transport goroutine and a
// job load never observe a half-replaced result.
//
// Overlay subscribers run with the session lock held and must not call back
// into the session.
type Session struct {
	mu    sync.Mutex
	jobID string
	res   display.Result
	coord *follow.Coordinator
	tr    Transport
	log   *slog.Logger
}

// NewSession creates an empty session. tr may be nil when seeking is handled
// by the caller. When cfg.Label is nil the overlay is labelled with the active
// word's character.
func NewSession(vp follow.Viewport, cfg follow.Config, tr Transport) *Session {
	s := &Session{tr: tr, log: applog.WithComponent("reader")}
	if cfg.Label == nil {
		cfg.Label = s.characterAt
	}
	s.coord = follow.NewCoordinator(vp, cfg)
	return s
}

// characterAt is called by the coordinator under s.mu.
func (s *Session) characterAt(i int) string {
	if i < 0 || i >= len(s.res.Words) {
		return ""
	}
	return s.res.Words[i].Character
}

// Load builds the display for a finished job and replaces the current one.
// Highlight, overlay and auto-follow state are reset together with it.
func (s *Session) Load(jobID, scriptText string, timings []timing.WordTiming) display.Result {
	res := display.Build(scriptText, timings)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobID = jobID
	s.res = res
	s.coord.Reset()
	s.log.Info("job loaded",
		slog.String("job", jobID),
		slog.Int("words", len(res.Words)),
		slog.Int("lines", len(res.Lines)),
		slog.Bool("mismatch", res.Mismatch != nil),
	)
	return res
}

// OnTime reports the transport's current time and returns the active index.
func (s *Session) OnTime(t float64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := playback.ResolveActiveIndex(s.res.Words, t)
	s.coord.SetActive(idx, ok)
	return idx, ok
}

// OnTokenActivated seeks to the word behind a clicked token. The word becomes
// active immediately; auto-follow is left as it is.
func (s *Session) OnTokenActivated(ref playback.TokenRef) (float64, bool) {
	s.mu.Lock()
	idx, seek, ok := playback.Reconcile(s.res, ref)
	if ok {
		s.coord.SetActive(idx, true)
	}
	s.mu.Unlock()

	if !ok {
		s.log.Debug("token activation ignored", slog.Any("ref", ref))
		return 0, false
	}
	if s.tr != nil {
		s.tr.Seek(seek)
	}
	return seek, true
}

func (s *Session) OnScroll(scrollTop float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coord.OnScroll(scrollTop)
}

func (s *Session) OnResize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coord.OnResize()
}

func (s *Session) OnWheel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coord.OnWheel()
}

func (s *Session) OnTouchStart(onResume bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coord.OnTouchStart(onResume)
}

func (s *Session) OnKeyNav() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coord.OnKeyNav()
}

func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coord.Resume()
}

// Subscribe registers fn for overlay updates.
func (s *Session) Subscribe(fn func(follow.Overlay)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unsub := s.coord.Subscribe(fn)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		unsub()
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{JobID: s.jobID, Result: s.res, Follow: s.coord.State()}
}
