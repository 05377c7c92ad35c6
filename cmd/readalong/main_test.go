/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"readalong/internal/config"
	"readalong/internal/display"
	"readalong/internal/library"
	applog "readalong/internal/log"
)

const testDoc = `Read warmly.
SCRIPT:
[Hero] <Alice> Hello (WHISPERING_SOFTLY) there, friend.
[Narr] <Narrator> The wind rose.
`

const testTimings = `{"words":[
 {"w":"Hello","s":0.0,"e":0.4,"idx":0},
 {"w":"there","s":0.5,"e":0.8,"idx":1},
 {"w":"friend","s":0.9,"e":1.3,"idx":2},
 {"w":"The","s":1.6,"e":1.7,"idx":3},
 {"w":"wind","s":1.8,"e":2.1,"idx":4},
 {"w":"rose","s":2.2,"e":2.6,"idx":5}
]}`

func writeInputs(t *testing.T, timings string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	sp := filepath.Join(dir, "scene.txt")
	tp := filepath.Join(dir, "scene.timings.json")
	if err := os.WriteFile(sp, []byte(testDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tp, []byte(timings), 0o644); err != nil {
		t.Fatal(err)
	}
	return sp, tp
}

func testApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Library.Path = filepath.Join(t.TempDir(), "library.sqlite")
	var out bytes.Buffer
	return &app{cfg: cfg, dataDir: t.TempDir(), out: &out, log: applog.WithComponent("cli")}, &out
}

func TestRolesCommand(t *testing.T) {
	a, out := testApp(t)
	sp, _ := writeInputs(t, testTimings)
	if err := a.cmdRoles([]string{sp}); err != nil {
		t.Fatalf("roles: %v", err)
	}
	if got := out.String(); got != "Hero\nNarr\n" {
		t.Fatalf("roles output = %q", got)
	}
}

func TestBuildCommand(t *testing.T) {
	a, out := testApp(t)
	sp, tp := writeInputs(t, testTimings)
	if err := a.cmdBuild(context.Background(), []string{sp, tp}); err != nil {
		t.Fatalf("build: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Alice: Hello·0 (whispering softly) there,·1 friend.·2") {
		t.Fatalf("unexpected build output:\n%s", got)
	}
	if strings.Contains(got, "mismatch") {
		t.Fatalf("no mismatch expected:\n%s", got)
	}
}

func TestCheckCommandReportsMismatch(t *testing.T) {
	a, out := testApp(t)
	sp, tp := writeInputs(t, testTimings)
	if err := a.cmdCheck(context.Background(), []string{sp, tp}); err != nil {
		t.Fatalf("check on aligned input: %v\n%s", err, out.String())
	}

	short := `{"words":[{"w":"Hello","s":0,"e":0.4,"idx":0},{"w":"where","s":0.5,"e":0.8,"idx":1}]}`
	sp, tp = writeInputs(t, short)
	out.Reset()
	err := a.cmdCheck(context.Background(), []string{sp, tp})
	if !errors.Is(err, errSilent) {
		t.Fatalf("expected silent failure, got %v", err)
	}
	if !strings.Contains(out.String(), "count mismatch: 6 script tokens, 2 timed words") || !strings.Contains(out.String(), `"there,"`) {
		t.Fatalf("unexpected check output:\n%s", out.String())
	}
}

func TestPlayCommand(t *testing.T) {
	a, out := testApp(t)
	sp, tp := writeInputs(t, testTimings)
	if err := a.cmdPlay(context.Background(), []string{"-step", "0.1", "-rows", "2", "-cols", "20", sp, tp}); err != nil {
		t.Fatalf("play: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Alice: [Hello]", "[rose]", "done: 6 words", "auto-follow true"} {
		if !strings.Contains(got, want) {
			t.Fatalf("play output missing %q:\n%s", want, got)
		}
	}
}

func TestPlayCommandSeekAndWheel(t *testing.T) {
	a, out := testApp(t)
	sp, tp := writeInputs(t, testTimings)
	args := []string{"-step", "0.1", "-seek", "1:0:1", "-wheel-at", "2.0", sp, tp}
	if err := a.cmdPlay(context.Background(), args); err != nil {
		t.Fatalf("play: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "seek 1:0:1 -> 00:01.800") {
		t.Fatalf("seek not reported:\n%s", got)
	}
	if strings.Contains(got, "[Hello]") {
		t.Fatalf("playback should start at the clicked word:\n%s", got)
	}
	if !strings.Contains(got, "(paused)") || !strings.Contains(got, "auto-follow false") {
		t.Fatalf("user scroll should pause auto-follow:\n%s", got)
	}

	if _, err := parseTokenRef("1:x:0"); err == nil {
		t.Fatalf("expected error for bad token ref")
	}
}

func TestExportCommands(t *testing.T) {
	a, out := testApp(t)
	sp, tp := writeInputs(t, testTimings)
	dir := t.TempDir()
	vtt := filepath.Join(dir, "scene.vtt")
	if err := a.cmdExport(context.Background(), []string{"vtt", "-out", vtt, sp, tp}); err != nil {
		t.Fatalf("export vtt: %v", err)
	}
	b, err := os.ReadFile(vtt)
	if err != nil || !strings.HasPrefix(string(b), "WEBVTT") {
		t.Fatalf("vtt file: %v %q", err, b)
	}

	out.Reset()
	batch := filepath.Join(dir, "batch")
	if err := a.cmdExport(context.Background(), []string{"batch", "-out", batch, "-formats", "srt,timings", sp, tp}); err != nil {
		t.Fatalf("export batch: %v", err)
	}
	for _, name := range []string{"scene.srt", "scene.timings.json"} {
		if _, err := os.Stat(filepath.Join(batch, name)); err != nil {
			t.Fatalf("batch output %s missing: %v", name, err)
		}
	}

	var ue usageError
	if err := a.cmdExport(context.Background(), []string{"docx", sp, tp}); !errors.As(err, &ue) {
		t.Fatalf("expected usage error for unknown format, got %v", err)
	}
}

func TestLoadDocumentFromLibraryMissing(t *testing.T) {
	a, _ := testApp(t)
	if _, err := a.loadDocument(context.Background(), []string{"nope"}); err == nil || !strings.Contains(err.Error(), "not in the library") {
		t.Fatalf("expected library miss, got %v", err)
	}
	var ue usageError
	if _, err := a.loadDocument(context.Background(), nil); !errors.As(err, &ue) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestAudioExt(t *testing.T) {
	cases := map[string]string{
		"/v1/tts/jobs/j1/audio.mp3?sig=abc": ".mp3",
		"https://cdn.test/a/b/final.wav":    ".wav",
		"/v1/tts/jobs/j1/audio":             ".wav",
	}
	for in, want := range cases {
		if got := audioExt(in); got != want {
			t.Fatalf("audioExt(%q) = %q, want %q", in, got, want)
		}
	}
}

// synthService serves one finished job whose manifest script keeps only the
// role-tagged lines of what was submitted.
type synthService struct {
	mu      sync.Mutex
	submits int
}

func (f *synthService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tts/jobs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.submits++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"jobId": "j1"})
	})
	mux.HandleFunc("GET /v1/tts/jobs/j1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "j1", "state": "READY", "createdAt": 1.0, "updatedAt": 2.0})
	})
	mux.HandleFunc("GET /v1/tts/jobs/j1/manifest", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"audioUrl":   "/v1/tts/jobs/j1/audio.mp3",
			"timingsUrl": "/v1/tts/jobs/j1/timings",
			"script":     "[A] <Alice> Hello there\n[B] world",
		})
	})
	mux.HandleFunc("GET /v1/tts/jobs/j1/timings", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"words":[{"w":"Hello","s":0,"e":0.4,"idx":0},{"w":"there","s":0.5,"e":0.8,"idx":1},{"w":"world","s":1.0,"e":1.4,"idx":2}]}`))
	})
	mux.HandleFunc("GET /v1/tts/jobs/j1/audio.mp3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ID3data"))
	})
	return mux
}

func (f *synthService) submitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

func TestSubmitWaitStoresManifestScript(t *testing.T) {
	f := &synthService{}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	a, out := testApp(t)
	a.cfg.Backend.BaseURL = srv.URL + "/v1/tts"
	a.cfg.Backend.PollIntervalMs = 1

	sp := filepath.Join(t.TempDir(), "scene.txt")
	doc := "SCRIPT:\n[A] <Alice> Hello there\nstage direction\n[B] world\n"
	if err := os.WriteFile(sp, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := a.cmdSubmit(context.Background(), []string{"-wait", sp}); err != nil {
		t.Fatalf("submit -wait: %v\n%s", err, out.String())
	}

	store, err := a.openLibrary(context.Background())
	if err != nil {
		t.Fatalf("open library: %v", err)
	}
	e, err := store.Get(context.Background(), "j1")
	_ = store.Close()
	if err != nil {
		t.Fatalf("job not stored: %v", err)
	}
	if e.Script != "[A] <Alice> Hello there\n[B] world" {
		t.Fatalf("stored script = %q, want the manifest script", e.Script)
	}
	if filepath.Ext(e.AudioPath) != ".mp3" {
		t.Fatalf("audio path = %q", e.AudioPath)
	}
	if e.CacheKey != library.CacheKey(doc, []string{"A", "B"}, a.cfg.Backend.Model) {
		t.Fatalf("stored cache key does not match the submitted document")
	}

	res := display.Build(e.Script, e.Timings)
	if res.Mismatch != nil {
		t.Fatalf("stored script and timings disagree: %+v", res.Mismatch)
	}
	if res.Tokens[2].Token != "world" || res.Words[2].Text != "world" {
		t.Fatalf("word 2 paired %q with %q", res.Tokens[2].Token, res.Words[2].Text)
	}

	out.Reset()
	if err := a.cmdSubmit(context.Background(), []string{sp}); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if got := out.String(); got != "cached j1\n" || f.submitted() != 1 {
		t.Fatalf("expected a cache hit, got %q after %d submits", got, f.submitted())
	}
}

func TestFetchCommand(t *testing.T) {
	srv := httptest.NewServer((&synthService{}).handler())
	t.Cleanup(srv.Close)
	a, out := testApp(t)
	a.cfg.Backend.BaseURL = srv.URL + "/v1/tts"

	if err := a.cmdFetch(context.Background(), []string{"-no-audio", "-title", "Scene", "j1"}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(out.String(), "stored j1 (3 words)") {
		t.Fatalf("unexpected fetch output: %q", out.String())
	}
	d, err := a.loadDocument(context.Background(), []string{"j1"})
	if err != nil || d.Title != "Scene" || len(d.Timings) != 3 {
		t.Fatalf("loadDocument = %+v, %v", d, err)
	}
}
