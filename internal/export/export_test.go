/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */


package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"readalong/internal/display"
	"readalong/internal/timing"
)

func sampleTimings() []timing.WordTiming {
	words := []string{"hello", "there", "general", "kenobi", "silence"}
	out := make([]timing.WordTiming, len(words))
	for i, w := range words {
		out[i] = timing.WordTiming{Word: w, Start: 1.25 * float64(i), End: 1.25*float64(i) + 1, Index: i}
	}
	return out
}

func sampleResult() display.Result {
	doc := "[A] <Alice> Hello (WHISPERING_SOFTLY) there\n[B] <Bob> General Kenobi\n[N] <Narrator> Silence falls.\n<Crowd> (gasps)"
	return display.Build(doc, sampleTimings())
}

func TestWebVTT(t *testing.T) {
	var buf bytes.Buffer
	if err := WebVTT(&buf, sampleResult()); err != nil {
		t.Fatalf("vtt: %v", err)
	}
	got := buf.String()
	want := "WEBVTT\n" +
		"\n1\n00:00:00.000 --> 00:00:02.250\n<v Alice>Hello (whispering softly) there\n" +
		"\n2\n00:00:02.500 --> 00:00:04.750\n<v Bob>General Kenobi\n"
	if !strings.HasPrefix(got, want) {
		t.Fatalf("unexpected vtt:\n%s", got)
	}
	if strings.Contains(got, "Narrator>") || strings.Contains(got, "gasps") {
		t.Fatalf("narrator must have no voice span and untimed lines no cue:\n%s", got)
	}
	if strings.Count(got, " --> ") != 3 {
		t.Fatalf("expected 3 cues:\n%s", got)
	}
}

func TestSRT(t *testing.T) {
	var buf bytes.Buffer
	if err := SRT(&buf, sampleResult()); err != nil {
		t.Fatalf("srt: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "1\n00:00:00,000 --> 00:00:02,250\nAlice: Hello (whispering softly) there\n\n2\n") {
		t.Fatalf("unexpected srt:\n%s", buf.String())
	}
}

func TestStamp(t *testing.T) {
	cases := map[float64]string{0: "00:00:00.000", 61.5: "00:01:01.500", 3723.0004: "01:02:03.000", -3: "00:00:00.000"}
	for in, want := range cases {
		if got := stamp(in, "."); got != want {
			t.Fatalf("stamp(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestTranscriptPDF_CreatesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "script.pdf")
	if err := TranscriptPDF(sampleResult(), "Star Scene — Take 1", out, PDFOptions{Timestamps: true}); err != nil {
		t.Fatalf("export: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf")
	}
}

func TestBatch_Presets(t *testing.T) {
	dir := t.TempDir()
	paths, err := Batch(sampleResult(), BatchOptions{Preset: PresetWeb, OutDir: dir, Base: "job", Timings: sampleTimings()})
	if err != nil {
		t.Fatalf("batch web: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != "job.vtt" || filepath.Base(paths[1]) != "job.timings.json" {
		t.Fatalf("unexpected outputs: %v", paths)
	}
	f, err := os.Open(paths[1])
	if err != nil {
		t.Fatalf("open timings: %v", err)
	}
	defer func() { _ = f.Close() }()
	ws, err := timing.Decode(f)
	if err != nil || len(ws) != 5 {
		t.Fatalf("timings round trip: %d %v", len(ws), err)
	}

	paths, err = Batch(sampleResult(), BatchOptions{Preset: PresetPrint, OutDir: dir})
	if err != nil || len(paths) != 1 || filepath.Base(paths[0]) != "transcript.pdf" {
		t.Fatalf("batch print = %v, %v", paths, err)
	}
	if _, err := Batch(sampleResult(), BatchOptions{Formats: []string{"cbz"}, OutDir: dir}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
