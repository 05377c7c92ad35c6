/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package display

import (
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"readalong/internal/timing"
)

// timingsFor produces n evenly spaced timings with the given words, padding
// with "w<i>" when words run out.
func timingsFor(n int, words ...string) []timing.WordTiming {
	out := make([]timing.WordTiming, n)
	for i := range out {
		w := fmt.Sprintf("w%d", i)
		if i < len(words) {
			w = words[i]
		}
		out[i] = timing.WordTiming{Word: w, Start: float64(i) * 0.5, End: float64(i)*0.5 + 0.4, Index: i}
	}
	return out
}

func TestBuildExactMatch(t *testing.T) {
	doc := "[A] <Alice> Hello (LOUD_VOICE) world!\n[N] <Narrator> The end."
	res := Build(doc, timingsFor(4, "hello", "world", "the", "end"))

	if res.Mismatch != nil {
		t.Fatalf("unexpected mismatch: %+v", res.Mismatch)
	}
	if len(res.Words) != 4 {
		t.Fatalf("expected 4 words, got %d", len(res.Words))
	}
	if res.Words[1].Text != "world" || res.Words[1].Character != "Alice" || res.Words[1].StartTime != 0.5 {
		t.Fatalf("unexpected word 1: %+v", res.Words[1])
	}
	if res.Words[3].Character != "Narrator" {
		t.Fatalf("unexpected word 3 character: %+v", res.Words[3])
	}

	if len(res.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(res.Lines))
	}
	first := res.Lines[0]
	wantParts := []Part{
		TextSpan{StartIndex: 0, Length: 1, Tokens: []string{"Hello"}},
		CueSpan{Display: "loud voice"},
		TextSpan{StartIndex: 1, Length: 1, Tokens: []string{"world!"}},
	}
	if !reflect.DeepEqual(first.Parts, wantParts) {
		t.Fatalf("line 0 parts = %#v, want %#v", first.Parts, wantParts)
	}
	if first.StartIndex != 0 || first.Length != 2 || first.Character != "Alice" || first.IsNarrator {
		t.Fatalf("unexpected line 0: %+v", first)
	}
	second := res.Lines[1]
	if second.StartIndex != 2 || second.Length != 2 || !second.IsNarrator {
		t.Fatalf("unexpected line 1: %+v", second)
	}
}

func TestBuildTruncatesWhenTimingsShort(t *testing.T) {
	doc := "<A> one two three\n<B> four (beat) five six\n<C> seven eight\n<D> (exit)"
	res := Build(doc, timingsFor(5))

	if res.Mismatch == nil || res.Mismatch.TokenCount != 8 || res.Mismatch.TimingCount != 5 {
		t.Fatalf("unexpected mismatch: %+v", res.Mismatch)
	}
	if len(res.Words) != 5 || len(res.Tokens) != 8 {
		t.Fatalf("words=%d tokens=%d", len(res.Words), len(res.Tokens))
	}
	// Line C loses all its text and has no cue, so it is dropped; D keeps its cue.
	if len(res.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %+v", len(res.Lines), res.Lines)
	}
	b := res.Lines[1]
	wantB := []Part{
		TextSpan{StartIndex: 3, Length: 1, Tokens: []string{"four"}},
		CueSpan{Display: "beat"},
		TextSpan{StartIndex: 4, Length: 1, Tokens: []string{"five"}},
	}
	if !reflect.DeepEqual(b.Parts, wantB) {
		t.Fatalf("line B parts = %#v, want %#v", b.Parts, wantB)
	}
	if b.Length != 2 {
		t.Fatalf("line B length = %d, want 2", b.Length)
	}
	d := res.Lines[2]
	if d.Character != "D" || d.Length != 0 || len(d.Parts) != 1 {
		t.Fatalf("unexpected cue-only line: %+v", d)
	}
	assertTiling(t, res)
}

func TestBuildTruncatesWhenTimingsLong(t *testing.T) {
	res := Build("<A> one two", timingsFor(5))
	if res.Mismatch == nil || len(res.Words) != 2 {
		t.Fatalf("expected 2 words and a mismatch, got %d %+v", len(res.Words), res.Mismatch)
	}
	assertTiling(t, res)
}

func TestBuildEmptyInputs(t *testing.T) {
	res := Build("", nil)
	if len(res.Words) != 0 || len(res.Lines) != 0 || res.Mismatch != nil {
		t.Fatalf("unexpected result for empty input: %+v", res)
	}
	res = Build("<A> hello there", nil)
	if len(res.Words) != 0 || len(res.Lines) != 0 {
		t.Fatalf("expected everything truncated, got %+v", res)
	}
}

func TestBuildTilingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vocab := []string{"alpha", "beta,", "(cue)", "(LOUD_VOICE)", "gamma!", "“delta”", "eps", "(", ")"}
	for iter := 0; iter < 200; iter++ {
		var lines []string
		for l := rng.Intn(6); l >= 0; l-- {
			var words []string
			for w := rng.Intn(7); w >= 0; w-- {
				words = append(words, vocab[rng.Intn(len(vocab))])
			}
			lines = append(lines, fmt.Sprintf("[R%d] <C%d> %s", l, l, strings.Join(words, " ")))
		}
		doc := strings.Join(lines, "\n")
		tokens := len(Build(doc, timingsFor(1000)).Tokens)
		for _, n := range []int{0, tokens / 2, tokens, tokens + 3} {
			res := Build(doc, timingsFor(n))
			if want := min(tokens, n); len(res.Words) != want {
				t.Fatalf("doc %q timings %d: words=%d want %d", doc, n, len(res.Words), want)
			}
			assertTiling(t, res)
		}
	}
}

// assertTiling checks that text spans cover [0, len(Words)) exactly once, in order.
func assertTiling(t *testing.T, res Result) {
	t.Helper()
	next := 0
	for li, ln := range res.Lines {
		sum := 0
		for _, p := range ln.Parts {
			ts, ok := p.(TextSpan)
			if !ok {
				continue
			}
			if ts.StartIndex != next {
				t.Fatalf("line %d: span starts at %d, want %d", li, ts.StartIndex, next)
			}
			if ts.StartIndex+ts.Length > len(res.Words) {
				t.Fatalf("line %d: span [%d,+%d) exceeds %d words", li, ts.StartIndex, ts.Length, len(res.Words))
			}
			if len(ts.Tokens) != ts.Length {
				t.Fatalf("line %d: %d tokens for length %d", li, len(ts.Tokens), ts.Length)
			}
			for j, tok := range ts.Tokens {
				if res.Tokens[ts.StartIndex+j].Token != tok {
					t.Fatalf("line %d: token %q does not match flat token %q", li, tok, res.Tokens[ts.StartIndex+j].Token)
				}
			}
			next += ts.Length
			sum += ts.Length
		}
		if sum != ln.Length {
			t.Fatalf("line %d: length %d, parts sum %d", li, ln.Length, sum)
		}
	}
	if next != len(res.Words) {
		t.Fatalf("spans cover %d words, want %d", next, len(res.Words))
	}
}

func TestLineOf(t *testing.T) {
	res := Build("<A> a b\n<B> (cue)\n<C> c d e", timingsFor(5))
	cases := map[int]int{0: 0, 1: 0, 2: 2, 4: 2, 5: -1, -1: -1}
	for idx, want := range cases {
		if got := res.LineOf(idx); got != want {
			t.Fatalf("LineOf(%d) = %d, want %d", idx, got, want)
		}
	}
}

func TestSpan(t *testing.T) {
	res := Build("<A> a (x) b", timingsFor(2))
	if ts, ok := res.Span(0, 2); !ok || ts.StartIndex != 1 {
		t.Fatalf("Span(0,2) = %+v %v", ts, ok)
	}
	if _, ok := res.Span(0, 1); ok {
		t.Fatalf("cue part must not resolve to a text span")
	}
	if _, ok := res.Span(3, 0); ok {
		t.Fatalf("out-of-range line must not resolve")
	}
}

func TestAudit(t *testing.T) {
	res := Build("<A> “Hello,” said the cat", timingsFor(4, "hello", "said", "a", "cat"))
	rep := Audit(res, 0)
	if rep.Compared != 4 || rep.Divergent != 1 || rep.FirstDivergence != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if d := rep.Divergences[0]; d.Token != "the" || d.Timed != "a" || d.Similarity < 0 || d.Similarity > 1 {
		t.Fatalf("unexpected divergence: %+v", d)
	}
	if got := rep.Ratio(); got != 0.75 {
		t.Fatalf("Ratio = %v, want 0.75", got)
	}

	clean := Audit(Build("<A> a b", timingsFor(2, "a", "b")), 0)
	if clean.FirstDivergence != -1 || clean.Ratio() != 1 {
		t.Fatalf("unexpected clean report: %+v", clean)
	}
	limited := Audit(Build("<A> a b c", timingsFor(3, "x", "y", "z")), 1)
	if limited.Divergent != 3 || len(limited.Divergences) != 1 {
		t.Fatalf("limit not honoured: %+v", limited)
	}
}
