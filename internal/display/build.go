/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package display

import (
	"log/slog"

	applog "readalong/internal/log"
	"readalong/internal/script"
	"readalong/internal/timing"
)

// Build tokenizes scriptText and pairs its words with timings by position.
//
// Word i is script token i timed by timings[i]; no text matching happens here.
// When the counts differ, both sides are cut to the shorter length: text spans
// past the cut are dropped, a span straddling it is shortened, and a warning
// is logged. Retained spans tile [0, len(Words)) exactly, in document order.
func Build(scriptText string, timings []timing.WordTiming) Result {
	return build(script.Tokenize(scriptText), timings, applog.WithComponent("display"))
}

func build(lines []script.ScriptLine, timings []timing.WordTiming, l *slog.Logger) Result {
	var (
		tokens []FlatToken
		out    = make([]Line, 0, len(lines))
	)
	for _, sl := range lines {
		dl := Line{Character: sl.Character, IsNarrator: sl.IsNarrator, StartIndex: len(tokens)}
		for _, p := range sl.Parts {
			switch p := p.(type) {
			case script.CuePart:
				dl.Parts = append(dl.Parts, CueSpan{Display: p.Display})
			case script.TextPart:
				words := p.Words()
				dl.Parts = append(dl.Parts, TextSpan{StartIndex: len(tokens), Length: len(words), Tokens: words})
				for _, w := range words {
					tokens = append(tokens, FlatToken{Token: w, Character: sl.Character})
				}
			}
		}
		dl.Length = len(tokens) - dl.StartIndex
		out = append(out, dl)
	}

	count := min(len(tokens), len(timings))
	words := make([]Word, count)
	for i := 0; i < count; i++ {
		t := timings[i]
		words[i] = Word{Text: t.Word, StartTime: t.Start, EndTime: t.End, Character: tokens[i].Character}
	}

	res := Result{Words: words, Lines: out, Tokens: tokens}
	if len(tokens) != len(timings) {
		res.Mismatch = &Mismatch{TokenCount: len(tokens), TimingCount: len(timings)}
		res.Lines = truncate(out, count)
		l.Warn("script tokens and timings differ in count; truncating",
			slog.Int("tokens", len(tokens)),
			slog.Int("timings", len(timings)),
			slog.Int("kept", count),
		)
	}
	return res
}

// truncate removes every reference to word indexes >= count. Lines left with
// no parts at all are dropped; cue-only remainders are kept for display.
func truncate(lines []Line, count int) []Line {
	out := make([]Line, 0, len(lines))
	for _, ln := range lines {
		kept := make([]Part, 0, len(ln.Parts))
		length := 0
		for _, p := range ln.Parts {
			ts, ok := p.(TextSpan)
			if !ok {
				kept = append(kept, p)
				continue
			}
			if ts.StartIndex >= count {
				continue
			}
			if ts.StartIndex+ts.Length > count {
				n := count - ts.StartIndex
				ts = TextSpan{StartIndex: ts.StartIndex, Length: n, Tokens: ts.Tokens[:n:n]}
			}
			length += ts.Length
			kept = append(kept, ts)
		}
		if len(kept) == 0 {
			continue
		}
		ln.Parts = kept
		ln.Length = length
		if ln.StartIndex > count {
			ln.StartIndex = count
		}
		out = append(out, ln)
	}
	return out
}
