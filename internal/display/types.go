/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package display joins a tokenized script with the service's word timings.
// It produces the global word array used for playback and the per-line part
// structure used for rendering; both index into the same word positions.
package display

// Word is a timed word. Text comes from the timing source, not the script.
// Character is empty when the line had no character tag.
type Word struct {
	Text      string
	StartTime float64
	EndTime   float64
	Character string
}

// FlatToken is one whitespace-delimited script word in document order.
type FlatToken struct {
	Token     string
	Character string
}

// Part is a rendered segment of a display line: a CueSpan or a TextSpan.
// The set of implementations is closed.
type Part interface {
	isDisplayPart()
}

// CueSpan is an opaque annotation; it maps to no word.
type CueSpan struct {
	Display string
}

// TextSpan covers Words[StartIndex : StartIndex+Length]. Tokens holds the
// original script strings for those positions, punctuation included.
type TextSpan struct {
	StartIndex int
	Length     int
	Tokens     []string
}

func (CueSpan) isDisplayPart()  {}
func (TextSpan) isDisplayPart() {}

// Line is one rendered script line.
type Line struct {
	Character  string
	IsNarrator bool
	Parts      []Part
	StartIndex int
	Length     int
}

// End returns the first word index past the line.
func (l Line) End() int { return l.StartIndex + l.Length }

// Mismatch describes a disagreement between script tokens and timings.
type Mismatch struct {
	TokenCount  int
	TimingCount int
}

// Result is an immutable snapshot built for one completed job.
type Result struct {
	Words []Word
	Lines []Line
	// Tokens is the full flattened script, including tokens beyond len(Words).
	Tokens   []FlatToken
	Mismatch *Mismatch
}

// Span returns the text span addressed by line and part, if any.
func (r Result) Span(line, part int) (TextSpan, bool) {
	if line < 0 || line >= len(r.Lines) {
		return TextSpan{}, false
	}
	parts := r.Lines[line].Parts
	if part < 0 || part >= len(parts) {
		return TextSpan{}, false
	}
	ts, ok := parts[part].(TextSpan)
	return ts, ok
}

// LineOf returns the index of the line containing word index, or -1.
func (r Result) LineOf(index int) int {
	lo, hi := 0, len(r.Lines)
	for lo < hi {
		mid := (lo + hi) / 2
		l := r.Lines[mid]
		switch {
		case index < l.StartIndex:
			hi = mid
		case index >= l.End():
			lo = mid + 1
		default:
			return mid
		}
	}
	return -1
}
