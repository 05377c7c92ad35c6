/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes a built display result to files: a printable
// transcript PDF and timed subtitle tracks.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"readalong/internal/display"
)

// timedLine is a display line with its playback interval. Lines without
// retained words have ok=false.
type timedLine struct {
	display.Line
	Start, End float64
	ok         bool
}

func timeLines(res display.Result) []timedLine {
	out := make([]timedLine, len(res.Lines))
	for i, ln := range res.Lines {
		out[i].Line = ln
		if ln.Length == 0 || ln.End() > len(res.Words) {
			continue
		}
		out[i].Start = res.Words[ln.StartIndex].StartTime
		end := 0.0
		for _, w := range res.Words[ln.StartIndex:ln.End()] {
			end = math.Max(end, w.EndTime)
		}
		out[i].End = end
		out[i].ok = true
	}
	return out
}

// lineText renders a line's parts as plain text, cues in parentheses.
func lineText(ln display.Line) string {
	var parts []string
	for _, p := range ln.Parts {
		switch p := p.(type) {
		case display.TextSpan:
			parts = append(parts, strings.Join(p.Tokens, " "))
		case display.CueSpan:
			if p.Display != "" {
				parts = append(parts, "("+p.Display+")")
			}
		}
	}
	return strings.Join(parts, " ")
}

// stamp formats seconds as HH:MM:SS<sep>mmm.
func stamp(sec float64, sep string) string {
	ms := int64(math.Round(math.Max(sec, 0) * 1000))
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, sep, ms%1000)
}

// WebVTT writes one cue per timed display line. The speaking character is
// carried in a voice span; narrator lines have none.
func WebVTT(w io.Writer, res display.Result) error {
	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "WEBVTT\n")
	n := 0
	for _, tl := range timeLines(res) {
		if !tl.ok {
			continue
		}
		n++
		text := lineText(tl.Line)
		if tl.Character != "" && !tl.IsNarrator {
			text = "<v " + escapeVTT(tl.Character) + ">" + escapeVTT(text)
		} else {
			text = escapeVTT(text)
		}
		fmt.Fprintf(bw, "\n%d\n%s --> %s\n%s\n", n, stamp(tl.Start, "."), stamp(tl.End, "."), text)
	}
	return bw.Flush()
}

var vttEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeVTT(s string) string { return vttEscaper.Replace(s) }

// SRT writes the same cues as WebVTT in SubRip form, character names as a
// "Name: " prefix.
func SRT(w io.Writer, res display.Result) error {
	bw := bufio.NewWriter(w)
	n := 0
	for _, tl := range timeLines(res) {
		if !tl.ok {
			continue
		}
		n++
		text := lineText(tl.Line)
		if tl.Character != "" && !tl.IsNarrator {
			text = tl.Character + ": " + text
		}
		if n > 1 {
			fmt.Fprint(bw, "\n")
		}
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n", n, stamp(tl.Start, ","), stamp(tl.End, ","), text)
	}
	return bw.Flush()
}
