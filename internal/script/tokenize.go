/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"regexp"
	"strings"
	"unicode"
)

var (
	reRoleTag      = regexp.MustCompile(`^\[([^\]]*)\]\s*`)
	reCharacterTag = regexp.MustCompile(`^<([^>]*)>\s*`)
	reParenGroup   = regexp.MustCompile(`\(([^)]*)\)`)
)

// narratorName is the character label that marks narration lines.
const narratorName = "Narrator"

// TokenizeLine parses a single script line of the form
//
//	[Role] <Character> body text (cue) more text
//
// Both tags are optional. The body is split into text and cue parts; adjacent
// text is always merged into one part. ok is false when the line has nothing to
// display (blank, or tags without a body), in which case it should be skipped.
func TokenizeLine(line string) (ScriptLine, bool) {
	rest := strings.TrimSpace(line)
	if rest == "" {
		return ScriptLine{}, false
	}
	var sl ScriptLine
	if m := reRoleTag.FindStringSubmatch(rest); m != nil {
		sl.Role = strings.TrimSpace(m[1])
		rest = rest[len(m[0]):]
	}
	if m := reCharacterTag.FindStringSubmatch(rest); m != nil {
		sl.Character = strings.TrimSpace(m[1])
		rest = rest[len(m[0]):]
	}
	sl.IsNarrator = strings.EqualFold(sl.Character, narratorName)
	sl.Parts = splitBody(strings.TrimSpace(rest))
	if len(sl.Parts) == 0 {
		return ScriptLine{}, false
	}
	return sl, true
}

// Tokenize runs TokenizeLine over every physical line of text, skipping lines
// that yield nothing. LineNo is set to the 1-based source line.
func Tokenize(text string) []ScriptLine {
	var out []ScriptLine
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		sl, ok := TokenizeLine(sc.Text())
		if !ok {
			continue
		}
		sl.LineNo = lineNo
		out = append(out, sl)
	}
	return out
}

// splitBody scans body left to right. Every (...) span becomes a cue part; an
// unclosed "(" is kept as text.
func splitBody(body string) []Part {
	var parts []Part
	pos := 0
	for _, loc := range reParenGroup.FindAllStringSubmatchIndex(body, -1) {
		parts = appendText(parts, body[pos:loc[0]])
		raw := body[loc[2]:loc[3]]
		parts = append(parts, CuePart{Raw: raw, Display: NormalizeCue(raw)})
		pos = loc[1]
	}
	return appendText(parts, body[pos:])
}

// appendText adds s as a text part, merging into a trailing text part.
func appendText(parts []Part, s string) []Part {
	if s == "" {
		return parts
	}
	if n := len(parts); n > 0 {
		if prev, ok := parts[n-1].(TextPart); ok {
			parts[n-1] = TextPart{Text: prev.Text + s}
			return parts
		}
	}
	return append(parts, TextPart{Text: s})
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, unicode.IsSpace)
}

// AlignmentText renders the spoken content of text the way the alignment
// engine sees it: tags and cues removed, whitespace collapsed, one line per
// script line.
func AlignmentText(text string) string {
	lines := Tokenize(text)
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		var words []string
		for _, p := range l.Parts {
			if tp, ok := p.(TextPart); ok {
				words = append(words, tp.Words()...)
			}
		}
		if len(words) > 0 {
			out = append(out, strings.Join(words, " "))
		}
	}
	return strings.Join(out, "\n")
}
