/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */


package playback

import (
	"readalong/internal/display"
	"readalong/internal/script"
)

// TokenRef addresses one displayed token: Lines[Line].Parts[Part].Tokens[Token].
type TokenRef struct {
	Line  int
	Part  int
	Token int
}

// probeOffsets is the neighbor search order around the naive index.
var probeOffsets = [...]int{0, 1, -1, 2, -2, 3, -3}

// Reconcile resolves an activated token to a word index and the seek time for
// that word.
//
// The naive index is the token's position in its span. When the timed word
// there does not match the displayed token after normalization, nearby
// positions within the same line are probed and the first match wins. With no
// match the naive index is used. ok is false only when ref does not address a
// retained token of res.
func Reconcile(res display.Result, ref TokenRef) (index int, seek float64, ok bool) {
	span, found := res.Span(ref.Line, ref.Part)
	if !found || ref.Token < 0 || ref.Token >= span.Length {
		return 0, 0, false
	}
	naive := span.StartIndex + ref.Token
	if naive >= len(res.Words) {
		return 0, 0, false
	}
	index = naive

	want := script.NormalizeToken(span.Tokens[ref.Token])
	if want != "" {
		line := res.Lines[ref.Line]
		lo, hi := line.StartIndex, min(line.End(), len(res.Words))
		for _, off := range probeOffsets {
			i := naive + off
			if i < lo || i >= hi {
				continue
			}
			if script.NormalizeToken(res.Words[i].Text) == want {
				index = i
				break
			}
		}
	}
	return index, res.Words[index].StartTime, true
}
