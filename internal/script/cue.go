/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"regexp"
	"strings"
)

var reControlCue = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// NormalizeCue turns the raw text of a parenthetical cue into display text.
// Underscore-joined control cues such as LOUD_VOICE become "loud voice";
// anything else is returned trimmed.
func NormalizeCue(raw string) string {
	s := strings.TrimSpace(raw)
	if !isControlCue(s) {
		return s
	}
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' })
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, " ")
}

func isControlCue(s string) bool {
	return strings.Contains(s, "_") && reControlCue.MatchString(s)
}

// ClassifyCues splits the cues found in body into simple (free-form) cues and
// control cues (upper-case, underscore-joined). Empty cues are ignored.
func ClassifyCues(body string) (simple, control []string) {
	for _, m := range reParenGroup.FindAllStringSubmatch(body, -1) {
		inner := strings.TrimSpace(m[1])
		if inner == "" {
			continue
		}
		if inner == strings.ToUpper(inner) && reControlCue.MatchString(inner) {
			control = append(control, inner)
		} else {
			simple = append(simple, inner)
		}
	}
	return simple, control
}
