/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

// ScriptLine is one tokenized physical line of a narration script.
// Role holds the leading [tag] used for voice routing; it is never displayed.
// Character is empty when the line carries no <Name> tag.
type ScriptLine struct {
	Role       string
	Character  string
	IsNarrator bool
	Parts      []Part
	LineNo     int // 1-based line number in the source text
}

// Part is a segment of a script line: either a TextPart or a CuePart.
// The set of implementations is closed.
type Part interface {
	isPart()
}

// TextPart is spoken text, with its original spacing and punctuation.
type TextPart struct {
	Text string
}

// CuePart is a parenthetical annotation. Raw is the text between the
// parentheses, Display its human-readable form.
type CuePart struct {
	Raw     string
	Display string
}

func (TextPart) isPart() {}
func (CuePart) isPart()  {}

// Words returns the whitespace-delimited tokens of the text part.
func (t TextPart) Words() []string { return splitWords(t.Text) }

// Sections holds the blocks of a full job document.
// Only Script is required by the synthesis service; when the document has no
// SCRIPT: header, Script is the whole text and HasScriptHeader is false.
type Sections struct {
	Instructions    string
	Style           string
	Actions         string
	Script          string
	HasScriptHeader bool
}
