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

var (
	reStyleHeader  = regexp.MustCompile(`(?i)^\s*STYLE DESCRIPTION:\s*$`)
	reActionHeader = regexp.MustCompile(`(?i)^\s*ACTION DICTIONARY:\s*$`)
	reScriptHeader = regexp.MustCompile(`(?i)^\s*SCRIPT:\s*$`)
)

// SplitSections splits a job document into its header blocks:
//
//	free-form instructions
//	STYLE DESCRIPTION:
//	ACTION DICTIONARY:
//	SCRIPT:
//
// Each header must sit on its own line and only its first occurrence counts.
// Text before the first header is returned as Instructions.
func SplitSections(text string) Sections {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	idxStyle, idxAction, idxScript := -1, -1, -1
	for i, ln := range lines {
		switch {
		case idxStyle < 0 && reStyleHeader.MatchString(ln):
			idxStyle = i
		case idxAction < 0 && reActionHeader.MatchString(ln):
			idxAction = i
		case idxScript < 0 && reScriptHeader.MatchString(ln):
			idxScript = i
		}
	}
	if idxScript < 0 {
		return Sections{Script: strings.TrimSpace(text)}
	}

	headers := []int{idxStyle, idxAction, idxScript}
	first := len(lines)
	for _, h := range headers {
		if h >= 0 && h < first {
			first = h
		}
	}
	// block returns the lines after header start up to the next header.
	block := func(start int) string {
		if start < 0 {
			return ""
		}
		end := len(lines)
		for _, h := range headers {
			if h > start && h < end {
				end = h
			}
		}
		return strings.TrimSpace(strings.Join(lines[start+1:end], "\n"))
	}
	return Sections{
		Instructions:    strings.TrimSpace(strings.Join(lines[:first], "\n")),
		Style:           block(idxStyle),
		Actions:         block(idxAction),
		Script:          block(idxScript),
		HasScriptHeader: true,
	}
}

// UIScript renders the SCRIPT: section of doc the way the synthesis service
// returns it in a manifest: only lines that open with a non-empty [Role] tag
// and have an utterance, one "[Role] utterance" per line. Untagged lines are
// never synthesized, so they carry no timings.
func UIScript(doc string) string {
	var out []string
	for _, ln := range strings.Split(SplitSections(doc).Script, "\n") {
		ln = strings.TrimSpace(ln)
		m := reRoleTag.FindStringSubmatch(ln)
		if m == nil || strings.TrimSpace(m[1]) == "" {
			continue
		}
		utter := strings.TrimSpace(ln[len(m[0]):])
		if utter == "" {
			continue
		}
		out = append(out, "["+strings.TrimSpace(m[1])+"] "+utter)
	}
	return strings.Join(out, "\n")
}
