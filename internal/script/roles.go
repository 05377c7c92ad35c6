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
	"sort"
	"strings"
	"unicode"
)

var (
	reBracketTag   = regexp.MustCompile(`\[([^\]]+)\]`)
	reRoleSep      = regexp.MustCompile(`[\s\-]+`)
	reRoleInvalid  = regexp.MustCompile(`[^A-Za-z0-9_]`)
	reRoleUnderRun = regexp.MustCompile(`_+`)
)

// quotePairs maps an opening quote character to its closing counterpart.
var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'`':  '`',
	'“':  '”',
	'‘':  '’',
	'«':  '»',
}

const quoteChars = "\"'`“”‘’«»"

// ExtractRoles returns the distinct normalized role names used in doc.
// Only tags after the SCRIPT: header are considered; without a header the whole
// document is scanned. The result is sorted; names that normalize to the empty
// string are dropped.
func ExtractRoles(doc string) []string {
	body := SplitSections(doc).Script
	seen := map[string]struct{}{}
	for _, m := range reBracketTag.FindAllStringSubmatch(body, -1) {
		if n := NormalizeRole(m[1]); n != "" {
			seen[n] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizeRole canonicalizes a role name for voice binding:
// "  'bad-guy #1'  " becomes "Bad_Guy_1".
func NormalizeRole(name string) string {
	s := stripQuotes(strings.TrimSpace(name))
	s = reRoleSep.ReplaceAllString(s, "_")
	s = reRoleInvalid.ReplaceAllString(s, "")
	s = reRoleUnderRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return ""
	}
	segs := strings.Split(s, "_")
	for i, seg := range segs {
		segs[i] = titleCase(seg)
	}
	return strings.Join(segs, "_")
}

// stripQuotes removes one matching pair of surrounding quotes, or failing that
// any quote characters at either end.
func stripQuotes(s string) string {
	r := []rune(s)
	if len(r) >= 2 {
		if closing, ok := quotePairs[r[0]]; ok && r[len(r)-1] == closing {
			return strings.TrimSpace(string(r[1 : len(r)-1]))
		}
	}
	return strings.TrimSpace(strings.Trim(s, quoteChars))
}

func titleCase(seg string) string {
	r := []rune(strings.ToLower(seg))
	if len(r) == 0 {
		return ""
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
