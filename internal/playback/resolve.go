/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */


// Package playback maps between playback time and word positions of a built
// display.Result.
package playback

import (
	"math"
	"sort"

	"readalong/internal/display"
)

// ResolveActiveIndex returns the index of the last word whose StartTime is at
// or before t. It reports false for an empty slice, a NaN time, or a time
// before the first word starts. words must be ascending by StartTime.
//
// Every call searches from scratch so backward seeks resolve correctly.
func ResolveActiveIndex(words []display.Word, t float64) (int, bool) {
	if len(words) == 0 || math.IsNaN(t) {
		return 0, false
	}
	// first word starting strictly after t
	i := sort.Search(len(words), func(i int) bool { return words[i].StartTime > t })
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}
