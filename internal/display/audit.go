/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package display

import (
	"github.com/antzucaro/matchr"

	"readalong/internal/script"
)

// Divergence is a position where the script token and the timed word do not
// agree after normalization.
type Divergence struct {
	Index      int
	Token      string
	Timed      string
	Similarity float64 // Jaro-Winkler over the normalized forms, 0..1
}

// Report summarizes how well a Result's positional pairing holds up.
type Report struct {
	Compared    int
	Divergent   int
	Divergences []Divergence
	Mismatch    *Mismatch

	// FirstDivergence is the first diverging index, or -1.
	FirstDivergence int
}

// Audit compares every paired position of res and records up to limit
// divergences (all of them when limit <= 0). It is a developer diagnostic;
// nothing in playback depends on it.
func Audit(res Result, limit int) Report {
	rep := Report{Compared: len(res.Words), FirstDivergence: -1, Mismatch: res.Mismatch}
	for i, w := range res.Words {
		tok := script.NormalizeToken(res.Tokens[i].Token)
		timed := script.NormalizeToken(w.Text)
		if tok == timed {
			continue
		}
		rep.Divergent++
		if rep.FirstDivergence < 0 {
			rep.FirstDivergence = i
		}
		if limit > 0 && len(rep.Divergences) >= limit {
			continue
		}
		rep.Divergences = append(rep.Divergences, Divergence{
			Index:      i,
			Token:      res.Tokens[i].Token,
			Timed:      w.Text,
			Similarity: matchr.JaroWinkler(tok, timed, false),
		})
	}
	return rep
}

// Ratio returns the share of paired positions that agree, 1 for an empty result.
func (r Report) Ratio() float64 {
	if r.Compared == 0 {
		return 1
	}
	return float64(r.Compared-r.Divergent) / float64(r.Compared)
}
