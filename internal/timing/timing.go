/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package timing decodes the word-timing documents and job manifests produced
// by the synthesis service. Documents are validated against embedded JSON
// schemas before decoding.
package timing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// WordTiming is one aligned word: its text as recognised by the alignment
// engine and its interval in seconds. Index is the word's position in the
// linearized script.
type WordTiming struct {
	Word  string
	Start float64
	End   float64
	Index int
}

// wireTiming is the compact form the service emits.
type wireTiming struct {
	W   string  `json:"w"`
	S   float64 `json:"s"`
	E   float64 `json:"e"`
	Idx int     `json:"idx"`
}

// longTiming is the descriptive form accepted from other producers.
type longTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Index int     `json:"index"`
}

// UnmarshalJSON accepts both {"w","s","e","idx"} and {"word","start","end","index"}.
func (w *WordTiming) UnmarshalJSON(b []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if _, ok := probe["word"]; ok {
		var lt longTiming
		if err := json.Unmarshal(b, &lt); err != nil {
			return err
		}
		*w = WordTiming{Word: lt.Word, Start: lt.Start, End: lt.End, Index: lt.Index}
		return nil
	}
	var wt wireTiming
	if err := json.Unmarshal(b, &wt); err != nil {
		return err
	}
	*w = WordTiming{Word: wt.W, Start: wt.S, End: wt.E, Index: wt.Idx}
	return nil
}

// MarshalJSON writes the compact service form.
func (w WordTiming) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTiming{W: w.Word, S: w.Start, E: w.End, Idx: w.Index})
}

// Document is the timing document envelope: {"words": [...]}.
type Document struct {
	Words []WordTiming `json:"words"`
}

// Decode reads a timing document from r. Both the {"words": [...]} envelope
// and a bare array are accepted. The result is ordered by Index.
func Decode(r io.Reader) ([]WordTiming, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read timings: %w", err)
	}
	return Parse(b)
}

// Parse is Decode over an in-memory document.
func Parse(b []byte) ([]WordTiming, error) {
	b = envelope(b)
	if err := validate(timingsSchema, b); err != nil {
		return nil, fmt.Errorf("timings: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode timings: %w", err)
	}
	sort.SliceStable(doc.Words, func(i, j int) bool { return doc.Words[i].Index < doc.Words[j].Index })
	return doc.Words, nil
}

// Encode writes words as a {"words": [...]} document.
func Encode(w io.Writer, words []WordTiming) error {
	if words == nil {
		words = []WordTiming{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(Document{Words: words})
}

// envelope wraps a bare array into {"words": ...}.
func envelope(b []byte) []byte {
	t := bytes.TrimSpace(b)
	if len(t) > 0 && t[0] == '[' {
		out := make([]byte, 0, len(t)+12)
		out = append(out, `{"words":`...)
		out = append(out, t...)
		return append(out, '}')
	}
	return t
}

// Manifest is what a reader needs to render and play a finished job.
type Manifest struct {
	AudioURL   string `json:"audioUrl"`
	TimingsURL string `json:"timingsUrl"`
	Script     string `json:"script"`
}

// ParseManifest validates and decodes a manifest document.
func ParseManifest(b []byte) (Manifest, error) {
	if err := validate(manifestSchema, b); err != nil {
		return Manifest{}, fmt.Errorf("manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
