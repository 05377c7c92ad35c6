/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"readalong/internal/display"
	"readalong/internal/timing"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls a multi-format export of one job.
//
// Files are named <Base>.<ext> inside OutDir, which is created if needed.
// Formats: pdf, vtt, srt, timings (the word timings as JSON).
type BatchOptions struct {
	Preset  PresetName
	Formats []string // empty means preset defaults
	OutDir  string
	Base    string // file name stem, "transcript" when empty
	Title   string
	// Timings are written for the "timings" format; Result.Words alone loses
	// the original indexes.
	Timings []timing.WordTiming
}

// Batch runs the exports selected by opt and returns the written paths.
func Batch(res display.Result, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	base := opt.Base
	if base == "" {
		base = "transcript"
	}
	if err := os.MkdirAll(opt.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}

	var written []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		var err error
		switch f {
		case "pdf":
			out := filepath.Join(opt.OutDir, base+".pdf")
			err = TranscriptPDF(res, opt.Title, out, PDFOptions{Timestamps: opt.Preset == PresetPrint})
			if err == nil {
				written = append(written, out)
			}
		case "vtt":
			err = writeFile(filepath.Join(opt.OutDir, base+".vtt"), &written, func(w io.Writer) error { return WebVTT(w, res) })
		case "srt":
			err = writeFile(filepath.Join(opt.OutDir, base+".srt"), &written, func(w io.Writer) error { return SRT(w, res) })
		case "timings":
			err = writeFile(filepath.Join(opt.OutDir, base+".timings.json"), &written, func(w io.Writer) error { return timing.Encode(w, opt.Timings) })
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
		if err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
	}
	return written, nil
}

func writeFile(path string, written *[]string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	*written = append(*written, path)
	return nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"vtt", "timings"}
	case PresetPrint:
		return []string{"pdf"}
	default:
		return []string{"pdf", "vtt"}
	}
}
