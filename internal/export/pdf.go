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
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"readalong/internal/display"
	"readalong/internal/version"
)

// PDFOptions controls transcript layout. Units are points.
type PDFOptions struct {
	PageSize   string  // gofpdf size name, "A4" when empty
	FontSize   float64 // body size, 11 when zero
	Timestamps bool    // print each line's start time in the margin
}

// TranscriptPDF writes res as a readable script: one paragraph per display
// line, the character in bold, cues in italics. Built-in Helvetica keeps the
// file small; text is translated to cp1252.
func TranscriptPDF(res display.Result, title, outPath string, opt PDFOptions) error {
	if opt.PageSize == "" {
		opt.PageSize = "A4"
	}
	if opt.FontSize <= 0 {
		opt.FontSize = 11
	}
	lh := opt.FontSize * 1.4

	pdf := gofpdf.New("P", "pt", opt.PageSize, "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.SetCreator("readalong "+version.String(), true)
	pdf.SetMargins(72, 56, 56)
	pdf.SetAutoPageBreak(true, 56)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-40)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	if strings.TrimSpace(title) != "" {
		pdf.SetFont("Helvetica", "B", opt.FontSize+6)
		pdf.MultiCell(0, (opt.FontSize+6)*1.3, tr(title), "", "L", false)
		pdf.Ln(opt.FontSize)
	}

	left, _, _, _ := pdf.GetMargins()
	for _, tl := range timeLines(res) {
		if opt.Timestamps && tl.ok {
			y := pdf.GetY()
			pdf.SetFont("Helvetica", "", 7)
			pdf.SetTextColor(128, 128, 128)
			pdf.SetXY(left-60, y)
			pdf.CellFormat(52, lh, stamp(tl.Start, ".")[3:8], "", 0, "R", false, 0, "")
			pdf.SetXY(left, y)
		}
		pdf.SetTextColor(0, 0, 0)
		if tl.Character != "" && !tl.IsNarrator {
			pdf.SetFont("Helvetica", "B", opt.FontSize)
			pdf.Write(lh, tr(tl.Character+": "))
		}
		for i, p := range tl.Parts {
			sep := ""
			if i > 0 {
				sep = " "
			}
			switch p := p.(type) {
			case display.TextSpan:
				style := ""
				if tl.IsNarrator {
					style = "I"
				}
				pdf.SetFont("Helvetica", style, opt.FontSize)
				pdf.Write(lh, tr(sep+strings.Join(p.Tokens, " ")))
			case display.CueSpan:
				pdf.SetFont("Helvetica", "I", opt.FontSize)
				pdf.SetTextColor(96, 96, 96)
				pdf.Write(lh, tr(sep+"("+p.Display+")"))
				pdf.SetTextColor(0, 0, 0)
			}
		}
		pdf.Ln(lh * 1.3)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("layout pdf: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
