/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"readalong/internal/display"
	"readalong/internal/follow"
	"readalong/internal/playback"
	"readalong/internal/reader"
)

const (
	rowHeight = 20.0
	charWidth = 8.0
)

// gridViewport lays display lines out on a fixed character grid, wrapping at
// cols. Boxes are in content coordinates; the container sits at the origin.
type gridViewport struct {
	cols, rows int
	boxes      []follow.Rect
	contentH   float64
	top        float64
	moved      bool // a programmatic scroll has not been reported yet
}

func newGridViewport(cols, rows int) *gridViewport {
	return &gridViewport{cols: max(cols, 20), rows: max(rows, 2)}
}

func (v *gridViewport) layout(res display.Result) {
	v.boxes = make([]follow.Rect, len(res.Words))
	row, x := 0, 0
	place := func(w int) (int, int) {
		if x > 0 && x+w > v.cols {
			row++
			x = 2
		}
		at := x
		x += w + 1
		return row, at
	}
	for _, ln := range res.Lines {
		x = 0
		if ln.Character != "" {
			x = utf8.RuneCountInString(ln.Character) + 2
		}
		for _, p := range ln.Parts {
			switch p := p.(type) {
			case display.CueSpan:
				place(utf8.RuneCountInString(p.Display) + 2)
			case display.TextSpan:
				for k, tok := range p.Tokens {
					w := utf8.RuneCountInString(tok)
					r, at := place(w)
					if i := p.StartIndex + k; i < len(v.boxes) {
						v.boxes[i] = follow.R(float64(at)*charWidth, float64(r)*rowHeight, float64(w)*charWidth, rowHeight)
					}
				}
			}
		}
		row++
	}
	v.contentH = float64(row) * rowHeight
	v.top = 0
}

func (v *gridViewport) TokenBounds(index int) (follow.Rect, bool) {
	if index < 0 || index >= len(v.boxes) {
		return follow.Rect{}, false
	}
	b := v.boxes[index]
	b.Y -= v.top
	return b, true
}

func (v *gridViewport) ContainerBounds() follow.Rect {
	return follow.R(0, 0, float64(v.cols)*charWidth, float64(v.rows)*rowHeight)
}

func (v *gridViewport) ScrollTop() float64 { return v.top }

func (v *gridViewport) ScrollTo(top float64, _ bool) {
	v.top = v.clamp(top)
	v.moved = true
}

func (v *gridViewport) clamp(top float64) float64 {
	limit := math.Max(0, v.contentH-float64(v.rows)*rowHeight)
	return math.Min(math.Max(top, 0), limit)
}

// takeScroll reports whether the viewport moved since the last call, the way
// a scroll event fires after a programmatic scroll.
func (v *gridViewport) takeScroll() bool {
	m := v.moved
	v.moved = false
	return m
}

// simTransport is a clock standing in for an audio element.
type simTransport struct{ now float64 }

func (s *simTransport) Seek(sec float64) { s.now = sec }

func parseTokenRef(s string) (playback.TokenRef, error) {
	f := strings.Split(s, ":")
	if len(f) != 3 {
		return playback.TokenRef{}, usageErrorf("token ref %q must be line:part:token", s)
	}
	var n [3]int
	for i, p := range f {
		v, err := strconv.Atoi(p)
		if err != nil {
			return playback.TokenRef{}, usageErrorf("token ref %q: %v", s, err)
		}
		n[i] = v
	}
	return playback.TokenRef{Line: n[0], Part: n[1], Token: n[2]}, nil
}

func clockString(t float64) string {
	ms := int(math.Round(math.Max(t, 0) * 1000))
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}

func (a *app) cmdPlay(ctx context.Context, args []string) error {
	fs := newFlags("play")
	step := fs.Float64("step", 0.25, "clock step in seconds")
	from := fs.Float64("from", 0, "start time in seconds")
	realtime := fs.Bool("realtime", false, "advance the clock in real time")
	cols := fs.Int("cols", 72, "viewport width in characters")
	rows := fs.Int("rows", 8, "viewport height in rows")
	seek := fs.String("seek", "", "start by clicking the token at line:part:token")
	wheelAt := fs.Float64("wheel-at", -1, "simulate a user scroll at this time")
	resumeAt := fs.Float64("resume-at", -1, "press resume at this time")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *step <= 0 {
		return usageErrorf("play: -step must be positive")
	}
	doc, err := a.loadDocument(ctx, fs.Args())
	if err != nil {
		return err
	}

	vp := newGridViewport(*cols, *rows)
	tr := &simTransport{now: *from}
	sess := reader.NewSession(vp, a.followConfig(), tr)
	res := sess.Load(doc.JobID, doc.Script, doc.Timings)
	vp.layout(res)
	sess.OnResize()
	if len(res.Words) == 0 {
		a.printf("nothing to play\n")
		return nil
	}

	overlays := 0
	unsub := sess.Subscribe(func(follow.Overlay) { overlays++ })
	defer unsub()

	if *seek != "" {
		ref, err := parseTokenRef(*seek)
		if err != nil {
			return err
		}
		sec, ok := sess.OnTokenActivated(ref)
		if !ok {
			return fmt.Errorf("token %s is not playable", *seek)
		}
		a.printf("seek %s -> %s\n", *seek, clockString(sec))
	}

	end := res.Words[len(res.Words)-1].EndTime
	var tick <-chan time.Time
	if *realtime {
		tk := time.NewTicker(time.Duration(*step * float64(time.Second)))
		defer tk.Stop()
		tick = tk.C
	}
	syncScroll := func() {
		if vp.takeScroll() {
			sess.OnScroll(vp.ScrollTop())
		}
	}

	last := -1
	wheelDone, resumeDone := *wheelAt < 0, *resumeAt < 0
	for t := tr.now; t <= end+*step; t = tr.now {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if !wheelDone && t >= *wheelAt {
			wheelDone = true
			sess.OnWheel()
			vp.top = vp.clamp(vp.top + 3*rowHeight)
			sess.OnScroll(vp.top)
			a.printf("%s  -- user scroll, follow paused\n", clockString(t))
		}
		if !resumeDone && t >= *resumeAt {
			resumeDone = true
			sess.Resume()
			a.printf("%s  -- resume\n", clockString(t))
		}

		idx, ok := sess.OnTime(t)
		syncScroll()
		if ok && idx != last {
			last = idx
			ln := res.LineOf(idx)
			if ln >= 0 {
				note := ""
				if !sess.Snapshot().Follow.AutoFollow {
					note = " (paused)"
				}
				a.printf("%s  top=%-4.0f %s%s\n", clockString(t), vp.ScrollTop(), renderLine(res.Lines[ln], res, idx), note)
			}
		}
		tr.now = t + *step
	}
	st := sess.Snapshot().Follow
	a.printf("done: %d words, %d overlay updates, auto-follow %v\n", len(res.Words), overlays, st.AutoFollow)
	return nil
}
