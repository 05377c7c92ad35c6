/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */


package follow

import "math"

// Rect is an axis-aligned rectangle in CSS-style pixels, origin top-left.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Bottom() float64 { return r.Y + r.H }

// Overlay is the highlight rectangle drawn over the active token, relative to
// the scroll container's content box.
type Overlay struct {
	X, Y          float64
	Width, Height float64
	Visible       bool
	Label         string
}

// near reports whether o and p would render identically within tol pixels.
func (o Overlay) near(p Overlay, tol float64) bool {
	if o.Visible != p.Visible || o.Label != p.Label {
		return false
	}
	if !o.Visible {
		return true
	}
	return math.Abs(o.X-p.X) <= tol && math.Abs(o.Y-p.Y) <= tol &&
		math.Abs(o.Width-p.Width) <= tol && math.Abs(o.Height-p.Height) <= tol
}
