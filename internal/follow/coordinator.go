/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package follow keeps the active word in view while audio plays and tracks the
// highlight overlay drawn over it. It owns the auto-follow flag and decides
// when user input should suspend it.
package follow

import (
	"log/slog"
	"math"
	"slices"
	"time"

	applog "readalong/internal/log"
)

// Viewport is the rendering surface the coordinator drives. Bounds are in the
// same on-screen coordinate space for tokens and the container.
type Viewport interface {
	// TokenBounds returns the on-screen box of the word at index, if rendered.
	TokenBounds(index int) (Rect, bool)
	// ContainerBounds returns the on-screen box of the scroll container.
	ContainerBounds() Rect
	ScrollTop() float64
	// ScrollTo requests a scroll; smooth asks for an animated transition.
	ScrollTo(top float64, smooth bool)
}

// Config tunes the coordinator. Zero fields take the defaults.
type Config struct {
	// BandRatio places the active token's top this far down the container.
	BandRatio float64
	// Cooldown is how long scroll events after a programmatic scroll are
	// attributed to that scroll rather than to the user.
	Cooldown time.Duration
	// ScrollThreshold is the scroll delta, in pixels, that counts as user intent.
	ScrollThreshold float64
	// OverlayTolerance suppresses overlay updates smaller than this, in pixels.
	OverlayTolerance float64

	Now   func() time.Time
	Label func(index int) string
}

const (
	DefaultBandRatio        = 0.35
	DefaultCooldown         = 600 * time.Millisecond
	DefaultScrollThreshold  = 4
	DefaultOverlayTolerance = 0.5
)

func (c Config) withDefaults() Config {
	if c.BandRatio <= 0 || c.BandRatio >= 1 {
		c.BandRatio = DefaultBandRatio
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.ScrollThreshold <= 0 {
		c.ScrollThreshold = DefaultScrollThreshold
	}
	if c.OverlayTolerance <= 0 {
		c.OverlayTolerance = DefaultOverlayTolerance
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// State is a read-only view of the coordinator.
type State struct {
	AutoFollow bool
	// Active is the active word index, -1 when none.
	Active int
	// LastAutoScrolled is the index last scrolled into view, -1 when none.
	LastAutoScrolled int
	Overlay          Overlay
}

// Coordinator is the single owner of follow state. It is not safe for
// concurrent use; callers serialize events.
type Coordinator struct {
	vp  Viewport
	cfg Config
	log *slog.Logger

	autoFollow       bool
	active           int
	lastAutoScrolled int
	lastScrollTop    float64
	cooldownUntil    time.Time
	overlay          Overlay

	subs   []subscriber // delivery order is subscription order
	nextID int
}

type subscriber struct {
	id int
	fn func(Overlay)
}

func NewCoordinator(vp Viewport, cfg Config) *Coordinator {
	c := &Coordinator{
		vp:  vp,
		cfg: cfg.withDefaults(),
		log: applog.WithComponent("follow"),
	}
	c.reset()
	return c
}

func (c *Coordinator) reset() {
	c.autoFollow = true
	c.active = -1
	c.lastAutoScrolled = -1
	c.cooldownUntil = time.Time{}
	c.lastScrollTop = c.vp.ScrollTop()
}

// State returns a copy of the current state.
func (c *Coordinator) State() State {
	return State{
		AutoFollow:       c.autoFollow,
		Active:           c.active,
		LastAutoScrolled: c.lastAutoScrolled,
		Overlay:          c.overlay,
	}
}

// Subscribe registers fn for overlay changes and returns a function that
// removes it. Subscribers are called in the order they subscribed.
func (c *Coordinator) Subscribe(fn func(Overlay)) (unsubscribe func()) {
	id := c.nextID
	c.nextID++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return func() {
		c.subs = slices.DeleteFunc(c.subs, func(s subscriber) bool { return s.id == id })
	}
}

// SetActive records the resolved active index; found=false means no word is
// active. Unchanged input is a no-op.
func (c *Coordinator) SetActive(index int, found bool) {
	if !found {
		index = -1
	}
	if index == c.active {
		return
	}
	c.active = index
	if index >= 0 && c.autoFollow && index != c.lastAutoScrolled {
		c.scrollIntoBand(index)
	}
	c.refreshOverlay()
}

// OnScroll reports the container's new scroll position. Outside the
// cool-down window a change beyond the threshold suspends auto-follow.
func (c *Coordinator) OnScroll(scrollTop float64) {
	delta := math.Abs(scrollTop - c.lastScrollTop)
	c.lastScrollTop = scrollTop
	if c.autoFollow && delta > c.cfg.ScrollThreshold && !c.cfg.Now().Before(c.cooldownUntil) {
		c.suspend("scroll")
	}
	c.refreshOverlay()
}

func (c *Coordinator) OnResize() { c.refreshOverlay() }

func (c *Coordinator) OnWheel() { c.suspend("wheel") }

func (c *Coordinator) OnKeyNav() { c.suspend("key") }

// OnTouchStart suspends auto-follow unless the touch landed on the resume
// affordance.
func (c *Coordinator) OnTouchStart(onResume bool) {
	if onResume {
		return
	}
	c.suspend("touch")
}

// Resume re-enables auto-follow and re-centers on the active word.
func (c *Coordinator) Resume() {
	c.autoFollow = true
	if c.active >= 0 {
		c.scrollIntoBand(c.active)
	}
	c.refreshOverlay()
}

// Reset discards all state, as when a new job is loaded. Subscribers stay
// registered and see the overlay hidden.
func (c *Coordinator) Reset() {
	c.reset()
	c.refreshOverlay()
}

func (c *Coordinator) suspend(cause string) {
	if !c.autoFollow {
		return
	}
	c.autoFollow = false
	c.log.Debug("auto-follow suspended", slog.String("cause", cause))
}

func (c *Coordinator) scrollIntoBand(index int) {
	tb, ok := c.vp.TokenBounds(index)
	if !ok {
		return
	}
	cb := c.vp.ContainerBounds()
	top := c.vp.ScrollTop()
	target := math.Max(0, top+(tb.Y-cb.Y)-c.cfg.BandRatio*cb.H)
	c.lastAutoScrolled = index
	c.cooldownUntil = c.cfg.Now().Add(c.cfg.Cooldown)
	if math.Abs(target-top) < 0.5 {
		return
	}
	c.vp.ScrollTo(target, true)
}

func (c *Coordinator) refreshOverlay() {
	next := Overlay{}
	if c.active >= 0 {
		if tb, ok := c.vp.TokenBounds(c.active); ok {
			cb := c.vp.ContainerBounds()
			next = Overlay{
				X:       tb.X - cb.X,
				Y:       tb.Y - cb.Y + c.vp.ScrollTop(),
				Width:   tb.W,
				Height:  tb.H,
				Visible: true,
			}
			if c.cfg.Label != nil {
				next.Label = c.cfg.Label(c.active)
			}
		}
	}
	if next.near(c.overlay, c.cfg.OverlayTolerance) {
		return
	}
	c.overlay = next
	// A callback may unsubscribe; deliver to the set registered at publish time.
	for _, s := range slices.Clone(c.subs) {
		s.fn(next)
	}
}
