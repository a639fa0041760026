/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package zoom maintains the scale and pan of a zoomable image from three
// input channels: two-finger pinch, mouse wheel and explicit buttons.
// Single-contact input is never consumed here; it belongs to the swipe
// recognizer.
package zoom

import (
	"fmt"
	"log/slog"
	"time"

	"blockviewer/internal/geom"
	"blockviewer/internal/listen"
	applog "blockviewer/internal/log"
	"blockviewer/internal/sched"
)

// MinimapThreshold is the relative scale above which the image counts as
// zoomed: the minimap shows and panning is allowed.
const MinimapThreshold float32 = 1

// Policy holds the clamp bounds and step sizes of a controller.
type Policy struct {
	MinScale    float32
	MaxScale    float32
	FillToCover bool
	WheelStep   float32
	ButtonStep  float32
	Debounce    time.Duration
}

// FillPolicy is the canonical policy: the image starts scaled to cover its
// container and never zooms out past that.
func FillPolicy() Policy {
	return Policy{MinScale: 1, MaxScale: 3, FillToCover: true, WheelStep: 0.1, ButtonStep: 0.2, Debounce: 150 * time.Millisecond}
}

// FreePolicy lets the image zoom out to half its fitted size.
func FreePolicy() Policy {
	return Policy{MinScale: 0.5, MaxScale: 3, WheelStep: 0.1, ButtonStep: 0.2, Debounce: 150 * time.Millisecond}
}

// PolicyFor maps a configured zoom mode to a policy. Unknown modes get the
// fill policy; maxScale > 0 overrides the upper bound.
func PolicyFor(mode string, maxScale float32) Policy {
	p := FillPolicy()
	if mode == "free" {
		p = FreePolicy()
	}
	if maxScale > p.MinScale {
		p.MaxScale = maxScale
	}
	return p
}

// Transform is the viewport transform of the displayed image.
type Transform struct {
	// Scale is the zoom level relative to Base, bounded by the policy.
	Scale float32
	// PanX and PanY are the translation in screen pixels, center origin.
	PanX, PanY float32
	// Base is the fill scale computed at image load (1 without fill).
	Base float32
}

// Rendered is the scale applied to the natural image size.
func (t Transform) Rendered() float32 { return t.Base * t.Scale }

// Zoomed reports whether the image is zoomed past its fitted size.
func (t Transform) Zoomed() bool { return t.Scale > MinimapThreshold }

// CSS renders the transform as the CSS transform value of the image element.
func (t Transform) CSS() string {
	return fmt.Sprintf("translateX(%gpx) translateY(%gpx) scale(%g)",
		geom.FloatRound(t.PanX, 2), geom.FloatRound(t.PanY, 2), geom.FloatRound(t.Rendered(), 3))
}

type pinch struct {
	initialDistance float32
	baseline        float32
	anchor          geom.Pt
}

// Controller is the zoom state machine. Not safe for concurrent use.
type Controller struct {
	policy Policy
	clock  sched.Scheduler
	log    *slog.Logger

	t         Transform
	container geom.Rect
	natural   geom.Size

	pinch         *pinch
	scrollZooming bool
	debounce      sched.Task

	subs   listen.Hub[Transform]
	closed bool
}

// New returns a controller at the policy's starting scale.
func New(p Policy, s sched.Scheduler) *Controller {
	c := &Controller{policy: p, clock: s, log: applog.WithComponent("zoom")}
	c.t = c.identity(1)
	return c
}

func (c *Controller) identity(base float32) Transform {
	return Transform{Scale: geom.Clamp(1, c.policy.MinScale, c.policy.MaxScale), Base: base}
}

func (c *Controller) Policy() Policy       { return c.policy }
func (c *Controller) Transform() Transform { return c.t }
func (c *Controller) Floor() float32       { return c.policy.MinScale }
func (c *Controller) Natural() geom.Size   { return c.natural }

// Pinching reports whether a two-finger pinch is in progress.
func (c *Controller) Pinching() bool { return c.pinch != nil }

// ScrollZooming is true from a wheel tick until the debounce elapses.
func (c *Controller) ScrollZooming() bool { return c.scrollZooming }

// Subscribe registers fn for transform changes and returns its remover.
func (c *Controller) Subscribe(fn func(Transform)) func() { return c.subs.Add(fn) }

// SetContainer records the on-screen bounds of the image container. Wheel
// anchoring needs it; an empty rect means the surface is not mounted.
func (c *Controller) SetContainer(r geom.Rect) { c.container = r }

// ImageLoaded records the natural image size and resets the transform,
// computing the fill scale when the policy asks for it.
func (c *Controller) ImageLoaded(natural, container geom.Size) {
	if c.closed {
		return
	}
	c.natural = natural
	base := float32(1)
	if c.policy.FillToCover && !natural.IsZero() && !container.IsZero() {
		base = max(container.W/natural.W, container.H/natural.H)
	}
	c.cancelDebounce()
	c.pinch = nil
	c.t = c.identity(base)
	c.log.Debug("image loaded", slog.Float64("base", float64(base)))
	c.notify()
}

// TouchStart begins a pinch when exactly two contacts are down. It reports
// whether the event was consumed.
func (c *Controller) TouchStart(touches []geom.Pt) bool {
	if c.closed || len(touches) != 2 {
		return false
	}
	c.pinch = &pinch{
		initialDistance: geom.Distance(touches[0], touches[1]),
		baseline:        c.t.Scale,
		anchor:          geom.Midpoint(touches[0], touches[1]),
	}
	c.notify()
	return true
}

// TouchMove scales by the distance ratio against the pinch baseline and
// pans by the midpoint movement since the previous sample.
func (c *Controller) TouchMove(touches []geom.Pt) bool {
	if c.closed || len(touches) != 2 || c.pinch == nil {
		return false
	}
	p := c.pinch
	mid := geom.Midpoint(touches[0], touches[1])
	delta := mid.Sub(p.anchor)
	p.anchor = mid
	if p.initialDistance > 0 {
		ratio := geom.Distance(touches[0], touches[1]) / p.initialDistance
		c.t.Scale = c.clamp(p.baseline * ratio)
	}
	if c.t.Zoomed() {
		c.t.PanX += delta.X
		c.t.PanY += delta.Y
	}
	c.recenter()
	c.notify()
	return true
}

// TouchEnd ends the pinch once fewer than two contacts remain. The zoom
// level is kept.
func (c *Controller) TouchEnd(remaining int) bool {
	if c.closed || c.pinch == nil || remaining >= 2 {
		return false
	}
	c.pinch = nil
	c.notify()
	return true
}

// Wheel applies one wheel tick at cursor. Negative deltaY (scroll up)
// zooms in. The event is consumed whenever the surface is mounted, even
// when it changes nothing.
func (c *Controller) Wheel(deltaY float32, cursor geom.Pt) bool {
	if c.closed || c.container.Empty() {
		return false
	}
	if c.pinch != nil || deltaY == 0 {
		return true
	}
	step := c.policy.WheelStep
	if deltaY > 0 {
		step = -step
	}
	next := c.clamp(c.t.Scale + step)
	if next == c.t.Scale {
		return true
	}
	c.t.Scale = next
	off := cursor.Sub(c.container.Center())
	c.t.PanX = off.X * (next - 1)
	c.t.PanY = off.Y * (next - 1)
	c.recenter()

	c.scrollZooming = true
	c.cancelDebounce()
	c.debounce = c.clock.After(c.policy.Debounce, func() {
		if c.closed {
			return
		}
		c.debounce = nil
		c.scrollZooming = false
		c.notify()
	})
	c.notify()
	return true
}

// ZoomIn steps the scale up by the button step.
func (c *Controller) ZoomIn() { c.step(c.policy.ButtonStep) }

// ZoomOut steps the scale down; leaving the zoomed range recenters the image.
func (c *Controller) ZoomOut() { c.step(-c.policy.ButtonStep) }

func (c *Controller) step(d float32) {
	if c.closed {
		return
	}
	next := c.clamp(c.t.Scale + d)
	if next == c.t.Scale {
		return
	}
	c.t.Scale = next
	c.recenter()
	c.notify()
}

// recenter drops the pan once the image is no longer zoomed. Pan is only
// reachable while zoomed, so an unzoomed image must sit centered.
func (c *Controller) recenter() {
	if !c.t.Zoomed() {
		c.t.PanX, c.t.PanY = 0, 0
	}
}

// PanBy moves the image by (dx, dy) screen pixels. Only a zoomed image pans.
func (c *Controller) PanBy(dx, dy float32) {
	if c.closed || !c.t.Zoomed() {
		return
	}
	c.t.PanX += dx
	c.t.PanY += dy
	c.notify()
}

// SetPan replaces the pan. Only a zoomed image pans.
func (c *Controller) SetPan(x, y float32) {
	if c.closed || !c.t.Zoomed() {
		return
	}
	c.t.PanX, c.t.PanY = x, y
	c.notify()
}

// Reset returns to the starting transform, keeping the fill scale of the
// loaded image, and clears the pinch and scroll flags.
func (c *Controller) Reset() {
	if c.closed {
		return
	}
	c.cancelDebounce()
	c.pinch = nil
	c.scrollZooming = false
	c.t = c.identity(c.t.Base)
	c.notify()
}

// Close cancels the debounce and stops all further transform writes.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.cancelDebounce()
	c.pinch = nil
	c.closed = true
}

func (c *Controller) cancelDebounce() {
	if c.debounce != nil {
		c.debounce.Cancel()
		c.debounce = nil
	}
}

// clamp bounds s to the policy and rounds away float drift from repeated steps.
func (c *Controller) clamp(s float32) float32 {
	return geom.Clamp(geom.FloatRound(s, 3), c.policy.MinScale, c.policy.MaxScale)
}

func (c *Controller) notify() {
	if c.closed {
		return
	}
	c.subs.Emit(c.t)
}
