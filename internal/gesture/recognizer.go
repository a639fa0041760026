/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package gesture classifies a single-contact pointer sequence on a card
// surface as a click or a directional swipe and drives the card's live
// feedback (translation, shrink, progress fill and indicator direction).
//
// A Recognizer is not safe for concurrent use; call it from the UI goroutine.
package gesture

import (
	"fmt"
	"log/slog"
	"time"

	"blockviewer/internal/geom"
	"blockviewer/internal/listen"
	applog "blockviewer/internal/log"
	"blockviewer/internal/sched"
)

const (
	// ClickDuration is how long a contact may last and still count as a click.
	ClickDuration = 200 * time.Millisecond
	// SlopDistance is the movement (per axis, px) a click may have.
	SlopDistance float32 = 10
	// TriggerDistance must be exceeded (strictly) to commit a swipe.
	TriggerDistance float32 = 100
	// HintDelay is how long an undecided drag waits before the hint shrink.
	HintDelay = 250 * time.Millisecond
	// HintScale is the card scale of the hint animation.
	HintScale float32 = 0.9

	shrinkDivisor float32 = 200
	minCardScale  float32 = 0.5
)

// Direction names a swipe outcome. Left and Right are the neighbours the
// swipe navigates to: a rightward drag reveals the left neighbour.
type Direction int

const (
	DirNone Direction = iota
	DirLeft
	DirRight
	DirUp
	DirDown
)

func (d Direction) String() string {
	switch d {
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	default:
		return "none"
	}
}

// Axis is the axis a session is locked to.
type Axis int

const (
	AxisNone Axis = iota
	AxisHorizontal
	AxisVertical
)

func (a Axis) String() string {
	switch a {
	case AxisHorizontal:
		return "horizontal"
	case AxisVertical:
		return "vertical"
	default:
		return "none"
	}
}

// Callbacks are the hooks of a swipeable surface. A nil directional callback
// means the direction is not registered; an axis is enabled when either of
// its directions is registered.
type Callbacks struct {
	OnSwipeLeft  func()
	OnSwipeRight func()
	OnSwipeUp    func()
	OnSwipeDown  func()
	// OnSwipeStart fires once per contact sequence, when the contact has
	// outlived ClickDuration while moving.
	OnSwipeStart func()
	// OnSwipeEnd fires exactly once per contact sequence, whatever the outcome.
	OnSwipeEnd func()
}

func (c Callbacks) horizontal() bool { return c.OnSwipeLeft != nil || c.OnSwipeRight != nil }
func (c Callbacks) vertical() bool   { return c.OnSwipeUp != nil || c.OnSwipeDown != nil }

// For returns the callback registered for d, or nil.
func (c Callbacks) For(d Direction) func() {
	switch d {
	case DirLeft:
		return c.OnSwipeLeft
	case DirRight:
		return c.OnSwipeRight
	case DirUp:
		return c.OnSwipeUp
	case DirDown:
		return c.OnSwipeDown
	}
	return nil
}

// CardTransform is the visual transform applied to the card surface.
type CardTransform struct {
	TranslateX float32
	TranslateY float32
	Scale      float32
}

// IdentityCard is the resting transform.
var IdentityCard = CardTransform{Scale: 1}

// CSS renders the transform as a CSS transform value.
func (c CardTransform) CSS() string {
	return fmt.Sprintf("translateX(%gpx) translateY(%gpx) scale(%g)",
		geom.FloatRound(c.TranslateX, 2), geom.FloatRound(c.TranslateY, 2), geom.FloatRound(c.Scale, 3))
}

// State is what the rendering adapter draws.
type State struct {
	Card           CardTransform
	HorizontalFill float32
	VerticalFill   float32
	// Direction is the outcome the current drag points at, used to fade in
	// the matching edge indicator.
	Direction Direction
	// Swiping is true between OnSwipeStart and the end of the sequence.
	Swiping bool
}

func identityState() State { return State{Card: IdentityCard} }

// Session is the live contact sequence.
type Session struct {
	Start     geom.Pt
	Current   geom.Pt
	StartTime time.Time
	AxisLock  Axis

	swipeStarted bool
	suspended    bool
	hint         sched.Task
}

// Suspended reports whether a second contact took the sequence over.
func (s *Session) Suspended() bool { return s.suspended }

// Kind classifies how a sequence ended.
type Kind int

const (
	KindNone Kind = iota
	KindClick
	KindSwipe
	KindSuspended
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindClick:
		return "click"
	case KindSwipe:
		return "swipe"
	case KindSuspended:
		return "suspended"
	case KindCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// Result reports the classification of a finished sequence and which
// directional callback, if any, fired.
type Result struct {
	Kind      Kind
	Committed Direction
}

// Recognizer turns contact events into swipe outcomes.
type Recognizer struct {
	cb       Callbacks
	clock    sched.Scheduler
	log      *slog.Logger
	surface  geom.Rect
	viewport geom.Size

	session *Session
	state   State
	subs    listen.Hub[State]
	closed  bool
}

// New returns a recognizer using s for time and the hint timer.
func New(cb Callbacks, s sched.Scheduler) *Recognizer {
	return &Recognizer{
		cb:    cb,
		clock: s,
		log:   applog.WithComponent("gesture"),
		state: identityState(),
	}
}

// SetCallbacks replaces the registered callbacks.
func (r *Recognizer) SetCallbacks(cb Callbacks) { r.cb = cb }

// Callbacks returns the registered callbacks.
func (r *Recognizer) Callbacks() Callbacks { return r.cb }

// SetSurface records the card's on-screen bounds. An empty rect means the
// surface is not mounted and move/click handling no-ops.
func (r *Recognizer) SetSurface(b geom.Rect) { r.surface = b }

// SetViewport records the window size; its aspect ratio weighs the axis lock.
func (r *Recognizer) SetViewport(s geom.Size) { r.viewport = s }

// Subscribe registers fn for state changes and returns its remover.
func (r *Recognizer) Subscribe(fn func(State)) func() { return r.subs.Add(fn) }

// State returns the current presentation state.
func (r *Recognizer) State() State { return r.state }

// Active reports whether a contact sequence is live.
func (r *Recognizer) Active() bool { return r.session != nil }

// Session returns a copy of the live session.
func (r *Recognizer) Session() (Session, bool) {
	if r.session == nil {
		return Session{}, false
	}
	return *r.session, true
}

// Begin starts a contact sequence at p. A second Begin while a sequence is
// live is ignored; multi-touch is reported through Suspend.
func (r *Recognizer) Begin(p geom.Pt) {
	if r.closed || r.session != nil {
		return
	}
	r.session = &Session{Start: p, Current: p, StartTime: r.clock.Now()}
}

// Move follows the contact to p.
func (r *Recognizer) Move(p geom.Pt) {
	s := r.session
	if r.closed || s == nil || s.suspended || r.surface.Empty() {
		return
	}
	s.Current = p
	d := p.Sub(s.Start)
	adx, ady := geom.Abs(d.X), geom.Abs(d.Y)

	notClicking := r.clock.Now().Sub(s.StartTime) > ClickDuration
	if notClicking && !s.swipeStarted {
		s.swipeStarted = true
		r.state.Swiping = true
		if r.cb.OnSwipeStart != nil {
			r.cb.OnSwipeStart()
		}
		if r.session != s {
			return
		}
	}

	switch {
	case ady > adx && r.cb.vertical():
		r.cancelHint(s)
		r.state.Card = CardTransform{TranslateY: d.Y, Scale: shrink(ady)}
		r.state.VerticalFill = ady
	case adx > ady && r.cb.horizontal():
		r.cancelHint(s)
		r.state.Card = CardTransform{TranslateX: d.X, Scale: shrink(adx)}
		r.state.HorizontalFill = adx
	case notClicking && s.hint == nil:
		s.hint = r.clock.After(HintDelay, func() {
			if r.closed || r.session != s {
				return
			}
			r.state.Card = CardTransform{Scale: HintScale}
			r.notify()
		})
	}

	s.AxisLock = r.axisLock(adx, ady)
	r.state.Direction = r.directionFor(s.AxisLock, d)
	r.notify()
}

// End finishes the sequence with the contact released at p.
func (r *Recognizer) End(p geom.Pt) Result {
	s := r.session
	if r.closed || s == nil {
		return Result{}
	}
	r.cancelHint(s)
	r.session = nil
	s.Current = p
	d := p.Sub(s.Start)
	adx, ady := geom.Abs(d.X), geom.Abs(d.Y)
	elapsed := r.clock.Now().Sub(s.StartTime)

	var res Result
	switch {
	case s.suspended:
		res.Kind = KindSuspended
		r.resetCard()
	case adx < SlopDistance && ady < SlopDistance && elapsed < ClickDuration:
		res.Kind = KindClick
		res.Committed = r.fire(r.clickDirection(p))
	default:
		res.Kind = KindSwipe
		res.Committed = r.fire(r.swipeDirection(d, adx, ady))
	}

	r.state.Swiping = false
	r.state.Direction = DirNone
	if res.Committed != DirNone {
		r.log.Debug("swipe committed", slog.String("kind", res.Kind.String()), slog.String("dir", res.Committed.String()))
	}
	if r.cb.OnSwipeEnd != nil {
		r.cb.OnSwipeEnd()
	}
	r.notify()
	return res
}

// Suspend hands the live sequence over to multi-touch handling: no
// directional callback will fire for it and the card returns to rest.
func (r *Recognizer) Suspend() {
	s := r.session
	if r.closed || s == nil || s.suspended {
		return
	}
	s.suspended = true
	r.cancelHint(s)
	r.resetCard()
	r.notify()
}

// Cancel aborts the live sequence (contact lost). The card returns to rest
// and OnSwipeEnd fires once.
func (r *Recognizer) Cancel() Result {
	s := r.session
	if r.closed || s == nil {
		return Result{}
	}
	r.cancelHint(s)
	r.session = nil
	r.resetCard()
	r.state.Swiping = false
	if r.cb.OnSwipeEnd != nil {
		r.cb.OnSwipeEnd()
	}
	r.notify()
	return Result{Kind: KindCancelled}
}

// Reset returns the card to rest and clears readouts. It does not end a live
// sequence. Calling it repeatedly yields the same state.
func (r *Recognizer) Reset() {
	if r.closed {
		return
	}
	if r.session != nil {
		r.cancelHint(r.session)
	}
	r.resetCard()
	r.notify()
}

// Close releases the recognizer: the pending hint is cancelled, the live
// sequence dropped and no further state is published.
func (r *Recognizer) Close() {
	if r.closed {
		return
	}
	if r.session != nil {
		r.cancelHint(r.session)
		r.session = nil
	}
	r.closed = true
}

func (r *Recognizer) resetCard() {
	swiping := r.state.Swiping
	r.state = identityState()
	r.state.Swiping = swiping && r.session != nil
}

func (r *Recognizer) cancelHint(s *Session) {
	if s.hint != nil {
		s.hint.Cancel()
	}
}

// fire calls the callback for d when registered, otherwise resets the card.
func (r *Recognizer) fire(d Direction) Direction {
	if fn := r.cb.For(d); fn != nil {
		fn()
		return d
	}
	r.resetCard()
	return DirNone
}

func (r *Recognizer) clickDirection(p geom.Pt) Direction {
	if r.surface.Empty() {
		return DirNone
	}
	cx := r.surface.Center().X
	switch {
	case p.X < cx:
		return DirLeft
	case p.X > cx:
		return DirRight
	}
	return DirNone
}

func (r *Recognizer) swipeDirection(d geom.Pt, adx, ady float32) Direction {
	switch {
	case adx > ady && r.cb.horizontal():
		if d.X > TriggerDistance {
			return DirLeft
		}
		if d.X < -TriggerDistance {
			return DirRight
		}
	case ady > adx && r.cb.vertical():
		if d.Y > TriggerDistance {
			return DirDown
		}
		if d.Y < -TriggerDistance {
			return DirUp
		}
	}
	return DirNone
}

// axisLock weighs the deltas by the viewport aspect ratio so a wide window
// needs proportionally more horizontal travel to lock horizontally.
func (r *Recognizer) axisLock(adx, ady float32) Axis {
	ratio := r.viewport.Aspect()
	switch {
	case adx > ady*ratio && r.cb.horizontal():
		return AxisHorizontal
	case ady > adx*ratio && r.cb.vertical():
		return AxisVertical
	}
	return AxisNone
}

func (r *Recognizer) directionFor(a Axis, d geom.Pt) Direction {
	switch a {
	case AxisHorizontal:
		if d.X > 0 {
			return DirLeft
		}
		return DirRight
	case AxisVertical:
		if d.Y > 0 {
			return DirDown
		}
		return DirUp
	}
	return DirNone
}

func (r *Recognizer) notify() {
	if r.closed {
		return
	}
	r.subs.Emit(r.state)
}

func shrink(change float32) float32 {
	s := 1 - change/shrinkDivisor
	if s < minCardScale {
		return minCardScale
	}
	return s
}
