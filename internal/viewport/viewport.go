/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package viewport composes the swipe recognizer, the zoom controller and
// the minimap into one surface per displayed item. It routes raw input by
// contact count, keeps the interaction mode explicit and resets every
// piece of derived state when the displayed item changes.
//
// A Viewport is single-goroutine: call it from the UI goroutine only.
package viewport

import (
	"errors"
	"log/slog"

	"blockviewer/internal/geom"
	"blockviewer/internal/gesture"
	"blockviewer/internal/listen"
	applog "blockviewer/internal/log"
	"blockviewer/internal/minimap"
	"blockviewer/internal/ring"
	"blockviewer/internal/sched"
	"blockviewer/internal/zoom"
)

// Navigator is the navigation provider the viewport drives.
type Navigator interface {
	HasOrder() bool
	Previous() bool
	Next() bool
	Close()
}

// ErrNoScheduler is returned by New when Options carry no scheduler.
var ErrNoScheduler = errors.New("viewport: a scheduler is required")

// Options configure a Viewport.
type Options struct {
	// Policy defaults to zoom.FillPolicy.
	Policy zoom.Policy
	// Scheduler runs the hint and debounce timers. It is required and must
	// fire tasks on the goroutine that drives the viewport, e.g.
	// sched.NewReal(fyne.Do) or a sched.Manual in tests.
	Scheduler sched.Scheduler
	Icons     Icons
	// Callbacks override the navigation-derived swipe callbacks field by
	// field. OnSwipeStart and OnSwipeEnd are lifecycle hooks for the page.
	Callbacks gesture.Callbacks
	// OnZoomReset runs when an item change discards a zoomed transform.
	OnZoomReset func(scale float32)
	// OnMinimapDrag runs when an indicator drag ends.
	OnMinimapDrag func()
}

// Snapshot is everything the rendering adapter needs for one frame.
type Snapshot struct {
	Item       int64
	Mode       Mode
	Card       gesture.State
	Indicators [4]ring.Indicator
	Transform  zoom.Transform
	Minimap    minimap.State
	// Animate is false while a pinch or scroll zoom is live, so the
	// renderer applies transforms without easing.
	Animate bool
	Icons   Icons
}

// Viewport is the orchestrator of one card + zoomable image.
type Viewport struct {
	rec  *gesture.Recognizer
	zoom *zoom.Controller
	mini *minimap.Synchronizer
	nav  Navigator
	log  *slog.Logger

	icons Icons
	hooks Options
	dims  minimap.Dimensions
	mode  Mode
	item  int64

	scope   listen.Scope
	subs    listen.Hub[Snapshot]
	mounted bool
	closed  bool
}

// New builds a viewport driving nav. nav may be nil: only the callbacks in
// opts are then registered.
func New(nav Navigator, opts Options) (*Viewport, error) {
	if opts.Scheduler == nil {
		return nil, ErrNoScheduler
	}
	if opts.Policy.MaxScale == 0 {
		opts.Policy = zoom.FillPolicy()
	}
	v := &Viewport{
		nav:   nav,
		log:   applog.WithComponent("viewport"),
		icons: DefaultIcons().Override(opts.Icons),
		hooks: opts,
		mode:  Idle{},
	}
	v.rec = gesture.New(v.callbacks(opts.Callbacks), opts.Scheduler)
	v.zoom = zoom.New(opts.Policy, opts.Scheduler)
	v.rec.Subscribe(func(gesture.State) { v.publish() })
	v.zoom.Subscribe(func(zoom.Transform) {
		if _, ok := v.mode.(ScrollZooming); ok && !v.zoom.ScrollZooming() {
			v.mode = Idle{}
		}
		v.publish()
	})
	return v, nil
}

func (v *Viewport) callbacks(user gesture.Callbacks) gesture.Callbacks {
	cb := gesture.Callbacks{OnSwipeDown: v.Close}
	if v.nav != nil && v.nav.HasOrder() {
		cb.OnSwipeLeft = v.Previous
		cb.OnSwipeRight = v.Next
	}
	if user.OnSwipeLeft != nil {
		cb.OnSwipeLeft = user.OnSwipeLeft
	}
	if user.OnSwipeRight != nil {
		cb.OnSwipeRight = user.OnSwipeRight
	}
	if user.OnSwipeUp != nil {
		cb.OnSwipeUp = user.OnSwipeUp
	}
	if user.OnSwipeDown != nil {
		cb.OnSwipeDown = user.OnSwipeDown
	}
	cb.OnSwipeStart = user.OnSwipeStart
	cb.OnSwipeEnd = user.OnSwipeEnd
	return cb
}

func (v *Viewport) Recognizer() *gesture.Recognizer { return v.rec }
func (v *Viewport) Zoom() *zoom.Controller          { return v.zoom }
func (v *Viewport) Mode() Mode                      { return v.mode }
func (v *Viewport) Item() int64                     { return v.item }
func (v *Viewport) Icons() Icons                    { return v.icons }
func (v *Viewport) Mounted() bool                   { return v.mounted && !v.closed }

// Subscribe registers fn for snapshots and returns its remover.
func (v *Viewport) Subscribe(fn func(Snapshot)) func() { return v.subs.Add(fn) }

// Snapshot assembles the current presentation state.
func (v *Viewport) Snapshot() Snapshot {
	card := v.rec.State()
	t := v.zoom.Transform()
	return Snapshot{
		Item:       v.item,
		Mode:       v.mode,
		Card:       card,
		Indicators: ring.Indicators(card, v.rec.Callbacks()),
		Transform:  t,
		Minimap:    minimap.Compute(t, v.dims),
		Animate:    !v.zoom.Pinching() && !v.zoom.ScrollZooming(),
		Icons:      v.icons,
	}
}

// Mount attaches the viewport to doc: keyboard shortcuts are registered
// and minimap drags listen on it. Mounting twice, or after Unmount, is a
// no-op.
func (v *Viewport) Mount(doc *listen.Document) {
	if v.closed || v.mounted || doc == nil {
		return
	}
	v.mounted = true
	v.mini = minimap.New(v.zoom, doc)
	v.mini.SetDimensions(v.dims)
	v.mini.OnDragEnd(func() {
		v.enter(Idle{})
		if v.hooks.OnMinimapDrag != nil {
			v.hooks.OnMinimapDrag()
		}
	})
	v.scope.Acquire(doc.KeyDown.Add(func(k listen.Key) { v.Key(k) }))
	v.scope.Acquire(v.mini.Close)
	v.publish()
}

// Unmount releases every listener, cancels the pending timers and stops
// all further transform writes. The viewport cannot be mounted again.
func (v *Viewport) Unmount() {
	if v.closed {
		return
	}
	v.scope.Close()
	v.rec.Close()
	v.zoom.Close()
	v.mode = Idle{}
	v.closed = true
}

// SetItem is the refetch signal: the displayed item changed, so a live
// contact sequence is cancelled and the card, the zoom, any minimap drag
// and the mode go back to rest. Calling it again
// with the same id yields the same state.
func (v *Viewport) SetItem(id int64) {
	if v.closed {
		return
	}
	if id != v.item {
		v.log.Debug("item changed", slog.Int64("from", v.item), slog.Int64("to", id))
	}
	v.item = id
	if v.mini != nil {
		v.mini.EndDrag()
	}
	v.rec.Cancel()
	v.rec.Reset()
	if t := v.zoom.Transform(); t.Zoomed() && v.hooks.OnZoomReset != nil {
		v.hooks.OnZoomReset(t.Scale)
	}
	v.zoom.Reset()
	v.mode = Idle{}
	v.publish()
}

// Layout records the on-screen geometry: the card bounds, the window size
// (its aspect ratio weighs the swipe axis lock) and the image container.
func (v *Viewport) Layout(card geom.Rect, window geom.Size, container geom.Rect) {
	v.rec.SetSurface(card)
	v.rec.SetViewport(window)
	v.zoom.SetContainer(container)
}

// ImageLoaded records the natural size of the displayed image and its
// rendered size, recomputing the fill scale and the minimap dimensions.
func (v *Viewport) ImageLoaded(natural, rendered, container geom.Size) {
	if v.closed {
		return
	}
	v.zoom.ImageLoaded(natural, container)
	v.Measure(rendered, container)
}

// Measure refreshes the minimap dimensions from the rendered image size.
func (v *Viewport) Measure(rendered, container geom.Size) {
	v.dims = minimap.Measure(rendered, v.zoom.Natural(), container, v.zoom.Transform())
	if v.mini != nil {
		v.mini.SetDimensions(v.dims)
	}
}

// TouchStart handles a contact going down; touches are all contacts now
// down. One contact starts a swipe, two hand the sequence to the zoom
// controller.
func (v *Viewport) TouchStart(touches []geom.Pt) {
	if !v.Mounted() {
		return
	}
	switch len(touches) {
	case 1:
		if v.rec.Active() {
			return
		}
		if v.enter(Swiping{}) {
			v.rec.Begin(touches[0])
		}
	case 2:
		if !v.enter(Pinching{Baseline: v.zoom.Transform().Scale}) {
			return
		}
		v.rec.Suspend()
		v.zoom.TouchStart(touches)
	}
}

// TouchMove follows the contacts currently down.
func (v *Viewport) TouchMove(touches []geom.Pt) {
	if !v.Mounted() {
		return
	}
	switch m := v.mode.(type) {
	case Pinching:
		v.zoom.TouchMove(touches)
	case Swiping:
		if len(touches) != 1 {
			return
		}
		v.rec.Move(touches[0])
		if s, ok := v.rec.Session(); ok {
			m.Axis, m.Session = s.AxisLock, s
			v.mode = m
		}
	}
}

// TouchEnd handles a contact lifting at released; remaining are the
// contacts still down.
func (v *Viewport) TouchEnd(remaining []geom.Pt, released geom.Pt) {
	if !v.Mounted() {
		return
	}
	switch v.mode.(type) {
	case Pinching:
		v.zoom.TouchEnd(len(remaining))
		if len(remaining) >= 2 {
			return
		}
		if len(remaining) == 1 && v.rec.Active() {
			// the suspended sequence keeps the last contact until it lifts
			s, _ := v.rec.Session()
			v.mode = Swiping{Axis: s.AxisLock, Session: s}
			return
		}
		if v.rec.Active() {
			v.rec.End(released)
		}
		v.enter(Idle{})
	case Swiping:
		if len(remaining) > 0 {
			return
		}
		v.rec.End(released)
		v.enter(Idle{})
	}
}

// TouchCancel drops every live contact.
func (v *Viewport) TouchCancel() {
	if !v.Mounted() {
		return
	}
	if v.zoom.Pinching() {
		v.zoom.TouchEnd(0)
	}
	v.rec.Cancel()
	v.enter(Idle{})
}

// MouseDown starts a mouse interaction: panning when the image is zoomed,
// otherwise a click or swipe on the card.
func (v *Viewport) MouseDown(p geom.Pt) {
	if !v.Mounted() {
		return
	}
	if v.zoom.Transform().Zoomed() {
		v.enter(MousePanning{Last: p})
		return
	}
	v.TouchStart([]geom.Pt{p})
}

func (v *Viewport) MouseMove(p geom.Pt) {
	if !v.Mounted() {
		return
	}
	if m, ok := v.mode.(MousePanning); ok {
		v.zoom.PanBy(p.X-m.Last.X, p.Y-m.Last.Y)
		m.Last = p
		v.mode = m
		return
	}
	v.TouchMove([]geom.Pt{p})
}

func (v *Viewport) MouseUp(p geom.Pt) {
	if !v.Mounted() {
		return
	}
	if _, ok := v.mode.(MousePanning); ok {
		v.enter(Idle{})
		return
	}
	v.TouchEnd(nil, p)
}

// Wheel applies a wheel tick over the image.
func (v *Viewport) Wheel(deltaY float32, cursor geom.Pt) {
	if !v.Mounted() {
		return
	}
	if !v.enter(ScrollZooming{}) {
		return
	}
	v.zoom.Wheel(deltaY, cursor)
	if !v.zoom.ScrollZooming() {
		v.enter(Idle{})
	}
}

func (v *Viewport) ZoomIn() {
	if v.Mounted() {
		v.zoom.ZoomIn()
	}
}

func (v *Viewport) ZoomOut() {
	if v.Mounted() {
		v.zoom.ZoomOut()
	}
}

// MinimapDown starts an indicator drag at p (minimap pixels). Moves and the
// release arrive through the document.
func (v *Viewport) MinimapDown(p geom.Pt) {
	if !v.Mounted() || !v.zoom.Transform().Zoomed() {
		return
	}
	if !v.enter(DraggingMinimap{}) {
		return
	}
	if !v.mini.BeginDrag(p) {
		v.enter(Idle{})
	}
}

// Key handles a keyboard shortcut and reports whether it was one.
func (v *Viewport) Key(k listen.Key) bool {
	if !v.Mounted() {
		return false
	}
	switch k {
	case listen.KeyEscape, listen.KeyArrowDown:
		v.Close()
	case listen.KeyArrowLeft:
		v.Previous()
	case listen.KeyArrowRight:
		v.Next()
	default:
		return false
	}
	return true
}

// Previous navigates to the previous item of the ordering.
func (v *Viewport) Previous() {
	if v.nav != nil {
		v.nav.Previous()
	}
}

// Next navigates to the next item of the ordering.
func (v *Viewport) Next() {
	if v.nav != nil {
		v.nav.Next()
	}
}

// Close leaves the viewer.
func (v *Viewport) Close() {
	if v.nav != nil {
		v.nav.Close()
	}
}

// enter switches to m when the transition is valid. Rejected transitions
// drop the input that asked for them.
func (v *Viewport) enter(m Mode) bool {
	if err := transition(v.mode, m); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			v.log.Debug("input dropped", slog.Any("err", err))
		}
		return false
	}
	v.mode = m
	return true
}

func (v *Viewport) publish() {
	if v.closed || v.subs.Len() == 0 {
		return
	}
	v.subs.Emit(v.Snapshot())
}
