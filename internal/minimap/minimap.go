/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package minimap derives the viewport indicator of the zoom minimap and
// turns indicator drags back into pan.
package minimap

import (
	"blockviewer/internal/geom"
	"blockviewer/internal/listen"
	"blockviewer/internal/zoom"
)

// MaxSide bounds the longer side of the minimap thumbnail, in pixels.
const MaxSide float32 = 120

// Dimensions are the sizes the indicator geometry is computed from. Image
// and Container are unscaled on-screen sizes; Minimap is the thumbnail.
type Dimensions struct {
	Image     geom.Size
	Container geom.Size
	Minimap   geom.Size
}

// Measure normalizes the rendered image size by the zoom scale of t and
// sizes the minimap thumbnail from the natural aspect ratio. A rendered
// size of zero (not laid out yet) falls back to the natural size at the
// fill scale of t, which is what the renderer draws at scale 1.
func Measure(rendered, natural, container geom.Size, t zoom.Transform) Dimensions {
	img := rendered
	if t.Scale > 0 {
		img = geom.Size{W: rendered.W / t.Scale, H: rendered.H / t.Scale}
	}
	if img.IsZero() {
		if t.Base > 0 {
			img = geom.Size{W: natural.W * t.Base, H: natural.H * t.Base}
		} else {
			img = Fit(natural, container)
		}
	}
	return Dimensions{Image: img, Container: container, Minimap: Fit(natural, geom.Size{W: MaxSide, H: MaxSide})}
}

// Fit scales src to fit inside box preserving aspect ratio. A degenerate
// source yields the zero size.
func Fit(src, box geom.Size) geom.Size {
	if src.IsZero() || box.IsZero() {
		return geom.Size{}
	}
	k := min(box.W/src.W, box.H/src.H)
	return geom.Size{W: src.W * k, H: src.H * k}
}

// Rect is the indicator rectangle in percent of the minimap. Left and Top
// locate its center.
type Rect struct {
	Left, Top     float32
	Width, Height float32
}

// Origin returns the top-left corner in percent, for renderers that do not
// center-anchor.
func (r Rect) Origin() (x, y float32) { return r.Left - r.Width/2, r.Top - r.Height/2 }

// State is what the minimap renderer draws.
type State struct {
	Visible bool
	Rect    Rect
}

// Compute derives the minimap state from the transform. It is pure.
func Compute(t zoom.Transform, d Dimensions) State {
	return State{
		Visible: t.Zoomed(),
		Rect: Rect{
			Left:   center(t.PanX, d.Image.W, t.Scale),
			Top:    center(t.PanY, d.Image.H, t.Scale),
			Width:  extent(d.Container.W, d.Image.W, t.Scale),
			Height: extent(d.Container.H, d.Image.H, t.Scale),
		},
	}
}

func center(pan, image, scale float32) float32 {
	span := image * scale
	if span <= 0 {
		return 50
	}
	return geom.Clamp(50-pan/span*100, 0, 100)
}

func extent(container, image, scale float32) float32 {
	span := image * scale
	if span <= 0 {
		return 100
	}
	return geom.Clamp(min(100, container/span*100), 0, 100)
}

// Panner is the part of the zoom controller a minimap drag writes to.
type Panner interface {
	Transform() zoom.Transform
	SetPan(x, y float32)
}

type drag struct {
	start      geom.Pt
	panX, panY float32
}

// Synchronizer tracks minimap dimensions and indicator drags. While a drag
// is live it listens on the document so the drag survives the pointer
// leaving the minimap.
type Synchronizer struct {
	p     Panner
	doc   *listen.Document
	scope listen.Scope
	dims  Dimensions

	drag   *drag
	onEnd  func()
	closed bool
}

// New returns a synchronizer writing pan to p. doc may be nil, in which
// case the caller must deliver DragMove and EndDrag itself.
func New(p Panner, doc *listen.Document) *Synchronizer {
	return &Synchronizer{p: p, doc: doc}
}

// OnDragEnd registers fn to run whenever a drag ends, however it ends.
func (s *Synchronizer) OnDragEnd(fn func()) { s.onEnd = fn }

func (s *Synchronizer) SetDimensions(d Dimensions) { s.dims = d }
func (s *Synchronizer) Dimensions() Dimensions    { return s.dims }

// State derives the current minimap state.
func (s *Synchronizer) State() State { return Compute(s.p.Transform(), s.dims) }

// Dragging reports whether an indicator drag is live.
func (s *Synchronizer) Dragging() bool { return s.drag != nil }

// BeginDrag captures p and the current pan as the drag baseline. It
// reports whether a drag started; the minimap must be visible.
func (s *Synchronizer) BeginDrag(p geom.Pt) bool {
	t := s.p.Transform()
	if s.closed || s.drag != nil || !t.Zoomed() {
		return false
	}
	s.drag = &drag{start: p, panX: t.PanX, panY: t.PanY}
	if s.doc != nil {
		s.scope.Acquire(s.doc.PointerMove.Add(s.DragMove))
		s.scope.Acquire(s.doc.PointerUp.Add(func(geom.Pt) { s.EndDrag() }))
	}
	return true
}

// DragMove converts the pointer delta from minimap pixels to image pixels
// and sets pan to baseline minus the converted delta, so the indicator
// follows the pointer.
func (s *Synchronizer) DragMove(p geom.Pt) {
	if s.closed || s.drag == nil {
		return
	}
	t := s.p.Transform()
	d := p.Sub(s.drag.start)
	fx := factor(s.dims.Image.W, t.Scale, s.dims.Minimap.W)
	fy := factor(s.dims.Image.H, t.Scale, s.dims.Minimap.H)
	s.p.SetPan(s.drag.panX-d.X*fx, s.drag.panY-d.Y*fy)
}

func factor(image, scale, minimap float32) float32 {
	if minimap <= 0 {
		return 0
	}
	return image * scale / minimap
}

// EndDrag ends a live drag and drops its document listeners.
func (s *Synchronizer) EndDrag() {
	if s.drag == nil {
		return
	}
	s.drag = nil
	s.scope.Release()
	if s.onEnd != nil {
		s.onEnd()
	}
}

// Close ends any drag and releases every listener for good.
func (s *Synchronizer) Close() {
	if s.closed {
		return
	}
	s.EndDrag()
	s.scope.Close()
	s.closed = true
}
