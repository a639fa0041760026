/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package viewport

import (
	"errors"
	"fmt"

	"blockviewer/internal/geom"
	"blockviewer/internal/gesture"
)

// ErrInvalidTransition is returned when an input would enter a mode that
// cannot follow the current one.
var ErrInvalidTransition = errors.New("viewport: invalid mode transition")

// Mode is the interaction the viewport is in. Exactly one is active.
type Mode interface {
	fmt.Stringer
	isMode()
}

// Idle means no interaction is in progress.
type Idle struct{}

// Swiping is a single-contact sequence owned by the swipe recognizer.
type Swiping struct {
	Axis    gesture.Axis
	Session gesture.Session
}

// Pinching is a two-finger zoom; Baseline is the scale it started from.
type Pinching struct {
	Baseline float32
}

// ScrollZooming lasts from a wheel tick until the zoom debounce clears.
type ScrollZooming struct{}

// DraggingMinimap is an indicator drag on the minimap.
type DraggingMinimap struct{}

// MousePanning is a mouse drag over a zoomed image.
type MousePanning struct {
	Last geom.Pt
}

func (Idle) isMode()            {}
func (Swiping) isMode()         {}
func (Pinching) isMode()        {}
func (ScrollZooming) isMode()   {}
func (DraggingMinimap) isMode() {}
func (MousePanning) isMode()    {}

func (Idle) String() string            { return "idle" }
func (s Swiping) String() string       { return "swiping(" + s.Axis.String() + ")" }
func (p Pinching) String() string      { return fmt.Sprintf("pinching(%g)", p.Baseline) }
func (ScrollZooming) String() string   { return "scroll-zooming" }
func (DraggingMinimap) String() string { return "dragging-minimap" }
func (MousePanning) String() string    { return "mouse-panning" }

// transition validates entering to while in from. Returning to Idle and
// staying in the same kind of mode are always allowed. A second finger may
// turn a swipe into a pinch; a scroll zoom is only an animation hint and
// gives way to any interaction. Everything else is rejected.
func transition(from, to Mode) error {
	if _, ok := to.(Idle); ok || sameKind(from, to) {
		return nil
	}
	switch from.(type) {
	case Idle, ScrollZooming:
		return nil
	case Swiping:
		if _, ok := to.(Pinching); ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func sameKind(a, b Mode) bool {
	switch a.(type) {
	case Idle:
		_, ok := b.(Idle)
		return ok
	case Swiping:
		_, ok := b.(Swiping)
		return ok
	case Pinching:
		_, ok := b.(Pinching)
		return ok
	case ScrollZooming:
		_, ok := b.(ScrollZooming)
		return ok
	case DraggingMinimap:
		_, ok := b.(DraggingMinimap)
		return ok
	case MousePanning:
		_, ok := b.(MousePanning)
		return ok
	}
	return false
}
