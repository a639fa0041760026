/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ring computes the progress rings drawn at the four edges of the
// swipe card: how far each ring is filled, how large it is drawn and
// whether it is showing.
package ring

import (
	"math"

	"blockviewer/internal/geom"
	"blockviewer/internal/gesture"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	// Radius of the circle inside a ViewBox-unit square.
	Radius  = 45
	ViewBox = 100
	// Threshold is the fill at which the ring closes; it matches the swipe
	// trigger distance.
	Threshold = 100

	baseSize   float32 = 35
	growFrom   float32 = 75
	growTo     float32 = 95
	growFactor float32 = 0.2
)

// Circumference of the ring, used as its dash array.
var Circumference = 2 * math.Pi * Radius

var (
	idle  = colorful.Color{R: 0.55, G: 0.55, B: 0.55}
	ready = colorful.Color{R: 1, G: 1, B: 1}
)

// DashOffset is the stroke dash offset for a fill amount: the full
// circumference when empty, zero once the fill reaches Threshold.
func DashOffset(fill float32) float64 {
	f := math.Min(float64(fill), Threshold)
	if f < 0 {
		f = 0
	}
	return Circumference - f/Threshold*Circumference
}

// PixelRadius is the on-screen size of the ring. It stays at its base size
// until 75% progress, then grows until 95%.
func PixelRadius(fill float32) float32 {
	return baseSize + (geom.Clamp(fill, growFrom, growTo)-growFrom)*growFactor
}

// Stroke blends the ring colour from grey to white as the fill approaches
// the threshold.
func Stroke(fill float32) colorful.Color {
	t := float64(geom.Clamp(fill/Threshold, 0, 1))
	return idle.BlendLab(ready, t).Clamped()
}

// Edge is the side of the card an indicator sits on.
type Edge int

const (
	EdgeTop Edge = iota
	EdgeBottom
	EdgeLeft
	EdgeRight
)

func (e Edge) String() string {
	switch e {
	case EdgeTop:
		return "top"
	case EdgeBottom:
		return "bottom"
	case EdgeLeft:
		return "left"
	default:
		return "right"
	}
}

// Indicator is one edge ring with its icon slot.
type Indicator struct {
	Direction   gesture.Direction
	Edge        Edge
	Fill        float32
	Opacity     float32
	DashOffset  float64
	PixelRadius float32
	Stroke      colorful.Color
}

// Placement maps each direction to the edge its ring is drawn on: the ring
// sits on the side the card is dragged away from.
var Placement = map[gesture.Direction]Edge{
	gesture.DirDown:  EdgeTop,
	gesture.DirUp:    EdgeBottom,
	gesture.DirLeft:  EdgeLeft,
	gesture.DirRight: EdgeRight,
}

// Indicators returns the four rings for st, in down, up, left, right order.
// A ring is opaque only when its direction is registered and currently
// dominant.
func Indicators(st gesture.State, cb gesture.Callbacks) [4]Indicator {
	var out [4]Indicator
	for i, d := range []gesture.Direction{gesture.DirDown, gesture.DirUp, gesture.DirLeft, gesture.DirRight} {
		fill := st.HorizontalFill
		if d == gesture.DirDown || d == gesture.DirUp {
			fill = st.VerticalFill
		}
		var opacity float32
		if st.Direction == d && cb.For(d) != nil {
			opacity = 1
		}
		out[i] = Indicator{
			Direction:   d,
			Edge:        Placement[d],
			Fill:        fill,
			Opacity:     opacity,
			DashOffset:  DashOffset(fill),
			PixelRadius: PixelRadius(fill),
			Stroke:      Stroke(fill),
		}
	}
	return out
}
