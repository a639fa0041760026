/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package geom holds the small amount of 2D math shared by the gesture,
// zoom and minimap engines. Values are float32 to line up with Fyne.
package geom

import "math"

// Pt is a 2D point in screen pixels.
type Pt struct{ X, Y float32 }

// Sub returns p-q.
func (p Pt) Sub(q Pt) Pt { return Pt{X: p.X - q.X, Y: p.Y - q.Y} }

// Add returns p+q.
func (p Pt) Add(q Pt) Pt { return Pt{X: p.X + q.X, Y: p.Y + q.Y} }

// Size is a width/height pair.
type Size struct{ W, H float32 }

// IsZero reports whether either side is zero or negative.
func (s Size) IsZero() bool { return s.W <= 0 || s.H <= 0 }

// Aspect returns W/H, or 1 for a degenerate size.
func (s Size) Aspect() float32 {
	if s.IsZero() {
		return 1
	}
	return s.W / s.H
}

// Rect is an axis-aligned rectangle defined by min corner and size.
type Rect struct {
	X, Y float32
	W, H float32
}

func R(x, y, w, h float32) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Size() Size { return Size{W: r.W, H: r.H} }

func (r Rect) Center() Pt { return Pt{X: r.X + r.W/2, Y: r.Y + r.H/2} }

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Distance returns the euclidean distance between a and b.
func Distance(a, b Pt) float32 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return float32(math.Sqrt(dx*dx + dy*dy))
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Pt) Pt {
	return Pt{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Clamp limits v to [lo, hi]. When lo > hi the lower bound wins.
func Clamp(v, lo, hi float32) float32 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// Abs returns |v|.
func Abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// FloatRound rounds v to n decimal places deterministically.
func FloatRound(v float32, places int) float32 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return float32(math.Round(float64(v)*pow) / pow)
}
