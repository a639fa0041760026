/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package thumbs scales block images for the minimap backdrop and footer thumbnails.
package thumbs

import (
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"blockviewer/internal/geom"
)

// Fit scales src into box preserving its aspect ratio, centered on a
// transparent canvas of exactly box size. A degenerate box or source yields nil.
func Fit(src image.Image, box geom.Size) *image.RGBA {
	if src == nil || box.IsZero() {
		return nil
	}
	sb := src.Bounds()
	if sb.Empty() {
		return nil
	}
	w := int(math.Round(float64(box.W)))
	h := int(math.Round(float64(box.H)))
	if w <= 0 || h <= 0 {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, draw.Src)

	k := math.Min(float64(w)/float64(sb.Dx()), float64(h)/float64(sb.Dy()))
	tw := max(1, int(math.Round(float64(sb.Dx())*k)))
	th := max(1, int(math.Round(float64(sb.Dy())*k)))
	x := (w - tw) / 2
	y := (h - th) / 2
	xdraw.CatmullRom.Scale(dst, image.Rect(x, y, x+tw, y+th), src, sb, xdraw.Over, nil)
	return dst
}

// Box returns the rectangle Fit would draw src into.
func Box(src geom.Size, box geom.Size) geom.Rect {
	if src.IsZero() || box.IsZero() {
		return geom.Rect{}
	}
	k := min(box.W/src.W, box.H/src.H)
	w, h := src.W*k, src.H*k
	return geom.R((box.W-w)/2, (box.H-h)/2, w, h)
}
