/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import "testing"

func TestDistanceAndMidpoint(t *testing.T) {
	a, b := Pt{0, 0}, Pt{3, 4}
	if d := Distance(a, b); d != 5 {
		t.Fatalf("Distance = %v, want 5", d)
	}
	if m := Midpoint(a, b); m.X != 1.5 || m.Y != 2 {
		t.Fatalf("Midpoint = %+v", m)
	}
	if d := Distance(b, b); d != 0 {
		t.Fatalf("Distance to self = %v", d)
	}
}

func TestClamp(t *testing.T) {
	cases := []struct {
		v, lo, hi, want float32
	}{
		{0.2, 0.5, 3, 0.5},
		{3.4, 0.5, 3, 3},
		{1.7, 1, 3, 1.7},
		{2, 3, 1, 3}, // inverted bounds: lower wins
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.lo, c.hi); got != c.want {
			t.Fatalf("Clamp(%v,%v,%v) = %v, want %v", c.v, c.lo, c.hi, got, c.want)
		}
	}
}

func TestRectHelpers(t *testing.T) {
	r := R(10, 20, 100, 50)
	if c := r.Center(); c.X != 60 || c.Y != 45 {
		t.Fatalf("Center = %+v", c)
	}
	if !r.Contains(Pt{10, 20}) || r.Contains(Pt{9, 20}) {
		t.Fatalf("Contains edge handling wrong")
	}
	if (Size{W: 0, H: 10}).Aspect() != 1 {
		t.Fatalf("degenerate aspect should be 1")
	}
}

func TestFloatRound(t *testing.T) {
	if got := FloatRound(1.23456, 2); got != 1.23 {
		t.Fatalf("FloatRound = %v", got)
	}
}
