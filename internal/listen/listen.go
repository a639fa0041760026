/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package listen models listener registration as scoped resources: every
// Add returns its own release function, and a Scope collects releases so
// they run together on every exit path.
package listen

import "blockviewer/internal/geom"

// Hub is a set of listeners for one event kind. Not safe for concurrent use.
type Hub[T any] struct {
	next int
	ids  []int
	fns  map[int]func(T)
}

// Add registers fn and returns the function that removes it. The remover
// is idempotent.
func (h *Hub[T]) Add(fn func(T)) (remove func()) {
	if h.fns == nil {
		h.fns = make(map[int]func(T))
	}
	h.next++
	id := h.next
	h.fns[id] = fn
	h.ids = append(h.ids, id)
	return func() {
		if _, ok := h.fns[id]; !ok {
			return
		}
		delete(h.fns, id)
		for i, x := range h.ids {
			if x == id {
				h.ids = append(h.ids[:i], h.ids[i+1:]...)
				break
			}
		}
	}
}

// Emit calls every listener registered at the time of the call, in
// registration order. Listeners removed during emission are skipped.
func (h *Hub[T]) Emit(v T) {
	ids := append([]int(nil), h.ids...)
	for _, id := range ids {
		if fn, ok := h.fns[id]; ok {
			fn(v)
		}
	}
}

// Len reports the number of registered listeners.
func (h *Hub[T]) Len() int { return len(h.ids) }

// Key names a keyboard key as delivered by the rendering adapter.
type Key string

const (
	KeyEscape     Key = "Escape"
	KeyArrowLeft  Key = "ArrowLeft"
	KeyArrowRight Key = "ArrowRight"
	KeyArrowUp    Key = "ArrowUp"
	KeyArrowDown  Key = "ArrowDown"
)

// Document carries the window-level event streams. Listeners attached here
// keep receiving events when the pointer leaves the widget they belong to.
type Document struct {
	KeyDown     Hub[Key]
	PointerMove Hub[geom.Pt]
	PointerUp   Hub[geom.Pt]
}

// Listeners reports the total number of document listeners, used to check
// that nothing leaks after unmount.
func (d *Document) Listeners() int {
	return d.KeyDown.Len() + d.PointerMove.Len() + d.PointerUp.Len()
}

// Scope collects release functions. Release runs them in reverse order of
// acquisition and leaves the scope reusable; Close does the same and makes
// any later Acquire release immediately.
type Scope struct {
	releases []func()
	closed   bool
}

// Acquire records release to be run by the next Release or Close.
func (s *Scope) Acquire(release func()) {
	if release == nil {
		return
	}
	if s.closed {
		release()
		return
	}
	s.releases = append(s.releases, release)
}

// Release runs and forgets all collected releases.
func (s *Scope) Release() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
}

// Close releases everything and seals the scope.
func (s *Scope) Close() {
	s.Release()
	s.closed = true
}

// Held reports how many releases are pending.
func (s *Scope) Held() int { return len(s.releases) }
