/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package nav

import "sync"

// DefaultDepth caps the back stack when no depth is given.
const DefaultDepth = 100

// History keeps the visited block URLs as back/forward stacks. Visiting a
// new URL clears the forward stack; the oldest entries are dropped past the
// depth cap. It is safe for concurrent use.
type History struct {
	mu      sync.Mutex
	depth   int
	current string
	back    []string
	forward []string
}

func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &History{depth: depth}
}

// Visit records u as the current entry. Revisiting the current URL is a
// no-op.
func (h *History) Visit(u string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if u == h.current {
		return
	}
	if h.current != "" {
		h.back = append(h.back, h.current)
	}
	h.current = u
	h.forward = nil
	if len(h.back) > h.depth {
		h.back = append([]string{}, h.back[len(h.back)-h.depth:]...)
	}
}

// Back pops the back stack, pushing the current entry onto forward.
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.back) == 0 {
		return "", false
	}
	u := h.back[len(h.back)-1]
	h.back = h.back[:len(h.back)-1]
	h.forward = append(h.forward, h.current)
	h.current = u
	return u, true
}

// Forward pops the forward stack, pushing the current entry back.
func (h *History) Forward() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.forward) == 0 {
		return "", false
	}
	u := h.forward[len(h.forward)-1]
	h.forward = h.forward[:len(h.forward)-1]
	h.back = append(h.back, h.current)
	h.current = u
	return u, true
}

// Current returns the current entry.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Stats returns the stack sizes for diagnostics.
func (h *History) Stats() (back, forward int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.back), len(h.forward)
}
