/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package sched provides cancellable deferred tasks for the single-threaded
// engines. Engines never start goroutines themselves; they ask a Scheduler
// to run a function later and keep the returned Task so it can be cancelled.
package sched

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a pending deferred call. Cancel is idempotent and safe to call
// after the task has already run.
type Task interface {
	Cancel()
}

// Scheduler runs functions after a delay on the engine's goroutine.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, fn func()) Task
}

// Real is a wall-clock Scheduler. Fired tasks are handed to dispatch so the
// caller can marshal them back onto its UI goroutine.
type Real struct {
	dispatch func(func())
}

// NewReal returns a wall-clock scheduler. A nil dispatch runs tasks directly
// on the timer goroutine, which is only appropriate in tests and tools.
func NewReal(dispatch func(func())) *Real {
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	return &Real{dispatch: dispatch}
}

func (r *Real) Now() time.Time { return time.Now() }

func (r *Real) After(d time.Duration, fn func()) Task {
	t := &realTask{}
	t.timer = time.AfterFunc(d, func() {
		if t.cancelled.Load() {
			return
		}
		r.dispatch(func() {
			// re-check on the dispatch goroutine: Cancel may have won the race
			if t.cancelled.Load() {
				return
			}
			fn()
		})
	})
	return t
}

type realTask struct {
	timer     *time.Timer
	cancelled atomic.Bool
}

func (t *realTask) Cancel() {
	t.cancelled.Store(true)
	t.timer.Stop()
}

// Manual is a Scheduler driven by explicit Advance calls.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*manualTask
}

// NewManual returns a manual scheduler starting at start.
func NewManual(start time.Time) *Manual { return &Manual{now: start} }

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) After(d time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{m: m, due: m.now.Add(d), seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Advance moves the clock forward by d and runs every task that became due,
// in due order. Tasks scheduled by running tasks are honoured if they fall
// inside the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	for {
		m.mu.Lock()
		sort.SliceStable(m.tasks, func(i, j int) bool {
			if m.tasks[i].due.Equal(m.tasks[j].due) {
				return m.tasks[i].seq < m.tasks[j].seq
			}
			return m.tasks[i].due.Before(m.tasks[j].due)
		})
		if len(m.tasks) == 0 || m.tasks[0].due.After(target) {
			m.now = target
			m.mu.Unlock()
			return
		}
		next := m.tasks[0]
		m.tasks = m.tasks[1:]
		m.now = next.due
		m.mu.Unlock()
		next.fn()
	}
}

// Pending reports how many tasks are still scheduled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

type manualTask struct {
	m   *Manual
	due time.Time
	seq int
	fn  func()
}

func (t *manualTask) Cancel() {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for i, x := range t.m.tasks {
		if x == t {
			t.m.tasks = append(t.m.tasks[:i], t.m.tasks[i+1:]...)
			return
		}
	}
}
