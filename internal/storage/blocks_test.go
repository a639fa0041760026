/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "cache", FileName), maxBytes)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	clock := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	if _, ok, err := s.Get(ctx, 1); err != nil || ok {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}
	if err := s.Put(ctx, 1, []byte(`{"id":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, 1, []byte(`{"id":1,"title":"x"}`)); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err := s.Get(ctx, 1)
	if err != nil || !ok || !bytes.Equal(got, []byte(`{"id":1,"title":"x"}`)) {
		t.Fatalf("Get = %q,%v,%v", got, ok, err)
	}
	st, err := s.Stats(ctx)
	if err != nil || st.Rows != 1 || st.Bytes != int64(len(got)) {
		t.Fatalf("Stats = %+v, %v", st, err)
	}
	if err := s.Put(ctx, 2, nil); err == nil {
		t.Fatalf("expected error for nil payload")
	}
}

func TestEvictionIsLeastRecentlyUsedFirst(t *testing.T) {
	s := openTestStore(t, 100)
	ctx := context.Background()
	blob := make([]byte, 40)
	for _, id := range []int64{1, 2} {
		if err := s.Put(ctx, id, blob); err != nil {
			t.Fatalf("Put %d: %v", id, err)
		}
	}
	// touch 1 so 2 becomes the oldest
	if _, ok, _ := s.Get(ctx, 1); !ok {
		t.Fatalf("block 1 missing")
	}
	if err := s.Put(ctx, 3, blob); err != nil {
		t.Fatalf("Put 3: %v", err)
	}
	if _, ok, _ := s.Get(ctx, 2); ok {
		t.Fatalf("least recently used block survived eviction")
	}
	for _, id := range []int64{1, 3} {
		if _, ok, _ := s.Get(ctx, id); !ok {
			t.Fatalf("block %d evicted", id)
		}
	}
	total, err := s.Total(ctx)
	if err != nil || total > 100 {
		t.Fatalf("total = %d, %v", total, err)
	}
}

func TestEvictToFitAndClear(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	for id := int64(1); id <= 5; id++ {
		if err := s.Put(ctx, id, make([]byte, 10)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	n, err := s.EvictToFit(ctx, 25)
	if err != nil || n != 3 {
		t.Fatalf("EvictToFit = %d, %v", n, err)
	}
	if n, _ := s.EvictToFit(ctx, 25); n != 0 {
		t.Fatalf("second eviction removed %d rows", n)
	}
	if err := s.Delete(ctx, 5); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if st, _ := s.Stats(ctx); st.Rows != 0 || st.Bytes != 0 {
		t.Fatalf("stats after clear: %+v", st)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), "  ", 0); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), FileName)
	s, err := Open(ctx, path, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Put(ctx, 7, []byte("seven")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_ = s.Close()
	s, err = Open(ctx, path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if got, ok, _ := s.Get(ctx, 7); !ok || string(got) != "seven" {
		t.Fatalf("after reopen: %q %v", got, ok)
	}
}
