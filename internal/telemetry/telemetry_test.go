/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type collector struct {
	mu      sync.Mutex
	batches [][]Event
	crashes [][]byte
	hits    atomic.Int32
}

func newCollector(t *testing.T) (*collector, *httptest.Server) {
	t.Helper()
	col := &collector{}
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		col.hits.Add(1)
		var batch []Event
		_ = json.NewDecoder(r.Body).Decode(&batch)
		col.mu.Lock()
		col.batches = append(col.batches, batch)
		col.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		col.hits.Add(1)
		b, _ := io.ReadAll(r.Body)
		col.mu.Lock()
		col.crashes = append(col.crashes, b)
		col.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return col, srv
}

func TestClient_BatchesOnFlush(t *testing.T) {
	col, srv := newCollector(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()

	c.Record(EventViewerOpened, map[string]any{"ordered": true})
	c.Record(EventSwipe, map[string]any{"direction": "right"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Flush(ctx)

	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.batches) != 1 || len(col.batches[0]) != 2 {
		t.Fatalf("want one batch of two events, got %v", col.batches)
	}
	ev := col.batches[0][1]
	if ev.Name != EventSwipe || ev.Props["direction"] != "right" || ev.TS == "" || ev.Version == "" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestClient_BatchSizeTriggersSend(t *testing.T) {
	col, srv := newCollector(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", BatchSize: 2})
	c.Record(EventZoomReset, nil)
	c.Record(EventZoomReset, nil)
	c.Record(EventViewerClosed, nil)
	c.Close()

	col.mu.Lock()
	defer col.mu.Unlock()
	total := 0
	for _, b := range col.batches {
		if len(b) > 2 {
			t.Fatalf("batch exceeds size: %d", len(b))
		}
		total += len(b)
	}
	if total != 3 {
		t.Fatalf("want 3 events after Close, got %d", total)
	}
}

func TestClient_DisabledAndEmptyName(t *testing.T) {
	col, srv := newCollector(t)
	off := New(Config{OptIn: false, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash"})
	if off.Enabled() {
		t.Fatalf("expected disabled client")
	}
	off.Record("ignored", nil)
	off.UploadCrash([]byte("ignored"))
	off.Close()

	on := New(Config{OptIn: true, EventsURL: srv.URL + "/events"})
	on.Record("", nil)
	on.Flush(context.Background())
	on.Close()
	if n := col.hits.Load(); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}

	var nilClient *Client
	nilClient.Record("x", nil)
	nilClient.Flush(context.Background())
	nilClient.Close()
}

func TestUploadCrashDefaultClient(t *testing.T) {
	col, srv := newCollector(t)
	c := New(Config{OptIn: true, CrashURL: srv.URL + "/crash"})
	defer c.Close()
	SetDefault(c)
	t.Cleanup(func() { SetDefault(nil) })

	UploadCrash([]byte("STACKTRACE"))
	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.crashes) != 1 || string(col.crashes[0]) != "STACKTRACE" {
		t.Fatalf("crash not uploaded: %q", col.crashes)
	}
	// events are disabled without an events URL
	Record(EventViewerOpened, nil)
}

func TestSendErrorsAreSwallowed(t *testing.T) {
	c := New(Config{OptIn: true, EventsURL: "http://127.0.0.1:1/events", CrashURL: "http://127.0.0.1:1/crash", Timeout: 50 * time.Millisecond, DebugLogging: true})
	c.Record("err", map[string]any{"a": 1})
	c.Flush(context.Background())
	c.UploadCrash([]byte("oops"))
	c.Close()
}

func TestFromEnv(t *testing.T) {
	t.Setenv("BV_TELEMETRY_OPT_IN", "")
	t.Setenv("BV_TELEMETRY_URL", "http://127.0.0.1:0")
	t.Setenv("BV_CRASH_UPLOAD_URL", "")
	t.Setenv("BV_TELEMETRY_TIMEOUT_MS", "100")

	if FromEnv(false).OptIn {
		t.Fatalf("opt-in must default to off")
	}
	cfg := FromEnv(true)
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv did not parse correctly: %+v", cfg)
	}
	t.Setenv("BV_TELEMETRY_OPT_IN", "yes")
	if !FromEnv(false).OptIn {
		t.Fatalf("env should enable telemetry")
	}
}
