/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in, anonymous viewer usage events and crash
// reports. Events are batched and posted as a JSON array.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	applog "blockviewer/internal/log"
	"blockviewer/internal/version"
)

// Viewer event names.
const (
	EventViewerOpened = "viewer_opened"
	EventSwipe        = "swipe_committed"
	EventZoomReset    = "zoom_reset"
	EventMinimapDrag  = "minimap_drag"
	EventViewerClosed = "viewer_closed"
)

// Config holds runtime configuration for telemetry and crash uploads.
// All telemetry is strictly opt-in and disabled by default.
//
// Environment variables (read by FromEnv):
//   - BV_TELEMETRY_OPT_IN: "1", "true", "yes" to enable
//   - BV_TELEMETRY_URL: URL to POST event batches to
//   - BV_CRASH_UPLOAD_URL: URL to POST crash reports to
//   - BV_TELEMETRY_TIMEOUT_MS: request timeout, default 1500ms
//   - BV_TELEMETRY_DEBUG: if set, logs send attempts
//
// Without URLs every call is a no-op, even when opted in.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	BatchSize    int
	DebugLogging bool
}

// FromEnv reads Config from the environment. optIn is the persisted user
// choice; the environment can only turn it on.
func FromEnv(optIn bool) Config {
	cfg := Config{
		OptIn:        optIn || parseBool(os.Getenv("BV_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("BV_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("BV_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		BatchSize:    16,
		DebugLogging: os.Getenv("BV_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("BV_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Event is one usage record. Props must not carry personal data.
type Event struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client queues events on a bounded channel and posts them from a single
// goroutine. It never blocks the caller; events are dropped when the queue
// is full or the endpoint fails.
type Client struct {
	cfg   Config
	log   *slog.Logger
	cli   *http.Client
	q     chan Event
	flush chan chan struct{}
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// SetDefault installs c as the package-level client used by Record and UploadCrash.
func SetDefault(c *Client) {
	defaultMu.Lock()
	defaultClient = c
	defaultMu.Unlock()
}

func current() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultClient
}

// New constructs a client and starts its sender.
func New(cfg Config) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:   cfg,
		log:   applog.WithComponent("telemetry"),
		cli:   &http.Client{Timeout: cfg.Timeout},
		q:     make(chan Event, 64),
		flush: make(chan chan struct{}),
		done:  make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

// Enabled reports whether telemetry is opted in and an endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Record queues an event. Safe to call from any goroutine, including the UI one.
func (c *Client) Record(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	ev := Event{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		ev.Props = make(map[string]any, len(props))
		for k, v := range props {
			ev.Props[k] = v
		}
	}
	select {
	case c.q <- ev:
	default:
	}
}

// Record uses the default client; a missing default drops the event.
func Record(name string, props map[string]any) { current().Record(name, props) }

// Flush sends everything queued so far, or returns when ctx is done.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	ack := make(chan struct{})
	select {
	case c.flush <- ack:
	case <-c.done:
		return
	case <-ctx.Done():
		return
	}
	select {
	case <-ack:
	case <-ctx.Done():
	}
}

// Close flushes pending events and stops the sender.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}

func (c *Client) loop() {
	defer c.wg.Done()
	var batch []Event
	send := func() {
		if len(batch) > 0 {
			c.post(batch)
			batch = nil
		}
	}
	for {
		select {
		case ev := <-c.q:
			batch = append(batch, ev)
			if len(batch) >= c.cfg.BatchSize {
				send()
			}
		case ack := <-c.flush:
			batch = c.drain(batch)
			send()
			close(ack)
		case <-c.done:
			batch = c.drain(batch)
			send()
			return
		}
	}
}

func (c *Client) drain(batch []Event) []Event {
	for {
		select {
		case ev := <-c.q:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
}

func (c *Client) post(batch []Event) {
	buf, err := json.Marshal(batch)
	if err != nil {
		return
	}
	c.do(c.cfg.EventsURL, "application/json", buf, "telemetry batch", slog.Int("events", len(batch)))
}

func (c *Client) do(url, contentType string, body []byte, what string, attrs ...any) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug(what+" failed", append(attrs, slog.Any("err", err))...)
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug(what+" sent", append(attrs, slog.Int("status", resp.StatusCode))...)
	}
}

// UploadCrash posts a crash report synchronously if opted in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	c.do(c.cfg.CrashURL, "text/plain; charset=utf-8", report, "crash upload")
}

// UploadCrash uses the default client.
func UploadCrash(report []byte) { current().UploadCrash(report) }
