/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"blockviewer/internal/config"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvConfigFile, filepath.Join(t.TempDir(), "config.yaml"))
	t.Setenv(config.EnvToken, "test-token")
	t.Setenv(config.EnvLogLevel, "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func arenaServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/v2/blocks/")
		if id == "404" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"id":%s,"title":"T%s","class":"Image","image":{"display":{"url":"https://img/%s.jpg"}}}`, id, id, id)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "blockviewer ") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestBlockCommandCachesBlocks(t *testing.T) {
	isolate(t)
	srv, hits := arenaServer(t)
	cache := filepath.Join(t.TempDir(), "blocks.sqlite")

	out, err := run(t, "block", "7", "--api", srv.URL, "--cache", cache, "--ordering", "5,7", "--context", "/a b")
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got["id"] != float64(7) || got["title"] != "T7" {
		t.Fatalf("unexpected block: %v", got)
	}
	if got["url"] != "/block/7?articleContext=%2Fa%20b&blockOrdering=5%2C7" {
		t.Fatalf("url = %v", got["url"])
	}

	if _, err := run(t, "block", "/block/7", "--api", srv.URL, "--cache", cache); err != nil {
		t.Fatalf("second block: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("second lookup should come from the cache, got %d requests", n)
	}

	out, err = run(t, "cache", "stats", "--cache", cache)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "rows:  1") {
		t.Fatalf("stats output: %q", out)
	}
	out, err = run(t, "cache", "prune", "--max-bytes", "0", "--cache", cache)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(out, "evicted 1 blocks") {
		t.Fatalf("prune output: %q", out)
	}
}

func TestBlockCommandErrors(t *testing.T) {
	isolate(t)
	srv, _ := arenaServer(t)
	if _, err := run(t, "block", "404", "--api", srv.URL, "--no-cache"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("want not found, got %v", err)
	}
	if _, err := run(t, "block", "abc", "--no-cache"); err == nil {
		t.Fatalf("invalid id should fail")
	}
}

func TestParseTarget(t *testing.T) {
	loc, err := parseTarget("/block/30?blockOrdering=10%2C20%2C30", "", "/ctx")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if loc.ID != 30 || len(loc.Order) != 3 || loc.Context != "/ctx" {
		t.Fatalf("unexpected location: %+v", loc)
	}
	loc, err = parseTarget("12", "1,12", "")
	if err != nil || loc.ID != 12 || len(loc.Order) != 2 {
		t.Fatalf("unexpected location: %+v %v", loc, err)
	}
	if _, err := parseTarget("-3", "", ""); err == nil {
		t.Fatalf("negative id should fail")
	}
}

func TestCrashOptionsCarryCommandState(t *testing.T) {
	isolate(t)
	srv, _ := arenaServer(t)
	cache := filepath.Join(t.TempDir(), "blocks.sqlite")

	dir := t.TempDir()
	root, opts := NewRootWithCrash(dir)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"block", "7", "--api", srv.URL, "--cache", cache})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("block: %v", err)
	}

	if opts.Dir != dir {
		t.Fatalf("dir = %q", opts.Dir)
	}
	if opts.State == nil || opts.Release == nil {
		t.Fatal("crash options should carry state and release")
	}
	state := opts.State()
	if state["command"] != "blockviewer block" {
		t.Fatalf("command = %q", state["command"])
	}
	if state["block"] != "7" {
		t.Fatalf("block = %q", state["block"])
	}
	if _, ok := state["viewing"]; ok {
		t.Fatal("no viewer was open")
	}
	state["block"] = "changed"
	if opts.State()["block"] != "7" {
		t.Fatal("state should be a copy")
	}
	// the command already closed its cache
	if err := opts.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestCrashStateFollowsViewer(t *testing.T) {
	a := &app{state: map[string]string{"command": "blockviewer view"}}
	url := "/block/1"
	a.watch(func() string { return url })
	if got := a.crashState()["viewing"]; got != "/block/1" {
		t.Fatalf("viewing = %q", got)
	}
	url = "/block/2"
	if got := a.crashState()["viewing"]; got != "/block/2" {
		t.Fatalf("viewing = %q", got)
	}
	if err := a.release(); err != nil {
		t.Fatalf("release with nothing open: %v", err)
	}
}
