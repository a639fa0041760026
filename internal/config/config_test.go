/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

type memStore map[string]string

func (m memStore) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}
func (m memStore) Set(service, key, value string) error { m[service+"/"+key] = value; return nil }
func (m memStore) Delete(service, key string) error {
	if _, ok := m[service+"/"+key]; !ok {
		return keyring.ErrNotFound
	}
	delete(m, service+"/"+key)
	return nil
}

func useMemStore(t *testing.T) memStore {
	t.Helper()
	old := tokenStore
	m := memStore{}
	tokenStore = m
	t.Cleanup(func() { tokenStore = old })
	return m
}

func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvToken, "")
	return path
}

func TestEnvOverridesArenaURL(t *testing.T) {
	isolate(t)
	useMemStore(t)
	t.Setenv(EnvArenaURL, "https://example.test:8443")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Arena.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Arena.BaseURL = %q, want %q", got, want)
	}
	if name, ok := EnvOverrideFor("arena.base_url"); !ok || name != EnvArenaURL {
		t.Fatalf("EnvOverrideFor = %q, %v", name, ok)
	}
	if _, ok := EnvOverrideFor("arena.timeout_ms"); ok {
		t.Fatalf("unset env should not report an override")
	}
	if _, ok := EnvOverrideFor("nope"); ok {
		t.Fatalf("unknown key should not report an override")
	}
}

func TestEnvOverridesViewer(t *testing.T) {
	isolate(t)
	useMemStore(t)
	t.Setenv(EnvZoomMode, "FREE")
	t.Setenv(EnvMaxScale, "4.5")
	t.Setenv(EnvShowFooter, "off")
	t.Setenv(EnvCacheMaxBytes, "1024")
	t.Setenv(EnvTelemetryOptIn, "yes")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Viewer.ZoomMode != "free" || cfg.Viewer.MaxScale != 4.5 || cfg.Viewer.ShowFooter {
		t.Fatalf("viewer overrides not applied: %#v", cfg.Viewer)
	}
	if cfg.Cache.MaxBytes != 1024 || !cfg.General.TelemetryOptIn {
		t.Fatalf("cache/general overrides not applied: %#v %#v", cfg.Cache, cfg.General)
	}
}

func TestLoadFileMergesAndRejectsGarbage(t *testing.T) {
	path := isolate(t)
	useMemStore(t)
	yml := "arena:\n  timeout_ms: 2500\nviewer:\n  zoom_mode: free\n  show_footer: false\ncache:\n  path: /tmp/bv.sqlite\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Arena.BaseURL != "https://api.are.na" || cfg.Arena.Timeout() != 2500*time.Millisecond {
		t.Fatalf("arena: %#v", cfg.Arena)
	}
	if cfg.Viewer.ZoomMode != "free" || cfg.Viewer.MaxScale != 3 || cfg.Viewer.ShowFooter {
		t.Fatalf("viewer: %#v", cfg.Viewer)
	}
	if cfg.Cache.Path != "/tmp/bv.sqlite" || cfg.Cache.MaxBytes != 32<<20 {
		t.Fatalf("cache: %#v", cfg.Cache)
	}

	if err := os.WriteFile(path, []byte("arena: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("malformed YAML should fail")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = " DEBUG "
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "C:/tmp/bv.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "C:/tmp/bv.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	useMemStore(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "X:/bv.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/bv.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestTokenPrecedence(t *testing.T) {
	isolate(t)
	m := useMemStore(t)
	if Token() != "" {
		t.Fatalf("no token expected")
	}
	if err := SetToken("from-keychain"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if _, tok, _ := Load(); tok != "from-keychain" {
		t.Fatalf("keychain token = %q", tok)
	}
	t.Setenv(EnvToken, "from-env")
	if Token() != "from-env" {
		t.Fatalf("env token should win")
	}
	if err := SetToken(""); err != nil {
		t.Fatalf("delete token: %v", err)
	}
	if err := SetToken(""); err != nil {
		t.Fatalf("deleting a missing token should be a no-op: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("keychain should be empty: %v", m)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := isolate(t)
	m := useMemStore(t)
	cfg := Defaults()
	cfg.Viewer.MaxScale = 5
	cfg.General.TelemetryOptIn = true
	if err := Save(cfg, "tok"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.Viewer.MaxScale != 5 || !got.General.TelemetryOptIn {
		t.Fatalf("round trip lost fields: %#v", got)
	}
	if m[keyringService+"/"+keyringToken] != "tok" {
		t.Fatalf("token not stored")
	}
}
