/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type ArenaConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type ViewerConfig struct {
	ZoomMode   string  `yaml:"zoom_mode"` // "fill" | "free"
	MaxScale   float32 `yaml:"max_scale"`
	ShowFooter bool    `yaml:"show_footer"`
}

type CacheConfig struct {
	Path     string `yaml:"path"` // empty means the user cache dir
	MaxBytes int64  `yaml:"max_bytes"`
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Arena         ArenaConfig   `yaml:"arena"`
	Viewer        ViewerConfig  `yaml:"viewer"`
	Cache         CacheConfig   `yaml:"cache"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Arena:         ArenaConfig{BaseURL: "https://api.are.na", TimeoutMs: 10000},
		Viewer:        ViewerConfig{ZoomMode: "fill", MaxScale: 3, ShowFooter: true},
		Cache:         CacheConfig{MaxBytes: 32 << 20},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvArenaURL       = "BV_ARENA_URL"
	EnvArenaTimeoutMs = "BV_ARENA_TIMEOUT_MS"
	EnvZoomMode       = "BV_ZOOM_MODE"
	EnvMaxScale       = "BV_MAX_SCALE"
	EnvShowFooter     = "BV_SHOW_FOOTER"
	EnvCachePath      = "BV_CACHE_PATH"
	EnvCacheMaxBytes  = "BV_CACHE_MAX_BYTES"
	EnvTelemetryOptIn = "BV_TELEMETRY_OPT_IN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "BV_LOG_LEVEL"
	EnvLogFormat = "BV_LOG_FORMAT"
	EnvLogSource = "BV_LOG_SOURCE"
	EnvLogFile   = "BV_LOG_FILE"
	// EnvToken overrides the keychain token; usually set from a .env file.
	EnvToken = "ARENA_PAT"
	// EnvConfigFile points Load at a different YAML file.
	EnvConfigFile = "BV_CONFIG"
)

// Service/keys for OS keyring.
const (
	keyringService = "blockviewer"
	keyringToken   = "arena_token"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "blockviewer", "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// The Are.na token is returned separately: ARENA_PAT wins over the keychain.
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return cfg, "", err
	}
	return cfg, Token(), nil
}

// LoadFile is Load for an explicit path, without the token lookup.
// A missing file is not an error.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Token returns the Are.na token, or "" when none is configured.
func Token() string {
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		return v
	}
	tok, err := tokenStore.Get(keyringService, keyringToken)
	if err != nil {
		return ""
	}
	return tok
}

// SetToken stores tok in the keychain; an empty tok deletes it.
func SetToken(tok string) error {
	if tok == "" {
		err := tokenStore.Delete(keyringService, keyringToken)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return tokenStore.Set(keyringService, keyringToken, tok)
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := SaveFile(path, cfg); err != nil {
		return err
	}
	if token != "" {
		return SetToken(token)
	}
	return nil
}

// SaveFile writes cfg as YAML to path.
func SaveFile(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if src.Arena.BaseURL != "" {
		dst.Arena.BaseURL = src.Arena.BaseURL
	}
	if src.Arena.TimeoutMs != 0 {
		dst.Arena.TimeoutMs = src.Arena.TimeoutMs
	}
	if m := strings.ToLower(strings.TrimSpace(src.Viewer.ZoomMode)); m != "" {
		dst.Viewer.ZoomMode = m
	}
	if src.Viewer.MaxScale > 0 {
		dst.Viewer.MaxScale = src.Viewer.MaxScale
	}
	dst.Viewer.ShowFooter = src.Viewer.ShowFooter
	if strings.TrimSpace(src.Cache.Path) != "" {
		dst.Cache.Path = strings.TrimSpace(src.Cache.Path)
	}
	if src.Cache.MaxBytes != 0 {
		dst.Cache.MaxBytes = src.Cache.MaxBytes
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvArenaURL)); v != "" {
		cfg.Arena.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvArenaTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Arena.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvZoomMode)); v != "" {
		cfg.Viewer.ZoomMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxScale)); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil && f > 0 {
			cfg.Viewer.MaxScale = float32(f)
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvShowFooter)); v != "" {
		cfg.Viewer.ShowFooter = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvCachePath)); v != "" {
		cfg.Cache.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheMaxBytes)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Cache.MaxBytes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"arena.base_url":           EnvArenaURL,
	"arena.timeout_ms":         EnvArenaTimeoutMs,
	"viewer.zoom_mode":         EnvZoomMode,
	"viewer.max_scale":         EnvMaxScale,
	"viewer.show_footer":       EnvShowFooter,
	"cache.path":               EnvCachePath,
	"cache.max_bytes":          EnvCacheMaxBytes,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Timeout returns the request timeout, falling back to the default.
func (a ArenaConfig) Timeout() time.Duration {
	if a.TimeoutMs <= 0 {
		return time.Duration(Defaults().Arena.TimeoutMs) * time.Millisecond
	}
	return time.Duration(a.TimeoutMs) * time.Millisecond
}
