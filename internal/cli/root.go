/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli holds the cobra commands of the blockviewer binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"blockviewer/internal/arena"
	"blockviewer/internal/config"
	"blockviewer/internal/crash"
	applog "blockviewer/internal/log"
	"blockviewer/internal/storage"
	"blockviewer/internal/telemetry"
)

// app is the state shared by every command, built in PersistentPreRunE.
type app struct {
	cfg       config.AppConfig
	token     string
	apiURL    string
	cachePath string
	noCache   bool
	log       *slog.Logger
	tel       *telemetry.Client
	store     *storage.Store
	http      *http.Client

	// crash context, read by crash.Recover
	mu      sync.Mutex
	state   map[string]string
	viewing func() string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

// NewRootWithCrash builds the command tree and crash options bound to it:
// reports carry the running command and the block on screen, and a crash
// closes the block cache. dir receives the reports.
func NewRootWithCrash(dir string) (*cobra.Command, crash.Options) {
	cmd, a := newRoot()
	return cmd, crash.Options{Dir: dir, State: a.crashState, Release: a.release}
}

func newRoot() (*cobra.Command, *app) {
	a := &app{state: map[string]string{}}
	cmd := &cobra.Command{
		Use:   "blockviewer",
		Short: "Desktop viewer for Are.na blocks",
		Long: `blockviewer opens Are.na blocks in a swipeable, zoomable viewer.

Swipe or use the arrow keys to move through an ordering, swipe down or press
Escape to close, scroll or use the buttons to zoom. Blocks are cached in a
local sqlite database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			a.note("command", cmd.CommandPath())
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close(cmd.Context())
		},
	}
	cmd.PersistentFlags().StringVar(&a.apiURL, "api", "", "Are.na API base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&a.cachePath, "cache", "", "block cache path (overrides config)")
	cmd.PersistentFlags().BoolVar(&a.noCache, "no-cache", false, "do not read or write the block cache")

	cmd.AddCommand(newViewCmd(a), newBlockCmd(a), newCacheCmd(a), newTokenCmd(), newVersionCmd())
	return cmd, a
}

func (a *app) init() error {
	cfg, tok, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg, a.token = cfg, tok
	if a.apiURL != "" {
		a.cfg.Arena.BaseURL = a.apiURL
	}
	if a.cachePath != "" {
		a.cfg.Cache.Path = a.cachePath
	}
	applog.Init(applog.Options{
		Level:     a.cfg.Logging.Level,
		Format:    a.cfg.Logging.Format,
		AddSource: a.cfg.Logging.Source,
		File:      a.cfg.Logging.File,
	})
	a.log = applog.WithComponent("cli")
	a.tel = telemetry.New(telemetry.FromEnv(a.cfg.General.TelemetryOptIn))
	telemetry.SetDefault(a.tel)
	a.http = &http.Client{Timeout: a.cfg.Arena.Timeout()}
	return nil
}

// openStore opens the block cache unless --no-cache is set.
func (a *app) openStore(ctx context.Context) (*storage.Store, error) {
	if a.noCache {
		return nil, nil
	}
	if a.store != nil {
		return a.store, nil
	}
	path := strings.TrimSpace(a.cfg.Cache.Path)
	if path == "" {
		p, err := storage.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	s, err := storage.Open(ctx, path, a.cfg.Cache.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("open block cache: %w", err)
	}
	a.store = s
	return s, nil
}

func (a *app) blocks(ctx context.Context) (*arena.Cache, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	client := arena.NewClient(a.cfg.Arena.BaseURL, a.token, a.cfg.Arena.Timeout())
	return arena.NewCache(client, store), nil
}

func (a *app) close(ctx context.Context) {
	if a.tel != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		a.tel.Flush(ctx)
		a.tel.Close()
		telemetry.SetDefault(nil)
		a.tel = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.log != nil {
			a.log.Warn("close block cache", slog.Any("err", err))
		}
		a.store = nil
	}
}

// note records crash context.
func (a *app) note(key, value string) {
	a.mu.Lock()
	a.state[key] = value
	a.mu.Unlock()
}

// watch makes crash reports carry the URL of the block on screen.
func (a *app) watch(url func() string) {
	a.mu.Lock()
	a.viewing = url
	a.mu.Unlock()
}

func (a *app) crashState() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.state)+1)
	for k, v := range a.state {
		out[k] = v
	}
	if a.viewing != nil {
		out["viewing"] = a.viewing()
	}
	return out
}

// release closes the block cache and stops telemetry after a crash.
func (a *app) release() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close block cache: %w", err))
		}
		a.store = nil
	}
	if a.tel != nil {
		a.tel.Close()
		telemetry.SetDefault(nil)
		a.tel = nil
	}
	return errors.Join(errs...)
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
