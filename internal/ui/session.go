/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"blockviewer/internal/arena"
	"blockviewer/internal/geom"
	"blockviewer/internal/gesture"
	applog "blockviewer/internal/log"
	"blockviewer/internal/nav"
	"blockviewer/internal/sched"
	"blockviewer/internal/telemetry"
	"blockviewer/internal/thumbs"
	"blockviewer/internal/viewport"
	"blockviewer/internal/zoom"
)

// StripThumb is the side of a footer thumbnail, in pixels.
const StripThumb = 64

// DotsOpacity is the opacity of the progress dots at rest. They fade out
// while a swipe is live.
const DotsOpacity float32 = 0.5

// ErrNoDispatch is returned by NewSession when no UI dispatcher is set.
var ErrNoDispatch = errors.New("ui: a dispatch function is required")

// BlockSource resolves block ids; *arena.Cache satisfies it.
type BlockSource interface {
	Get(ctx context.Context, id int64) (*arena.Block, error)
	Prefetch(ctx context.Context, ids []int64) ([]*arena.Block, error)
}

// ImageSource downloads a decoded image.
type ImageSource func(ctx context.Context, url string) (image.Image, error)

// Loaded is one finished block load, delivered on the UI goroutine.
type Loaded struct {
	ID    int64
	Block *arena.Block
	Image image.Image
	Err   error
}

// Dot is one entry of the ordering progress row.
type Dot struct {
	ID      int64
	Current bool
}

// StripItem is one footer thumbnail. Thumb is nil when the image could not
// be fetched; Alt stands in for it.
type StripItem struct {
	ID      int64
	Alt     string
	Thumb   image.Image
	Current bool
}

// Chrome is the page around the card: progress dots, the footer strip, the
// title panel and the navigation buttons.
type Chrome struct {
	Dots          []Dot
	DotsOpacity   float32
	Strip         []StripItem
	FooterVisible bool
	Title         string
	Description   string
	// Navigable is true with an ordering: the previous and next buttons show.
	Navigable bool
	Swiping   bool
}

// SessionOptions wire a Session to its collaborators.
type SessionOptions struct {
	Blocks BlockSource
	Images ImageSource
	Policy zoom.Policy
	// Dispatch runs fn on the UI goroutine. It is required: loads, the
	// footer strip and, by default, the viewport timers are delivered
	// through it.
	Dispatch func(fn func())
	// Scheduler defaults to a wall-clock scheduler using Dispatch.
	Scheduler sched.Scheduler
	// ShowFooter opens the footer strip once it has loaded.
	ShowFooter bool
	// OnLoaded receives every finished load of the current block.
	OnLoaded func(Loaded)
	// OnChrome receives the page state whenever it changes.
	OnChrome func(Chrome)
	// OnClose receives the URL the viewer leaves to.
	OnClose func(url string)
}

// Session is one open viewer: the navigator, the viewport it drives, the
// page around it and the background loads of the blocks it shows. Apart
// from Close, methods must be called on the UI goroutine.
type Session struct {
	opts SessionOptions
	nav  *nav.Navigator
	vp   *viewport.Viewport
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	loadMu sync.Mutex
	// seq invalidates loads overtaken by a later navigation
	seq int

	block      *arena.Block
	strip      []StripItem
	swiping    bool
	footerOpen bool
}

// NewSession opens loc.
func NewSession(loc nav.Location, opts SessionOptions) (*Session, error) {
	if opts.Dispatch == nil {
		return nil, ErrNoDispatch
	}
	if opts.Scheduler == nil {
		opts.Scheduler = sched.NewReal(opts.Dispatch)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		opts:       opts,
		log:        applog.WithComponent("session"),
		ctx:        ctx,
		cancel:     cancel,
		footerOpen: opts.ShowFooter,
	}
	s.nav = nav.NewNavigator(loc, s.visit, nav.NewHistory(nav.DefaultDepth))
	vp, err := viewport.New(s.nav, viewport.Options{
		Policy:    opts.Policy,
		Scheduler: opts.Scheduler,
		Callbacks: s.callbacks(),
		OnZoomReset: func(scale float32) {
			telemetry.Record(telemetry.EventZoomReset, map[string]any{"scale": scale})
		},
		OnMinimapDrag: func() { telemetry.Record(telemetry.EventMinimapDrag, nil) },
	})
	if err != nil {
		cancel()
		return nil, err
	}
	s.vp = vp
	return s, nil
}

func (s *Session) callbacks() gesture.Callbacks {
	record := func(dir string, next func()) func() {
		return func() {
			telemetry.Record(telemetry.EventSwipe, map[string]any{"direction": dir})
			next()
		}
	}
	cb := gesture.Callbacks{
		OnSwipeDown:  record("down", func() { s.nav.Close() }),
		OnSwipeStart: func() { s.setSwiping(true) },
		OnSwipeEnd:   func() { s.setSwiping(false) },
	}
	if s.nav.HasOrder() {
		cb.OnSwipeLeft = record("left", func() { s.nav.Previous() })
		cb.OnSwipeRight = record("right", func() { s.nav.Next() })
	}
	return cb
}

func (s *Session) Viewport() *viewport.Viewport { return s.vp }
func (s *Session) Navigator() *nav.Navigator    { return s.nav }

// Start loads the current block, warms the cache with the ordering and
// builds the footer strip from it.
func (s *Session) Start() {
	telemetry.Record(telemetry.EventViewerOpened, map[string]any{"ordered": s.nav.HasOrder()})
	s.load(s.nav.Current())
	if order := s.nav.Order(); len(order) > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			blocks, err := s.opts.Blocks.Prefetch(s.ctx, order)
			if err != nil {
				if s.ctx.Err() == nil {
					s.log.Warn("prefetch ordering", slog.Any("err", err))
				}
				return
			}
			strip := s.fetchStrip(blocks)
			s.opts.Dispatch(func() {
				if s.ctx.Err() != nil {
					return
				}
				s.strip = strip
				s.emitChrome()
			})
		}()
	}
}

// fetchStrip downloads and scales the thumbnails of blocks. Missing blocks
// are skipped; a failed thumbnail leaves its item without an image.
func (s *Session) fetchStrip(blocks []*arena.Block) []StripItem {
	items := make([]StripItem, 0, len(blocks))
	for _, b := range blocks {
		if b != nil {
			items = append(items, StripItem{ID: b.ID, Alt: b.Alt()})
		}
	}
	if s.opts.Images == nil {
		return items
	}
	byID := make(map[int64]*arena.Block, len(blocks))
	for _, b := range blocks {
		if b != nil {
			byID[b.ID] = b
		}
	}
	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(4)
	for i := range items {
		u := byID[items[i].ID].ThumbURL()
		if u == "" {
			continue
		}
		g.Go(func() error {
			img, err := s.opts.Images(ctx, u)
			if err != nil {
				s.log.Debug("strip thumbnail", slog.String("url", u), slog.Any("err", err))
				return nil
			}
			if t := thumbs.Fit(img, geom.Size{W: StripThumb, H: StripThumb}); t != nil {
				items[i].Thumb = t
			}
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// Chrome derives the current page state.
func (s *Session) Chrome() Chrome {
	cur := s.nav.Current()
	c := Chrome{
		DotsOpacity:   DotsOpacity,
		FooterVisible: s.footerOpen && len(s.strip) > 0 && !s.swiping,
		Navigable:     s.nav.HasOrder(),
		Swiping:       s.swiping,
	}
	if s.swiping {
		c.DotsOpacity = 0
	}
	for _, id := range s.nav.Order() {
		c.Dots = append(c.Dots, Dot{ID: id, Current: id == cur})
	}
	if len(s.strip) > 0 {
		c.Strip = make([]StripItem, len(s.strip))
		for i, it := range s.strip {
			it.Current = it.ID == cur
			c.Strip[i] = it
		}
	}
	if s.block != nil {
		c.Title = s.block.Title
		c.Description = s.block.Description()
	}
	return c
}

func (s *Session) emitChrome() {
	if s.opts.OnChrome != nil {
		s.opts.OnChrome(s.Chrome())
	}
}

func (s *Session) setSwiping(on bool) {
	if s.swiping == on {
		return
	}
	s.swiping = on
	s.emitChrome()
}

// ToggleFooter opens or closes the footer strip.
func (s *Session) ToggleFooter() {
	s.footerOpen = !s.footerOpen
	s.emitChrome()
}

// Position reports where the current block sits in the ordering.
func (s *Session) Position() (index, total int, ok bool) {
	order := s.nav.Order()
	i := order.IndexOf(s.nav.Current())
	if i < 0 {
		return 0, 0, false
	}
	return i, len(order), true
}

// Open jumps to id, which must belong to the ordering. Dots and footer
// thumbnails call it.
func (s *Session) Open(id int64) bool {
	if s.nav.Order().IndexOf(id) < 0 || id == s.nav.Current() {
		return false
	}
	s.nav.Open(id)
	return true
}

// Previous, Next and Leave back the page buttons.
func (s *Session) Previous() bool { return s.nav.Previous() }
func (s *Session) Next() bool     { return s.nav.Next() }
func (s *Session) Leave()         { s.nav.Close() }

// Back and Forward walk the visit history.
func (s *Session) Back() bool    { return s.nav.Back() }
func (s *Session) Forward() bool { return s.nav.Forward() }

func (s *Session) visit(u string) {
	loc, err := nav.ParseBlockURL(u)
	if err != nil {
		telemetry.Record(telemetry.EventViewerClosed, nil)
		if s.opts.OnClose != nil {
			s.opts.OnClose(u)
		}
		return
	}
	s.load(loc.ID)
}

func (s *Session) load(id int64) {
	s.vp.SetItem(id)
	s.block = nil
	s.loadMu.Lock()
	s.seq++
	seq := s.seq
	s.loadMu.Unlock()
	s.emitChrome()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res := Loaded{ID: id}
		res.Block, res.Err = s.opts.Blocks.Get(s.ctx, id)
		if res.Err == nil && s.opts.Images != nil {
			if u := res.Block.DisplayURL(); u != "" {
				res.Image, res.Err = s.opts.Images(s.ctx, u)
			}
		}
		if res.Err != nil && s.ctx.Err() == nil {
			s.log.Warn("load block", slog.String("id", strconv.FormatInt(id, 10)), slog.Any("err", res.Err))
		}
		s.opts.Dispatch(func() {
			s.loadMu.Lock()
			current := seq == s.seq
			s.loadMu.Unlock()
			if !current || s.ctx.Err() != nil {
				return
			}
			s.block = res.Block
			if s.opts.OnLoaded != nil {
				s.opts.OnLoaded(res)
			}
			s.emitChrome()
		})
	}()
}

// Close cancels pending loads, unmounts the viewport and waits for the
// background work to finish. Dispatched work still queued on the UI
// goroutine becomes a no-op.
func (s *Session) Close() {
	s.cancel()
	s.vp.Unmount()
	s.wg.Wait()
}
