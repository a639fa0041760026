//go:build fyne && cgo

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
	"fmt"
	"image"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"blockviewer/internal/arena"
	"blockviewer/internal/listen"
	applog "blockviewer/internal/log"
)

var keys = map[fyne.KeyName]listen.Key{
	fyne.KeyEscape: listen.KeyEscape,
	fyne.KeyLeft:   listen.KeyArrowLeft,
	fyne.KeyRight:  listen.KeyArrowRight,
	fyne.KeyUp:     listen.KeyArrowUp,
	fyne.KeyDown:   listen.KeyArrowDown,
}

// Run opens the desktop viewer on opts.Location and blocks until the window closes.
func Run(opts RunOptions) error {
	l := applog.WithComponent("ui")
	l.Info("starting viewer", slog.Int64("block", opts.Location.ID))

	fyneApp := app.NewWithID("io.blockviewer")
	w := fyneApp.NewWindow("Are.na")
	// Restore window size from preferences (with sane minimums)
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 960), 480)
	winH := max(prefs.IntWithFallback("window.height", 720), 480)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	doc := &listen.Document{}
	var view *BlockView
	sess, err := NewSession(opts.Location, SessionOptions{
		Blocks: opts.Blocks,
		Images: func(ctx context.Context, u string) (image.Image, error) {
			return arena.FetchImage(ctx, opts.HTTP, u)
		},
		Policy:     opts.Policy,
		Dispatch:   fyne.Do,
		ShowFooter: opts.ShowFooter,
		OnLoaded: func(ld Loaded) {
			if view != nil {
				view.Show(ld)
			}
		},
		OnChrome: func(c Chrome) {
			if view != nil {
				view.SetChrome(c)
			}
		},
		OnClose: func(u string) {
			l.Info("viewer closed", slog.String("to", u))
			w.Close()
		},
	})
	if err != nil {
		return fmt.Errorf("open viewer: %w", err)
	}
	if opts.OnSession != nil {
		opts.OnSession(sess)
	}
	view = NewBlockView(sess.Viewport(), doc, sess)
	view.SetChrome(sess.Chrome())
	sess.Viewport().Mount(doc)

	w.SetContent(view)
	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if k, ok := keys[ev.Name]; ok {
			doc.KeyDown.Emit(k)
			return
		}
		if ev.Name == fyne.KeyBackspace {
			sess.Back()
		}
	})
	w.SetOnClosed(func() {
		s := w.Canvas().Size()
		prefs.SetInt("window.width", int(s.Width))
		prefs.SetInt("window.height", int(s.Height))
		sess.Close()
	})

	sess.Start()
	w.ShowAndRun()
	return nil
}
