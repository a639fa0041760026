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
	"image"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"blockviewer/internal/gesture"
	"blockviewer/internal/geom"
	"blockviewer/internal/listen"
	"blockviewer/internal/minimap"
	"blockviewer/internal/ring"
	"blockviewer/internal/thumbs"
	"blockviewer/internal/viewport"
)

const (
	footerHeight = StripThumb + 16
	ringInset    = 56
	minimapInset = 16
	panelWidth   = 280
	// below this width the side panel folds away and the card takes it all
	panelMinWindow = 640
	dotSize        = 8
	dotGap         = 6
)

var (
	backdrop  = color.RGBA{R: 12, G: 12, B: 14, A: 255}
	indicator = color.RGBA{R: 255, G: 255, B: 255, A: 220}
	dotOn     = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	dotOff    = color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

// PageActions are the buttons and links around the card. *Session
// satisfies it.
type PageActions interface {
	Open(id int64) bool
	Previous() bool
	Next() bool
	Leave()
	ToggleFooter()
}

var glyphs = map[viewport.Icon]string{
	viewport.IconArrowLeft:  "←",
	viewport.IconArrowRight: "→",
	viewport.IconClose:      "✕",
}

// BlockView draws one block image inside a swipeable card with the four
// edge rings, the zoom buttons and the minimap, and around it the page:
// progress dots, the title panel with its buttons and the footer strip.
// Card input is forwarded to the viewport and page input to the actions;
// the view only renders snapshots and chrome.
type BlockView struct {
	widget.BaseWidget
	vp      *viewport.Viewport
	doc     *listen.Document
	actions PageActions

	snap    viewport.Snapshot
	chrome  Chrome
	card    gesture.CardTransform
	anim    *fyne.Animation
	img     image.Image
	natural geom.Size
	status  string

	pressed bool
	last    fyne.Position
	mini    *minimapView
	measure fyne.Size
}

// NewBlockView binds a view to vp. Pointer drags on the minimap are
// published on doc, where the viewport listens for them. actions may be
// nil, in which case the page buttons do nothing.
func NewBlockView(vp *viewport.Viewport, doc *listen.Document, actions PageActions) *BlockView {
	b := &BlockView{vp: vp, doc: doc, actions: actions, snap: vp.Snapshot(), card: gesture.IdentityCard}
	b.mini = newMinimapView(b)
	vp.Subscribe(b.apply)
	b.ExtendBaseWidget(b)
	return b
}

// Show displays a finished load.
func (b *BlockView) Show(l Loaded) {
	b.status = ""
	b.img, b.natural = nil, geom.Size{}
	switch {
	case l.Err != nil:
		b.status = l.Err.Error()
	case l.Image != nil:
		r := l.Image.Bounds()
		b.img = l.Image
		b.natural = geom.Size{W: float32(r.Dx()), H: float32(r.Dy())}
	}
	if l.Block != nil && b.img == nil && b.status == "" {
		b.status = l.Block.Alt()
	}
	b.mini.setImage(b.img, b.natural)
	b.measure = fyne.Size{}
	c := b.container(b.Size())
	b.vp.ImageLoaded(b.natural, geom.Size{}, c.Size())
	b.Refresh()
}

// SetChrome renders a new page state.
func (b *BlockView) SetChrome(c Chrome) {
	b.chrome = c
	b.Refresh()
}

func (b *BlockView) apply(s viewport.Snapshot) {
	prev := b.card
	b.snap = s
	if b.anim != nil {
		b.anim.Stop()
		b.anim = nil
	}
	if !s.Animate || s.Card.Swiping || prev == s.Card.Card {
		b.card = s.Card.Card
		b.Refresh()
		return
	}
	to := s.Card.Card
	b.anim = fyne.NewAnimation(150*time.Millisecond, func(f float32) {
		b.card = gesture.CardTransform{
			TranslateX: prev.TranslateX + (to.TranslateX-prev.TranslateX)*f,
			TranslateY: prev.TranslateY + (to.TranslateY-prev.TranslateY)*f,
			Scale:      prev.Scale + (to.Scale-prev.Scale)*f,
		}
		b.Refresh()
	})
	b.anim.Curve = fyne.AnimationEaseOut
	b.anim.Start()
}

// container is the card area. The dots and the footer strip overlay it;
// the side panel takes its own column on wide windows.
func (b *BlockView) container(size fyne.Size) geom.Rect {
	w := size.Width
	if panelShown(size) {
		w -= panelWidth
	}
	return geom.R(0, 0, max(w, 0), size.Height)
}

func panelShown(size fyne.Size) bool { return size.Width >= panelMinWindow }

func (b *BlockView) act(fn func(PageActions)) func() {
	return func() {
		if b.actions != nil {
			fn(b.actions)
		}
	}
}

func pt(p fyne.Position) geom.Pt { return geom.Pt{X: p.X, Y: p.Y} }

// MouseDown starts a click, swipe or pan.
func (b *BlockView) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	b.pressed = true
	b.last = e.Position
	b.vp.MouseDown(pt(e.Position))
}

// MouseUp ends a press that never turned into a drag.
func (b *BlockView) MouseUp(e *desktop.MouseEvent) {
	if !b.pressed {
		return
	}
	b.pressed = false
	b.vp.MouseUp(pt(e.Position))
}

func (b *BlockView) Dragged(e *fyne.DragEvent) {
	if !b.pressed {
		return
	}
	b.last = e.Position
	b.vp.MouseMove(pt(e.Position))
}

func (b *BlockView) DragEnd() {
	if !b.pressed {
		return
	}
	b.pressed = false
	b.vp.MouseUp(pt(b.last))
}

// Scrolled zooms around the cursor. Fyne reports wheel-up as positive DY.
func (b *BlockView) Scrolled(e *fyne.ScrollEvent) {
	b.vp.Wheel(-e.Scrolled.DY, pt(e.Position))
}

func (b *BlockView) MinSize() fyne.Size { return fyne.NewSize(320, 320) }

func (b *BlockView) CreateRenderer() fyne.WidgetRenderer {
	r := &blockViewRenderer{
		b:       b,
		bg:      canvas.NewRectangle(backdrop),
		image:   canvas.NewImageFromImage(nil),
		status:  canvas.NewText("", color.White),
		zoomIn:  widget.NewButton("+", b.vp.ZoomIn),
		zoomOut: widget.NewButton("−", b.vp.ZoomOut),
		title:   widget.NewLabel(""),
		desc:    widget.NewLabel(""),
		prev:    widget.NewButtonWithIcon("", theme.NavigateBackIcon(), b.act(func(a PageActions) { a.Previous() })),
		next:    widget.NewButtonWithIcon("", theme.NavigateNextIcon(), b.act(func(a PageActions) { a.Next() })),
		close:   widget.NewButtonWithIcon("", theme.CancelIcon(), b.act(PageActions.Leave)),
		toggle:  widget.NewButtonWithIcon("", theme.MenuDropUpIcon(), b.act(PageActions.ToggleFooter)),
		stripBg: canvas.NewRectangle(color.NRGBA{A: 200}),
		panelBg: canvas.NewRectangle(color.NRGBA{R: 24, G: 24, B: 28, A: 255}),
	}
	r.image.FillMode = canvas.ImageFillStretch
	r.image.ScaleMode = canvas.ImageScaleSmooth
	r.title.TextStyle = fyne.TextStyle{Bold: true}
	r.title.Truncation = fyne.TextTruncateEllipsis
	r.desc.Wrapping = fyne.TextWrapWord
	r.descScroll = container.NewVScroll(r.desc)
	r.objects = []fyne.CanvasObject{r.bg, r.image, r.status}
	for i := range r.rings {
		c := canvas.NewCircle(color.Transparent)
		c.StrokeWidth = 4
		g := canvas.NewText("", color.White)
		g.TextSize = 22
		g.Alignment = fyne.TextAlignCenter
		r.rings[i], r.glyphs[i] = c, g
		r.objects = append(r.objects, c, g)
	}
	r.base = append(r.objects, b.mini, r.zoomIn, r.zoomOut,
		r.panelBg, r.title, r.descScroll, r.prev, r.next, r.close, r.toggle, r.stripBg)
	r.objects = r.base
	return r
}

type blockViewRenderer struct {
	b       *BlockView
	bg      *canvas.Rectangle
	image   *canvas.Image
	status  *canvas.Text
	rings   [4]*canvas.Circle
	glyphs  [4]*canvas.Text
	zoomIn  *widget.Button
	zoomOut *widget.Button

	panelBg    *canvas.Rectangle
	title      *widget.Label
	desc       *widget.Label
	descScroll *container.Scroll
	prev       *widget.Button
	next       *widget.Button
	close      *widget.Button
	toggle     *widget.Button
	stripBg    *canvas.Rectangle
	dots       []*dotView
	strip      []*stripItemView
	footerOpen bool

	// base holds the fixed objects; dots and strip items follow it
	base    []fyne.CanvasObject
	objects []fyne.CanvasObject
}

func (r *blockViewRenderer) Destroy()                     {}
func (r *blockViewRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *blockViewRenderer) MinSize() fyne.Size           { return r.b.MinSize() }
func (r *blockViewRenderer) Refresh() {
	r.Layout(r.b.Size())
	for _, o := range r.objects {
		o.Refresh()
	}
}

func (r *blockViewRenderer) Layout(size fyne.Size) {
	b := r.b
	r.sync()
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))

	c := b.container(size)
	b.vp.Layout(c, geom.Size{W: size.Width, H: size.Height}, c)

	t := b.snap.Transform
	rendered := geom.Size{W: b.natural.W * t.Rendered(), H: b.natural.H * t.Rendered()}
	if cs := fyne.NewSize(c.W, c.H); cs != b.measure && !b.natural.IsZero() {
		b.measure = cs
		b.vp.Measure(rendered, c.Size())
		b.snap.Minimap = b.vp.Snapshot().Minimap
	}

	// image centered in the container plus pan, then the card transform
	// scales around the container center and translates
	center := c.Center()
	x := center.X + t.PanX - rendered.W/2
	y := center.Y + t.PanY - rendered.H/2
	k := b.card.Scale
	x = center.X + (x-center.X)*k + b.card.TranslateX
	y = center.Y + (y-center.Y)*k + b.card.TranslateY
	r.image.Image = b.img
	r.image.Move(fyne.NewPos(x, y))
	r.image.Resize(fyne.NewSize(rendered.W*k, rendered.H*k))
	if b.img == nil {
		r.image.Hide()
	} else {
		r.image.Show()
	}

	r.status.Text = b.status
	sz := r.status.MinSize()
	r.status.Move(fyne.NewPos(center.X-sz.Width/2, center.Y-sz.Height/2))

	for i, ind := range b.snap.Indicators {
		r.layoutRing(i, ind, c)
	}

	bs := r.zoomIn.MinSize()
	r.zoomIn.Resize(bs)
	r.zoomOut.Resize(bs)
	r.zoomIn.Move(fyne.NewPos(c.W-bs.Width-minimapInset, minimapInset))
	r.zoomOut.Move(fyne.NewPos(c.W-bs.Width-minimapInset, minimapInset+bs.Height+4))

	if b.snap.Minimap.Visible && b.img != nil {
		m := b.mini.size()
		bottom := c.H - minimapInset
		if b.chrome.FooterVisible {
			bottom -= footerHeight
		}
		b.mini.Resize(m)
		b.mini.Move(fyne.NewPos(c.W-m.Width-minimapInset, bottom-m.Height))
		b.mini.Show()
	} else {
		b.mini.Hide()
	}

	r.layoutPanel(size, c)
	r.layoutDots(c)
	r.layoutStrip(size, c)
}

func (r *blockViewRenderer) layoutPanel(size fyne.Size, c geom.Rect) {
	ch := r.b.chrome
	panel := []fyne.CanvasObject{r.panelBg, r.title, r.descScroll}
	if !panelShown(size) {
		for _, o := range panel {
			o.Hide()
		}
	} else {
		const pad = 12
		x := c.W
		r.panelBg.Move(fyne.NewPos(x, 0))
		r.panelBg.Resize(fyne.NewSize(panelWidth, size.Height))
		r.title.SetText(ch.Title)
		r.desc.SetText(ch.Description)
		th := r.title.MinSize().Height
		r.title.Move(fyne.NewPos(x+pad, pad))
		r.title.Resize(fyne.NewSize(panelWidth-2*pad, th))
		bh := r.close.MinSize().Height
		r.descScroll.Move(fyne.NewPos(x+pad, pad+th))
		r.descScroll.Resize(fyne.NewSize(panelWidth-2*pad, max(size.Height-th-bh-3*pad, 0)))
		for _, o := range panel {
			o.Show()
		}
	}

	// buttons sit at the bottom of the panel, or over the card's top
	// right corner when the panel is folded
	buttons := []*widget.Button{r.toggle, r.prev, r.next, r.close}
	bs := r.close.MinSize()
	x := c.W + panelWidth - 12 - float32(len(buttons))*(bs.Width+4)
	y := size.Height - bs.Height - 12
	if !panelShown(size) {
		x = c.W - 12 - float32(len(buttons))*(bs.Width+4)
		y = 12 + 2*(r.zoomIn.MinSize().Height+4)
	}
	if ch.FooterVisible != r.footerOpen {
		r.footerOpen = ch.FooterVisible
		if r.footerOpen {
			r.toggle.SetIcon(theme.MenuDropDownIcon())
		} else {
			r.toggle.SetIcon(theme.MenuDropUpIcon())
		}
	}
	for _, btn := range buttons {
		if btn == r.close || ch.Navigable {
			btn.Resize(bs)
			btn.Move(fyne.NewPos(x, y))
			btn.Show()
		} else {
			btn.Hide()
		}
		x += bs.Width + 4
	}
}

// sync rebuilds the dot and strip widgets when the ordering or the strip
// changed length.
func (r *blockViewRenderer) sync() {
	ch := r.b.chrome
	changed := false
	if len(r.dots) != len(ch.Dots) {
		r.dots = make([]*dotView, len(ch.Dots))
		for i := range r.dots {
			r.dots[i] = newDotView(r.b)
		}
		changed = true
	}
	if len(r.strip) != len(ch.Strip) {
		r.strip = make([]*stripItemView, len(ch.Strip))
		for i := range r.strip {
			r.strip[i] = newStripItemView(r.b)
		}
		changed = true
	}
	if !changed {
		return
	}
	objs := append([]fyne.CanvasObject(nil), r.base...)
	for _, d := range r.dots {
		objs = append(objs, d)
	}
	for _, it := range r.strip {
		objs = append(objs, it)
	}
	r.objects = objs
}

func (r *blockViewRenderer) layoutDots(c geom.Rect) {
	ch := r.b.chrome
	n := float32(len(r.dots))
	x := c.W/2 - (n*dotSize+(n-1)*dotGap)/2
	for i, d := range r.dots {
		d.set(ch.Dots[i], ch.DotsOpacity)
		d.Resize(fyne.NewSize(dotSize, dotSize))
		d.Move(fyne.NewPos(x+float32(i)*(dotSize+dotGap), 12))
		d.Show()
	}
}

func (r *blockViewRenderer) layoutStrip(size fyne.Size, c geom.Rect) {
	ch := r.b.chrome
	if !ch.FooterVisible {
		r.stripBg.Hide()
		for _, it := range r.strip {
			it.Hide()
		}
		return
	}
	top := size.Height - footerHeight
	r.stripBg.Move(fyne.NewPos(0, top))
	r.stripBg.Resize(fyne.NewSize(c.W, footerHeight))
	r.stripBg.Show()
	for i, it := range r.strip {
		it.set(ch.Strip[i])
		it.Resize(fyne.NewSize(StripThumb, StripThumb))
		it.Move(fyne.NewPos(8+float32(i)*(StripThumb+8), top+8))
		it.Show()
	}
}

func (r *blockViewRenderer) layoutRing(i int, ind ring.Indicator, c geom.Rect) {
	circle, glyph := r.rings[i], r.glyphs[i]
	if ind.Opacity == 0 {
		circle.Hide()
		glyph.Hide()
		return
	}
	var at geom.Pt
	switch ind.Edge {
	case ring.EdgeTop:
		at = geom.Pt{X: c.W / 2, Y: ringInset}
	case ring.EdgeBottom:
		at = geom.Pt{X: c.W / 2, Y: c.H - ringInset}
	case ring.EdgeLeft:
		at = geom.Pt{X: ringInset, Y: c.H / 2}
	default:
		at = geom.Pt{X: c.W - ringInset, Y: c.H / 2}
	}
	rad := ind.PixelRadius
	cr, cg, cb := ind.Stroke.RGB255()
	circle.StrokeColor = color.NRGBA{R: cr, G: cg, B: cb, A: uint8(255 * ind.Opacity)}
	circle.FillColor = color.NRGBA{A: uint8(96 * ind.Fill)}
	circle.Move(fyne.NewPos(at.X-rad, at.Y-rad))
	circle.Resize(fyne.NewSize(2*rad, 2*rad))
	circle.Show()

	glyph.Text = glyphs[r.b.snap.Icons.For(ind.Direction)]
	gs := glyph.MinSize()
	glyph.Move(fyne.NewPos(at.X-gs.Width/2, at.Y-gs.Height/2))
	glyph.Show()
}

// minimapView is the thumbnail with its viewport indicator. Presses start
// an indicator drag; moves and the release are published on the document.
type minimapView struct {
	widget.BaseWidget
	b      *BlockView
	thumb  *canvas.Image
	frame  *canvas.Rectangle
	dims   geom.Size
	last   fyne.Position
	active bool
}

func newMinimapView(b *BlockView) *minimapView {
	m := &minimapView{b: b, thumb: canvas.NewImageFromImage(nil), frame: canvas.NewRectangle(color.Transparent)}
	m.thumb.FillMode = canvas.ImageFillStretch
	m.frame.StrokeColor = indicator
	m.frame.StrokeWidth = 2
	m.ExtendBaseWidget(m)
	return m
}

func (m *minimapView) setImage(img image.Image, natural geom.Size) {
	m.dims = minimap.Fit(natural, geom.Size{W: minimap.MaxSide, H: minimap.MaxSide})
	if img == nil || m.dims.IsZero() {
		m.thumb.Image = nil
		return
	}
	m.thumb.Image = thumbs.Fit(img, m.dims)
}

func (m *minimapView) size() fyne.Size { return fyne.NewSize(m.dims.W, m.dims.H) }

func (m *minimapView) MouseDown(e *desktop.MouseEvent) {
	m.active = true
	m.last = e.Position
	m.b.vp.MinimapDown(pt(e.Position))
}

func (m *minimapView) MouseUp(e *desktop.MouseEvent) {
	if !m.active {
		return
	}
	m.active = false
	m.b.doc.PointerUp.Emit(pt(e.Position))
}

func (m *minimapView) Dragged(e *fyne.DragEvent) {
	m.last = e.Position
	m.b.doc.PointerMove.Emit(pt(e.Position))
}

func (m *minimapView) DragEnd() {
	if !m.active {
		return
	}
	m.active = false
	m.b.doc.PointerUp.Emit(pt(m.last))
}

func (m *minimapView) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.NRGBA{A: 160})
	return &minimapRenderer{m: m, bg: bg, objects: []fyne.CanvasObject{bg, m.thumb, m.frame}}
}

type minimapRenderer struct {
	m       *minimapView
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *minimapRenderer) Destroy()                     {}
func (r *minimapRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *minimapRenderer) MinSize() fyne.Size           { return r.m.size() }
func (r *minimapRenderer) Refresh() {
	r.Layout(r.m.Size())
	canvas.Refresh(r.m)
}

func (r *minimapRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.m.thumb.Resize(size)
	rect := r.m.b.snap.Minimap.Rect
	ox, oy := rect.Origin()
	r.m.frame.Move(fyne.NewPos(ox/100*size.Width, oy/100*size.Height))
	r.m.frame.Resize(fyne.NewSize(rect.Width/100*size.Width, rect.Height/100*size.Height))
}

// dotView is one progress dot; tapping it opens its block.
type dotView struct {
	widget.BaseWidget
	b      *BlockView
	id     int64
	circle *canvas.Circle
}

func newDotView(b *BlockView) *dotView {
	d := &dotView{b: b, circle: canvas.NewCircle(dotOff)}
	d.ExtendBaseWidget(d)
	return d
}

func (d *dotView) set(dot Dot, opacity float32) {
	d.id = dot.ID
	c := dotOff
	if dot.Current {
		c = dotOn
	}
	c.A = uint8(255 * opacity)
	d.circle.FillColor = c
	d.circle.Refresh()
}

func (d *dotView) Tapped(*fyne.PointEvent) {
	if d.b.actions != nil {
		d.b.actions.Open(d.id)
	}
}

func (d *dotView) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(d.circle)
}

// stripItemView is one footer thumbnail; tapping it opens its block.
type stripItemView struct {
	widget.BaseWidget
	b     *BlockView
	id    int64
	thumb *canvas.Image
	alt   *canvas.Text
	frame *canvas.Rectangle
}

func newStripItemView(b *BlockView) *stripItemView {
	it := &stripItemView{
		b:     b,
		thumb: canvas.NewImageFromImage(nil),
		alt:   canvas.NewText("", color.White),
		frame: canvas.NewRectangle(color.Transparent),
	}
	it.thumb.FillMode = canvas.ImageFillContain
	it.alt.TextSize = 9
	it.frame.StrokeWidth = 2
	it.ExtendBaseWidget(it)
	return it
}

func (it *stripItemView) set(item StripItem) {
	it.id = item.ID
	it.thumb.Image = item.Thumb
	it.alt.Text = ""
	if item.Thumb == nil {
		it.alt.Text = item.Alt
	}
	it.frame.StrokeColor = color.Transparent
	if item.Current {
		it.frame.StrokeColor = indicator
	}
	it.Refresh()
}

func (it *stripItemView) Tapped(*fyne.PointEvent) {
	if it.b.actions != nil {
		it.b.actions.Open(it.id)
	}
}

func (it *stripItemView) CreateRenderer() fyne.WidgetRenderer {
	return &stripItemRenderer{it: it, objects: []fyne.CanvasObject{it.thumb, it.alt, it.frame}}
}

type stripItemRenderer struct {
	it      *stripItemView
	objects []fyne.CanvasObject
}

func (r *stripItemRenderer) Destroy()                     {}
func (r *stripItemRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *stripItemRenderer) MinSize() fyne.Size           { return fyne.NewSize(StripThumb, StripThumb) }
func (r *stripItemRenderer) Refresh() {
	r.Layout(r.it.Size())
	canvas.Refresh(r.it)
}

func (r *stripItemRenderer) Layout(size fyne.Size) {
	r.it.thumb.Resize(size)
	r.it.frame.Resize(size)
	r.it.alt.Move(fyne.NewPos(2, size.Height/2-r.it.alt.MinSize().Height/2))
}
