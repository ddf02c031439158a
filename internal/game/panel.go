package game

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// widget is anything the tuning panel lays out in a column.
type widget interface {
	update(mx, my int, pressed bool)
	draw(screen *ebiten.Image)
	height() float64
	place(x, y, width float64)
}

// slider edits a float in [min, max] by clicking or dragging along it.
type slider struct {
	label    string
	value    *float64
	min, max float64
	x, y, w  float64
}

const sliderBarHeight = 10

func (s *slider) height() float64 { return sliderBarHeight + 25 }

func (s *slider) place(x, y, width float64) {
	s.x, s.y, s.w = x, y+15, width
}

func (s *slider) update(mx, my int, pressed bool) {
	if !pressed || float64(my) < s.y || float64(my) > s.y+sliderBarHeight {
		return
	}
	if float64(mx) >= s.x && float64(mx) <= s.x+s.w {
		s.setFromX(float64(mx))
	}
}

// setFromX maps a cursor abscissa to a value, clamped to the range.
func (s *slider) setFromX(mx float64) {
	p := (mx - s.x) / s.w
	*s.value = min(max(s.min+p*(s.max-s.min), s.min), s.max)
}

func (s *slider) ratio() float64 {
	if s.max == s.min {
		return 0
	}
	return (*s.value - s.min) / (s.max - s.min)
}

func (s *slider) draw(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%s: %.3g", s.label, *s.value), int(s.x), int(s.y)-15)
	vector.FillRect(screen, float32(s.x), float32(s.y), float32(s.w), sliderBarHeight, color.RGBA{R: 80, G: 80, B: 80, A: 255}, true)
	vector.FillRect(screen, float32(s.x), float32(s.y), float32(s.w*s.ratio()), sliderBarHeight, color.RGBA{R: 200, G: 200, B: 200, A: 255}, true)
}

// toggle is a checkbox flipping a bool once per click.
type toggle struct {
	label   string
	value   *bool
	x, y    float64
	size    float64
	clicked bool
}

func (t *toggle) height() float64 { return t.size + 8 }

func (t *toggle) place(x, y, _ float64) { t.x, t.y = x, y }

func (t *toggle) update(mx, my int, pressed bool) {
	isOver := float64(mx) >= t.x && float64(mx) <= t.x+t.size &&
		float64(my) >= t.y && float64(my) <= t.y+t.size
	if isOver && pressed {
		if !t.clicked {
			*t.value = !*t.value
			t.clicked = true
		}
	} else {
		t.clicked = false
	}
}

func (t *toggle) draw(screen *ebiten.Image) {
	vector.StrokeRect(screen, float32(t.x), float32(t.y), float32(t.size), float32(t.size), 2,
		color.RGBA{R: 200, G: 200, B: 200, A: 255}, true)
	if *t.value {
		vector.FillRect(screen, float32(t.x+3), float32(t.y+3), float32(t.size-6), float32(t.size-6),
			color.RGBA{R: 100, G: 200, B: 100, A: 255}, true)
	}
	ebitenutil.DebugPrintAt(screen, t.label, int(t.x+t.size+6), int(t.y))
}

// button runs onClick once per click.
type button struct {
	label   string
	onClick func()
	x, y, w float64
	clicked bool
}

const buttonHeight = 20

func (b *button) height() float64 { return buttonHeight + 6 }

func (b *button) place(x, y, width float64) { b.x, b.y, b.w = x, y, width }

func (b *button) over(mx, my int) bool {
	return float64(mx) >= b.x && float64(mx) <= b.x+b.w &&
		float64(my) >= b.y && float64(my) <= b.y+buttonHeight
}

func (b *button) update(mx, my int, pressed bool) {
	if b.over(mx, my) && pressed {
		if !b.clicked && b.onClick != nil {
			b.onClick()
			b.clicked = true
		}
	} else {
		b.clicked = false
	}
}

func (b *button) draw(screen *ebiten.Image) {
	bg := color.RGBA{R: 80, G: 120, B: 180, A: 255}
	mx, my := ebiten.CursorPosition()
	if b.over(mx, my) {
		bg = color.RGBA{R: 100, G: 150, B: 220, A: 255}
	}
	vector.FillRect(screen, float32(b.x), float32(b.y), float32(b.w), buttonHeight, bg, true)
	ebitenutil.DebugPrintAt(screen, b.label, int(b.x+6), int(b.y+3))
}

// panel stacks widgets in a column over the flock.
type panel struct {
	x, y, width float64
	widgets     []widget
	visible     bool
}

func newPanel(x, y, width float64) *panel {
	return &panel{x: x, y: y, width: width, visible: true}
}

func (p *panel) add(w widget) {
	w.place(p.x+10, p.y+p.contentHeight(), p.width-20)
	p.widgets = append(p.widgets, w)
}

func (p *panel) addSlider(label string, value *float64, min, max float64) {
	p.add(&slider{label: label, value: value, min: min, max: max})
}

func (p *panel) addToggle(label string, value *bool) {
	p.add(&toggle{label: label, value: value, size: 14})
}

func (p *panel) addButton(label string, onClick func()) {
	p.add(&button{label: label, onClick: onClick})
}

func (p *panel) contentHeight() float64 {
	h := 10.0
	for _, w := range p.widgets {
		h += w.height()
	}
	return h
}

// contains reports whether the cursor is over the visible panel.
func (p *panel) contains(mx, my int) bool {
	return p.visible &&
		float64(mx) >= p.x && float64(mx) <= p.x+p.width &&
		float64(my) >= p.y && float64(my) <= p.y+p.contentHeight()
}

func (p *panel) update(mx, my int, pressed bool) {
	if !p.visible {
		return
	}
	for _, w := range p.widgets {
		w.update(mx, my, pressed)
	}
}

func (p *panel) draw(screen *ebiten.Image) {
	if !p.visible {
		return
	}
	vector.FillRect(screen, float32(p.x), float32(p.y), float32(p.width), float32(p.contentHeight()),
		color.RGBA{R: 40, G: 40, B: 45, A: 200}, true)
	for _, w := range p.widgets {
		w.draw(screen)
	}
}
