package pixbuf

import (
	"image"
	"image/color"
	"image/draw"
)

// Sprite is a small bitmap stamped into a Buffer. Whoever receives a
// Sprite owns it and must not share it; Release drops the pixels.
type Sprite struct {
	img *image.RGBA
}

// NewSprite wraps img. The sprite takes ownership of img.
func NewSprite(img *image.RGBA) *Sprite {
	return &Sprite{img: img}
}

// NewSpriteFromDesign converts an ASCII grid into a sprite. Every rune
// found in palette becomes a pixel of that colour, any other rune stays
// transparent. Rows may have different lengths.
func NewSpriteFromDesign(design []string, palette map[rune]color.RGBA) *Sprite {
	h := len(design)
	w := 0
	for _, row := range design {
		w = max(w, len([]rune(row)))
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	for y, row := range design {
		for x, char := range []rune(row) {
			if col, ok := palette[char]; ok {
				img.SetRGBA(x, y, col)
			}
		}
	}
	return &Sprite{img: img}
}

// Size returns the sprite dimensions, or zero once released.
func (s *Sprite) Size() image.Point {
	if s == nil || s.img == nil {
		return image.Point{}
	}
	return s.img.Bounds().Size()
}

// CompositeFromCenter alpha-blends the sprite onto dst so that its centre
// lands on center. Parts falling outside dst are clipped.
func (s *Sprite) CompositeFromCenter(dst *image.RGBA, center image.Point) {
	if s == nil || s.img == nil {
		return
	}
	size := s.img.Bounds().Size()
	origin := center.Sub(size.Div(2))
	r := image.Rectangle{Min: origin, Max: origin.Add(size)}
	draw.Draw(dst, r, s.img, s.img.Bounds().Min, draw.Over)
}

// Release drops the sprite pixels. Stamping a released sprite does nothing.
func (s *Sprite) Release() {
	if s != nil {
		s.img = nil
	}
}
