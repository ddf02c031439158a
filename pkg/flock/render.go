package flock

import (
	"image"

	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/goose"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/pixbuf"
)

// SetPixelBuffer makes buf the render target. The flock keeps its own
// reference to buf and releases the one it held before. Passing nil
// detaches the current buffer.
func (f *Flock) SetPixelBuffer(buf *pixbuf.Buffer) error {
	if buf != nil && !buf.Retain() {
		return pixbuf.ErrReleased
	}

	f.pixMu.Lock()
	old := f.pixelBuffer
	f.pixelBuffer = buf
	f.pixMu.Unlock()

	if old != nil {
		old.Release()
	}
	if buf != nil {
		f.logger.Debugf("pixel buffer attached: %v", buf.Size())
	}
	return nil
}

// SetGooseSprite makes sprite the glyph stamped for every goose. The flock
// takes ownership of sprite and releases the previous one. With no sprite
// each goose is a single pixel.
func (f *Flock) SetGooseSprite(sprite *pixbuf.Sprite) {
	f.pixMu.Lock()
	old := f.sprite
	f.sprite = sprite
	f.pixMu.Unlock()
	old.Release()
}

// HasGooseSprite reports whether a sprite is set.
func (f *Flock) HasGooseSprite() bool {
	f.pixMu.Lock()
	defer f.pixMu.Unlock()
	return f.sprite != nil
}

// Render draws the geese of the last completed tick into the pixel buffer,
// holding its pixel lock for the whole drawing. It returns ErrNoPixelBuffer
// when no buffer is attached. In every case it resets the tick counter and
// lets a throttled simulation run again.
func (f *Flock) Render() error {
	f.frames.BeginFrame()
	defer f.frames.EndFrame()
	defer f.state.ConsumeTicks()

	geese := *f.geese.Load()
	bounds := f.Bounds()

	f.pixMu.Lock()
	defer f.pixMu.Unlock()
	if f.pixelBuffer == nil {
		return ErrNoPixelBuffer
	}

	return f.pixelBuffer.WithPixels(func(img *image.RGBA) error {
		pixbuf.Fill(img, f.background)
		size := img.Bounds().Size()
		for _, g := range geese {
			p := toPixel(g, bounds, size)
			if f.sprite != nil {
				f.sprite.CompositeFromCenter(img, p)
			} else if p.In(img.Bounds()) {
				img.SetRGBA(p.X, p.Y, f.ink)
			}
		}
		return nil
	})
}

// toPixel maps a location in bounds onto a buffer of the given size. With
// empty bounds locations are taken as pixel coordinates.
func toPixel(g goose.Goose, bounds geometry.Size, size image.Point) image.Point {
	x, y := g.Location.X, g.Location.Y
	if !bounds.Empty() {
		x = x * float64(size.X) / bounds.Width
		y = y * float64(size.Y) / bounds.Height
	}
	return image.Pt(int(x), int(y))
}
