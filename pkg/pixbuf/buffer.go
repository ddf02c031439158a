// Package pixbuf provides the pixel buffer shared between the simulation
// and whatever displays it, and the sprites stamped into it.
package pixbuf

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"
)

// ErrReleased is returned when the pixels of a released buffer are accessed.
var ErrReleased = errors.New("pixbuf: buffer released")

// Buffer is an RGBA bitmap guarded by a pixel lock and shared by
// reference counting: every owner calls Release once, and the pixels are
// dropped when the last owner does.
type Buffer struct {
	mu   sync.Mutex
	img  *image.RGBA // nil once released
	refs atomic.Int32
}

// New allocates a width x height buffer owned by the caller.
func New(width, height int) *Buffer {
	b := &Buffer{img: image.NewRGBA(image.Rect(0, 0, width, height))}
	b.refs.Store(1)
	return b
}

// Retain adds an owner. It returns false, without adding anything, when
// the buffer has already been released by its last owner.
func (b *Buffer) Retain() bool {
	for {
		n := b.refs.Load()
		if n <= 0 {
			return false
		}
		if b.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops one owner. The last Release frees the pixels.
func (b *Buffer) Release() {
	n := b.refs.Add(-1)
	if n < 0 {
		panic("pixbuf: Release called more times than Retain")
	}
	if n == 0 {
		b.mu.Lock()
		b.img = nil
		b.mu.Unlock()
	}
}

// Refs returns the current number of owners.
func (b *Buffer) Refs() int {
	return int(b.refs.Load())
}

// Lock acquires the pixel lock and returns the pixels. The caller must
// call Unlock when it is done, even if Lock returned an error.
func (b *Buffer) Lock() (*image.RGBA, error) {
	b.mu.Lock()
	if b.img == nil {
		return nil, ErrReleased
	}
	return b.img, nil
}

// Unlock releases the pixel lock.
func (b *Buffer) Unlock() {
	b.mu.Unlock()
}

// WithPixels runs fn while holding the pixel lock. The lock is released
// on every exit path, including a panic in fn.
func (b *Buffer) WithPixels(fn func(img *image.RGBA) error) error {
	img, err := b.Lock()
	defer b.Unlock()
	if err != nil {
		return err
	}
	return fn(img)
}

// Size returns the dimensions of the buffer, or zero once released.
func (b *Buffer) Size() image.Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return image.Point{}
	}
	return b.img.Bounds().Size()
}

// Fill paints every pixel of img with c.
func Fill(img *image.RGBA, c color.RGBA) {
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}
