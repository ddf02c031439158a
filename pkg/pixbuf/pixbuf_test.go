package pixbuf

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func TestBuffer_LastOwnerReleases(t *testing.T) {
	b := New(4, 3)
	require.Equal(t, 1, b.Refs())
	require.True(t, b.Retain())
	require.Equal(t, 2, b.Refs())

	b.Release()
	assert.Equal(t, image.Pt(4, 3), b.Size(), "pixels must survive while an owner remains")

	b.Release()
	assert.Equal(t, image.Point{}, b.Size())
	assert.False(t, b.Retain(), "a released buffer cannot be revived")

	err := b.WithPixels(func(*image.RGBA) error { return nil })
	assert.ErrorIs(t, err, ErrReleased)
}

func TestBuffer_OverRelease(t *testing.T) {
	b := New(1, 1)
	b.Release()
	assert.Panics(t, b.Release)
}

func TestBuffer_WithPixelsUnlocksOnError(t *testing.T) {
	b := New(2, 2)
	boom := errors.New("boom")

	err := b.WithPixels(func(img *image.RGBA) error {
		img.SetRGBA(0, 0, red)
		return boom
	})
	require.ErrorIs(t, err, boom)

	// would deadlock if the first call leaked the lock
	err = b.WithPixels(func(img *image.RGBA) error {
		assert.Equal(t, red, img.RGBAAt(0, 0))
		return nil
	})
	assert.NoError(t, err)
}

func TestBuffer_WithPixelsUnlocksOnPanic(t *testing.T) {
	b := New(2, 2)

	assert.Panics(t, func() {
		_ = b.WithPixels(func(*image.RGBA) error { panic("boom") })
	})

	img, err := b.Lock()
	require.NoError(t, err)
	assert.NotNil(t, img)
	b.Unlock()
}

func TestFill(t *testing.T) {
	b := New(3, 2)
	require.NoError(t, b.WithPixels(func(img *image.RGBA) error {
		Fill(img, white)
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				assert.Equal(t, white, img.RGBAAt(x, y))
			}
		}
		return nil
	}))
}

func TestNewSpriteFromDesign(t *testing.T) {
	s := NewSpriteFromDesign([]string{
		".R.",
		"RRRR",
		".",
	}, map[rune]color.RGBA{'R': red})

	assert.Equal(t, image.Pt(4, 3), s.Size())
	assert.Equal(t, red, s.img.RGBAAt(1, 0))
	assert.Equal(t, red, s.img.RGBAAt(3, 1))
	assert.Equal(t, color.RGBA{}, s.img.RGBAAt(0, 0), "unknown runes stay transparent")
}

func TestSprite_CompositeFromCenter(t *testing.T) {
	s := NewSpriteFromDesign([]string{
		"RRR",
		"RRR",
		"RRR",
	}, map[rune]color.RGBA{'R': red})
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	Fill(dst, white)

	s.CompositeFromCenter(dst, image.Pt(5, 5))

	assert.Equal(t, red, dst.RGBAAt(4, 4))
	assert.Equal(t, red, dst.RGBAAt(6, 6))
	assert.Equal(t, white, dst.RGBAAt(3, 3))
	assert.Equal(t, white, dst.RGBAAt(7, 7))

	// clipped at the corner without panicking
	s.CompositeFromCenter(dst, image.Pt(0, 0))
	assert.Equal(t, red, dst.RGBAAt(0, 0))
}

func TestSprite_Release(t *testing.T) {
	s := NewSpriteFromDesign([]string{"R"}, map[rune]color.RGBA{'R': red})
	dst := image.NewRGBA(image.Rect(0, 0, 2, 2))

	s.Release()
	s.CompositeFromCenter(dst, image.Pt(0, 0))

	assert.Equal(t, image.Point{}, s.Size())
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(0, 0))

	var nilSprite *Sprite
	assert.NotPanics(t, func() { nilSprite.Release() })
}
