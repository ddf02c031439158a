package flock

import (
	"image/color"

	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/pixbuf"
)

// Legend:
// . = Transparent
// K = Black (head and neck)
// W = White (cheek patch)
// B = Brown (body)
// D = Dark brown (wings)
// O = Orange (beak)
var gooseDesign = []string{
	"....KK.....",
	"...KWKO....",
	"....KK.....",
	"....K......",
	"...BBBB....",
	".DDBBBBBDD.",
	"DD.BBBBB.DD",
	"....BBB....",
	".....B.....",
}

var goosePalette = map[rune]color.RGBA{
	'K': {R: 20, G: 20, B: 20, A: 255},
	'W': {R: 240, G: 240, B: 240, A: 255},
	'B': {R: 140, G: 110, B: 80, A: 255},
	'D': {R: 90, G: 70, B: 50, A: 255},
	'O': {R: 255, G: 150, B: 30, A: 255},
}

// GooseSprite returns a new sprite drawing a small goose seen from above.
// The caller owns it.
func GooseSprite() *pixbuf.Sprite {
	return pixbuf.NewSpriteFromDesign(gooseDesign, goosePalette)
}
