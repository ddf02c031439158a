package geometry

import "fmt"

// Size is the spatial extent of the flock, measured in world units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// Empty reports whether the size has no area.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Center returns the middle point of the area.
func (s Size) Center() Vector2D {
	return Vector2D{X: s.Width / 2, Y: s.Height / 2}
}

// Contains reports whether p lies in [0, Width) x [0, Height).
func (s Size) Contains(p Vector2D) bool {
	return p.X >= 0 && p.X < s.Width && p.Y >= 0 && p.Y < s.Height
}

func (s Size) String() string {
	return fmt.Sprintf("%.0fx%.0f", s.Width, s.Height)
}
