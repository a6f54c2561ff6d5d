package model

import "strings"

// AspectRatio selects the project canvas. Anything other than portrait is landscape.
type AspectRatio string

const (
	Portrait  AspectRatio = "9:16"
	Landscape AspectRatio = "16:9"
)

// ParseAspectRatio maps user input to a known ratio, defaulting to landscape.
func ParseAspectRatio(s string) AspectRatio {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "9:16", "portrait", "shorts", "vertical":
		return Portrait
	default:
		return Landscape
	}
}

// Normalize returns the canonical form of a possibly empty or free-form ratio.
func (a AspectRatio) Normalize() AspectRatio {
	return ParseAspectRatio(string(a))
}

// IsPortrait reports whether the ratio selects the vertical canvas.
func (a AspectRatio) IsPortrait() bool {
	return a.Normalize() == Portrait
}

// VideoSize is the canvas in pixels.
func (a AspectRatio) VideoSize() (width, height int) {
	if a.IsPortrait() {
		return 1080, 1920
	}
	return 1920, 1080
}

// Scale is width divided by height of the canvas.
func (a AspectRatio) Scale() float64 {
	w, h := a.VideoSize()
	return float64(w) / float64(h)
}
