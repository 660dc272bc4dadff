// Detection parameters shared by the cascade backends
package detect

import (
	"fmt"
	"image"
)

var (
	// DefaultMinSize and DefaultMaxSize bound the eye and smile searches.
	DefaultMinSize = image.Pt(24, 12)
	DefaultMaxSize = image.Pt(144, 144)
)

// Params tunes the multi-scale scan of one detector. Fixed at construction.
type Params struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      image.Point
	// MaxSize of zero means no upper bound.
	MaxSize image.Point
}

// Validate checks the parameters before a detector is built with them
func (p Params) Validate() error {
	if p.ScaleFactor <= 1.0 {
		return fmt.Errorf("scale factor must be greater than 1, got %g", p.ScaleFactor)
	}
	if p.MinNeighbors < 0 {
		return fmt.Errorf("min neighbors must not be negative, got %d", p.MinNeighbors)
	}
	if p.MinSize.X < 0 || p.MinSize.Y < 0 {
		return fmt.Errorf("invalid min size: %v", p.MinSize)
	}
	if p.MaxSize.X < 0 || p.MaxSize.Y < 0 {
		return fmt.Errorf("invalid max size: %v", p.MaxSize)
	}
	if p.unbounded() {
		return nil
	}
	if p.MaxSize.X < p.MinSize.X || p.MaxSize.Y < p.MinSize.Y {
		return fmt.Errorf("max size %v is smaller than min size %v", p.MaxSize, p.MinSize)
	}
	return nil
}

func (p Params) unbounded() bool {
	return p.MaxSize == image.Point{}
}

// searchArea returns the part of bounds covered by area. An empty area means all of bounds.
func searchArea(bounds, area image.Rectangle) image.Rectangle {
	if area.Empty() {
		return bounds
	}
	return area.Intersect(bounds)
}
